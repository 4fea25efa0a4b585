package configuration

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix of the environment variables that override database settings, e.g.
// NOTIFICATIONS_DATABASE_HOST overrides database.host.
const EnvPrefix = "NOTIFICATIONS_DATABASE_"

// Configuration is the top level configuration of the notifications tooling.
type Configuration struct {
	Log       Log       `yaml:"log,omitempty"`
	Database  Database  `yaml:"database"`
	Reporting Reporting `yaml:"reporting,omitempty"`
}

// Log configures the base logger.
type Log struct {
	// Level is the granularity at which operations are logged.
	Level string `yaml:"level,omitempty"`
	// Formatter overrides the default formatter with another. Options include "text" and "json".
	Formatter string `yaml:"formatter,omitempty"`
	// Fields allows users to specify static string fields to include in the logger context.
	Fields map[string]interface{} `yaml:"fields,omitempty"`
}

// Database is the configuration for the Postgres database holding notification messages.
type Database struct {
	Host           string        `yaml:"host" mapstructure:"host"`
	Port           int           `yaml:"port" mapstructure:"port"`
	User           string        `yaml:"user" mapstructure:"user"`
	Password       string        `yaml:"password" mapstructure:"password"`
	DBName         string        `yaml:"dbname" mapstructure:"dbname"`
	SSLMode        string        `yaml:"sslmode" mapstructure:"sslmode"`
	SSLCert        string        `yaml:"sslcert,omitempty" mapstructure:"sslcert"`
	SSLKey         string        `yaml:"sslkey,omitempty" mapstructure:"sslkey"`
	SSLRootCert    string        `yaml:"sslrootcert,omitempty" mapstructure:"sslrootcert"`
	ConnectTimeout time.Duration `yaml:"connecttimeout,omitempty" mapstructure:"connecttimeout"`
	// ConnectRetry keeps retrying the initial connection for up to the given duration. Zero disables retries.
	ConnectRetry time.Duration `yaml:"connectretry,omitempty" mapstructure:"connectretry"`
	Pool         Pool          `yaml:"pool,omitempty" mapstructure:"-"`
}

// Pool configures the database connection pool.
type Pool struct {
	MaxIdle     int           `yaml:"maxidle,omitempty"`
	MaxOpen     int           `yaml:"maxopen,omitempty"`
	MaxLifetime time.Duration `yaml:"maxlifetime,omitempty"`
}

// Reporting configures error reporting services.
type Reporting struct {
	Sentry SentryReporting `yaml:"sentry,omitempty"`
}

// SentryReporting configures error reporting for Sentry (sentry.io).
type SentryReporting struct {
	Enabled     bool   `yaml:"enabled,omitempty"`
	DSN         string `yaml:"dsn,omitempty"`
	Environment string `yaml:"environment,omitempty"`
}

const (
	defaultPort    = 5432
	defaultSSLMode = "prefer"
)

// Parse parses an input configuration yaml document, applies environment overrides and defaults, and validates the
// result.
func Parse(rd io.Reader) (*Configuration, error) {
	return parse(rd, os.Environ())
}

func parse(rd io.Reader, environ []string) (*Configuration, error) {
	in, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	config := new(Configuration)
	if err := yaml.UnmarshalStrict(in, config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := config.Database.overrideFromEnv(environ); err != nil {
		return nil, err
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ParseFile parses the configuration file at path.
func ParseFile(path string) (*Configuration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening configuration file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

func (c *Configuration) applyDefaults() {
	if c.Database.Port == 0 {
		c.Database.Port = defaultPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = defaultSSLMode
	}
}

// Validate checks the configuration for missing or unsupported settings. All problems are reported at once.
func (c *Configuration) Validate() error {
	var errs *multierror.Error

	if c.Database.Host == "" {
		errs = multierror.Append(errs, errors.New("database.host is required"))
	}
	if c.Database.DBName == "" {
		errs = multierror.Append(errs, errors.New("database.dbname is required"))
	}
	if c.Database.Port < 0 || c.Database.Port > 65535 {
		errs = multierror.Append(errs, fmt.Errorf("database.port %d is out of range", c.Database.Port))
	}
	switch c.Database.SSLMode {
	case "", "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		errs = multierror.Append(errs, fmt.Errorf("database.sslmode %q is not supported", c.Database.SSLMode))
	}

	if c.Log.Level != "" {
		if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("log.level: %w", err))
		}
	}
	switch c.Log.Formatter {
	case "", "text", "json":
	default:
		errs = multierror.Append(errs, fmt.Errorf("log.formatter %q is not supported", c.Log.Formatter))
	}

	if c.Reporting.Sentry.Enabled && c.Reporting.Sentry.DSN == "" {
		errs = multierror.Append(errs, errors.New("reporting.sentry.dsn is required when sentry reporting is enabled"))
	}

	return errs.ErrorOrNil()
}

// overrideFromEnv replaces database settings with the values of EnvPrefix environment variables found in environ.
func (d *Database) overrideFromEnv(environ []string) error {
	overrides := make(map[string]interface{})
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(kv, EnvPrefix), "=", 2)
		if len(parts) != 2 {
			continue
		}
		overrides[strings.ToLower(parts[0])] = parts[1]
	}
	if len(overrides) == 0 {
		return nil
	}

	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         &md,
		Result:           d,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("building environment decoder: %w", err)
	}
	if err := decoder.Decode(overrides); err != nil {
		return fmt.Errorf("decoding %s* environment variables: %w", EnvPrefix, err)
	}
	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		return fmt.Errorf("unknown %s* environment variables: %s", EnvPrefix, strings.ToUpper(strings.Join(md.Unused, ", ")))
	}

	return nil
}
