package configuration

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

var configYamlV0_1 = `
log:
  level: debug
  formatter: json
  fields:
    service: notifications
database:
  host: db.example.com
  port: 5433
  user: sentry
  password: secret
  dbname: sentry
  sslmode: disable
  connecttimeout: 5s
  connectretry: 1m
  pool:
    maxidle: 2
    maxopen: 10
    maxlifetime: 5m
reporting:
  sentry:
    enabled: true
    dsn: https://public@sentry.example.com/1
    environment: production
`

func TestParse(t *testing.T) {
	config, err := parse(strings.NewReader(configYamlV0_1), nil)
	require.NoError(t, err)

	expected := &Configuration{
		Log: Log{
			Level:     "debug",
			Formatter: "json",
			Fields:    map[string]interface{}{"service": "notifications"},
		},
		Database: Database{
			Host:           "db.example.com",
			Port:           5433,
			User:           "sentry",
			Password:       "secret",
			DBName:         "sentry",
			SSLMode:        "disable",
			ConnectTimeout: 5 * time.Second,
			ConnectRetry:   time.Minute,
			Pool: Pool{
				MaxIdle:     2,
				MaxOpen:     10,
				MaxLifetime: 5 * time.Minute,
			},
		},
		Reporting: Reporting{
			Sentry: SentryReporting{
				Enabled:     true,
				DSN:         "https://public@sentry.example.com/1",
				Environment: "production",
			},
		},
	}
	require.Equal(t, expected, config)
}

func TestParse_Defaults(t *testing.T) {
	config, err := parse(strings.NewReader("database:\n  host: localhost\n  dbname: sentry\n"), nil)
	require.NoError(t, err)
	require.Equal(t, 5432, config.Database.Port)
	require.Equal(t, "prefer", config.Database.SSLMode)
	require.Empty(t, config.Log.Level)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := parse(strings.NewReader("database:\n  host: localhost\n  dbname: sentry\n  hots: foo\n"), nil)
	require.Error(t, err)
}

func TestParse_EnvOverrides(t *testing.T) {
	environ := []string{
		"PATH=/usr/bin",
		"NOTIFICATIONS_DATABASE_HOST=10.0.0.1",
		"NOTIFICATIONS_DATABASE_PORT=6543",
		"NOTIFICATIONS_DATABASE_PASSWORD=from=env",
		"NOTIFICATIONS_DATABASE_CONNECTRETRY=30s",
	}

	config, err := parse(strings.NewReader(configYamlV0_1), environ)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1", config.Database.Host)
	require.Equal(t, 6543, config.Database.Port)
	require.Equal(t, "from=env", config.Database.Password)
	require.Equal(t, 30*time.Second, config.Database.ConnectRetry)
	// untouched settings are kept
	require.Equal(t, "sentry", config.Database.User)
	require.Equal(t, 10, config.Database.Pool.MaxOpen)
}

func TestParse_EnvOverrides_Unknown(t *testing.T) {
	environ := []string{
		"NOTIFICATIONS_DATABASE_NAME=foo",
		"NOTIFICATIONS_DATABASE_HOSTNAME=bar",
	}

	_, err := parse(strings.NewReader(configYamlV0_1), environ)
	require.EqualError(t, err, "unknown NOTIFICATIONS_DATABASE_* environment variables: HOSTNAME, NAME")
}

func TestParse_EnvOverrides_InvalidPort(t *testing.T) {
	_, err := parse(strings.NewReader(configYamlV0_1), []string{"NOTIFICATIONS_DATABASE_PORT=abc"})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	config := &Configuration{
		Log:       Log{Level: "loud", Formatter: "xml"},
		Database:  Database{Port: 70000, SSLMode: "sometimes"},
		Reporting: Reporting{Sentry: SentryReporting{Enabled: true}},
	}

	err := config.Validate()

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 7)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(configYamlV0_1), 0600))

	config, err := ParseFile(path)
	require.NoError(t, err)
	require.Equal(t, "sentry", config.Database.DBName)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}

func TestParse_Empty(t *testing.T) {
	_, err := parse(&bytes.Buffer{}, nil)
	// an empty document has no database settings
	require.Error(t, err)
}
