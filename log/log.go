package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger provides a leveled-logging interface.
type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Fatal(args ...interface{})

	// Leveled methods, from logrus
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	WithError(error) Logger
	WithFields(Fields) Logger
}

type loggerKey struct{}

// Fields is an alias so that callers only need to know about this package
type Fields = logrus.Fields

const (
	// TextFormatter is the logrus text formatter.
	TextFormatter = "text"
	// JSONFormatter is the logrus JSON formatter.
	JSONFormatter = "json"

	defaultLevel     = "info"
	defaultFormatter = TextFormatter
)

// Config describes how the base logger is built.
type Config struct {
	Level     string
	Formatter string
	Output    io.Writer
	Fields    Fields
}

type wrapper struct {
	*logrus.Entry
}

// New builds a Logger from cfg. Empty settings fall back to an info level text logger writing to stderr.
func New(cfg Config) (Logger, error) {
	if cfg.Level == "" {
		cfg.Level = defaultLevel
	}
	if cfg.Formatter == "" {
		cfg.Formatter = defaultFormatter
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	lvl, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	l := logrus.New()
	l.SetLevel(lvl)
	l.SetOutput(cfg.Output)

	switch strings.ToLower(cfg.Formatter) {
	case TextFormatter:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case JSONFormatter:
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unsupported log formatter: %q", cfg.Formatter)
	}

	entry := logrus.NewEntry(l)
	if len(cfg.Fields) > 0 {
		entry = entry.WithFields(cfg.Fields)
	}

	return &wrapper{entry}, nil
}

// Discard returns a Logger that drops everything. Useful as a default for optional loggers.
func Discard() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return FromLogrusLogger(l)
}

// FromLogrusLogger converts a logrus.Logger into Logger.
func FromLogrusLogger(l *logrus.Logger) Logger {
	return &wrapper{logrus.NewEntry(l)}
}

// ToLogrusEntry converts a Logger into a logrus.Entry. Useful for testing.
func ToLogrusEntry(l Logger) (*logrus.Entry, error) {
	w, ok := l.(*wrapper)
	if !ok {
		return nil, errors.New("base logger is not a wrapper")
	}

	return w.Entry, nil
}

func (w *wrapper) WithError(err error) Logger {
	return &wrapper{w.Entry.WithError(err)}
}

func (w *wrapper) WithFields(f Fields) Logger {
	return &wrapper{w.Entry.WithFields(f)}
}

// WithLogger creates a new context with provided logger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

type logOptions struct {
	ctx  context.Context
	keys []interface{}
}

type logOpt func(o *logOptions)

// WithContext returns the logger from the current context, if present.
func WithContext(ctx context.Context) logOpt {
	return func(o *logOptions) {
		o.ctx = ctx
	}
}

// WithKeys allows the passing of one or more log keys. They will be resolved on the logger's context and included in
// the logger. Any key argument is passed to fmt.Sprint when expanded as a logging key field.
func WithKeys(keys ...interface{}) logOpt {
	return func(o *logOptions) {
		o.keys = keys
	}
}

// GetLogger returns the Logger stored in the context, or the standard logrus logger if there is none.
func GetLogger(opts ...logOpt) Logger {
	cfg := &logOptions{ctx: context.Background()}
	for _, o := range opts {
		o(cfg)
	}

	return &wrapper{getLogrusEntry(cfg.ctx, cfg.keys...)}
}

func getLogrusEntry(ctx context.Context, keys ...interface{}) *logrus.Entry {
	var entry *logrus.Entry

	if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
		if w, ok := l.(*wrapper); ok {
			entry = w.Entry
		}
	}

	if entry == nil {
		// If no logger is found, just return the standard logger.
		entry = logrus.StandardLogger().WithField("go_version", runtime.Version())
	}

	fields := logrus.Fields{}
	for _, key := range keys {
		v := ctx.Value(key)
		if v != nil {
			fields[standardizedKey(fmt.Sprint(key))] = v
		}
	}

	return entry.WithFields(fields)
}

// standardizedKey converts all dots to underscores in key names in order to enforce a consistent naming convention
// across log lines.
func standardizedKey(key string) string {
	return strings.ReplaceAll(key, ".", "_")
}
