package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/rettinghaus/sentry/log"
)

const driverName = "pgx"

// Queryer is the common interface to execute queries on a database.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Transactor wraps some database transaction operations.
type Transactor interface {
	Commit() error
	Rollback() error
}

// Handler represents a database connection handler.
type Handler interface {
	Queryer
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Transactor, error)
	Close() error
}

// DB is a database handle that implements Handler.
type DB struct {
	*sql.DB
	DSN *DSN
}

// BeginTx wraps sql.Tx from the inner sql.DB within a datastore.Tx.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (Transactor, error) {
	tx, err := db.DB.BeginTx(ctx, opts)

	return &Tx{tx}, err
}

// Begin wraps sql.Tx from the inner sql.DB within a datastore.Tx.
func (db *DB) Begin() (*Tx, error) {
	tx, err := db.DB.Begin()

	return &Tx{tx}, err
}

// Tx is a database transaction that implements Transactor.
type Tx struct {
	*sql.Tx
}

// Savepoint creates a named savepoint within the transaction.
func (tx *Tx) Savepoint(ctx context.Context, name string) error {
	_, err := tx.ExecContext(ctx, "SAVEPOINT "+pgx.Identifier{name}.Sanitize())
	return err
}

// RollbackTo rolls back the transaction to the named savepoint, discarding everything done after it.
func (tx *Tx) RollbackTo(ctx context.Context, name string) error {
	_, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+pgx.Identifier{name}.Sanitize())
	return err
}

// DSN represents the Data Source Name parameters for a DB connection.
type DSN struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	SSLMode        string
	SSLCert        string
	SSLKey         string
	SSLRootCert    string
	ConnectTimeout time.Duration
}

// String builds the string representation of a connection string in key/value format, as described in
// https://www.postgresql.org/docs/current/libpq-connect.html#id-1.7.3.8.3.5.
func (dsn *DSN) String() string {
	var params []string

	port := ""
	if dsn.Port > 0 {
		port = strconv.Itoa(dsn.Port)
	}
	connectTimeout := ""
	if dsn.ConnectTimeout > 0 {
		connectTimeout = fmt.Sprintf("%.0f", dsn.ConnectTimeout.Seconds())
	}

	for _, param := range []struct{ k, v string }{
		{"host", dsn.Host},
		{"port", port},
		{"user", dsn.User},
		{"password", dsn.Password},
		{"dbname", dsn.DBName},
		{"sslmode", dsn.SSLMode},
		{"sslcert", dsn.SSLCert},
		{"sslkey", dsn.SSLKey},
		{"sslrootcert", dsn.SSLRootCert},
		{"connect_timeout", connectTimeout},
	} {
		if len(param.v) == 0 {
			continue
		}

		param.v = strings.ReplaceAll(param.v, "'", `\'`)
		param.v = strings.ReplaceAll(param.v, " ", `\ `)

		params = append(params, param.k+"="+param.v)
	}

	return strings.Join(params, " ")
}

// Address returns the host:port segment of a DSN, suitable for log fields.
func (dsn *DSN) Address() string {
	if dsn.Port > 0 {
		return fmt.Sprintf("%s:%d", dsn.Host, dsn.Port)
	}
	return dsn.Host
}

// PoolConfig represents the settings of the database connection pool.
type PoolConfig struct {
	MaxIdle     int
	MaxOpen     int
	MaxLifetime time.Duration
}

type openOpts struct {
	logger        log.Logger
	pool          *PoolConfig
	retryTimeout  time.Duration
	retryInterval time.Duration
}

// OpenOption is used to pass options to Open.
type OpenOption func(*openOpts)

// WithLogger configures the logger for the database connection driver.
func WithLogger(l log.Logger) OpenOption {
	return func(opts *openOpts) {
		opts.logger = l
	}
}

// WithPoolConfig configures the settings for the database connection pool.
func WithPoolConfig(c *PoolConfig) OpenOption {
	return func(opts *openOpts) {
		opts.pool = c
	}
}

// WithConnectRetry keeps retrying the initial ping with exponential backoff for up to timeout. A zero timeout disables
// retries.
func WithConnectRetry(timeout time.Duration) OpenOption {
	return func(opts *openOpts) {
		opts.retryTimeout = timeout
	}
}

func applyOptions(opts []OpenOption) openOpts {
	config := openOpts{
		logger:        log.Discard(),
		pool:          &PoolConfig{},
		retryInterval: 500 * time.Millisecond,
	}

	for _, v := range opts {
		v(&config)
	}

	return config
}

// Open opens a database and verifies the connection.
func Open(dsn *DSN, opts ...OpenOption) (*DB, error) {
	config := applyOptions(opts)

	pgxConfig, err := pgx.ParseConfig(dsn.String())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string failed: %w", err)
	}
	connStr := stdlib.RegisterConnConfig(pgxConfig)

	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return nil, fmt.Errorf("open connection handle failed: %w", err)
	}

	db.SetMaxOpenConns(config.pool.MaxOpen)
	db.SetMaxIdleConns(config.pool.MaxIdle)
	db.SetConnMaxLifetime(config.pool.MaxLifetime)

	l := config.logger.WithFields(log.Fields{"address": dsn.Address(), "database": dsn.DBName})
	if err := ping(db, config, l); err != nil {
		db.Close()
		return nil, fmt.Errorf("verification failed: %w", err)
	}
	l.Debug("database connection established")

	return &DB{DB: db, DSN: dsn}, nil
}

func ping(db *sql.DB, config openOpts, l log.Logger) error {
	if config.retryTimeout <= 0 {
		return db.Ping()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.retryInterval
	b.MaxElapsedTime = config.retryTimeout

	return backoff.RetryNotify(db.Ping, b, func(err error, next time.Duration) {
		l.WithError(err).WithFields(log.Fields{"retry_in_s": next.Seconds()}).Warn("database not reachable, retrying")
	})
}
