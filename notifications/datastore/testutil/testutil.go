package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/rettinghaus/sentry/notifications/datastore"
)

// Environment variables holding the connection settings of the test database.
const (
	hostEnvVar     = "NOTIFICATIONS_DATABASE_HOST"
	portEnvVar     = "NOTIFICATIONS_DATABASE_PORT"
	userEnvVar     = "NOTIFICATIONS_DATABASE_USER"
	passwordEnvVar = "NOTIFICATIONS_DATABASE_PASSWORD"
	dbNameEnvVar   = "NOTIFICATIONS_DATABASE_DBNAME"
	sslModeEnvVar  = "NOTIFICATIONS_DATABASE_SSLMODE"
)

// NewDSNFromEnv generates a new DSN for the test database based on environment variable configurations.
func NewDSNFromEnv() (*datastore.DSN, error) {
	port, err := strconv.Atoi(os.Getenv(portEnvVar))
	if err != nil {
		return nil, fmt.Errorf("parsing DSN port: %w", err)
	}
	dsn := &datastore.DSN{
		Host:     os.Getenv(hostEnvVar),
		Port:     port,
		User:     os.Getenv(userEnvVar),
		Password: os.Getenv(passwordEnvVar),
		DBName:   os.Getenv(dbNameEnvVar),
		SSLMode:  os.Getenv(sslModeEnvVar),
	}

	return dsn, nil
}

// NewDBFromEnv generates a new datastore.DB and opens the underlying connection handle.
func NewDBFromEnv() (*datastore.DB, error) {
	dsn, err := NewDSNFromEnv()
	if err != nil {
		return nil, err
	}

	db, err := datastore.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}

	return db, nil
}

// tables lists the tables emptied between tests, in an order that respects foreign keys.
var tables = []string{
	"sentry_notificationmessage",
	"workflow_engine_action",
	"sentry_rulefirehistory",
	"sentry_alertruletriggeraction",
	"sentry_incident",
	"sentry_groupedmessage",
}

// TruncateAllTables truncates all tables touched by notification messages, restarting their ID sequences.
func TruncateAllTables(ctx context.Context, db *datastore.DB) error {
	for _, t := range tables {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", t)); err != nil {
			return fmt.Errorf("truncating table %q: %w", t, err)
		}
	}
	return nil
}

// Subjects holds one row of each table a notification message can refer to.
type Subjects struct {
	GroupID         int64
	IncidentID      int64
	TriggerActionID int64
	RuleFireID      int64
	ActionID        int64
}

// CreateSubjects inserts one row in each subject table and returns their IDs.
func CreateSubjects(ctx context.Context, db datastore.Queryer) (*Subjects, error) {
	s := new(Subjects)

	for _, v := range []struct {
		q  string
		id *int64
	}{
		{"INSERT INTO sentry_groupedmessage DEFAULT VALUES RETURNING id", &s.GroupID},
		{"INSERT INTO sentry_incident DEFAULT VALUES RETURNING id", &s.IncidentID},
		{"INSERT INTO sentry_alertruletriggeraction DEFAULT VALUES RETURNING id", &s.TriggerActionID},
		{"INSERT INTO sentry_rulefirehistory DEFAULT VALUES RETURNING id", &s.RuleFireID},
		{"INSERT INTO workflow_engine_action (type) VALUES ('slack') RETURNING id", &s.ActionID},
	} {
		if err := db.QueryRowContext(ctx, v.q).Scan(v.id); err != nil {
			return nil, fmt.Errorf("creating subject: %w", err)
		}
	}

	return s, nil
}
