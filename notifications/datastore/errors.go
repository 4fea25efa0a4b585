package datastore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/rettinghaus/sentry/notifications/datastore/migrations"
)

var (
	// ErrNotFound is returned when a row is not found on the database.
	ErrNotFound = errors.New("not found")
	// ErrNotificationMessageNotFound is returned when a notification message is not found on the database.
	ErrNotificationMessageNotFound = fmt.Errorf("notification message %w", ErrNotFound)
	// ErrInvalidSubject is returned when a notification message does not have exactly one subject.
	ErrInvalidSubject = errors.New("notification message must have exactly one subject")
	// ErrParentMessageExists is returned when attempting to create a second parent message for the same subject and
	// open period.
	ErrParentMessageExists = errors.New("parent notification message already exists")
)

const parentIndexPrefix = "singular_parent_message_"

// ConstraintViolationError is returned when a write is rejected by a table constraint. errors.Is matches its sentinel
// and errors.As reaches the underlying database error, such as a *pgconn.PgError.
type ConstraintViolationError struct {
	// Constraint is the name of the violated constraint or unique index.
	Constraint string
	// Err is the sentinel error the violation maps to.
	Err   error
	cause error
}

// Error implements error.
func (err *ConstraintViolationError) Error() string {
	return fmt.Sprintf("%s: constraint %q: %v", err.Err, err.Constraint, err.cause)
}

// Unwrap returns the sentinel error, so that errors.Is works against ErrInvalidSubject and ErrParentMessageExists.
func (err *ConstraintViolationError) Unwrap() error {
	return err.Err
}

// As implements the interface used by errors.As, so that the database error stays reachable after translation.
func (err *ConstraintViolationError) As(target interface{}) bool {
	return errors.As(err.cause, target)
}

// Cause returns the underlying database error.
func (err *ConstraintViolationError) Cause() error {
	return err.cause
}

// translateError maps constraint violations on the notification message table to sentinel errors. Any other error is
// returned as is.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.CheckViolation:
		switch pgErr.ConstraintName {
		case migrations.NotificationTypeMutualExclusivity, migrations.NotificationForIssueXorMetricAlert:
			return &ConstraintViolationError{Constraint: pgErr.ConstraintName, Err: ErrInvalidSubject, cause: err}
		}
	case pgerrcode.UniqueViolation:
		if strings.HasPrefix(pgErr.ConstraintName, parentIndexPrefix) {
			return &ConstraintViolationError{Constraint: pgErr.ConstraintName, Err: ErrParentMessageExists, cause: err}
		}
	}

	return err
}
