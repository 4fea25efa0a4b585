package datastore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/stretchr/testify/require"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantSentinel   error
		wantConstraint string
	}{
		{
			name: "mutual exclusivity check",
			err: &pgconn.PgError{
				Code:           pgerrcode.CheckViolation,
				ConstraintName: "notification_type_mutual_exclusivity",
			},
			wantSentinel:   ErrInvalidSubject,
			wantConstraint: "notification_type_mutual_exclusivity",
		},
		{
			name: "legacy xor check",
			err: fmt.Errorf("wrapped: %w", &pgconn.PgError{
				Code:           pgerrcode.CheckViolation,
				ConstraintName: "notification_for_issue_xor_metric_alert",
			}),
			wantSentinel:   ErrInvalidSubject,
			wantConstraint: "notification_for_issue_xor_metric_alert",
		},
		{
			name: "rule fire history parent",
			err: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "singular_parent_message_per_rule_fire_history_rule_action_open_",
			},
			wantSentinel:   ErrParentMessageExists,
			wantConstraint: "singular_parent_message_per_rule_fire_history_rule_action_open_",
		},
		{
			name: "action group parent",
			err: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "singular_parent_message_per_action_group_open_period",
			},
			wantSentinel:   ErrParentMessageExists,
			wantConstraint: "singular_parent_message_per_action_group_open_period",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateError(tt.err)
			require.ErrorIs(t, err, tt.wantSentinel)

			var cvErr *ConstraintViolationError
			require.ErrorAs(t, err, &cvErr)
			require.Equal(t, tt.wantConstraint, cvErr.Constraint)
			require.Equal(t, tt.err, cvErr.Cause())

			var pgErr *pgconn.PgError
			require.ErrorAs(t, fmt.Errorf("creating notification message: %w", err), &pgErr)
			require.Equal(t, tt.wantConstraint, pgErr.ConstraintName)
		})
	}
}

func TestTranslateError_Passthrough(t *testing.T) {
	errs := []error{
		errors.New("foo"),
		&pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "other_check"},
		&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "pk_sentry_notificationmessage"},
		&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: "fk_sentry_notificationmessage_group_id"},
	}
	for _, e := range errs {
		require.Equal(t, e, translateError(e))
	}
}

func TestConstraintViolationError_Error(t *testing.T) {
	err := translateError(&pgconn.PgError{
		Severity:       "ERROR",
		Code:           pgerrcode.UniqueViolation,
		Message:        "duplicate key value violates unique constraint",
		ConstraintName: "singular_parent_message_per_action_group_open_period",
	})
	require.EqualError(t, err, `parent notification message already exists: constraint "singular_parent_message_per_action_group_open_period": `+
		`ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)`)
}
