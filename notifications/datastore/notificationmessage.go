package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rettinghaus/sentry/notifications/datastore/metrics"
	"github.com/rettinghaus/sentry/notifications/datastore/migrations"
	"github.com/rettinghaus/sentry/notifications/datastore/models"
)

// NotificationMessageReader is the interface that defines read operations for a notification message store.
type NotificationMessageReader interface {
	FindByID(ctx context.Context, id int64) (*models.NotificationMessage, error)
	FindParentByIncident(ctx context.Context, incidentID, triggerActionID int64) (*models.NotificationMessage, error)
	FindParentByRuleFireHistory(ctx context.Context, ruleFireHistoryID int64, ruleActionUUID string, openPeriodStart *time.Time) (*models.NotificationMessage, error)
	FindParentByActionGroup(ctx context.Context, actionID, groupID int64, openPeriodStart *time.Time) (*models.NotificationMessage, error)
	FindChildren(ctx context.Context, parentID int64) (models.NotificationMessages, error)
}

// NotificationMessageWriter is the interface that defines write operations for a notification message store.
type NotificationMessageWriter interface {
	Create(ctx context.Context, m *models.NotificationMessage) error
	RecordError(ctx context.Context, id int64, code int, details json.RawMessage) error
	Delete(ctx context.Context, id int64) error
}

// NotificationMessageStore is the interface that a notification message store should conform to.
type NotificationMessageStore interface {
	NotificationMessageReader
	NotificationMessageWriter
}

// notificationMessageStore is the concrete implementation of a NotificationMessageStore.
type notificationMessageStore struct {
	// db can be either a *sql.DB or *sql.Tx
	db Queryer
}

// NewNotificationMessageStore builds a new notification message store.
func NewNotificationMessageStore(db Queryer) *notificationMessageStore {
	return &notificationMessageStore{db: db}
}

const notificationMessageColumns = `id,
			error_details,
			error_code,
			message_identifier,
			parent_notification_message_id,
			incident_id,
			trigger_action_id,
			rule_fire_history_id,
			rule_action_uuid,
			action_id,
			group_id,
			open_period_start,
			date_added`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNotificationMessage(s scanner) (*models.NotificationMessage, error) {
	var details []byte
	m := new(models.NotificationMessage)

	err := s.Scan(
		&m.ID,
		&details,
		&m.ErrorCode,
		&m.MessageIdentifier,
		&m.ParentNotificationMessageID,
		&m.IncidentID,
		&m.TriggerActionID,
		&m.RuleFireHistoryID,
		&m.RuleActionUUID,
		&m.ActionID,
		&m.GroupID,
		&m.OpenPeriodStart,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if details != nil {
		m.ErrorDetails = json.RawMessage(details)
	}

	return m, nil
}

func scanFullNotificationMessage(row *sql.Row) (*models.NotificationMessage, error) {
	m, err := scanNotificationMessage(row)
	if err != nil {
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("scanning notification message: %w", err)
		}
		return nil, nil
	}

	return m, nil
}

func scanFullNotificationMessages(rows *sql.Rows) (models.NotificationMessages, error) {
	mm := make(models.NotificationMessages, 0)
	defer rows.Close()

	for rows.Next() {
		m, err := scanNotificationMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification message: %w", err)
		}
		mm = append(mm, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scanning notification messages: %w", err)
	}

	return mm, nil
}

// jsonArg converts raw JSON into a query argument, mapping empty documents to NULL.
func jsonArg(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// FindByID finds a notification message by ID.
func (s *notificationMessageStore) FindByID(ctx context.Context, id int64) (*models.NotificationMessage, error) {
	defer metrics.InstrumentQuery("notification_message_find_by_id")()
	q := `SELECT
			` + notificationMessageColumns + `
		FROM
			sentry_notificationmessage
		WHERE
			id = $1`
	row := s.db.QueryRowContext(ctx, q, id)

	return scanFullNotificationMessage(row)
}

// FindParentByIncident finds the parent message for a metric alert incident and trigger action.
func (s *notificationMessageStore) FindParentByIncident(ctx context.Context, incidentID, triggerActionID int64) (*models.NotificationMessage, error) {
	defer metrics.InstrumentQuery("notification_message_find_parent_by_incident")()
	q := `SELECT
			` + notificationMessageColumns + `
		FROM
			sentry_notificationmessage
		WHERE
			incident_id = $1
			AND trigger_action_id = $2
			AND error_code IS NULL
			AND parent_notification_message_id IS NULL`
	row := s.db.QueryRowContext(ctx, q, incidentID, triggerActionID)

	return scanFullNotificationMessage(row)
}

// FindParentByRuleFireHistory finds the parent message for an issue alert rule fire and rule action within an open
// period. A nil openPeriodStart matches messages sent without an open period.
func (s *notificationMessageStore) FindParentByRuleFireHistory(ctx context.Context, ruleFireHistoryID int64, ruleActionUUID string, openPeriodStart *time.Time) (*models.NotificationMessage, error) {
	defer metrics.InstrumentQuery("notification_message_find_parent_by_rule_fire_history")()
	q := `SELECT
			` + notificationMessageColumns + `
		FROM
			sentry_notificationmessage
		WHERE
			rule_fire_history_id = $1
			AND rule_action_uuid = $2
			AND ` + migrations.CoalesceTimestamp("open_period_start") + ` = ` + migrations.CoalesceTimestamp("$3::timestamp with time zone") + `
			AND error_code IS NULL
			AND parent_notification_message_id IS NULL`
	row := s.db.QueryRowContext(ctx, q, ruleFireHistoryID, ruleActionUUID, openPeriodStart)

	return scanFullNotificationMessage(row)
}

// FindParentByActionGroup finds the parent message for a workflow engine action and issue group within an open
// period. A nil openPeriodStart matches messages sent without an open period.
func (s *notificationMessageStore) FindParentByActionGroup(ctx context.Context, actionID, groupID int64, openPeriodStart *time.Time) (*models.NotificationMessage, error) {
	defer metrics.InstrumentQuery("notification_message_find_parent_by_action_group")()
	q := `SELECT
			` + notificationMessageColumns + `
		FROM
			sentry_notificationmessage
		WHERE
			action_id = $1
			AND group_id = $2
			AND ` + migrations.CoalesceTimestamp("open_period_start") + ` = ` + migrations.CoalesceTimestamp("$3::timestamp with time zone") + `
			AND error_code IS NULL
			AND parent_notification_message_id IS NULL`
	row := s.db.QueryRowContext(ctx, q, actionID, groupID, openPeriodStart)

	return scanFullNotificationMessage(row)
}

// FindChildren finds all messages that reply to the message with ID parentID, oldest first.
func (s *notificationMessageStore) FindChildren(ctx context.Context, parentID int64) (models.NotificationMessages, error) {
	defer metrics.InstrumentQuery("notification_message_find_children")()
	q := `SELECT
			` + notificationMessageColumns + `
		FROM
			sentry_notificationmessage
		WHERE
			parent_notification_message_id = $1
		ORDER BY
			date_added, id`
	rows, err := s.db.QueryContext(ctx, q, parentID)
	if err != nil {
		return nil, fmt.Errorf("finding child notification messages: %w", err)
	}

	return scanFullNotificationMessages(rows)
}

// Create saves a new notification message. Messages without exactly one subject are rejected with ErrInvalidSubject
// before reaching the database. A second parent for the same subject and open period is rejected with
// ErrParentMessageExists.
func (s *notificationMessageStore) Create(ctx context.Context, m *models.NotificationMessage) error {
	if _, err := m.Subject(); err != nil {
		return fmt.Errorf("creating notification message: %w: %v", ErrInvalidSubject, err)
	}

	defer metrics.InstrumentQuery("notification_message_create")()

	q := `INSERT INTO sentry_notificationmessage (error_details, error_code, message_identifier,
			parent_notification_message_id, incident_id, trigger_action_id, rule_fire_history_id, rule_action_uuid,
			action_id, group_id, open_period_start)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING
			id, date_added`

	row := s.db.QueryRowContext(ctx, q,
		jsonArg(m.ErrorDetails),
		m.ErrorCode,
		m.MessageIdentifier,
		m.ParentNotificationMessageID,
		m.IncidentID,
		m.TriggerActionID,
		m.RuleFireHistoryID,
		m.RuleActionUUID,
		m.ActionID,
		m.GroupID,
		m.OpenPeriodStart,
	)
	if err := row.Scan(&m.ID, &m.CreatedAt); err != nil {
		return fmt.Errorf("creating notification message: %w", translateError(err))
	}

	return nil
}

// RecordError marks a notification message as failed. Failed messages no longer count as the parent of their subject,
// so a new parent can be created afterwards.
func (s *notificationMessageStore) RecordError(ctx context.Context, id int64, code int, details json.RawMessage) error {
	defer metrics.InstrumentQuery("notification_message_record_error")()
	q := `UPDATE
			sentry_notificationmessage
		SET
			error_code = $1,
			error_details = $2
		WHERE
			id = $3`

	res, err := s.db.ExecContext(ctx, q, code, jsonArg(details), id)
	if err != nil {
		return fmt.Errorf("recording notification message error: %w", translateError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("recording notification message error: %w", err)
	}
	if n == 0 {
		return ErrNotificationMessageNotFound
	}

	return nil
}

// Delete deletes a notification message and, through cascading, all replies to it.
func (s *notificationMessageStore) Delete(ctx context.Context, id int64) error {
	defer metrics.InstrumentQuery("notification_message_delete")()
	q := "DELETE FROM sentry_notificationmessage WHERE id = $1"

	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("deleting notification message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting notification message: %w", err)
	}
	if n == 0 {
		return ErrNotificationMessageNotFound
	}

	return nil
}
