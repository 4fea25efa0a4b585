package models

import (
	"encoding/json"
	"errors"
	"time"
)

// Subject identifies what a notification message was sent about. Every message has exactly one subject.
type Subject int

const (
	// SubjectUnknown is returned for messages that match no subject or more than one.
	SubjectUnknown Subject = iota
	// SubjectIncident is a metric alert message, keyed by incident and trigger action.
	SubjectIncident
	// SubjectRuleFire is an issue alert message, keyed by rule fire history and rule action.
	SubjectRuleFire
	// SubjectActionGroup is a workflow engine message, keyed by action and group.
	SubjectActionGroup
)

func (s Subject) String() string {
	switch s {
	case SubjectIncident:
		return "incident"
	case SubjectRuleFire:
		return "rule_fire"
	case SubjectActionGroup:
		return "action_group"
	default:
		return "unknown"
	}
}

var (
	// ErrNoSubject is returned when a message has none of the subject columns set.
	ErrNoSubject = errors.New("notification message has no subject")
	// ErrAmbiguousSubject is returned when a message has columns of more than one subject set, or only part of one.
	ErrAmbiguousSubject = errors.New("notification message subject is ambiguous")
	// ErrUnexpectedOpenPeriod is returned when an incident message carries an open period start.
	ErrUnexpectedOpenPeriod = errors.New("incident notification messages cannot have an open period start")
)

// NotificationMessage is a message sent to a third party about an alert. Replies in the same thread reference their
// parent through ParentNotificationMessageID.
type NotificationMessage struct {
	ID                          int64
	ErrorDetails                json.RawMessage
	ErrorCode                   *int
	MessageIdentifier           *string
	ParentNotificationMessageID *int64
	IncidentID                  *int64
	TriggerActionID             *int64
	RuleFireHistoryID           *int64
	RuleActionUUID              *string
	ActionID                    *int64
	GroupID                     *int64
	OpenPeriodStart             *time.Time
	CreatedAt                   time.Time
}

// Subject classifies m into one of the three subjects, applying the same rules as the
// notification_type_mutual_exclusivity check constraint.
func (m *NotificationMessage) Subject() (Subject, error) {
	incident := m.IncidentID != nil || m.TriggerActionID != nil
	ruleFire := m.RuleFireHistoryID != nil || m.RuleActionUUID != nil
	actionGroup := m.ActionID != nil || m.GroupID != nil

	n := 0
	for _, set := range []bool{incident, ruleFire, actionGroup} {
		if set {
			n++
		}
	}
	switch {
	case n == 0:
		return SubjectUnknown, ErrNoSubject
	case n > 1:
		return SubjectUnknown, ErrAmbiguousSubject
	}

	switch {
	case incident:
		if m.IncidentID == nil || m.TriggerActionID == nil {
			return SubjectUnknown, ErrAmbiguousSubject
		}
		if m.OpenPeriodStart != nil {
			return SubjectUnknown, ErrUnexpectedOpenPeriod
		}
		return SubjectIncident, nil
	case ruleFire:
		if m.RuleFireHistoryID == nil || m.RuleActionUUID == nil {
			return SubjectUnknown, ErrAmbiguousSubject
		}
		return SubjectRuleFire, nil
	default:
		if m.ActionID == nil || m.GroupID == nil {
			return SubjectUnknown, ErrAmbiguousSubject
		}
		return SubjectActionGroup, nil
	}
}

// IsParent reports whether m heads a thread: it succeeded and does not reply to another message. At most one parent
// exists per subject key and open period.
func (m *NotificationMessage) IsParent() bool {
	return m.ErrorCode == nil && m.ParentNotificationMessageID == nil
}

// NotificationMessages is a slice of NotificationMessage pointers.
type NotificationMessages []*NotificationMessage
