package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func int64Ptr(i int64) *int64 { return &i }
func strPtr(s string) *string { return &s }

func TestNotificationMessage_Subject(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		msg     NotificationMessage
		want    Subject
		wantErr error
	}{
		{
			name: "incident",
			msg:  NotificationMessage{IncidentID: int64Ptr(1), TriggerActionID: int64Ptr(2)},
			want: SubjectIncident,
		},
		{
			name:    "incident with open period",
			msg:     NotificationMessage{IncidentID: int64Ptr(1), TriggerActionID: int64Ptr(2), OpenPeriodStart: &now},
			wantErr: ErrUnexpectedOpenPeriod,
		},
		{
			name:    "incident without trigger action",
			msg:     NotificationMessage{IncidentID: int64Ptr(1)},
			wantErr: ErrAmbiguousSubject,
		},
		{
			name: "rule fire",
			msg:  NotificationMessage{RuleFireHistoryID: int64Ptr(1), RuleActionUUID: strPtr("uuid")},
			want: SubjectRuleFire,
		},
		{
			name: "rule fire with open period",
			msg:  NotificationMessage{RuleFireHistoryID: int64Ptr(1), RuleActionUUID: strPtr("uuid"), OpenPeriodStart: &now},
			want: SubjectRuleFire,
		},
		{
			name:    "rule fire without rule action",
			msg:     NotificationMessage{RuleFireHistoryID: int64Ptr(1)},
			wantErr: ErrAmbiguousSubject,
		},
		{
			name: "action group",
			msg:  NotificationMessage{ActionID: int64Ptr(1), GroupID: int64Ptr(2), OpenPeriodStart: &now},
			want: SubjectActionGroup,
		},
		{
			name:    "action without group",
			msg:     NotificationMessage{ActionID: int64Ptr(1)},
			wantErr: ErrAmbiguousSubject,
		},
		{
			name:    "none",
			msg:     NotificationMessage{},
			wantErr: ErrNoSubject,
		},
		{
			name: "incident and action group",
			msg: NotificationMessage{
				IncidentID:      int64Ptr(1),
				TriggerActionID: int64Ptr(2),
				ActionID:        int64Ptr(3),
				GroupID:         int64Ptr(4),
			},
			wantErr: ErrAmbiguousSubject,
		},
		{
			name: "rule fire and action group",
			msg: NotificationMessage{
				RuleFireHistoryID: int64Ptr(1),
				RuleActionUUID:    strPtr("uuid"),
				ActionID:          int64Ptr(3),
				GroupID:           int64Ptr(4),
			},
			wantErr: ErrAmbiguousSubject,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.msg.Subject()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Equal(t, SubjectUnknown, got)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNotificationMessage_IsParent(t *testing.T) {
	code := 400

	require.True(t, (&NotificationMessage{}).IsParent())
	require.False(t, (&NotificationMessage{ErrorCode: &code}).IsParent())
	require.False(t, (&NotificationMessage{ParentNotificationMessageID: int64Ptr(1)}).IsParent())
}

func TestSubject_String(t *testing.T) {
	require.Equal(t, "incident", SubjectIncident.String())
	require.Equal(t, "rule_fire", SubjectRuleFire.String())
	require.Equal(t, "action_group", SubjectActionGroup.String())
	require.Equal(t, "unknown", SubjectUnknown.String())
}
