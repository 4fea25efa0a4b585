package migrations

const notificationMessageTable = "sentry_notificationmessage"

// Constraint and index names on the notification message table. These are the identifiers Postgres reports in
// violation errors.
const (
	NotificationTypeMutualExclusivity          = "notification_type_mutual_exclusivity"
	NotificationForIssueXorMetricAlert         = "notification_for_issue_xor_metric_alert"
	SingularParentPerIncidentTriggerAction     = "singular_parent_message_per_incident_and_trigger_action"
	SingularParentPerRuleFireHistoryRuleAction = "singular_parent_message_per_rule_fire_history_and_rule_action"
	SingularParentPerRuleFireHistoryOpenPeriod = "singular_parent_message_per_rule_fire_history_rule_action_open_"
	SingularParentPerActionGroupOpenPeriod     = "singular_parent_message_per_action_group_open_period"
)

// parentOnly restricts uniqueness to successful parent messages: errored messages and thread replies may repeat.
var parentOnly = Shape{
	IsNull("error_code"),
	IsNull("parent_notification_message_id"),
}

var (
	incidentShape = Shape{
		NotNull("incident_id"),
		NotNull("trigger_action_id"),
		IsNull("rule_action_uuid"),
		IsNull("rule_fire_history_id"),
	}
	ruleFireShape = Shape{
		IsNull("incident_id"),
		IsNull("trigger_action_id"),
		NotNull("rule_action_uuid"),
		NotNull("rule_fire_history_id"),
	}
)

// issueXorMetricAlert only knows about metric alert and issue alert messages.
var issueXorMetricAlert = CheckConstraint{
	Table:  notificationMessageTable,
	Name:   NotificationForIssueXorMetricAlert,
	Shapes: []Shape{incidentShape, ruleFireShape},
}

// notificationTypeMutualExclusivity admits exactly one of three subjects per message: an incident and trigger action,
// a rule fire history and rule action, or an action and group. Only the last two may carry an open period start.
var notificationTypeMutualExclusivity = CheckConstraint{
	Table: notificationMessageTable,
	Name:  NotificationTypeMutualExclusivity,
	Shapes: []Shape{
		{
			NotNull("incident_id"),
			NotNull("trigger_action_id"),
			IsNull("rule_action_uuid"),
			IsNull("rule_fire_history_id"),
			IsNull("action_id"),
			IsNull("group_id"),
			IsNull("open_period_start"),
		},
		{
			IsNull("incident_id"),
			IsNull("trigger_action_id"),
			NotNull("rule_action_uuid"),
			NotNull("rule_fire_history_id"),
			IsNull("action_id"),
			IsNull("group_id"),
		},
		{
			IsNull("incident_id"),
			IsNull("trigger_action_id"),
			IsNull("rule_action_uuid"),
			IsNull("rule_fire_history_id"),
			NotNull("action_id"),
			NotNull("group_id"),
		},
	},
}

var singularParentPerIncidentTriggerAction = UniqueIndex{
	Table:       notificationMessageTable,
	Name:        SingularParentPerIncidentTriggerAction,
	Expressions: []string{"incident_id", "trigger_action_id"},
	Where:       parentOnly,
}

var singularParentPerRuleFireHistoryRuleAction = UniqueIndex{
	Table:       notificationMessageTable,
	Name:        SingularParentPerRuleFireHistoryRuleAction,
	Expressions: []string{"rule_fire_history_id", "rule_action_uuid"},
	Where:       parentOnly,
}

var singularParentPerRuleFireHistoryOpenPeriod = UniqueIndex{
	Table: notificationMessageTable,
	Name:  SingularParentPerRuleFireHistoryOpenPeriod,
	Expressions: []string{
		"rule_fire_history_id",
		"rule_action_uuid",
		CoalesceTimestamp("open_period_start"),
	},
	Where: parentOnly,
}

var singularParentPerActionGroupOpenPeriod = UniqueIndex{
	Table: notificationMessageTable,
	Name:  SingularParentPerActionGroupOpenPeriod,
	Expressions: []string{
		"action_id",
		"group_id",
		CoalesceTimestamp("open_period_start"),
	},
	Where: parentOnly,
}
