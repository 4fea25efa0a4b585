package migrations

import migrate "github.com/rubenv/sql-migrate"

func init() {
	m := &Migration{
		Migration: &migrate.Migration{
			Id: "20241204120100_create_notificationmessage_table",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS sentry_notificationmessage (
					id bigserial NOT NULL,
					error_details jsonb,
					error_code integer,
					message_identifier text,
					parent_notification_message_id bigint,
					incident_id bigint,
					trigger_action_id bigint,
					rule_fire_history_id bigint,
					rule_action_uuid varchar(255),
					date_added timestamp WITH time zone NOT NULL DEFAULT now(),
					CONSTRAINT pk_sentry_notificationmessage PRIMARY KEY (id),
					CONSTRAINT fk_sentry_notificationmessage_parent_id FOREIGN KEY (parent_notification_message_id) REFERENCES sentry_notificationmessage (id) ON DELETE CASCADE,
					CONSTRAINT fk_sentry_notificationmessage_incident_id FOREIGN KEY (incident_id) REFERENCES sentry_incident (id) ON DELETE CASCADE,
					CONSTRAINT fk_sentry_notificationmessage_trigger_action_id FOREIGN KEY (trigger_action_id) REFERENCES sentry_alertruletriggeraction (id) ON DELETE CASCADE,
					CONSTRAINT fk_sentry_notificationmessage_rule_fire_history_id FOREIGN KEY (rule_fire_history_id) REFERENCES sentry_rulefirehistory (id) ON DELETE CASCADE
				)`,
				"CREATE INDEX IF NOT EXISTS index_sentry_notificationmessage_on_parent_id ON sentry_notificationmessage USING btree (parent_notification_message_id)",
				"CREATE INDEX IF NOT EXISTS index_sentry_notificationmessage_on_incident_id ON sentry_notificationmessage USING btree (incident_id)",
				"CREATE INDEX IF NOT EXISTS index_sentry_notificationmessage_on_trigger_action_id ON sentry_notificationmessage USING btree (trigger_action_id)",
				"CREATE INDEX IF NOT EXISTS index_sentry_notificationmessage_on_rule_fire_history_id ON sentry_notificationmessage USING btree (rule_fire_history_id)",
				issueXorMetricAlert.AddStatement(),
				singularParentPerIncidentTriggerAction.CreateStatement(),
				singularParentPerRuleFireHistoryRuleAction.CreateStatement(),
			},
			Down: []string{
				"DROP TABLE IF EXISTS sentry_notificationmessage CASCADE",
			},
		},
		PostDeployment: false,
		Requires:       []string{"20241204120000_create_notification_subject_tables"},
	}

	register(m)
}
