package migrations

import migrate "github.com/rubenv/sql-migrate"

func init() {
	m := &Migration{
		Migration: &migrate.Migration{
			Id: "20250115100000_add_action_group_open_period_to_notificationmessage",
			Up: []string{
				"ALTER TABLE sentry_notificationmessage ADD COLUMN IF NOT EXISTS action_id bigint",
				"ALTER TABLE sentry_notificationmessage ADD COLUMN IF NOT EXISTS group_id bigint",
				"ALTER TABLE sentry_notificationmessage ADD COLUMN IF NOT EXISTS open_period_start timestamp WITH time zone",
				"ALTER TABLE sentry_notificationmessage ADD CONSTRAINT fk_sentry_notificationmessage_action_id FOREIGN KEY (action_id) REFERENCES workflow_engine_action (id) ON DELETE CASCADE",
				"ALTER TABLE sentry_notificationmessage ADD CONSTRAINT fk_sentry_notificationmessage_group_id FOREIGN KEY (group_id) REFERENCES sentry_groupedmessage (id) ON DELETE CASCADE",
				"CREATE INDEX IF NOT EXISTS index_sentry_notificationmessage_on_action_id ON sentry_notificationmessage USING btree (action_id)",
				"CREATE INDEX IF NOT EXISTS index_sentry_notificationmessage_on_group_id ON sentry_notificationmessage USING btree (group_id)",
			},
			Down: []string{
				"DROP INDEX IF EXISTS index_sentry_notificationmessage_on_group_id",
				"DROP INDEX IF EXISTS index_sentry_notificationmessage_on_action_id",
				"ALTER TABLE sentry_notificationmessage DROP COLUMN IF EXISTS open_period_start",
				"ALTER TABLE sentry_notificationmessage DROP COLUMN IF EXISTS group_id",
				"ALTER TABLE sentry_notificationmessage DROP COLUMN IF EXISTS action_id",
			},
		},
		PostDeployment: false,
		Requires: []string{
			"20241204120100_create_notificationmessage_table",
			"20250114090000_create_workflow_engine_action_table",
		},
	}

	register(m)
}
