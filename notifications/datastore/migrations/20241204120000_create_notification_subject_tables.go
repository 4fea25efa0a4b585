package migrations

import migrate "github.com/rubenv/sql-migrate"

func init() {
	m := &Migration{
		Migration: &migrate.Migration{
			Id: "20241204120000_create_notification_subject_tables",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS sentry_groupedmessage (
					id bigserial NOT NULL,
					date_added timestamp WITH time zone NOT NULL DEFAULT now(),
					CONSTRAINT pk_sentry_groupedmessage PRIMARY KEY (id)
				)`,
				`CREATE TABLE IF NOT EXISTS sentry_incident (
					id bigserial NOT NULL,
					date_added timestamp WITH time zone NOT NULL DEFAULT now(),
					CONSTRAINT pk_sentry_incident PRIMARY KEY (id)
				)`,
				`CREATE TABLE IF NOT EXISTS sentry_alertruletriggeraction (
					id bigserial NOT NULL,
					date_added timestamp WITH time zone NOT NULL DEFAULT now(),
					CONSTRAINT pk_sentry_alertruletriggeraction PRIMARY KEY (id)
				)`,
				`CREATE TABLE IF NOT EXISTS sentry_rulefirehistory (
					id bigserial NOT NULL,
					date_added timestamp WITH time zone NOT NULL DEFAULT now(),
					CONSTRAINT pk_sentry_rulefirehistory PRIMARY KEY (id)
				)`,
			},
			Down: []string{
				"DROP TABLE IF EXISTS sentry_rulefirehistory CASCADE",
				"DROP TABLE IF EXISTS sentry_alertruletriggeraction CASCADE",
				"DROP TABLE IF EXISTS sentry_incident CASCADE",
				"DROP TABLE IF EXISTS sentry_groupedmessage CASCADE",
			},
		},
		PostDeployment: false,
	}

	register(m)
}
