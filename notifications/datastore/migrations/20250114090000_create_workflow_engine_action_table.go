package migrations

import migrate "github.com/rubenv/sql-migrate"

func init() {
	m := &Migration{
		Migration: &migrate.Migration{
			Id: "20250114090000_create_workflow_engine_action_table",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS workflow_engine_action (
					id bigserial NOT NULL,
					type varchar(200) NOT NULL,
					date_added timestamp WITH time zone NOT NULL DEFAULT now(),
					CONSTRAINT pk_workflow_engine_action PRIMARY KEY (id)
				)`,
			},
			Down: []string{
				"DROP TABLE IF EXISTS workflow_engine_action CASCADE",
			},
		},
		PostDeployment: false,
	}

	register(m)
}
