package migrations

import migrate "github.com/rubenv/sql-migrate"

func init() {
	m := &Migration{
		Migration: &migrate.Migration{
			Id: "20250116000400_update_notificationmessage_constraints_for_action_group_open_period",
			Up: []string{
				notificationTypeMutualExclusivity.AddStatement(),
				singularParentPerRuleFireHistoryOpenPeriod.CreateStatement(),
				singularParentPerActionGroupOpenPeriod.CreateStatement(),
				issueXorMetricAlert.DropStatement(),
				singularParentPerRuleFireHistoryRuleAction.DropStatement(),
			},
			Down: []string{
				singularParentPerRuleFireHistoryRuleAction.CreateStatement(),
				issueXorMetricAlert.AddStatement(),
				singularParentPerActionGroupOpenPeriod.DropStatement(),
				singularParentPerRuleFireHistoryOpenPeriod.DropStatement(),
				notificationTypeMutualExclusivity.DropStatement(),
			},
		},
		// Adding unique indexes scans the whole table, so this can run once the new code is out.
		PostDeployment: true,
		Requires: []string{
			"20250114090000_create_workflow_engine_action_table",
			"20250115100000_add_action_group_open_period_to_notificationmessage",
		},
	}

	register(m)
}
