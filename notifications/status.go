package notifications

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/olekukonko/tablewriter"
	"github.com/rettinghaus/sentry/notifications/datastore/migrations"
)

const (
	formatTable = "table"
	formatCSV   = "csv"
)

func writeStatus(w io.Writer, format string, statuses []*migrations.MigrationStatus) error {
	switch format {
	case formatTable:
		writeStatusTable(w, statuses)
		return nil
	case formatCSV:
		return writeStatusCSV(w, statuses)
	default:
		return fmt.Errorf("unsupported status format %q", format)
	}
}

func writeStatusTable(w io.Writer, statuses []*migrations.MigrationStatus) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Migration", "Applied", "Post Deployment"})
	table.SetAutoWrapText(false)

	for _, s := range statuses {
		applied := "pending"
		if s.AppliedAt != nil {
			applied = s.AppliedAt.UTC().Format(time.RFC3339)
		}
		id := s.ID
		if s.Unknown {
			id += " (unknown)"
		}
		table.Append([]string{id, applied, strconv.FormatBool(s.PostDeployment)})
	}

	table.Render()
}

func writeStatusCSV(w io.Writer, statuses []*migrations.MigrationStatus) error {
	b, err := csvutil.Marshal(statuses)
	if err != nil {
		return fmt.Errorf("encoding migration status: %w", err)
	}
	_, err = w.Write(b)
	return err
}
