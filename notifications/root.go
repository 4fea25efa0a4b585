package notifications

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rettinghaus/sentry/configuration"
	"github.com/rettinghaus/sentry/log"
	"github.com/rettinghaus/sentry/notifications/datastore"
	"github.com/rettinghaus/sentry/notifications/datastore/migrations"
	"github.com/rettinghaus/sentry/notifications/internal/errortracking"
	"github.com/rettinghaus/sentry/version"
	"github.com/spf13/cobra"
	"gitlab.com/gitlab-org/labkit/correlation"
)

var (
	showVersion        bool
	skipPostDeployment bool
	dryRun             bool
	limit              int
	force              bool
	statusFormat       string
	upToDate           bool
	migrationsDir      string
	postDeployment     bool
)

func init() {
	RootCmd.AddCommand(MigrateCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show the version and exit")

	MigrateCmd.AddCommand(MigrateUpCmd)
	MigrateCmd.AddCommand(MigrateDownCmd)
	MigrateCmd.AddCommand(MigrateStatusCmd)
	MigrateCmd.AddCommand(MigrateVersionCmd)
	MigrateCmd.AddCommand(MigrateCreateCmd)

	MigrateUpCmd.Flags().BoolVarP(&skipPostDeployment, "skip-post-deployment", "s", false, "do not apply post deployment migrations")
	MigrateUpCmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "do not commit changes to the database")
	MigrateUpCmd.Flags().IntVarP(&limit, "limit", "n", 0, "limit the number of migrations (all by default)")

	MigrateDownCmd.Flags().BoolVarP(&force, "force", "f", false, "no confirmation message")
	MigrateDownCmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "do not commit changes to the database")
	MigrateDownCmd.Flags().IntVarP(&limit, "limit", "n", 0, "limit the number of migrations (all by default)")

	MigrateStatusCmd.Flags().StringVarP(&statusFormat, "format", "f", formatTable, "output format, one of table or csv")
	MigrateStatusCmd.Flags().BoolVarP(&upToDate, "up-to-date", "u", false, "check if all known migrations are applied")

	MigrateCreateCmd.Flags().StringVarP(&migrationsDir, "dir", "d", "notifications/datastore/migrations", "directory to create the migration in")
	MigrateCreateCmd.Flags().BoolVarP(&postDeployment, "post-deployment", "p", false, "create a post deployment migration")
}

// RootCmd is the main command for the 'notifications' binary.
var RootCmd = &cobra.Command{
	Use:           "notifications",
	Short:         "`notifications`",
	Long:          "`notifications` manages the notification message database schema.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			version.FprintVersion(cmd.OutOrStdout())
			return nil
		}
		return cmd.Usage()
	},
}

// VersionCmd prints the version of the binary.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version and exit",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		version.FprintVersion(cmd.OutOrStdout())
	},
}

// MigrateCmd is the `migrate` sub-command of `notifications` that manages database migrations.
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage migrations",
	Long:  "Manage migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Usage()
	},
}

// MigrateUpCmd applies pending migrations.
var MigrateUpCmd = &cobra.Command{
	Use:   "up <config>",
	Short: "Apply up migrations",
	Long:  "Apply up migrations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if limit < 0 {
			return fmt.Errorf("--limit must be a positive number")
		}

		var opts []migrations.MigratorOption
		if skipPostDeployment {
			opts = append(opts, migrations.SkipPostDeployment())
		}

		return withMigrator(cmd, args[0], opts, func(m *migrations.Migrator) error {
			out := cmd.OutOrStdout()

			plan, err := m.UpNPlan(limit)
			if err != nil {
				return err
			}
			printPlan(out, plan)
			if dryRun {
				return nil
			}

			start := time.Now()
			n, err := m.UpN(limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "OK: applied %d migrations in %.3fs\n", n, time.Since(start).Seconds())

			return nil
		})
	},
}

// MigrateDownCmd rolls back applied migrations.
var MigrateDownCmd = &cobra.Command{
	Use:   "down <config>",
	Short: "Apply down migrations",
	Long:  "Apply down migrations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if limit < 0 {
			return fmt.Errorf("--limit must be a positive number")
		}

		return withMigrator(cmd, args[0], nil, func(m *migrations.Migrator) error {
			out := cmd.OutOrStdout()

			plan, err := m.DownNPlan(limit)
			if err != nil {
				return err
			}
			printPlan(out, plan)
			if dryRun || len(plan) == 0 {
				return nil
			}

			if !force {
				ok, err := confirm(cmd.InOrStdin(), out, "Preparing to apply down migrations. Are you sure? [y/N]")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "OK: no migrations rolled back")
					return nil
				}
			}

			start := time.Now()
			n, err := m.DownN(limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "OK: applied %d migrations in %.3fs\n", n, time.Since(start).Seconds())

			return nil
		})
	},
}

// errPendingMigrations is returned by `migrate status --up-to-date` when the database is behind.
var errPendingMigrations = errors.New("there are pending migrations")

// MigrateStatusCmd shows the state of every migration.
var MigrateStatusCmd = &cobra.Command{
	Use:   "status <config>",
	Short: "Show migration status",
	Long:  "Show migration status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if statusFormat != formatTable && statusFormat != formatCSV {
			return fmt.Errorf("unsupported status format %q", statusFormat)
		}

		return withMigrator(cmd, args[0], nil, func(m *migrations.Migrator) error {
			statuses, err := m.Status()
			if err != nil {
				return err
			}
			if err := writeStatus(cmd.OutOrStdout(), statusFormat, statuses); err != nil {
				return err
			}

			if upToDate {
				pending, err := m.HasPending()
				if err != nil {
					return err
				}
				if pending {
					return errPendingMigrations
				}
			}

			return nil
		})
	},
}

// MigrateVersionCmd shows the ID of the last applied migration.
var MigrateVersionCmd = &cobra.Command{
	Use:   "version <config>",
	Short: "Show current migration version",
	Long:  "Show current migration version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd, args[0], nil, func(m *migrations.Migrator) error {
			v, err := m.Version()
			if err != nil {
				return err
			}
			if v == "" {
				v = "none"
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		})
	},
}

// MigrateCreateCmd creates a new migration file from a template.
var MigrateCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create new migration",
	Long:  "Create new migration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := migrations.NewFromTemplate(migrationsDir, args[0], postDeployment)
		if err != nil {
			return fmt.Errorf("failed to create migration: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", path)
		return nil
	},
}

// withMigrator loads the configuration at path, opens the configured database and runs fn with a Migrator bound to
// it. Failures past configuration loading are reported to the configured error tracking service.
func withMigrator(cmd *cobra.Command, path string, opts []migrations.MigratorOption, fn func(*migrations.Migrator) error) error {
	config, err := configuration.ParseFile(path)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, err := log.New(log.Config{
		Level:     config.Log.Level,
		Formatter: config.Log.Formatter,
		Output:    cmd.ErrOrStderr(),
		Fields:    config.Log.Fields,
	})
	if err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}

	reporter, err := newReporter(config.Reporting.Sentry)
	if err != nil {
		return fmt.Errorf("configuring error reporting: %w", err)
	}

	ctx, correlationID := runContext(cmd.Context(), logger)
	tags := map[string]string{"command": cmd.CommandPath()}

	return runReported(ctx, reporter, tags, func() error {
		db, err := datastore.Open(dsnFromConfig(config.Database),
			datastore.WithLogger(logger),
			datastore.WithPoolConfig(&datastore.PoolConfig{
				MaxIdle:     config.Database.Pool.MaxIdle,
				MaxOpen:     config.Database.Pool.MaxOpen,
				MaxLifetime: config.Database.Pool.MaxLifetime,
			}),
			datastore.WithConnectRetry(config.Database.ConnectRetry),
		)
		if err != nil {
			return fmt.Errorf("failed to construct database connection: %w", err)
		}
		defer db.Close()

		opts = append(opts, migrations.WithLogger(logger), migrations.WithCorrelationID(correlationID))
		return fn(migrations.NewMigrator(db.DB, opts...))
	})
}

// runContext derives the context of a command run from parent: it carries logger and a new correlation ID, which is
// also returned.
func runContext(parent context.Context, logger log.Logger) (context.Context, string) {
	if parent == nil {
		parent = context.Background()
	}
	correlationID := correlation.SafeRandomID()
	ctx := correlation.ContextWithCorrelation(parent, correlationID)

	return log.WithLogger(ctx, logger), correlationID
}

func dsnFromConfig(c configuration.Database) *datastore.DSN {
	return &datastore.DSN{
		Host:           c.Host,
		Port:           c.Port,
		User:           c.User,
		Password:       c.Password,
		DBName:         c.DBName,
		SSLMode:        c.SSLMode,
		SSLCert:        c.SSLCert,
		SSLKey:         c.SSLKey,
		SSLRootCert:    c.SSLRootCert,
		ConnectTimeout: c.ConnectTimeout,
	}
}

func printPlan(w io.Writer, plan []string) {
	for _, id := range plan {
		fmt.Fprintln(w, id)
	}
	fmt.Fprintf(w, "%d migrations planned\n", len(plan))
}

// confirm asks question on w and reads the answer from r. Only "y" and "yes" count as an agreement.
func confirm(r io.Reader, w io.Writer, question string) (bool, error) {
	fmt.Fprint(w, question+" ")

	answer, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func newReporter(c configuration.SentryReporting) (errortracking.Reporter, error) {
	if !c.Enabled {
		return errortracking.NewNopReporter(), nil
	}
	return errortracking.NewSentryReporter(errortracking.Options{
		DSN:         c.DSN,
		Environment: c.Environment,
	})
}
