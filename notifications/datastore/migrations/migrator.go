package migrations

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rettinghaus/sentry/log"
	"github.com/rettinghaus/sentry/notifications/datastore/metrics"
	migrate "github.com/rubenv/sql-migrate"
	"gitlab.com/gitlab-org/labkit/correlation"
)

const (
	dialect            = "postgres"
	migrationTableName = "schema_migrations"
)

func init() {
	migrate.SetTable(migrationTableName)
}

// Migrator applies and rolls back schema migrations against a database.
type Migrator struct {
	db                 *sql.DB
	migrations         []*Migration
	skipPostDeployment bool
	logger             log.Logger
	correlationID      string
}

// MigratorOption configures a Migrator.
type MigratorOption func(*Migrator)

// SkipPostDeployment excludes post deployment migrations when migrating up.
func SkipPostDeployment() MigratorOption {
	return func(m *Migrator) {
		m.skipPostDeployment = true
	}
}

// WithLogger sets the logger used to report migration runs.
func WithLogger(l log.Logger) MigratorOption {
	return func(m *Migrator) {
		m.logger = l
	}
}

// WithCorrelationID tags every run with id instead of a freshly generated correlation ID.
func WithCorrelationID(id string) MigratorOption {
	return func(m *Migrator) {
		m.correlationID = id
	}
}

// WithMigrations replaces the registered migrations with mm.
func WithMigrations(mm []*Migration) MigratorOption {
	return func(m *Migrator) {
		m.migrations = make([]*Migration, len(mm))
		copy(m.migrations, mm)
		sortByID(m.migrations)
	}
}

// NewMigrator builds a Migrator for all registered migrations.
func NewMigrator(db *sql.DB, opts ...MigratorOption) *Migrator {
	m := &Migrator{
		db:         db,
		migrations: All(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.Discard()
	}

	return m
}

// MigrationStatus describes the state of a single migration on the target database. Unknown migrations are recorded on
// the database but not known by this binary.
type MigrationStatus struct {
	ID             string     `csv:"id"`
	AppliedAt      *time.Time `csv:"applied_at,omitempty"`
	PostDeployment bool       `csv:"post_deployment"`
	Unknown        bool       `csv:"unknown"`
}

// Validate checks the migrations handled by m.
func (m *Migrator) Validate() error {
	return Validate(m.migrations)
}

// Version returns the ID of the last applied migration, or an empty string if none was applied.
func (m *Migrator) Version() (string, error) {
	records, err := migrate.GetMigrationRecords(m.db, dialect)
	if err != nil {
		return "", fmt.Errorf("reading migration records: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}

	return records[len(records)-1].Id, nil
}

// LatestVersion returns the ID of the last known migration.
func (m *Migrator) LatestVersion() string {
	if len(m.migrations) == 0 {
		return ""
	}
	return m.migrations[len(m.migrations)-1].Id
}

// HasPending determines whether there are migrations that Up would apply.
func (m *Migrator) HasPending() (bool, error) {
	ids, err := m.UpNPlan(0)
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up() (int, error) {
	return m.UpN(0)
}

// UpN applies up to n pending migrations. All pending migrations are applied if n is 0.
func (m *Migrator) UpN(n int) (int, error) {
	return m.run(migrate.Up, n)
}

// UpNPlan returns the IDs of the migrations that UpN would apply, without applying them.
func (m *Migrator) UpNPlan(n int) ([]string, error) {
	return m.plan(migrate.Up, n)
}

// Down rolls back all applied migrations.
func (m *Migrator) Down() (int, error) {
	return m.DownN(0)
}

// DownN rolls back up to n applied migrations, most recent first. All are rolled back if n is 0.
func (m *Migrator) DownN(n int) (int, error) {
	return m.run(migrate.Down, n)
}

// DownNPlan returns the IDs of the migrations that DownN would roll back, without rolling them back.
func (m *Migrator) DownNPlan(n int) ([]string, error) {
	return m.plan(migrate.Down, n)
}

// Status returns the state of every known migration followed by any unknown migrations found on the database.
func (m *Migrator) Status() ([]*MigrationStatus, error) {
	records, err := migrate.GetMigrationRecords(m.db, dialect)
	if err != nil {
		return nil, fmt.Errorf("reading migration records: %w", err)
	}

	applied := make(map[string]time.Time, len(records))
	for _, r := range records {
		applied[r.Id] = r.AppliedAt
	}

	statuses := make([]*MigrationStatus, 0, len(m.migrations))
	for _, mig := range m.migrations {
		s := &MigrationStatus{ID: mig.Id, PostDeployment: mig.PostDeployment}
		if at, ok := applied[mig.Id]; ok {
			at := at
			s.AppliedAt = &at
			delete(applied, mig.Id)
		}
		statuses = append(statuses, s)
	}

	for _, r := range records {
		if at, ok := applied[r.Id]; ok {
			statuses = append(statuses, &MigrationStatus{ID: r.Id, AppliedAt: &at, Unknown: true})
		}
	}

	return statuses, nil
}

// runSource builds the migration source handed to sql-migrate for a run in direction: every applied migration plus,
// going up, the pending migrations to apply, oldest first and capped at limit. sql-migrate catches up anything left
// out of the applied prefix, so down runs must only see applied migrations. The returned max is passed to sql-migrate.
func (m *Migrator) runSource(direction migrate.MigrationDirection, limit int) (*migrate.MemoryMigrationSource, int, error) {
	records, err := migrate.GetMigrationRecords(m.db, dialect)
	if err != nil {
		return nil, 0, fmt.Errorf("reading migration records: %w", err)
	}
	applied := make(map[string]struct{}, len(records))
	for _, r := range records {
		applied[r.Id] = struct{}{}
	}

	mm := make([]*Migration, 0, len(m.migrations))
	var pending int
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Id]; ok {
			mm = append(mm, mig)
			continue
		}
		if direction == migrate.Down {
			continue
		}
		if m.skipPostDeployment && mig.PostDeployment {
			continue
		}
		if limit > 0 && pending == limit {
			continue
		}
		mm = append(mm, mig)
		pending++
	}

	if direction == migrate.Up {
		return source(mm), 0, nil
	}
	return source(mm), limit, nil
}

func (m *Migrator) plan(direction migrate.MigrationDirection, limit int) ([]string, error) {
	src, max, err := m.runSource(direction, limit)
	if err != nil {
		return nil, fmt.Errorf("planning %s migrations: %w", directionName(direction), err)
	}
	return planSource(m.db, src, direction, max)
}

func planSource(db *sql.DB, src migrate.MigrationSource, direction migrate.MigrationDirection, max int) ([]string, error) {
	planned, _, err := migrate.PlanMigration(db, dialect, src, direction, max)
	if err != nil {
		return nil, fmt.Errorf("planning %s migrations: %w", directionName(direction), err)
	}

	ids := make([]string, 0, len(planned))
	for _, p := range planned {
		ids = append(ids, p.Id)
	}
	return ids, nil
}

func (m *Migrator) run(direction migrate.MigrationDirection, limit int) (int, error) {
	if err := m.Validate(); err != nil {
		return 0, fmt.Errorf("validating migrations: %w", err)
	}

	correlationID := m.correlationID
	if correlationID == "" {
		correlationID = correlation.SafeRandomID()
	}
	l := m.logger.WithFields(log.Fields{
		"direction":            directionName(direction),
		"correlation_id":       correlationID,
		"skip_post_deployment": m.skipPostDeployment,
	})

	src, max, err := m.runSource(direction, limit)
	if err != nil {
		return 0, fmt.Errorf("planning %s migrations: %w", directionName(direction), err)
	}
	planned, err := planSource(m.db, src, direction, max)
	if err != nil {
		return 0, err
	}
	if len(planned) == 0 {
		l.Info("no migrations to run")
		return 0, nil
	}
	for _, id := range planned {
		l.WithFields(log.Fields{"migration_id": id}).Info("migration planned")
	}

	start := time.Now()
	n, err := migrate.ExecMax(m.db, dialect, src, direction, max)
	metrics.MigrationRun(directionName(direction), n, start)
	if err != nil {
		l.WithError(err).WithFields(log.Fields{"count": n}).Error("migration run failed")
		return n, fmt.Errorf("running %s migrations: %w", directionName(direction), err)
	}

	l.WithFields(log.Fields{
		"count":      n,
		"duration_s": time.Since(start).Seconds(),
	}).Info("migration run complete")

	return n, nil
}

func directionName(d migrate.MigrationDirection) string {
	if d == migrate.Down {
		return "down"
	}
	return "up"
}
