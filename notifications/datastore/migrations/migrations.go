package migrations

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/hashicorp/go-multierror"
	migrate "github.com/rubenv/sql-migrate"
)

var allMigrations []*Migration

var migrationIDFormat = regexp.MustCompile(`\A[0-9]{14}_[a-z0-9_]+\z`)

// Migration is a schema migration. PostDeployment migrations are safe to run after the application code that depends on
// them has been deployed and can be skipped during a deployment. Requires lists the IDs of migrations that must be
// applied before this one.
type Migration struct {
	*migrate.Migration

	PostDeployment bool
	Requires       []string
}

func register(m *Migration) {
	allMigrations = append(allMigrations, m)
}

// All returns all registered migrations, sorted by ID.
func All() []*Migration {
	mm := make([]*Migration, len(allMigrations))
	copy(mm, allMigrations)
	sortByID(mm)
	return mm
}

func sortByID(mm []*Migration) {
	sort.SliceStable(mm, func(i, j int) bool {
		return mm[i].Less(mm[j].Migration)
	})
}

// Validate checks a set of migrations for malformed IDs, duplicates, empty migrations and unsatisfied requirements.
// All problems found are returned together.
func Validate(mm []*Migration) error {
	var errs *multierror.Error

	byID := make(map[string]*Migration, len(mm))
	for _, m := range mm {
		if m == nil || m.Migration == nil {
			errs = multierror.Append(errs, errors.New("nil migration"))
			continue
		}
		if !migrationIDFormat.MatchString(m.Id) {
			errs = multierror.Append(errs, fmt.Errorf("migration %q: malformed ID", m.Id))
		}
		if _, ok := byID[m.Id]; ok {
			errs = multierror.Append(errs, fmt.Errorf("migration %q: duplicate ID", m.Id))
		}
		if len(m.Up) == 0 {
			errs = multierror.Append(errs, fmt.Errorf("migration %q: no up statements", m.Id))
		}
		byID[m.Id] = m
	}

	for _, m := range mm {
		if m == nil || m.Migration == nil {
			continue
		}
		for _, id := range m.Requires {
			req, ok := byID[id]
			if !ok {
				errs = multierror.Append(errs, fmt.Errorf("migration %q: required migration %q not found", m.Id, id))
				continue
			}
			if !req.Less(m.Migration) {
				errs = multierror.Append(errs, fmt.Errorf("migration %q: required migration %q does not precede it", m.Id, id))
			}
		}
	}

	return errs.ErrorOrNil()
}

func source(mm []*Migration) *migrate.MemoryMigrationSource {
	src := &migrate.MemoryMigrationSource{Migrations: make([]*migrate.Migration, 0, len(mm))}
	for _, m := range mm {
		src.Migrations = append(src.Migrations, m.Migration)
	}
	return src
}
