package migrations

import (
	"fmt"
	"strings"
)

// MinTimestamp is the value a NULL timestamp is coalesced to inside unique indexes, so that NULLs collide with each
// other instead of being treated as distinct.
const MinTimestamp = "'0001-01-01 00:00:00+00'::timestamp with time zone"

// Nullness is a single `column IS [NOT] NULL` predicate.
type Nullness struct {
	Column string
	Null   bool
}

// IsNull requires column to be NULL.
func IsNull(column string) Nullness {
	return Nullness{Column: column, Null: true}
}

// NotNull requires column to be NOT NULL.
func NotNull(column string) Nullness {
	return Nullness{Column: column, Null: false}
}

func (n Nullness) String() string {
	if n.Null {
		return n.Column + " IS NULL"
	}
	return n.Column + " IS NOT NULL"
}

// Shape is a conjunction of nullness predicates.
type Shape []Nullness

func (s Shape) String() string {
	parts := make([]string, 0, len(s))
	for _, n := range s {
		parts = append(parts, n.String())
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

// CheckConstraint is a table check constraint satisfied when at least one of its shapes holds.
type CheckConstraint struct {
	Table  string
	Name   string
	Shapes []Shape
}

// Condition renders the boolean expression of the constraint.
func (c CheckConstraint) Condition() string {
	parts := make([]string, 0, len(c.Shapes))
	for _, s := range c.Shapes {
		parts = append(parts, s.String())
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// AddStatement renders the DDL that creates the constraint.
func (c CheckConstraint) AddStatement() string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK %s", c.Table, c.Name, c.Condition())
}

// DropStatement renders the DDL that drops the constraint.
func (c CheckConstraint) DropStatement() string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", c.Table, c.Name)
}

// UniqueIndex is a unique index over a list of column expressions, optionally restricted to rows matching Where.
type UniqueIndex struct {
	Table       string
	Name        string
	Expressions []string
	Where       Shape
}

// CreateStatement renders the DDL that creates the index.
func (u UniqueIndex) CreateStatement() string {
	exprs := make([]string, 0, len(u.Expressions))
	for _, e := range u.Expressions {
		exprs = append(exprs, "("+e+")")
	}

	s := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s USING btree (%s)", u.Name, u.Table, strings.Join(exprs, ", "))
	if len(u.Where) > 0 {
		s += " WHERE " + u.Where.String()
	}
	return s
}

// DropStatement renders the DDL that drops the index.
func (u UniqueIndex) DropStatement() string {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s", u.Name)
}

// CoalesceTimestamp renders column with NULL replaced by MinTimestamp.
func CoalesceTimestamp(column string) string {
	return fmt.Sprintf("COALESCE(%s, %s)", column, MinTimestamp)
}
