package storage

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Tables holds the table names every query is built against. They are
// resolved once at start from configuration.
type Tables struct {
	Jobs          string
	Organisations string
	Users         string
	JobEvents     string
}

// DefaultTables returns the stock table names
func DefaultTables() Tables {
	return Tables{
		Jobs:          "jobs",
		Organisations: "organisations",
		Users:         "users",
		JobEvents:     "job_events",
	}
}

// WithDefaults fills empty names with the stock ones
func (t Tables) WithDefaults() Tables {
	d := DefaultTables()
	if t.Jobs == "" {
		t.Jobs = d.Jobs
	}
	if t.Organisations == "" {
		t.Organisations = d.Organisations
	}
	if t.Users == "" {
		t.Users = d.Users
	}
	if t.JobEvents == "" {
		t.JobEvents = d.JobEvents
	}
	return t
}

type Storage struct {
	db     *sqlx.DB
	tables Tables
}

func NewStorage(db *sqlx.DB, tables Tables) *Storage {
	return &Storage{
		db:     db,
		tables: tables.WithDefaults(),
	}
}

// columns renders a select list, optionally qualified with a table alias
func columns(alias string, cols []string) string {
	if alias == "" {
		return strings.Join(cols, ", ")
	}
	qualified := make([]string, len(cols))
	for i, c := range cols {
		qualified[i] = alias + "." + c
	}
	return strings.Join(qualified, ", ")
}

// updateBuilder collects SET and WHERE fragments with numbered placeholders
type updateBuilder struct {
	sets  []string
	conds []string
	args  []interface{}
}

func (b *updateBuilder) arg(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *updateBuilder) set(col string, v interface{}) {
	b.sets = append(b.sets, col+" = "+b.arg(v))
}

func (b *updateBuilder) setExpr(col, expr string) {
	b.sets = append(b.sets, col+" = "+expr)
}

func (b *updateBuilder) where(cond string) {
	b.conds = append(b.conds, cond)
}

func (b *updateBuilder) build(table, returning string) string {
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING %s",
		table,
		strings.Join(b.sets, ", "),
		strings.Join(b.conds, " AND "),
		returning,
	)
}
