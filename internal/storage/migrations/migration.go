// Package migrations holds the ordered, versioned schema log for the store
// (spec §4.1: "Schema evolves through a linear, versioned migration log;
// migrations are idempotent (IF NOT EXISTS) and non-destructive unless
// explicitly flagged"), adapted from the teacher's SurrealDB migration
// framework onto plain SQL DDL.
package migrations

import (
	"database/sql"
	"fmt"
)

// Migration is one forward step in the schema log. Statements must be safe
// to re-run (CREATE TABLE/INDEX IF NOT EXISTS) so Apply can be called
// unconditionally on every startup.
type Migration interface {
	Version() int
	Description() string
	Apply(db *sql.DB) error
}

// Base implements Version/Description for embedding into concrete
// migrations, matching the teacher's MigrationBase convenience embed.
type Base struct {
	version     int
	description string
}

func NewBase(version int, description string) Base {
	return Base{version: version, description: description}
}

func (b Base) Version() int         { return b.version }
func (b Base) Description() string  { return b.description }

// All returns the ordered migration log. Append, never reorder or remove.
func All() []Migration {
	return []Migration{
		v1InitialSchema{NewBase(1, "memories, code graph, vectors, suggestions tables")},
		v2GraphRAG{NewBase(2, "entities, relationships, communities, reports")},
		v3Events{NewBase(3, "audit/event log for writes affecting caches")},
	}
}

// ApplyAll runs every migration in order, tracking applied versions in a
// schema_migrations table so repeated startups are cheap and safe — the
// idempotent-apply loop the teacher's ApplyElements performs, simplified
// because SQL DDL's own IF NOT EXISTS already makes each statement a no-op.
func ApplyAll(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range All() {
		var exists int
		err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, m.Version()).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version(), err)
		}
		if exists > 0 {
			continue
		}
		if err := m.Apply(db); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version(), m.Description(), err)
		}
		if _, err := db.Exec(`INSERT INTO schema_migrations (version, description) VALUES (?, ?)`, m.Version(), m.Description()); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version(), err)
		}
	}
	return nil
}
