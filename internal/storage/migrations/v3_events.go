package migrations

import "database/sql"

// v3Events adds a lightweight write-event log the Context Assembler's cache
// invalidation (spec §4.7 step 6) consumes: "cache is invalidated on any
// writing operation against memories, entities, reports, or code nodes."
// Rather than wiring a pub/sub bus, the store bumps a monotonic counter per
// affected kind and the assembler cache keys off those counters.
type v3Events struct{ Base }

func (v3Events) Apply(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS write_counters (
			kind TEXT PRIMARY KEY,
			counter INTEGER NOT NULL DEFAULT 0
		)`,
		`INSERT OR IGNORE INTO write_counters (kind, counter) VALUES ('memory', 0)`,
		`INSERT OR IGNORE INTO write_counters (kind, counter) VALUES ('entity', 0)`,
		`INSERT OR IGNORE INTO write_counters (kind, counter) VALUES ('report', 0)`,
		`INSERT OR IGNORE INTO write_counters (kind, counter) VALUES ('code_node', 0)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
