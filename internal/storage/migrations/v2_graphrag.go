package migrations

import "database/sql"

// v2GraphRAG creates the entity/community graph tables (spec §3, §4.5):
// entities, relationships, the memory-entity mention link, the community
// hierarchy, and community reports.
type v2GraphRAG struct{ Base }

func (v2GraphRAG) Apply(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			canonical_name TEXT NOT NULL,
			alias_key TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			mention_count INTEGER NOT NULL DEFAULT 0,
			extraction_confidence REAL NOT NULL DEFAULT 0,
			embedding_id TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_alias_key ON entities(alias_key)`,

		`CREATE TABLE IF NOT EXISTS entity_mentions (
			entity_id TEXT NOT NULL,
			memory_id TEXT NOT NULL,
			mention_text TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			PRIMARY KEY (entity_id, memory_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entity_mentions_memory ON entity_mentions(memory_id)`,

		`CREATE TABLE IF NOT EXISTS relationships (
			id TEXT PRIMARY KEY,
			source_entity_id TEXT NOT NULL,
			target_entity_id TEXT NOT NULL,
			relationship_type TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			strength INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE(source_entity_id, target_entity_id, relationship_type)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_entity_id)`,

		`CREATE TABLE IF NOT EXISTS relationship_sources (
			relationship_id TEXT NOT NULL,
			memory_id TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (relationship_id, memory_id)
		)`,

		`CREATE TABLE IF NOT EXISTS communities (
			id TEXT PRIMARY KEY,
			level INTEGER NOT NULL,
			parent_id TEXT,
			entity_ids TEXT NOT NULL DEFAULT '[]',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_communities_level ON communities(level)`,
		`CREATE INDEX IF NOT EXISTS idx_communities_parent ON communities(parent_id)`,

		`CREATE TABLE IF NOT EXISTS community_reports (
			community_id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			embedding_id TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
