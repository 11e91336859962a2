package migrations

import "database/sql"

// v1InitialSchema creates the memory, code graph, vector, and suggestion
// tables — the spec §3 Memory/CodeNode/CodeEdge/FileHash/MemoryRelation/
// CrossLayerRelation data model plus the vector payload replica table the
// embedded vector backend (§4.4) shares with this store.
type v1InitialSchema struct{ Base }

func (v1InitialSchema) Apply(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			related_files TEXT NOT NULL DEFAULT '[]',
			importance REAL NOT NULL DEFAULT 0.5,
			status TEXT NOT NULL DEFAULT 'approved',
			qdrant_id TEXT,
			created_at INTEGER NOT NULL,
			accessed_at INTEGER NOT NULL,
			last_refreshed_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(type)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_status ON memories(status)`,

		`CREATE TABLE IF NOT EXISTS code_nodes (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			name TEXT NOT NULL,
			file_path TEXT NOT NULL,
			start_line INTEGER,
			end_line INTEGER,
			signature TEXT,
			summary TEXT,
			summary_confidence REAL,
			needs_ai_summary INTEGER NOT NULL DEFAULT 0,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_code_nodes_file_path ON code_nodes(file_path)`,
		`CREATE INDEX IF NOT EXISTS idx_code_nodes_name ON code_nodes(name)`,

		`CREATE TABLE IF NOT EXISTS code_edges (
			id TEXT PRIMARY KEY,
			from_node TEXT NOT NULL,
			to_node TEXT NOT NULL,
			edge_type TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			UNIQUE(from_node, to_node, edge_type)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_code_edges_from ON code_edges(from_node)`,
		`CREATE INDEX IF NOT EXISTS idx_code_edges_to ON code_edges(to_node)`,

		`CREATE TABLE IF NOT EXISTS file_hashes (
			path TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS vector_payloads (
			vector_id TEXT PRIMARY KEY,
			memory_id TEXT,
			kind TEXT NOT NULL,
			title TEXT,
			tags TEXT NOT NULL DEFAULT '[]',
			related_files TEXT NOT NULL DEFAULT '[]',
			importance REAL NOT NULL DEFAULT 0,
			dim INTEGER NOT NULL,
			embedding BLOB NOT NULL,
			extra TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vector_payloads_kind ON vector_payloads(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_vector_payloads_memory ON vector_payloads(memory_id)`,

		`CREATE TABLE IF NOT EXISTS memory_relations (
			id TEXT PRIMARY KEY,
			source_memory_id TEXT NOT NULL,
			target_memory_id TEXT NOT NULL,
			relation_type TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 0,
			detection_method TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'applied',
			created_at INTEGER NOT NULL,
			UNIQUE(source_memory_id, target_memory_id, detection_method)
		)`,

		`CREATE TABLE IF NOT EXISTS cross_layer_relations (
			id TEXT PRIMARY KEY,
			memory_id TEXT NOT NULL,
			code_node_id TEXT NOT NULL,
			relation_type TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 0,
			detection_method TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'applied',
			created_at INTEGER NOT NULL,
			UNIQUE(memory_id, code_node_id, detection_method)
		)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
