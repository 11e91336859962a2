package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// UpsertCodeNode inserts or replaces a code node, keyed by id. The code
// graph builder (internal/codegraph) assigns deterministic ids derived from
// file path + symbol path, so re-scanning an unchanged file is naturally
// idempotent here.
func (s *Store) UpsertCodeNode(ctx context.Context, n *CodeNode, now int64) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	metaJSON, err := json.Marshal(n.Metadata)
	if err != nil {
		return wrapStorageErr("upsert-code-node-marshal", err)
	}
	n.UpdatedAt = now
	if n.CreatedAt == 0 {
		n.CreatedAt = now
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO code_nodes (id, type, name, file_path, start_line, end_line, signature, summary, summary_confidence, needs_ai_summary, metadata, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				type = excluded.type,
				name = excluded.name,
				file_path = excluded.file_path,
				start_line = excluded.start_line,
				end_line = excluded.end_line,
				signature = excluded.signature,
				summary = excluded.summary,
				summary_confidence = excluded.summary_confidence,
				needs_ai_summary = excluded.needs_ai_summary,
				metadata = excluded.metadata,
				updated_at = excluded.updated_at`,
			n.ID, n.Type, n.Name, n.FilePath, n.StartLine, n.EndLine, n.Signature, n.Summary, n.SummaryConfidence, n.NeedsAISummary, string(metaJSON), n.CreatedAt, n.UpdatedAt,
		)
		if err != nil {
			return wrapStorageErr("upsert-code-node", err)
		}
		return bumpWriteCounter(ctx, tx, WriteKindCodeNode)
	})
}

// GetCodeNode fetches a code node by id.
func (s *Store) GetCodeNode(ctx context.Context, id string) (*CodeNode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, name, file_path, start_line, end_line, signature, summary, summary_confidence, needs_ai_summary, metadata, created_at, updated_at
		FROM code_nodes WHERE id = ?`, id)
	return scanCodeNode(row, id)
}

func scanCodeNode(row *sql.Row, id string) (*CodeNode, error) {
	var n CodeNode
	var metaJSON string
	var summary, signature sql.NullString
	var summaryConfidence sql.NullFloat64
	var startLine, endLine sql.NullInt64

	err := row.Scan(&n.ID, &n.Type, &n.Name, &n.FilePath, &startLine, &endLine, &signature, &summary, &summaryConfidence, &n.NeedsAISummary, &metaJSON, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, noRowsToNotFound("code node", id, err)
	}
	if startLine.Valid {
		v := int(startLine.Int64)
		n.StartLine = &v
	}
	if endLine.Valid {
		v := int(endLine.Int64)
		n.EndLine = &v
	}
	n.Signature = signature.String
	n.Summary = summary.String
	n.SummaryConfidence = summaryConfidence.Float64
	if err := json.Unmarshal([]byte(metaJSON), &n.Metadata); err != nil {
		return nil, wrapStorageErr("get-code-node-unmarshal", err)
	}
	return &n, nil
}

// ListCodeNodesByFile returns every code node recorded for a file path, used
// by the incremental scanner to diff against a re-parsed file (spec §4.2).
func (s *Store) ListCodeNodesByFile(ctx context.Context, filePath string) ([]*CodeNode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, name, file_path, start_line, end_line, signature, summary, summary_confidence, needs_ai_summary, metadata, created_at, updated_at
		FROM code_nodes WHERE file_path = ?`, filePath)
	if err != nil {
		return nil, wrapStorageErr("list-code-nodes-by-file", err)
	}
	defer rows.Close()
	return scanCodeNodeRows(rows)
}

// ListCodeNodesNeedingSummary returns nodes flagged needs_ai_summary, for the
// deferred AI-summarization pass (spec §4.2's "falls back to an AI-generated
// summary when static extraction yields no doc comment").
func (s *Store) ListCodeNodesNeedingSummary(ctx context.Context, limit int) ([]*CodeNode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, name, file_path, start_line, end_line, signature, summary, summary_confidence, needs_ai_summary, metadata, created_at, updated_at
		FROM code_nodes WHERE needs_ai_summary = 1 LIMIT ?`, limit)
	if err != nil {
		return nil, wrapStorageErr("list-code-nodes-needing-summary", err)
	}
	defer rows.Close()
	return scanCodeNodeRows(rows)
}

func scanCodeNodeRows(rows *sql.Rows) ([]*CodeNode, error) {
	var out []*CodeNode
	for rows.Next() {
		var n CodeNode
		var metaJSON string
		var summary, signature sql.NullString
		var summaryConfidence sql.NullFloat64
		var startLine, endLine sql.NullInt64
		if err := rows.Scan(&n.ID, &n.Type, &n.Name, &n.FilePath, &startLine, &endLine, &signature, &summary, &summaryConfidence, &n.NeedsAISummary, &metaJSON, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, wrapStorageErr("scan-code-node", err)
		}
		if startLine.Valid {
			v := int(startLine.Int64)
			n.StartLine = &v
		}
		if endLine.Valid {
			v := int(endLine.Int64)
			n.EndLine = &v
		}
		n.Signature = signature.String
		n.Summary = summary.String
		n.SummaryConfidence = summaryConfidence.Float64
		if err := json.Unmarshal([]byte(metaJSON), &n.Metadata); err != nil {
			return nil, wrapStorageErr("scan-code-node-unmarshal", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// DeleteCodeNodesByFile removes every node recorded for a file and their
// edges, used when a file is deleted or fully re-parsed.
func (s *Store) DeleteCodeNodesByFile(ctx context.Context, filePath string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id FROM code_nodes WHERE file_path = ?`, filePath)
		if err != nil {
			return wrapStorageErr("delete-code-nodes-by-file-select", err)
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return wrapStorageErr("delete-code-nodes-by-file-scan", err)
			}
			ids = append(ids, id)
		}
		rows.Close()

		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM code_edges WHERE from_node = ? OR to_node = ?`, id, id); err != nil {
				return wrapStorageErr("delete-code-edges", err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM cross_layer_relations WHERE code_node_id = ?`, id); err != nil {
				return wrapStorageErr("delete-cross-layer-relations", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM code_nodes WHERE file_path = ?`, filePath); err != nil {
			return wrapStorageErr("delete-code-nodes-by-file", err)
		}
		return bumpWriteCounter(ctx, tx, WriteKindCodeNode)
	})
}

// UpsertCodeEdge inserts an edge, ignoring duplicates (the unique constraint
// on from_node/to_node/edge_type lets the scanner re-emit edges on every
// pass without accumulating copies).
func (s *Store) UpsertCodeEdge(ctx context.Context, e *CodeEdge) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	metaJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return wrapStorageErr("upsert-code-edge-marshal", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO code_edges (id, from_node, to_node, edge_type, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(from_node, to_node, edge_type) DO UPDATE SET metadata = excluded.metadata`,
		e.ID, e.FromNode, e.ToNode, e.EdgeType, string(metaJSON),
	)
	return wrapStorageErr("upsert-code-edge", err)
}

// EdgesFrom returns every edge originating at nodeID, used by the impact
// analysis and relation-path traversals (spec §4.2, supplemented
// analyzeImpact feature).
func (s *Store) EdgesFrom(ctx context.Context, nodeID string) ([]*CodeEdge, error) {
	return s.queryEdges(ctx, `SELECT id, from_node, to_node, edge_type, metadata FROM code_edges WHERE from_node = ?`, nodeID)
}

// EdgesTo returns every edge terminating at nodeID — the reverse direction
// needed to find callers/importers during impact analysis.
func (s *Store) EdgesTo(ctx context.Context, nodeID string) ([]*CodeEdge, error) {
	return s.queryEdges(ctx, `SELECT id, from_node, to_node, edge_type, metadata FROM code_edges WHERE to_node = ?`, nodeID)
}

func (s *Store) queryEdges(ctx context.Context, query, arg string) ([]*CodeEdge, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, wrapStorageErr("query-edges", err)
	}
	defer rows.Close()

	var out []*CodeEdge
	for rows.Next() {
		var e CodeEdge
		var metaJSON string
		if err := rows.Scan(&e.ID, &e.FromNode, &e.ToNode, &e.EdgeType, &metaJSON); err != nil {
			return nil, wrapStorageErr("scan-edge", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &e.Metadata); err != nil {
			return nil, wrapStorageErr("scan-edge-unmarshal", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// SearchCodeNodesByNames returns every code node whose name exactly matches
// one of candidates, used by the cross-layer relation detector (spec §4.8)
// to resolve code-identifier mentions found in memory content against
// actual symbols without scanning the whole table.
func (s *Store) SearchCodeNodesByNames(ctx context.Context, candidates []string) ([]*CodeNode, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(candidates))
	args := make([]any, len(candidates))
	for i, c := range candidates {
		placeholders[i] = "?"
		args[i] = c
	}
	query := `SELECT id, type, name, file_path, start_line, end_line, signature, summary, summary_confidence, needs_ai_summary, metadata, created_at, updated_at
		FROM code_nodes WHERE name IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStorageErr("search-code-nodes-by-names", err)
	}
	defer rows.Close()
	return scanCodeNodeRows(rows)
}

// CodeNodeExistsForFile reports whether any node has been recorded for a
// project-relative file path, a count-only check that does not load the
// nodes themselves.
func (s *Store) CodeNodeExistsForFile(ctx context.Context, filePath string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM code_nodes WHERE file_path = ?`, filePath).Scan(&n)
	if err != nil {
		return false, wrapStorageErr("code-node-exists-for-file", err)
	}
	return n > 0, nil
}

// GetFileHash returns the last recorded content hash for path, or a
// NotFoundError if the file has never been scanned.
func (s *Store) GetFileHash(ctx context.Context, path string) (*FileHash, error) {
	var h FileHash
	err := s.db.QueryRowContext(ctx, `SELECT path, content_hash, updated_at FROM file_hashes WHERE path = ?`, path).
		Scan(&h.Path, &h.ContentHash, &h.UpdatedAt)
	if err != nil {
		return nil, noRowsToNotFound("file hash", path, err)
	}
	return &h, nil
}

// SetFileHash records path's content hash, the basis of the incremental
// scanner's unchanged-file skip (spec §4.2).
func (s *Store) SetFileHash(ctx context.Context, path, hash string, now int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_hashes (path, content_hash, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET content_hash = excluded.content_hash, updated_at = excluded.updated_at`,
		path, hash, now,
	)
	return wrapStorageErr("set-file-hash", err)
}

// DeleteFileHash drops the recorded hash for a removed file.
func (s *Store) DeleteFileHash(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM file_hashes WHERE path = ?`, path)
	return wrapStorageErr("delete-file-hash", err)
}

// ListFileHashes returns every tracked file hash, used by the scanner at
// startup to detect files removed since the last scan.
func (s *Store) ListFileHashes(ctx context.Context) ([]*FileHash, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, content_hash, updated_at FROM file_hashes`)
	if err != nil {
		return nil, wrapStorageErr("list-file-hashes", err)
	}
	defer rows.Close()

	var out []*FileHash
	for rows.Next() {
		var h FileHash
		if err := rows.Scan(&h.Path, &h.ContentHash, &h.UpdatedAt); err != nil {
			return nil, wrapStorageErr("scan-file-hash", err)
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}
