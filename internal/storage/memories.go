package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
)

// CreateMemoryInput carries the fields a caller may set when creating a
// memory; CreatedAt/AccessedAt/ID are assigned by CreateMemory.
type CreateMemoryInput struct {
	Type         string
	Title        string
	Content      string
	Tags         []string
	RelatedFiles []string
	Importance   float64
	Pending      bool // true holds the memory in pending status (spec §3 lifecycle)
	Now          int64
}

// CreateMemory inserts a new memory. Per spec §3's lifecycle, a memory
// created with Pending set true is held for approval before it is written to
// the vector store by the caller (internal/vectorstore is driven by the
// higher-level memory service, not by this package).
func (s *Store) CreateMemory(ctx context.Context, in CreateMemoryInput) (*Memory, error) {
	if in.Title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if in.Content == "" {
		return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if in.Importance < 0 || in.Importance > 1 {
		return nil, &ValidationError{Field: "importance", Reason: "must be in [0,1]"}
	}

	status := MemoryStatusApproved
	if in.Pending {
		status = MemoryStatusPending
	}

	m := &Memory{
		ID:           uuid.NewString(),
		Type:         in.Type,
		Title:        in.Title,
		Content:      in.Content,
		Tags:         in.Tags,
		RelatedFiles: in.RelatedFiles,
		Importance:   in.Importance,
		Status:       status,
		CreatedAt:    in.Now,
		AccessedAt:   in.Now,
	}

	tagsJSON, err := json.Marshal(m.Tags)
	if err != nil {
		return nil, wrapStorageErr("create-memory-marshal-tags", err)
	}
	filesJSON, err := json.Marshal(m.RelatedFiles)
	if err != nil {
		return nil, wrapStorageErr("create-memory-marshal-files", err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO memories (id, type, title, content, tags, related_files, importance, status, qdrant_id, created_at, accessed_at, last_refreshed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, NULL)`,
			m.ID, m.Type, m.Title, m.Content, string(tagsJSON), string(filesJSON), m.Importance, m.Status, m.CreatedAt, m.AccessedAt,
		)
		if err != nil {
			return wrapStorageErr("create-memory", err)
		}
		return bumpWriteCounter(ctx, tx, WriteKindMemory)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMemory fetches a memory by id without updating its accessed_at; callers
// doing retrieval-path reads should use TouchMemory separately so that
// listing operations don't inflate access recency.
func (s *Store) GetMemory(ctx context.Context, id string) (*Memory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, title, content, tags, related_files, importance, status, qdrant_id, created_at, accessed_at, last_refreshed_at
		FROM memories WHERE id = ?`, id)
	return scanMemory(row, id)
}

func scanMemory(row *sql.Row, id string) (*Memory, error) {
	var m Memory
	var tagsJSON, filesJSON string
	var qdrantID sql.NullString
	var lastRefreshed sql.NullInt64

	err := row.Scan(&m.ID, &m.Type, &m.Title, &m.Content, &tagsJSON, &filesJSON, &m.Importance, &m.Status, &qdrantID, &m.CreatedAt, &m.AccessedAt, &lastRefreshed)
	if err != nil {
		return nil, noRowsToNotFound("memory", id, err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		return nil, wrapStorageErr("get-memory-unmarshal-tags", err)
	}
	if err := json.Unmarshal([]byte(filesJSON), &m.RelatedFiles); err != nil {
		return nil, wrapStorageErr("get-memory-unmarshal-files", err)
	}
	m.QdrantID = qdrantID.String
	if lastRefreshed.Valid {
		v := lastRefreshed.Int64
		m.LastRefreshedAt = &v
	}
	return &m, nil
}

// TouchMemory bumps accessed_at. This does not bump the write counter —
// access recency is not part of the Context Assembler cache key.
func (s *Store) TouchMemory(ctx context.Context, id string, now int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET accessed_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return wrapStorageErr("touch-memory", err)
	}
	return rowsAffectedOrNotFound(res, "memory", id)
}

// UpdateMemoryInput carries the mutable fields of a memory update. Nil
// pointers mean "leave unchanged".
type UpdateMemoryInput struct {
	Title        *string
	Content      *string
	Tags         *[]string
	RelatedFiles *[]string
	Importance   *float64
	Now          int64
}

// UpdateMemoryResult reports whether the edit changed title or content, so
// the caller knows whether re-embedding is required per spec §3's "updated
// (re-embed iff title or content changed)" lifecycle rule.
type UpdateMemoryResult struct {
	Memory        *Memory
	NeedsReembed  bool
}

// UpdateMemory applies in to the memory, returning whether a re-embed is
// needed. The embedding itself is the vector store's job; this package only
// decides and reports the need.
func (s *Store) UpdateMemory(ctx context.Context, id string, in UpdateMemoryInput) (*UpdateMemoryResult, error) {
	existing, err := s.GetMemory(ctx, id)
	if err != nil {
		return nil, err
	}

	needsReembed := false
	if in.Title != nil && *in.Title != existing.Title {
		if *in.Title == "" {
			return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
		}
		existing.Title = *in.Title
		needsReembed = true
	}
	if in.Content != nil && *in.Content != existing.Content {
		if *in.Content == "" {
			return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
		}
		existing.Content = *in.Content
		needsReembed = true
	}
	if in.Tags != nil {
		existing.Tags = *in.Tags
	}
	if in.RelatedFiles != nil {
		existing.RelatedFiles = *in.RelatedFiles
	}
	if in.Importance != nil {
		if *in.Importance < 0 || *in.Importance > 1 {
			return nil, &ValidationError{Field: "importance", Reason: "must be in [0,1]"}
		}
		existing.Importance = *in.Importance
	}

	tagsJSON, err := json.Marshal(existing.Tags)
	if err != nil {
		return nil, wrapStorageErr("update-memory-marshal-tags", err)
	}
	filesJSON, err := json.Marshal(existing.RelatedFiles)
	if err != nil {
		return nil, wrapStorageErr("update-memory-marshal-files", err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE memories SET title = ?, content = ?, tags = ?, related_files = ?, importance = ?, accessed_at = ?
			WHERE id = ?`,
			existing.Title, existing.Content, string(tagsJSON), string(filesJSON), existing.Importance, in.Now, id,
		)
		if err != nil {
			return wrapStorageErr("update-memory", err)
		}
		if err := rowsAffectedOrNotFound(res, "memory", id); err != nil {
			return err
		}
		return bumpWriteCounter(ctx, tx, WriteKindMemory)
	})
	if err != nil {
		return nil, err
	}

	existing.AccessedAt = in.Now
	return &UpdateMemoryResult{Memory: existing, NeedsReembed: needsReembed}, nil
}

// ApproveMemory transitions a pending memory to approved, per spec §3's
// lifecycle. The caller is responsible for writing the vector afterward.
func (s *Store) ApproveMemory(ctx context.Context, id string) (*Memory, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE memories SET status = ? WHERE id = ? AND status = ?`, MemoryStatusApproved, id, MemoryStatusPending)
		if err != nil {
			return wrapStorageErr("approve-memory", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return wrapStorageErr("approve-memory-rows", err)
		}
		if n == 0 {
			return &NotFoundError{Kind: "pending memory", ID: id}
		}
		return bumpWriteCounter(ctx, tx, WriteKindMemory)
	})
	if err != nil {
		return nil, err
	}
	return s.GetMemory(ctx, id)
}

// SetMemoryQdrantID records the vector id assigned by the vector store. The
// field name mirrors the teacher's legacy naming for the memory's vector
// handle and is kept for read compatibility with exported/imported data.
func (s *Store) SetMemoryQdrantID(ctx context.Context, id, vectorID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET qdrant_id = ? WHERE id = ?`, vectorID, id)
	if err != nil {
		return wrapStorageErr("set-memory-vector-id", err)
	}
	return rowsAffectedOrNotFound(res, "memory", id)
}

// DeleteMemory removes a memory and cascades to every dependent row: its
// vector payload, memory-memory relations on either side, cross-layer
// relations, and entity mention links — per spec §3's "deleted (cascades
// vector + relations + suggestions + entity-memory links + cross-layer
// links)".
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
		if err != nil {
			return wrapStorageErr("delete-memory", err)
		}
		if err := rowsAffectedOrNotFound(res, "memory", id); err != nil {
			return err
		}

		cascades := []string{
			`DELETE FROM vector_payloads WHERE memory_id = ?`,
			`DELETE FROM memory_relations WHERE source_memory_id = ? OR target_memory_id = ?`,
			`DELETE FROM cross_layer_relations WHERE memory_id = ?`,
			`DELETE FROM entity_mentions WHERE memory_id = ?`,
			`DELETE FROM relationship_sources WHERE memory_id = ?`,
		}
		for _, stmt := range cascades {
			if stmt == `DELETE FROM memory_relations WHERE source_memory_id = ? OR target_memory_id = ?` {
				if _, err := tx.ExecContext(ctx, stmt, id, id); err != nil {
					return wrapStorageErr("delete-memory-cascade", err)
				}
				continue
			}
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return wrapStorageErr("delete-memory-cascade", err)
			}
		}
		return bumpWriteCounter(ctx, tx, WriteKindMemory)
	})
}

// ListMemoriesFilter narrows ListMemories; zero-valued fields are ignored.
type ListMemoriesFilter struct {
	Type   string
	Status string
	Tag    string
	Limit  int
}

// ListMemories returns memories matching filter, newest first.
func (s *Store) ListMemories(ctx context.Context, filter ListMemoriesFilter) ([]*Memory, error) {
	query := `SELECT id, type, title, content, tags, related_files, importance, status, qdrant_id, created_at, accessed_at, last_refreshed_at FROM memories WHERE 1=1`
	var args []any
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Tag != "" {
		query += ` AND tags LIKE ?`
		args = append(args, "%\""+filter.Tag+"\"%")
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStorageErr("list-memories", err)
	}
	defer rows.Close()

	var out []*Memory
	for rows.Next() {
		var m Memory
		var tagsJSON, filesJSON string
		var qdrantID sql.NullString
		var lastRefreshed sql.NullInt64
		if err := rows.Scan(&m.ID, &m.Type, &m.Title, &m.Content, &tagsJSON, &filesJSON, &m.Importance, &m.Status, &qdrantID, &m.CreatedAt, &m.AccessedAt, &lastRefreshed); err != nil {
			return nil, wrapStorageErr("list-memories-scan", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
			return nil, wrapStorageErr("list-memories-unmarshal-tags", err)
		}
		if err := json.Unmarshal([]byte(filesJSON), &m.RelatedFiles); err != nil {
			return nil, wrapStorageErr("list-memories-unmarshal-files", err)
		}
		m.QdrantID = qdrantID.String
		if lastRefreshed.Valid {
			v := lastRefreshed.Int64
			m.LastRefreshedAt = &v
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func rowsAffectedOrNotFound(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapStorageErr("rows-affected", err)
	}
	if n == 0 {
		return &NotFoundError{Kind: kind, ID: id}
	}
	return nil
}
