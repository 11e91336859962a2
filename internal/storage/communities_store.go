package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
)

// GraphCounts summarizes the entity/community graph's current size, used by
// the spec §6 `graphragStatus` tool.
type GraphCounts struct {
	Entities      int
	Relationships int
	Communities   int
	Reports       int
}

// GraphCounts computes row counts across the graph tables in one round
// trip.
func (s *Store) GraphCounts(ctx context.Context) (*GraphCounts, error) {
	var c GraphCounts
	row := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(1) FROM entities),
		(SELECT COUNT(1) FROM relationships),
		(SELECT COUNT(1) FROM communities),
		(SELECT COUNT(1) FROM community_reports)`)
	if err := row.Scan(&c.Entities, &c.Relationships, &c.Communities, &c.Reports); err != nil {
		return nil, wrapStorageErr("graph-counts", err)
	}
	return &c, nil
}

// ReplaceCommunities atomically drops every existing community and report
// and installs a freshly computed set, mirroring the GraphRAG pipeline's
// practice of recomputing the full hierarchy on each clustering pass rather
// than diffing it incrementally (spec §4.5).
func (s *Store) ReplaceCommunities(ctx context.Context, communities []*Community, now int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM community_reports`); err != nil {
			return wrapStorageErr("replace-communities-clear-reports", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM communities`); err != nil {
			return wrapStorageErr("replace-communities-clear", err)
		}
		for _, c := range communities {
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			c.CreatedAt, c.UpdatedAt = now, now
			entityIDsJSON, err := json.Marshal(c.EntityIDs)
			if err != nil {
				return wrapStorageErr("replace-communities-marshal", err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO communities (id, level, parent_id, entity_ids, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				c.ID, c.Level, nullIfEmpty(c.ParentID), string(entityIDsJSON), c.CreatedAt, c.UpdatedAt,
			); err != nil {
				return wrapStorageErr("replace-communities-insert", err)
			}
		}
		return bumpWriteCounter(ctx, tx, WriteKindEntity)
	})
}

// ListCommunities returns every community at level, or every community when
// level is negative.
func (s *Store) ListCommunities(ctx context.Context, level int) ([]*Community, error) {
	query := `SELECT id, level, parent_id, entity_ids, created_at, updated_at FROM communities`
	var args []any
	if level >= 0 {
		query += ` WHERE level = ?`
		args = append(args, level)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStorageErr("list-communities", err)
	}
	defer rows.Close()

	var out []*Community
	for rows.Next() {
		var c Community
		var parentID sql.NullString
		var entityIDsJSON string
		if err := rows.Scan(&c.ID, &c.Level, &parentID, &entityIDsJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, wrapStorageErr("scan-community", err)
		}
		c.ParentID = parentID.String
		if err := json.Unmarshal([]byte(entityIDsJSON), &c.EntityIDs); err != nil {
			return nil, wrapStorageErr("scan-community-unmarshal", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// GetCommunity fetches a single community by id.
func (s *Store) GetCommunity(ctx context.Context, id string) (*Community, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, level, parent_id, entity_ids, created_at, updated_at FROM communities WHERE id = ?`, id)
	var c Community
	var parentID sql.NullString
	var entityIDsJSON string
	err := row.Scan(&c.ID, &c.Level, &parentID, &entityIDsJSON, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, noRowsToNotFound("community", id, err)
	}
	c.ParentID = parentID.String
	if err := json.Unmarshal([]byte(entityIDsJSON), &c.EntityIDs); err != nil {
		return nil, wrapStorageErr("get-community-unmarshal", err)
	}
	return &c, nil
}

// UpsertCommunityReport stores the synthesized title/summary for a
// community, generated separately by internal/graphrag's report writer.
func (s *Store) UpsertCommunityReport(ctx context.Context, r *CommunityReport, now int64) error {
	r.UpdatedAt = now
	if r.CreatedAt == 0 {
		r.CreatedAt = now
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO community_reports (community_id, title, summary, embedding_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(community_id) DO UPDATE SET
				title = excluded.title, summary = excluded.summary, embedding_id = excluded.embedding_id, updated_at = excluded.updated_at`,
			r.CommunityID, r.Title, r.Summary, nullIfEmpty(r.EmbeddingID), r.CreatedAt, r.UpdatedAt,
		)
		if err != nil {
			return wrapStorageErr("upsert-community-report", err)
		}
		return bumpWriteCounter(ctx, tx, WriteKindReport)
	})
}

// GetCommunityReport fetches the report for a community id.
func (s *Store) GetCommunityReport(ctx context.Context, communityID string) (*CommunityReport, error) {
	row := s.db.QueryRowContext(ctx, `SELECT community_id, title, summary, embedding_id, created_at, updated_at FROM community_reports WHERE community_id = ?`, communityID)
	var r CommunityReport
	var embeddingID sql.NullString
	err := row.Scan(&r.CommunityID, &r.Title, &r.Summary, &embeddingID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, noRowsToNotFound("community report", communityID, err)
	}
	r.EmbeddingID = embeddingID.String
	return &r, nil
}

// ListCommunityReports returns every report at the given level, joined
// against communities so global search (spec §4.6) can filter by level
// without a second round trip.
func (s *Store) ListCommunityReports(ctx context.Context, level int) ([]*CommunityReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cr.community_id, cr.title, cr.summary, cr.embedding_id, cr.created_at, cr.updated_at
		FROM community_reports cr JOIN communities c ON c.id = cr.community_id
		WHERE c.level = ?`, level)
	if err != nil {
		return nil, wrapStorageErr("list-community-reports", err)
	}
	defer rows.Close()

	var out []*CommunityReport
	for rows.Next() {
		var r CommunityReport
		var embeddingID sql.NullString
		if err := rows.Scan(&r.CommunityID, &r.Title, &r.Summary, &embeddingID, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, wrapStorageErr("scan-community-report", err)
		}
		r.EmbeddingID = embeddingID.String
		out = append(out, &r)
	}
	return out, rows.Err()
}
