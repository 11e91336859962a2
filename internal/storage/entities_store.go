package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
)

// aliasKey normalizes a canonical name for fuzzy lookup during entity merge
// (spec §4.5's "resolve near-duplicate entities by normalized-name and
// embedding-similarity matching before creating a new entity row").
func aliasKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// FindEntityByAlias looks up an entity by its normalized canonical name,
// the first and cheapest step of the merge-or-create decision in spec §4.5.
func (s *Store) FindEntityByAlias(ctx context.Context, canonicalName string) (*Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, canonical_name, entity_type, description, mention_count, extraction_confidence, embedding_id, created_at, updated_at
		FROM entities WHERE alias_key = ? LIMIT 1`, aliasKey(canonicalName))
	e, err := scanEntity(row, canonicalName)
	if err != nil {
		if _, ok := err.(*NotFoundError); ok {
			return nil, &NotFoundError{Kind: "entity alias", ID: canonicalName}
		}
		return nil, err
	}
	return e, nil
}

// CreateEntity inserts a new canonical entity.
func (s *Store) CreateEntity(ctx context.Context, e *Entity, now int64) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt, e.UpdatedAt = now, now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO entities (id, canonical_name, alias_key, entity_type, description, mention_count, extraction_confidence, embedding_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.CanonicalName, aliasKey(e.CanonicalName), e.EntityType, e.Description, e.MentionCount, e.ExtractionConfidence, nullIfEmpty(e.EmbeddingID), e.CreatedAt, e.UpdatedAt,
		)
		if err != nil {
			return wrapStorageErr("create-entity", err)
		}
		return bumpWriteCounter(ctx, tx, WriteKindEntity)
	})
}

// GetEntity fetches an entity by id.
func (s *Store) GetEntity(ctx context.Context, id string) (*Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, canonical_name, entity_type, description, mention_count, extraction_confidence, embedding_id, created_at, updated_at
		FROM entities WHERE id = ?`, id)
	return scanEntity(row, id)
}

func scanEntity(row *sql.Row, id string) (*Entity, error) {
	var e Entity
	var embeddingID sql.NullString
	err := row.Scan(&e.ID, &e.CanonicalName, &e.EntityType, &e.Description, &e.MentionCount, &e.ExtractionConfidence, &embeddingID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, noRowsToNotFound("entity", id, err)
	}
	e.EmbeddingID = embeddingID.String
	return &e, nil
}

// MergeEntityMention increments the mention count of an existing entity and
// records the owning memory, instead of creating a duplicate row — the
// "merge into the existing entity" branch of spec §4.5.
func (s *Store) MergeEntityMention(ctx context.Context, entityID, memoryID, mentionText string, now int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO entity_mentions (entity_id, memory_id, mention_text, created_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(entity_id, memory_id) DO UPDATE SET mention_text = excluded.mention_text`,
			entityID, memoryID, mentionText, now,
		)
		if err != nil {
			return wrapStorageErr("merge-entity-mention", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE entities SET mention_count = mention_count + 1, updated_at = ? WHERE id = ?`, now, entityID); err != nil {
			return wrapStorageErr("merge-entity-mention-count", err)
		}
		return bumpWriteCounter(ctx, tx, WriteKindEntity)
	})
}

// UpdateEntityMerge persists the result of re-resolving an entity against a
// freshly extracted mention: the blended description and the higher of the
// two confidences, per spec §4.5 step 3 ("merge: bump mentionCount, re-blend
// description, keep higher confidence").
func (s *Store) UpdateEntityMerge(ctx context.Context, entityID, description string, confidence float64, now int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE entities SET description = ?, extraction_confidence = ?, updated_at = ? WHERE id = ?`,
		description, confidence, now, entityID,
	)
	if err != nil {
		return wrapStorageErr("update-entity-merge", err)
	}
	return rowsAffectedOrNotFound(res, "entity", entityID)
}

// SetEntityEmbedding records the vector id produced for an entity's
// description, once the extraction pipeline embeds it.
func (s *Store) SetEntityEmbedding(ctx context.Context, entityID, embeddingID string, now int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE entities SET embedding_id = ?, updated_at = ? WHERE id = ?`, embeddingID, now, entityID)
	if err != nil {
		return wrapStorageErr("set-entity-embedding", err)
	}
	return rowsAffectedOrNotFound(res, "entity", entityID)
}

// ListEntities returns every entity, used by community clustering which
// needs the full node set to build its graph.
func (s *Store) ListEntities(ctx context.Context) ([]*Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, canonical_name, entity_type, description, mention_count, extraction_confidence, embedding_id, created_at, updated_at FROM entities`)
	if err != nil {
		return nil, wrapStorageErr("list-entities", err)
	}
	defer rows.Close()

	var out []*Entity
	for rows.Next() {
		var e Entity
		var embeddingID sql.NullString
		if err := rows.Scan(&e.ID, &e.CanonicalName, &e.EntityType, &e.Description, &e.MentionCount, &e.ExtractionConfidence, &embeddingID, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, wrapStorageErr("scan-entity", err)
		}
		e.EmbeddingID = embeddingID.String
		out = append(out, &e)
	}
	return out, rows.Err()
}

// EntityMemories returns the ids of memories that mention entityID, used to
// resolve provenance when the assembler cites an entity-derived fact.
func (s *Store) EntityMemories(ctx context.Context, entityID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT memory_id FROM entity_mentions WHERE entity_id = ?`, entityID)
	if err != nil {
		return nil, wrapStorageErr("entity-memories", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapStorageErr("entity-memories-scan", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// UpsertRelationship inserts a relationship, or on conflict strengthens the
// existing one and appends a new source memory — spec §4.5's "repeated
// extraction of the same relationship increases its strength rather than
// duplicating the edge."
func (s *Store) UpsertRelationship(ctx context.Context, r *Relationship, sourceMemoryID, sourceDescription string, now int64) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Strength < 1 {
		r.Strength = 1
	}
	if r.Strength > 10 {
		r.Strength = 10
	}
	r.CreatedAt, r.UpdatedAt = now, now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var existingID string
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM relationships WHERE source_entity_id = ? AND target_entity_id = ? AND relationship_type = ?`,
			r.SourceEntityID, r.TargetEntityID, r.RelationshipType,
		).Scan(&existingID)

		switch {
		case err == sql.ErrNoRows:
			_, err := tx.ExecContext(ctx, `
				INSERT INTO relationships (id, source_entity_id, target_entity_id, relationship_type, description, strength, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				r.ID, r.SourceEntityID, r.TargetEntityID, r.RelationshipType, r.Description, r.Strength, r.CreatedAt, r.UpdatedAt,
			)
			if err != nil {
				return wrapStorageErr("create-relationship", err)
			}
		case err != nil:
			return wrapStorageErr("lookup-relationship", err)
		default:
			r.ID = existingID
			newStrength := r.Strength
			if _, err := tx.ExecContext(ctx, `
				UPDATE relationships SET strength = MIN(10, strength + ?), description = ?, updated_at = ? WHERE id = ?`,
				newStrength, r.Description, now, existingID,
			); err != nil {
				return wrapStorageErr("strengthen-relationship", err)
			}
		}

		if sourceMemoryID != "" {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO relationship_sources (relationship_id, memory_id, description) VALUES (?, ?, ?)
				ON CONFLICT(relationship_id, memory_id) DO UPDATE SET description = excluded.description`,
				r.ID, sourceMemoryID, sourceDescription,
			); err != nil {
				return wrapStorageErr("upsert-relationship-source", err)
			}
		}
		return bumpWriteCounter(ctx, tx, WriteKindEntity)
	})
}

// ListRelationships returns every relationship, used by community
// clustering and global search.
func (s *Store) ListRelationships(ctx context.Context) ([]*Relationship, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_entity_id, target_entity_id, relationship_type, description, strength, created_at, updated_at FROM relationships`)
	if err != nil {
		return nil, wrapStorageErr("list-relationships", err)
	}
	defer rows.Close()

	var out []*Relationship
	for rows.Next() {
		var r Relationship
		if err := rows.Scan(&r.ID, &r.SourceEntityID, &r.TargetEntityID, &r.RelationshipType, &r.Description, &r.Strength, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, wrapStorageErr("scan-relationship", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// RelationshipsForEntity returns relationships where entityID is either
// endpoint, used for local search's entity-neighborhood expansion (spec
// §4.6).
func (s *Store) RelationshipsForEntity(ctx context.Context, entityID string) ([]*Relationship, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_entity_id, target_entity_id, relationship_type, description, strength, created_at, updated_at
		FROM relationships WHERE source_entity_id = ? OR target_entity_id = ?`, entityID, entityID)
	if err != nil {
		return nil, wrapStorageErr("relationships-for-entity", err)
	}
	defer rows.Close()

	var out []*Relationship
	for rows.Next() {
		var r Relationship
		if err := rows.Scan(&r.ID, &r.SourceEntityID, &r.TargetEntityID, &r.RelationshipType, &r.Description, &r.Strength, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, wrapStorageErr("scan-relationship", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// ResetMemoryEntityLinks removes every entity mention and relationship
// source tied to memoryID, decrementing the mention_count of affected
// entities to match. graphrag.Builder calls it before re-extracting a
// memory under reindex-all. Relationship rows and entity vectors are left
// in place.
func (s *Store) ResetMemoryEntityLinks(ctx context.Context, memoryID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT entity_id FROM entity_mentions WHERE memory_id = ?`, memoryID)
		if err != nil {
			return wrapStorageErr("reset-memory-entity-links-select", err)
		}
		var entityIDs []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return wrapStorageErr("reset-memory-entity-links-scan", err)
			}
			entityIDs = append(entityIDs, id)
		}
		rows.Close()

		if _, err := tx.ExecContext(ctx, `DELETE FROM entity_mentions WHERE memory_id = ?`, memoryID); err != nil {
			return wrapStorageErr("reset-memory-entity-links-mentions", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM relationship_sources WHERE memory_id = ?`, memoryID); err != nil {
			return wrapStorageErr("reset-memory-entity-links-sources", err)
		}
		for _, entityID := range entityIDs {
			if _, err := tx.ExecContext(ctx, `
				UPDATE entities SET mention_count = MAX(0, mention_count - 1)
				WHERE id = ?`, entityID); err != nil {
				return wrapStorageErr("reset-memory-entity-links-decrement", err)
			}
		}
		return bumpWriteCounter(ctx, tx, WriteKindEntity)
	})
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
