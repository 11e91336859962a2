package storage

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// StorageMode governs whether a relation detector's findings are written as
// already-applied edges, held as pending suggestions for manual review, or
// rejected outright — the supplemented feature described in SPEC_FULL.md's
// "Storage modes", grounded on original_source/'s distinction
// between automatic and suggested relation modes that spec.md's distillation
// collapsed into a single always-applied relation.
type StorageMode string

const (
	StorageModeManual    StorageMode = "manual"    // detector output is discarded; only explicit user edges apply
	StorageModeSuggested StorageMode = "suggested" // detector output is held pending, awaiting ApplySuggestion/RejectSuggestion
	StorageModeAutomatic StorageMode = "automatic" // detector output is applied immediately
)

// RecordMemoryRelation writes a memory-memory relation found by
// internal/relations, honoring mode: manual drops it, suggested holds it
// pending, automatic applies it immediately.
func (s *Store) RecordMemoryRelation(ctx context.Context, r *MemoryRelation, mode StorageMode, now int64) (*MemoryRelation, error) {
	if mode == StorageModeManual {
		return nil, nil
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = now
	r.Status = SuggestionStatusApplied
	if mode == StorageModeSuggested {
		r.Status = SuggestionStatusPending
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO memory_relations (id, source_memory_id, target_memory_id, relation_type, confidence, detection_method, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(source_memory_id, target_memory_id, detection_method) DO UPDATE SET
				confidence = excluded.confidence, relation_type = excluded.relation_type`,
			r.ID, r.SourceMemoryID, r.TargetMemoryID, r.RelationType, r.Confidence, r.DetectionMethod, r.Status, r.CreatedAt,
		)
		if err != nil {
			return wrapStorageErr("record-memory-relation", err)
		}
		return bumpWriteCounter(ctx, tx, WriteKindMemory)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// RecordCrossLayerRelation mirrors RecordMemoryRelation for memory-code
// links.
func (s *Store) RecordCrossLayerRelation(ctx context.Context, r *CrossLayerRelation, mode StorageMode, now int64) (*CrossLayerRelation, error) {
	if mode == StorageModeManual {
		return nil, nil
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = now
	r.Status = SuggestionStatusApplied
	if mode == StorageModeSuggested {
		r.Status = SuggestionStatusPending
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cross_layer_relations (id, memory_id, code_node_id, relation_type, confidence, detection_method, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(memory_id, code_node_id, detection_method) DO UPDATE SET
				confidence = excluded.confidence, relation_type = excluded.relation_type`,
			r.ID, r.MemoryID, r.CodeNodeID, r.RelationType, r.Confidence, r.DetectionMethod, r.Status, r.CreatedAt,
		)
		if err != nil {
			return wrapStorageErr("record-cross-layer-relation", err)
		}
		return bumpWriteCounter(ctx, tx, WriteKindMemory)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteMemoryRelation removes a single memory-memory relation
// unconditionally, the counterpart to RecordMemoryRelation for the explicit
// delete_relation tool (spec §6).
func (s *Store) DeleteMemoryRelation(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM memory_relations WHERE id = ?`, id)
		if err != nil {
			return wrapStorageErr("delete-memory-relation", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &NotFoundError{Kind: "memory_relation", ID: id}
		}
		return bumpWriteCounter(ctx, tx, WriteKindMemory)
	})
}

// PendingMemoryRelations lists memory relations awaiting manual review.
func (s *Store) PendingMemoryRelations(ctx context.Context) ([]*MemoryRelation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_memory_id, target_memory_id, relation_type, confidence, detection_method, status, created_at
		FROM memory_relations WHERE status = ?`, SuggestionStatusPending)
	if err != nil {
		return nil, wrapStorageErr("pending-memory-relations", err)
	}
	defer rows.Close()
	return scanMemoryRelationRows(rows)
}

// PendingCrossLayerRelations lists cross-layer relations awaiting manual
// review.
func (s *Store) PendingCrossLayerRelations(ctx context.Context) ([]*CrossLayerRelation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, memory_id, code_node_id, relation_type, confidence, detection_method, status, created_at
		FROM cross_layer_relations WHERE status = ?`, SuggestionStatusPending)
	if err != nil {
		return nil, wrapStorageErr("pending-cross-layer-relations", err)
	}
	defer rows.Close()
	return scanCrossLayerRelationRows(rows)
}

// ApplyMemoryRelationSuggestion transitions a pending suggestion to applied.
func (s *Store) ApplyMemoryRelationSuggestion(ctx context.Context, id string) error {
	return s.setMemoryRelationStatus(ctx, id, SuggestionStatusPending, SuggestionStatusApplied)
}

// RejectMemoryRelationSuggestion transitions a pending suggestion to
// rejected; it is kept (not deleted) so the detector does not re-propose it.
func (s *Store) RejectMemoryRelationSuggestion(ctx context.Context, id string) error {
	return s.setMemoryRelationStatus(ctx, id, SuggestionStatusPending, SuggestionStatusRejected)
}

func (s *Store) setMemoryRelationStatus(ctx context.Context, id, fromStatus, toStatus string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memory_relations SET status = ? WHERE id = ? AND status = ?`, toStatus, id, fromStatus)
	if err != nil {
		return wrapStorageErr("set-memory-relation-status", err)
	}
	return rowsAffectedOrNotFound(res, "memory relation", id)
}

// ApplyCrossLayerRelationSuggestion transitions a pending suggestion to
// applied.
func (s *Store) ApplyCrossLayerRelationSuggestion(ctx context.Context, id string) error {
	return s.setCrossLayerRelationStatus(ctx, id, SuggestionStatusPending, SuggestionStatusApplied)
}

// RejectCrossLayerRelationSuggestion transitions a pending suggestion to
// rejected.
func (s *Store) RejectCrossLayerRelationSuggestion(ctx context.Context, id string) error {
	return s.setCrossLayerRelationStatus(ctx, id, SuggestionStatusPending, SuggestionStatusRejected)
}

func (s *Store) setCrossLayerRelationStatus(ctx context.Context, id, fromStatus, toStatus string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE cross_layer_relations SET status = ? WHERE id = ? AND status = ?`, toStatus, id, fromStatus)
	if err != nil {
		return wrapStorageErr("set-cross-layer-relation-status", err)
	}
	return rowsAffectedOrNotFound(res, "cross layer relation", id)
}

// BulkApplyMemoryRelationSuggestions applies every id inside a single
// transaction: if any id fails to resolve to a pending suggestion, the
// whole batch rolls back and none are applied — the original's
// all-or-nothing bulk suggestion semantics.
func (s *Store) BulkApplyMemoryRelationSuggestions(ctx context.Context, ids []string) (int, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			res, err := tx.ExecContext(ctx, `UPDATE memory_relations SET status = ? WHERE id = ? AND status = ?`, SuggestionStatusApplied, id, SuggestionStatusPending)
			if err != nil {
				return wrapStorageErr("bulk-apply-memory-relation", err)
			}
			if err := rowsAffectedOrNotFound(res, "memory relation", id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// BulkRejectMemoryRelationSuggestions mirrors BulkApplyMemoryRelationSuggestions
// for rejection.
func (s *Store) BulkRejectMemoryRelationSuggestions(ctx context.Context, ids []string) (int, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			res, err := tx.ExecContext(ctx, `UPDATE memory_relations SET status = ? WHERE id = ? AND status = ?`, SuggestionStatusRejected, id, SuggestionStatusPending)
			if err != nil {
				return wrapStorageErr("bulk-reject-memory-relation", err)
			}
			if err := rowsAffectedOrNotFound(res, "memory relation", id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// MemoryRelationsForMemory returns every applied relation touching
// memoryID, used by the Context Assembler to pull in directly-linked
// memories (spec §4.7).
func (s *Store) MemoryRelationsForMemory(ctx context.Context, memoryID string) ([]*MemoryRelation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_memory_id, target_memory_id, relation_type, confidence, detection_method, status, created_at
		FROM memory_relations WHERE (source_memory_id = ? OR target_memory_id = ?) AND status = ?`,
		memoryID, memoryID, SuggestionStatusApplied)
	if err != nil {
		return nil, wrapStorageErr("memory-relations-for-memory", err)
	}
	defer rows.Close()
	return scanMemoryRelationRows(rows)
}

// CrossLayerRelationsForMemory returns every applied memory-code link for
// memoryID.
func (s *Store) CrossLayerRelationsForMemory(ctx context.Context, memoryID string) ([]*CrossLayerRelation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, memory_id, code_node_id, relation_type, confidence, detection_method, status, created_at
		FROM cross_layer_relations WHERE memory_id = ? AND status = ?`, memoryID, SuggestionStatusApplied)
	if err != nil {
		return nil, wrapStorageErr("cross-layer-relations-for-memory", err)
	}
	defer rows.Close()
	return scanCrossLayerRelationRows(rows)
}

// CrossLayerRelationsForCodeNode returns every applied memory-code link for
// codeNodeID, the reverse lookup used by analyzeImpact to surface memories
// documenting an impacted symbol.
func (s *Store) CrossLayerRelationsForCodeNode(ctx context.Context, codeNodeID string) ([]*CrossLayerRelation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, memory_id, code_node_id, relation_type, confidence, detection_method, status, created_at
		FROM cross_layer_relations WHERE code_node_id = ? AND status = ?`, codeNodeID, SuggestionStatusApplied)
	if err != nil {
		return nil, wrapStorageErr("cross-layer-relations-for-code-node", err)
	}
	defer rows.Close()
	return scanCrossLayerRelationRows(rows)
}

func scanMemoryRelationRows(rows *sql.Rows) ([]*MemoryRelation, error) {
	var out []*MemoryRelation
	for rows.Next() {
		var r MemoryRelation
		if err := rows.Scan(&r.ID, &r.SourceMemoryID, &r.TargetMemoryID, &r.RelationType, &r.Confidence, &r.DetectionMethod, &r.Status, &r.CreatedAt); err != nil {
			return nil, wrapStorageErr("scan-memory-relation", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func scanCrossLayerRelationRows(rows *sql.Rows) ([]*CrossLayerRelation, error) {
	var out []*CrossLayerRelation
	for rows.Next() {
		var r CrossLayerRelation
		if err := rows.Scan(&r.ID, &r.MemoryID, &r.CodeNodeID, &r.RelationType, &r.Confidence, &r.DetectionMethod, &r.Status, &r.CreatedAt); err != nil {
			return nil, wrapStorageErr("scan-cross-layer-relation", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
