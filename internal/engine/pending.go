package engine

import (
	"context"
	"fmt"

	"github.com/rcae/rcae/internal/storage"
)

// ListPendingMemories returns every memory still awaiting approval (spec §6
// "list_pending"), distinct from ReviewQueue which covers relation
// proposals rather than the memories themselves.
func (e *Engine) ListPendingMemories(ctx context.Context) ([]*storage.Memory, error) {
	mems, err := e.Store.ListMemories(ctx, storage.ListMemoriesFilter{Status: storage.MemoryStatusPending})
	if err != nil {
		return nil, fmt.Errorf("list pending memories: %w", err)
	}
	return mems, nil
}

// ConfirmMemory is the spec §6 "confirm_memory" tool: an alias for
// ApproveMemory kept as its own entry point since the tool surface names
// the two operations separately even though they do the same work.
func (e *Engine) ConfirmMemory(ctx context.Context, id string) (*storage.Memory, error) {
	return e.ApproveMemory(ctx, id)
}

// ReviewQueue is the combined set of relation proposals awaiting review
// under a Suggested storage mode (spec §6 "review_queue").
type ReviewQueue struct {
	MemoryRelations     []*storage.MemoryRelation
	CrossLayerRelations []*storage.CrossLayerRelation
}

// ReviewQueue lists every pending proposal of both kinds.
func (e *Engine) ReviewQueue(ctx context.Context) (*ReviewQueue, error) {
	memRels, err := e.Store.PendingMemoryRelations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending memory relations: %w", err)
	}
	crossRels, err := e.Store.PendingCrossLayerRelations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending cross-layer relations: %w", err)
	}
	return &ReviewQueue{MemoryRelations: memRels, CrossLayerRelations: crossRels}, nil
}

// ApproveMemoryRelation accepts a single pending memory-relation proposal
// (spec §6 "approve_pending").
func (e *Engine) ApproveMemoryRelation(ctx context.Context, id string) error {
	if err := e.Store.ApplyMemoryRelationSuggestion(ctx, id); err != nil {
		return fmt.Errorf("approve memory relation: %w", err)
	}
	e.Assembler.ResetContextCache()
	return nil
}

// RejectMemoryRelation discards a single pending memory-relation proposal
// (spec §6 "reject_pending").
func (e *Engine) RejectMemoryRelation(ctx context.Context, id string) error {
	if err := e.Store.RejectMemoryRelationSuggestion(ctx, id); err != nil {
		return fmt.Errorf("reject memory relation: %w", err)
	}
	return nil
}

// ApproveCrossLayerRelation accepts a single pending cross-layer proposal.
func (e *Engine) ApproveCrossLayerRelation(ctx context.Context, id string) error {
	if err := e.Store.ApplyCrossLayerRelationSuggestion(ctx, id); err != nil {
		return fmt.Errorf("approve cross-layer relation: %w", err)
	}
	e.Assembler.ResetContextCache()
	return nil
}

// RejectCrossLayerRelation discards a single pending cross-layer proposal.
func (e *Engine) RejectCrossLayerRelation(ctx context.Context, id string) error {
	if err := e.Store.RejectCrossLayerRelationSuggestion(ctx, id); err != nil {
		return fmt.Errorf("reject cross-layer relation: %w", err)
	}
	return nil
}

// BulkApproveMemoryRelations accepts every listed memory-relation proposal
// and returns the number actually applied (spec §6 "bulk_approve_pending").
func (e *Engine) BulkApproveMemoryRelations(ctx context.Context, ids []string) (int, error) {
	n, err := e.Store.BulkApplyMemoryRelationSuggestions(ctx, ids)
	if err != nil {
		return n, fmt.Errorf("bulk approve memory relations: %w", err)
	}
	if n > 0 {
		e.Assembler.ResetContextCache()
	}
	return n, nil
}

// BulkRejectMemoryRelations discards every listed memory-relation proposal
// and returns the number actually rejected (spec §6 "bulk_reject_pending").
func (e *Engine) BulkRejectMemoryRelations(ctx context.Context, ids []string) (int, error) {
	n, err := e.Store.BulkRejectMemoryRelationSuggestions(ctx, ids)
	if err != nil {
		return n, fmt.Errorf("bulk reject memory relations: %w", err)
	}
	return n, nil
}

// StorageMode reports the engine's currently configured storage mode (spec
// §6 "get_storage_mode").
func (e *Engine) StorageMode() storage.StorageMode {
	return e.storageMode
}

// SetStorageMode changes how future relation-detector proposals are
// recorded (spec §6 "set_storage_mode"); it does not retroactively change
// the status of already-recorded proposals.
func (e *Engine) SetStorageMode(mode storage.StorageMode) {
	e.storageMode = mode
}
