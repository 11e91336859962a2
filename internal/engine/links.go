package engine

import (
	"context"
	"fmt"

	"github.com/rcae/rcae/internal/retriever"
	"github.com/rcae/rcae/internal/storage"
)

// LinkMemories records an explicit, user-authored memory-memory relation
// (spec §6 "link_memories"), always applied regardless of the engine's
// configured storage mode since the caller is asserting the link directly
// rather than a detector proposing one.
func (e *Engine) LinkMemories(ctx context.Context, sourceMemoryID, targetMemoryID, relationType string) (*storage.MemoryRelation, error) {
	rel := &storage.MemoryRelation{
		SourceMemoryID:  sourceMemoryID,
		TargetMemoryID:  targetMemoryID,
		RelationType:    relationType,
		Confidence:      1.0,
		DetectionMethod: "manual",
	}
	rel, err := e.Store.RecordMemoryRelation(ctx, rel, storage.StorageModeAutomatic, now())
	if err != nil {
		return nil, fmt.Errorf("link memories: %w", err)
	}
	e.Assembler.ResetContextCache()
	return rel, nil
}

// GetRelated returns every applied memory-memory relation touching a memory
// (spec §6 "get_related").
func (e *Engine) GetRelated(ctx context.Context, memoryID string) ([]*storage.MemoryRelation, error) {
	rels, err := e.Store.MemoryRelationsForMemory(ctx, memoryID)
	if err != nil {
		return nil, fmt.Errorf("get related: %w", err)
	}
	return rels, nil
}

// DeleteRelation removes a single memory-memory relation (spec §6
// "delete_relation").
func (e *Engine) DeleteRelation(ctx context.Context, id string) error {
	if err := e.Store.DeleteMemoryRelation(ctx, id); err != nil {
		return fmt.Errorf("delete relation: %w", err)
	}
	e.Assembler.ResetContextCache()
	return nil
}

// FindPath runs the retriever's bounded BFS between two entities (spec §6
// "find_path"), distinct from memory relations since it operates over the
// entity graph rather than memory-to-memory edges.
func (e *Engine) FindPath(ctx context.Context, sourceEntityID, targetEntityID string, opts retriever.PathSearchOptions) (*retriever.PathSearchResult, error) {
	result, err := e.Retriever.FindPath(ctx, sourceEntityID, targetEntityID, opts)
	if err != nil {
		return nil, fmt.Errorf("find path: %w", err)
	}
	return result, nil
}
