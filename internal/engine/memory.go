package engine

import (
	"context"
	"fmt"

	"github.com/rcae/rcae/internal/storage"
	"github.com/rcae/rcae/internal/vectorstore"
)

// CreateMemory stores a new memory and, unless held pending, embeds it and
// writes the vector immediately, then runs both relation detectors against
// the rest of the project (spec §3 Memory lifecycle, §4.8 detectors).
func (e *Engine) CreateMemory(ctx context.Context, in storage.CreateMemoryInput) (*storage.Memory, error) {
	in.Now = now()
	mem, err := e.Store.CreateMemory(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create memory: %w", err)
	}
	if mem.Status == storage.MemoryStatusApproved {
		if err := e.embedAndIndexMemory(ctx, mem); err != nil {
			return mem, fmt.Errorf("embed memory: %w", err)
		}
		if err := e.runDetectors(ctx, mem); err != nil {
			return mem, fmt.Errorf("run relation detectors: %w", err)
		}
	}
	return mem, nil
}

// ApproveMemory transitions a pending memory to approved, embeds it, and
// runs the relation detectors — the step the spec's lifecycle splits out so
// a storage mode can gate review before a note affects retrieval.
func (e *Engine) ApproveMemory(ctx context.Context, id string) (*storage.Memory, error) {
	mem, err := e.Store.ApproveMemory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("approve memory: %w", err)
	}
	if err := e.embedAndIndexMemory(ctx, mem); err != nil {
		return mem, fmt.Errorf("embed memory: %w", err)
	}
	if err := e.runDetectors(ctx, mem); err != nil {
		return mem, fmt.Errorf("run relation detectors: %w", err)
	}
	return mem, nil
}

// UpdateMemory applies an edit and re-embeds only when title or content
// changed, per spec §3's "updated (re-embed iff title or content changed)".
func (e *Engine) UpdateMemory(ctx context.Context, id string, in storage.UpdateMemoryInput) (*storage.Memory, error) {
	in.Now = now()
	result, err := e.Store.UpdateMemory(ctx, id, in)
	if err != nil {
		return nil, fmt.Errorf("update memory: %w", err)
	}
	if result.NeedsReembed && result.Memory.Status == storage.MemoryStatusApproved {
		if err := e.embedAndIndexMemory(ctx, result.Memory); err != nil {
			return result.Memory, fmt.Errorf("re-embed memory: %w", err)
		}
		if err := e.runDetectors(ctx, result.Memory); err != nil {
			return result.Memory, fmt.Errorf("run relation detectors: %w", err)
		}
	}
	e.Assembler.ResetContextCache()
	return result.Memory, nil
}

// DeleteMemory removes the memory's vector before the cascading storage
// delete, since the vector store — not internal/storage — exclusively owns
// vectors per spec §3's ownership rule, even though the embedded backend
// happens to share a database handle.
func (e *Engine) DeleteMemory(ctx context.Context, id string) error {
	if err := e.Vectors.DeleteByMemoryID(ctx, id); err != nil && err != vectorstore.ErrNotFound {
		return fmt.Errorf("delete memory vector: %w", err)
	}
	if err := e.Store.DeleteMemory(ctx, id); err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	e.Assembler.ResetContextCache()
	return nil
}

// GetMemory fetches a single memory by id, touching its accessedAt
// timestamp since a read is the spec's definition of access (spec §3
// "accessedAt").
func (e *Engine) GetMemory(ctx context.Context, id string) (*storage.Memory, error) {
	mem, err := e.Store.GetMemory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	_ = e.Store.TouchMemory(ctx, id, now())
	return mem, nil
}

// ListMemories lists memories matching filter.
func (e *Engine) ListMemories(ctx context.Context, filter storage.ListMemoriesFilter) ([]*storage.Memory, error) {
	mems, err := e.Store.ListMemories(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	return mems, nil
}

// embedAndIndexMemory computes mem's embedding and upserts it into the
// vector store, recording the resulting vector id back onto the memory row.
func (e *Engine) embedAndIndexMemory(ctx context.Context, mem *storage.Memory) error {
	if e.Embedder == nil {
		return nil
	}
	vec, err := e.Embedder.EmbedQuery(ctx, mem.Title+"\n"+mem.Content)
	if err != nil {
		return err
	}
	vectorID := "memory:" + mem.ID
	if err := e.Vectors.Upsert(ctx, vectorstore.Record{
		ID:         vectorID,
		MemoryID:   mem.ID,
		Kind:       storage.VectorKindMemory,
		Title:      mem.Title,
		Tags:       mem.Tags,
		Related:    mem.RelatedFiles,
		Importance: mem.Importance,
		Vector:     vec,
	}); err != nil {
		return err
	}
	mem.QdrantID = vectorID
	return e.Store.SetMemoryQdrantID(ctx, mem.ID, vectorID)
}

// runDetectors evaluates both relation detectors for mem and records every
// proposal under the engine's configured storage mode (spec §4.8).
func (e *Engine) runDetectors(ctx context.Context, mem *storage.Memory) error {
	proposals, err := e.MemoryDetector.Detect(ctx, mem, 0)
	if err != nil {
		return fmt.Errorf("memory-relation detection: %w", err)
	}
	if _, err := e.MemoryDetector.Apply(ctx, mem.ID, proposals, e.storageMode, now()); err != nil {
		return fmt.Errorf("apply memory-relation proposals: %w", err)
	}

	crossProposals, err := e.CrossLayerDetector.Detect(ctx, mem)
	if err != nil {
		return fmt.Errorf("cross-layer detection: %w", err)
	}
	if _, err := e.CrossLayerDetector.Apply(ctx, mem.ID, crossProposals, e.storageMode, now()); err != nil {
		return fmt.Errorf("apply cross-layer proposals: %w", err)
	}
	return nil
}
