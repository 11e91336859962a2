package engine

import (
	"context"
	"fmt"

	"github.com/rcae/rcae/internal/graphrag"
)

// GraphragBuild runs the GraphRAG build pipeline (spec §4.5
// "graphragBuild(options)") and resets the context cache when it produced
// any change, since a rebuilt entity/community graph can change future
// query results.
func (e *Engine) GraphragBuild(ctx context.Context, opts graphrag.BuildOptions) (*graphrag.BuildStats, error) {
	stats, err := e.GraphBuilder.Build(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("graphrag build: %w", err)
	}
	if !stats.NoOp {
		e.Assembler.ResetContextCache()
	}
	return stats, nil
}

// GraphragStatus reports a coarse summary of the entity/community graph's
// current size, used by the spec §6 `graphragStatus` tool.
type GraphragStatus struct {
	Entities       int
	Relationships  int
	Communities    int
	Reports        int
}

// GraphragStatus computes the graph summary from the store's direct row
// counts (Store.GraphCounts).
func (e *Engine) GraphragStatus(ctx context.Context) (*GraphragStatus, error) {
	counts, err := e.Store.GraphCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("graphrag status: %w", err)
	}
	return &GraphragStatus{
		Entities:      counts.Entities,
		Relationships: counts.Relationships,
		Communities:   counts.Communities,
		Reports:       counts.Reports,
	}, nil
}
