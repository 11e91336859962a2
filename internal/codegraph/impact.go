package codegraph

import (
	"context"
	"fmt"

	"github.com/rcae/rcae/internal/storage"
)

// Queries wraps a Store for the read-side code graph tool surface (spec §6:
// getCodeNode, updateNodeSummary, getCallGraph, findImplementations,
// getDependencyTree, analyzeImpact, summarizeCode, getUnsummarized,
// batchUpdateSummaries) supplemented per SPEC_FULL.md from
// original_source/'s analyzeImpact design (direct vs transitive impact).
type Queries struct {
	store *storage.Store
}

// NewQueries wraps store for code-graph read operations.
func NewQueries(store *storage.Store) *Queries {
	return &Queries{store: store}
}

// GetCodeNode fetches a single node by id.
func (q *Queries) GetCodeNode(ctx context.Context, id string) (*storage.CodeNode, error) {
	return q.store.GetCodeNode(ctx, id)
}

// UpdateNodeSummary overwrites a node's summary, clearing needsAiSummary —
// the write path a human-reviewed or AI-generated summary lands through.
func (q *Queries) UpdateNodeSummary(ctx context.Context, id, summary string, confidence float64) error {
	n, err := q.store.GetCodeNode(ctx, id)
	if err != nil {
		return err
	}
	n.Summary = summary
	n.SummaryConfidence = confidence
	n.NeedsAISummary = false
	return q.store.UpsertCodeNode(ctx, n, n.UpdatedAt)
}

// GetUnsummarized lists nodes flagged needsAiSummary, for a deferred
// AI-summarization batch pass.
func (q *Queries) GetUnsummarized(ctx context.Context, limit int) ([]*storage.CodeNode, error) {
	return q.store.ListCodeNodesNeedingSummary(ctx, limit)
}

// BatchUpdateSummaries applies a batch of (id, summary) pairs in one pass,
// skipping and recording failures rather than aborting, per spec §7's
// "recoverable errors... are logged and skipped."
func (q *Queries) BatchUpdateSummaries(ctx context.Context, updates map[string]string) (int, []error) {
	var errs []error
	applied := 0
	for id, summary := range updates {
		if err := q.UpdateNodeSummary(ctx, id, summary, 0.9); err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", id, err))
			continue
		}
		applied++
	}
	return applied, errs
}

// CallGraphEntry is one hop in a call-graph walk.
type CallGraphEntry struct {
	Node  *storage.CodeNode
	Depth int
}

// GetCallGraph walks "calls" and "references" edges outward from nodeID up
// to maxDepth, returning every reached node with its hop distance.
func (q *Queries) GetCallGraph(ctx context.Context, nodeID string, maxDepth int) ([]CallGraphEntry, error) {
	return q.walkEdges(ctx, nodeID, maxDepth, q.store.EdgesFrom, map[string]bool{"calls": true, "references": true})
}

// FindImplementations returns nodes with an "implements" or "extends" edge
// pointing at nodeID (i.e. nodeID's implementors/subtypes).
func (q *Queries) FindImplementations(ctx context.Context, nodeID string) ([]*storage.CodeNode, error) {
	edges, err := q.store.EdgesTo(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	var out []*storage.CodeNode
	for _, e := range edges {
		if e.EdgeType != "implements" && e.EdgeType != "extends" {
			continue
		}
		n, err := q.store.GetCodeNode(ctx, e.FromNode)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// GetDependencyTree walks "imports" edges outward from nodeID up to
// maxDepth, the module-level analogue of GetCallGraph.
func (q *Queries) GetDependencyTree(ctx context.Context, nodeID string, maxDepth int) ([]CallGraphEntry, error) {
	return q.walkEdges(ctx, nodeID, maxDepth, q.store.EdgesFrom, map[string]bool{"imports": true})
}

func (q *Queries) walkEdges(ctx context.Context, start string, maxDepth int, next func(context.Context, string) ([]*storage.CodeEdge, error), allow map[string]bool) ([]CallGraphEntry, error) {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	visited := map[string]bool{start: true}
	frontier := []string{start}
	var out []CallGraphEntry

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var nextFrontier []string
		for _, id := range frontier {
			edges, err := next(ctx, id)
			if err != nil {
				return out, err
			}
			for _, e := range edges {
				if !allow[e.EdgeType] {
					continue
				}
				target := e.ToNode
				if target == id {
					target = e.FromNode
				}
				if visited[target] {
					continue
				}
				visited[target] = true
				n, err := q.store.GetCodeNode(ctx, target)
				if err != nil {
					continue
				}
				out = append(out, CallGraphEntry{Node: n, Depth: depth})
				nextFrontier = append(nextFrontier, target)
			}
		}
		frontier = nextFrontier
	}
	return out, nil
}

// ImpactReport distinguishes direct from transitive impact, per
// SPEC_FULL.md's supplemented analyzeImpact feature grounded on
// original_source/.
type ImpactReport struct {
	Node               *storage.CodeNode
	DirectImpact       []*storage.CodeNode // immediate callers/importers
	TransitiveImpact   []CallGraphEntry    // everything reachable beyond depth 1
	RelatedMemoryCount int                 // memories documenting this node via cross-layer relations
}

// AnalyzeImpact walks the reverse edge set of nodeID (who calls/imports it)
// up to maxDepth, splitting direct (depth 1) from transitive (depth > 1)
// impact, and reports how many memories already document the node.
func (q *Queries) AnalyzeImpact(ctx context.Context, nodeID string, maxDepth int) (*ImpactReport, error) {
	node, err := q.store.GetCodeNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	all, err := q.walkEdges(ctx, nodeID, maxDepth, q.store.EdgesTo, map[string]bool{"calls": true, "imports": true, "references": true, "implements": true, "extends": true})
	if err != nil {
		return nil, err
	}

	report := &ImpactReport{Node: node}
	for _, entry := range all {
		if entry.Depth == 1 {
			report.DirectImpact = append(report.DirectImpact, entry.Node)
		} else {
			report.TransitiveImpact = append(report.TransitiveImpact, entry)
		}
	}

	relations, err := q.store.CrossLayerRelationsForCodeNode(ctx, nodeID)
	if err == nil {
		report.RelatedMemoryCount = len(relations)
	}
	return report, nil
}
