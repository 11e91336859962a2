package engine

import (
	"context"
	"fmt"

	"github.com/rcae/rcae/internal/codegraph"
	"github.com/rcae/rcae/internal/storage"
)

// GetCodeNode fetches a single code node by id (spec §6 "getCodeNode").
func (e *Engine) GetCodeNode(ctx context.Context, id string) (*storage.CodeNode, error) {
	n, err := e.CodeQueries.GetCodeNode(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get code node: %w", err)
	}
	return n, nil
}

// UpdateNodeSummary overwrites a node's summary with a caller-supplied one,
// e.g. an AI-generated replacement for a heuristic stub (spec §6
// "updateNodeSummary").
func (e *Engine) UpdateNodeSummary(ctx context.Context, id, summary string, confidence float64) error {
	if err := e.CodeQueries.UpdateNodeSummary(ctx, id, summary, confidence); err != nil {
		return fmt.Errorf("update node summary: %w", err)
	}
	e.Assembler.ResetContextCache()
	return nil
}

// GetCallGraph walks the calls/references edges reachable from a node (spec
// §6 "getCallGraph").
func (e *Engine) GetCallGraph(ctx context.Context, nodeID string, maxDepth int) ([]codegraph.CallGraphEntry, error) {
	entries, err := e.CodeQueries.GetCallGraph(ctx, nodeID, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("get call graph: %w", err)
	}
	return entries, nil
}

// FindImplementations returns every node that implements/extends nodeID
// (spec §6 "findImplementations").
func (e *Engine) FindImplementations(ctx context.Context, nodeID string) ([]*storage.CodeNode, error) {
	nodes, err := e.CodeQueries.FindImplementations(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("find implementations: %w", err)
	}
	return nodes, nil
}

// GetDependencyTree walks imports edges outward from a node (spec §6
// "getDependencyTree").
func (e *Engine) GetDependencyTree(ctx context.Context, nodeID string, maxDepth int) ([]codegraph.CallGraphEntry, error) {
	entries, err := e.CodeQueries.GetDependencyTree(ctx, nodeID, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("get dependency tree: %w", err)
	}
	return entries, nil
}

// AnalyzeImpact reports every node reachable by following callers/importers
// of nodeID, up to maxDepth (spec §6 "analyzeImpact").
func (e *Engine) AnalyzeImpact(ctx context.Context, nodeID string, maxDepth int) (*codegraph.ImpactReport, error) {
	report, err := e.CodeQueries.AnalyzeImpact(ctx, nodeID, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("analyze impact: %w", err)
	}
	return report, nil
}

// GetUnsummarized lists nodes still flagged needsAiSummary (spec §6
// "getUnsummarized").
func (e *Engine) GetUnsummarized(ctx context.Context, limit int) ([]*storage.CodeNode, error) {
	nodes, err := e.CodeQueries.GetUnsummarized(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get unsummarized: %w", err)
	}
	return nodes, nil
}

// BatchUpdateSummaries applies many AI-generated summaries at once (spec §6
// "batchUpdateSummaries"), returning how many succeeded and any per-item
// errors that were skipped rather than aborting the batch.
func (e *Engine) BatchUpdateSummaries(ctx context.Context, updates map[string]string) (int, []error) {
	n, errs := e.CodeQueries.BatchUpdateSummaries(ctx, updates)
	if n > 0 {
		e.Assembler.ResetContextCache()
	}
	return n, errs
}

// SummarizeCode recomputes a node's heuristic summary on demand — the same
// docstring/comment/signature cascade a scan runs automatically (spec §6
// "summarizeCode"), useful when a caller wants a fresh stub without
// re-scanning the whole file.
func (e *Engine) SummarizeCode(ctx context.Context, nodeID string) (*storage.CodeNode, error) {
	n, err := e.CodeQueries.GetCodeNode(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("summarize code: %w", err)
	}
	codegraph.Summarize(n)
	if err := e.CodeQueries.UpdateNodeSummary(ctx, n.ID, n.Summary, n.SummaryConfidence); err != nil {
		return nil, fmt.Errorf("summarize code: %w", err)
	}
	e.Assembler.ResetContextCache()
	return n, nil
}
