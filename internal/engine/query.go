package engine

import (
	"context"
	"fmt"

	"github.com/rcae/rcae/internal/assembler"
	"github.com/rcae/rcae/internal/retriever"
)

// SearchMode selects a Hybrid Retriever mode for GraphragSearch (spec §4.6:
// "local | global | drift").
type SearchMode string

const (
	SearchModeLocal  SearchMode = "local"
	SearchModeGlobal SearchMode = "global"
	SearchModeDrift  SearchMode = "drift"
)

// GraphragSearchOptions configures GraphragSearch. Only the fields for the
// selected Mode are read.
type GraphragSearchOptions struct {
	Mode  SearchMode
	Query string
	Local retriever.LocalSearchOptions
	Global retriever.GlobalSearchOptions
	Drift retriever.DriftSearchOptions
}

// GraphragSearchResult is a mode-tagged union of the three retriever result
// shapes, letting the tool surface return one value regardless of mode.
type GraphragSearchResult struct {
	Mode   SearchMode
	Local  *retriever.LocalSearchResult
	Global *retriever.GlobalSearchResult
	Drift  *retriever.DriftSearchResult
}

// GraphragSearch embeds the query once and dispatches to the requested
// retriever mode (spec §4.6 "graphragSearch(query, mode, options)").
func (e *Engine) GraphragSearch(ctx context.Context, opts GraphragSearchOptions) (*GraphragSearchResult, error) {
	var queryVec []float32
	if e.Embedder != nil {
		vec, err := e.Embedder.EmbedQuery(ctx, opts.Query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		queryVec = vec
	}

	switch opts.Mode {
	case SearchModeGlobal:
		res, err := e.Retriever.GlobalSearch(ctx, queryVec, opts.Global)
		if err != nil {
			return nil, fmt.Errorf("global search: %w", err)
		}
		return &GraphragSearchResult{Mode: SearchModeGlobal, Global: res}, nil
	case SearchModeDrift:
		res, err := e.Retriever.DriftSearch(ctx, opts.Query, queryVec, opts.Drift)
		if err != nil {
			return nil, fmt.Errorf("drift search: %w", err)
		}
		return &GraphragSearchResult{Mode: SearchModeDrift, Drift: res}, nil
	default:
		res, err := e.Retriever.LocalSearch(ctx, opts.Query, queryVec, opts.Local)
		if err != nil {
			return nil, fmt.Errorf("local search: %w", err)
		}
		return &GraphragSearchResult{Mode: SearchModeLocal, Local: res}, nil
	}
}

// Query assembles a token-bounded context block for a free-form question
// (spec §4.7 "assemble(query, options)"), the engine's thin pass-through to
// the Context Assembler.
func (e *Engine) Query(ctx context.Context, opts assembler.AssembleOptions) (*assembler.AssembleResult, error) {
	result, err := e.Assembler.Assemble(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("assemble context: %w", err)
	}
	return result, nil
}
