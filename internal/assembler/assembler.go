// Package assembler implements the Context Assembler (spec §4.7): it fans
// out to every retrieval surface in parallel, blends and budget-packs the
// results, and renders a token-bounded context string alongside a
// deterministic evidence trail. Grounded on the teacher's query-orchestration
// style in pkg/mcp_tools (which composes multiple store reads into one tool
// response) generalized from "one SurrealDB query plus formatting" into
// "four concurrent candidate sources plus greedy budget packing", and on
// pkg/concpool (Design Notes: "the Context Assembler's parallel candidate
// fetch") for the fan-out itself.
package assembler

import (
	"context"
	"fmt"

	"github.com/rcae/rcae/internal/retriever"
	"github.com/rcae/rcae/internal/storage"
	"github.com/rcae/rcae/internal/vectorstore"
	"github.com/rcae/rcae/pkg/capability"
	"github.com/rcae/rcae/pkg/chunk"
)

// Assembler wires the store, vector index, embedding capability, and hybrid
// retriever every assembly pass needs.
type Assembler struct {
	store     *storage.Store
	vectors   vectorstore.Store
	embedder  capability.Embedder
	retriever *retriever.Retriever
	tokenizer *chunk.Tokenizer
	cache     *contextCache
}

// NewAssembler wires an Assembler over already-open collaborators.
func NewAssembler(store *storage.Store, vectors vectorstore.Store, embedder capability.Embedder, ret *retriever.Retriever) *Assembler {
	return &Assembler{
		store:     store,
		vectors:   vectors,
		embedder:  embedder,
		retriever: ret,
		tokenizer: chunk.NewTokenizer(),
		cache:     newContextCache(),
	}
}

// Assemble runs the full context-assembly pipeline (spec §4.7 steps 1-5):
// embed the query once, fetch candidates from every source in parallel,
// score-blend and budget-pack them, and render the chosen template. Results
// are cached per (queryHash, budget, template, flags) until any write
// invalidates the snapshot (step 6).
func (a *Assembler) Assemble(ctx context.Context, opts AssembleOptions) (*AssembleResult, error) {
	opts = opts.withDefaults()

	key, err := a.cacheKey(ctx, opts)
	if err != nil {
		return nil, err
	}
	if cached, ok := a.cache.get(key); ok {
		return cached, nil
	}

	queryVec, err := a.embedder.EmbedQuery(ctx, opts.Query)
	if err != nil {
		return nil, fmt.Errorf("assembler: embed query: %w", &capability.EmbeddingError{Provider: "query", Cause: err})
	}

	candidates, err := a.fetchCandidates(ctx, opts, queryVec)
	if err != nil {
		return nil, err
	}

	scored := a.scoreBlend(candidates, opts)
	packed, evidence := packBudget(scored, opts.Budget, opts.SectionFractions(), opts.Query, a.tokenizer, opts.Template)
	text := render(packed, opts.Template)

	result := &AssembleResult{Context: text, Evidence: evidence}
	a.cache.put(key, result)
	return result, nil
}

// ResetContextCache drops every cached assembly result (spec §4.7 step 6:
// "resetContextCache() is an exposed imperative").
func (a *Assembler) ResetContextCache() {
	a.cache.reset()
}
