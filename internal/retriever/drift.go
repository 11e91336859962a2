package retriever

import (
	"context"
	"sort"
	"strings"
)

// DriftSearchOptions configures DriftSearch (spec §4.6 "Drift (iterative)").
type DriftSearchOptions struct {
	Local                LocalSearchOptions
	MaxIterations        int
	ConvergenceThreshold float64 // cosine similarity floor to stop early, default 0.9
	TopKForHypothesis    int     // how many top entities feed the next hypothesis, default 5
}

func (o DriftSearchOptions) maxIterations() int {
	if o.MaxIterations <= 0 {
		return 3
	}
	return o.MaxIterations
}

func (o DriftSearchOptions) convergenceThreshold() float64 {
	if o.ConvergenceThreshold <= 0 {
		return 0.9
	}
	return o.ConvergenceThreshold
}

func (o DriftSearchOptions) topKForHypothesis() int {
	if o.TopKForHypothesis <= 0 {
		return 5
	}
	return o.TopKForHypothesis
}

// DriftSearchResult is the final merged local-search result after
// iterative refinement, plus the number of iterations actually run.
type DriftSearchResult struct {
	*LocalSearchResult
	Iterations int
	Converged  bool
}

// DriftSearch seeds a hypothesis with one local search, then iteratively
// re-embeds and re-searches the evolving hypothesis, merging entities
// (keeping the higher score on conflicts) until consecutive hypothesis
// embeddings converge or maxIterations is reached (spec §4.6 "Drift").
func (r *Retriever) DriftSearch(ctx context.Context, query string, queryVec []float32, opts DriftSearchOptions) (*DriftSearchResult, error) {
	merged, err := r.LocalSearch(ctx, query, queryVec, opts.Local)
	if err != nil {
		return nil, err
	}

	hypothesisVec := queryVec
	relSeen := map[string]bool{}
	for _, rel := range merged.Relationships {
		relSeen[rel.ID] = true
	}

	iterations := 0
	converged := false

	for i := 0; i < opts.maxIterations(); i++ {
		if deadlineExceeded(ctx) {
			return nil, ctx.Err()
		}
		iterations++

		hypothesis := composeHypothesis(merged, opts.topKForHypothesis())
		nextVec, err := r.embedder.EmbedQuery(ctx, hypothesis)
		if err != nil {
			break
		}

		sim := cosineSimilarity(hypothesisVec, nextVec)
		hypothesisVec = nextVec
		if sim >= opts.convergenceThreshold() {
			converged = true
			break
		}

		round, err := r.LocalSearch(ctx, hypothesis, nextVec, opts.Local)
		if err != nil {
			return nil, err
		}
		merged = mergeLocalResults(merged, round, relSeen)
	}

	return &DriftSearchResult{LocalSearchResult: merged, Iterations: iterations, Converged: converged}, nil
}

// composeHypothesis builds the text re-embedded each drift iteration from
// the top-scoring entities found so far.
func composeHypothesis(result *LocalSearchResult, topK int) string {
	var parts []string
	for i, e := range result.Entities {
		if i >= topK {
			break
		}
		parts = append(parts, e.Entity.CanonicalName+": "+e.Entity.Description)
	}
	return strings.Join(parts, "\n")
}

// mergeLocalResults merges two local-search results, keeping the higher
// score for any entity present in both (spec §4.6: "merge entities,
// keeping higher scores").
func mergeLocalResults(a, b *LocalSearchResult, relSeen map[string]bool) *LocalSearchResult {
	byID := make(map[string]ScoredEntity, len(a.Entities)+len(b.Entities))
	for _, e := range a.Entities {
		byID[e.Entity.ID] = e
	}
	for _, e := range b.Entities {
		if existing, ok := byID[e.Entity.ID]; !ok || e.Score > existing.Score {
			byID[e.Entity.ID] = e
		}
	}

	out := &LocalSearchResult{Relationships: a.Relationships, TotalExpanded: a.TotalExpanded + b.TotalExpanded}
	for _, rel := range b.Relationships {
		if !relSeen[rel.ID] {
			relSeen[rel.ID] = true
			out.Relationships = append(out.Relationships, rel)
		}
	}
	for _, e := range byID {
		out.Entities = append(out.Entities, e)
	}
	sort.Slice(out.Entities, func(i, j int) bool {
		if out.Entities[i].Score != out.Entities[j].Score {
			return out.Entities[i].Score > out.Entities[j].Score
		}
		return out.Entities[i].Entity.ID < out.Entities[j].Entity.ID
	})
	return out
}
