package retriever

import (
	"context"
	"sort"

	"github.com/rcae/rcae/internal/storage"
	"github.com/rcae/rcae/internal/vectorstore"
)

// LocalSearchOptions configures LocalSearch (spec §4.6 "Local
// (entity-centric)").
type LocalSearchOptions struct {
	SeedCount     int     // vector-search breadth before lexical blending, default 20
	ScoreFloor    float64 // seeds below this combined score are rejected, default 0.15
	MinEdgeWeight int     // BFS only follows relationships at/above this strength, default 3
	MaxDepth      int     // BFS depth bound, default 2
}

func (o LocalSearchOptions) seedCount() int {
	if o.SeedCount <= 0 {
		return 20
	}
	return o.SeedCount
}

func (o LocalSearchOptions) scoreFloor() float64 {
	if o.ScoreFloor <= 0 {
		return 0.15
	}
	return o.ScoreFloor
}

func (o LocalSearchOptions) minEdgeWeight() int {
	if o.MinEdgeWeight <= 0 {
		return 3
	}
	return o.MinEdgeWeight
}

func (o LocalSearchOptions) maxDepth() int {
	if o.MaxDepth <= 0 {
		return 2
	}
	return o.MaxDepth
}

// LocalSearchResult is the full output of one local search: every visited
// entity with its score/depth, the relationships traversed while expanding
// from the seeds, and the number of candidate entities the BFS considered.
type LocalSearchResult struct {
	Entities      []ScoredEntity
	Relationships []*storage.Relationship
	TotalExpanded int
}

// LocalSearch seeds from a blended vector+lexical entity match, then
// expands breadth-first over relationships at or above minEdgeWeight,
// decaying score by strength and depth (spec §4.6 steps 1-3).
func (r *Retriever) LocalSearch(ctx context.Context, query string, queryVec []float32, opts LocalSearchOptions) (*LocalSearchResult, error) {
	seeds, err := r.seedEntities(ctx, query, queryVec, opts)
	if err != nil {
		return nil, err
	}

	visited := make(map[string]ScoredEntity, len(seeds))
	for _, s := range seeds {
		visited[s.Entity.ID] = s
	}

	edgeSeen := map[string]bool{}
	var traversed []*storage.Relationship
	expanded := len(seeds)

	frontier := make([]ScoredEntity, len(seeds))
	copy(frontier, seeds)

	for depth := 1; depth <= opts.maxDepth() && len(frontier) > 0; depth++ {
		if deadlineExceeded(ctx) {
			return nil, ctx.Err()
		}
		var nextFrontier []ScoredEntity
		for _, cur := range frontier {
			rels, err := r.store.RelationshipsForEntity(ctx, cur.Entity.ID)
			if err != nil {
				return nil, err
			}
			for _, rel := range rels {
				if rel.Strength < opts.minEdgeWeight() {
					continue
				}
				if !edgeSeen[rel.ID] {
					edgeSeen[rel.ID] = true
					traversed = append(traversed, rel)
				}

				neighborID := rel.TargetEntityID
				if neighborID == cur.Entity.ID {
					neighborID = rel.SourceEntityID
				}
				if _, already := visited[neighborID]; already {
					continue
				}
				neighbor, err := r.store.GetEntity(ctx, neighborID)
				if err != nil {
					continue
				}
				score := cur.Score * (float64(rel.Strength) / 10) * pow(0.8, depth)
				scored := ScoredEntity{Entity: neighbor, Score: score, Depth: depth}
				visited[neighborID] = scored
				nextFrontier = append(nextFrontier, scored)
				expanded++
			}
		}
		frontier = nextFrontier
	}

	out := make([]ScoredEntity, 0, len(visited))
	for _, v := range visited {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Entity.ID < out[j].Entity.ID
	})

	return &LocalSearchResult{Entities: out, Relationships: traversed, TotalExpanded: expanded}, nil
}

// seedEntities vector-searches the entity index and blends it with lexical
// scoring plus mention-count/confidence micro-boosts (spec §4.6 step 1).
func (r *Retriever) seedEntities(ctx context.Context, query string, queryVec []float32, opts LocalSearchOptions) ([]ScoredEntity, error) {
	hits, err := r.vectors.Search(ctx, queryVec, opts.seedCount(), vectorstore.Filter{Kind: "graphrag_entity"})
	if err != nil {
		return nil, err
	}

	var seeds []ScoredEntity
	for _, h := range hits {
		entityID := entityIDFromVectorID(h.Record.ID)
		entity, err := r.store.GetEntity(ctx, entityID)
		if err != nil {
			continue
		}

		lexical := lexicalScore(query, entity.CanonicalName+" "+entity.Description)
		combined := 0.72*h.Score + 0.28*lexical

		boost := 1.0
		if entity.MentionCount > 1 {
			boost += 0.02 * float64(min(entity.MentionCount, 10))
		}
		boost += 0.1 * entity.ExtractionConfidence
		combined *= boost
		if combined > 1 {
			combined = 1
		}

		if combined < opts.scoreFloor() {
			continue
		}
		seeds = append(seeds, ScoredEntity{Entity: entity, Score: combined, Depth: 0})
	}

	sort.Slice(seeds, func(i, j int) bool { return seeds[i].Score > seeds[j].Score })
	return seeds, nil
}

func pow(base float64, exp int) float64 {
	out := 1.0
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}
