package retriever

import (
	"context"

	"github.com/rcae/rcae/internal/storage"
)

// PathSearchOptions bounds the path search between two entities.
type PathSearchOptions struct {
	MaxDepth      int // default 4
	MinEdgeWeight int // default 1, looser than local search since a path just needs to exist
}

func (o PathSearchOptions) maxDepth() int {
	if o.MaxDepth <= 0 {
		return 4
	}
	return o.MaxDepth
}

func (o PathSearchOptions) minEdgeWeight() int {
	if o.MinEdgeWeight <= 0 {
		return 1
	}
	return o.MinEdgeWeight
}

// PathSearchResult is the shortest relationship path found between two
// entities, in traversal order.
type PathSearchResult struct {
	Found         bool
	Entities      []*storage.Entity
	Relationships []*storage.Relationship
}

type pathStep struct {
	entityID string
	via      *storage.Relationship
	parent   string
}

// FindPath runs a bounded breadth-first search over relationship edges
// between two entities, the supplemented find_path feature layered over the
// same relationship-traversal primitive LocalSearch's BFS expansion uses.
func (r *Retriever) FindPath(ctx context.Context, sourceEntityID, targetEntityID string, opts PathSearchOptions) (*PathSearchResult, error) {
	if sourceEntityID == targetEntityID {
		entity, err := r.store.GetEntity(ctx, sourceEntityID)
		if err != nil {
			return nil, err
		}
		return &PathSearchResult{Found: true, Entities: []*storage.Entity{entity}}, nil
	}

	visited := map[string]pathStep{sourceEntityID: {entityID: sourceEntityID}}
	frontier := []string{sourceEntityID}

	for depth := 1; depth <= opts.maxDepth() && len(frontier) > 0; depth++ {
		if deadlineExceeded(ctx) {
			return nil, ctx.Err()
		}
		var nextFrontier []string
		for _, id := range frontier {
			rels, err := r.store.RelationshipsForEntity(ctx, id)
			if err != nil {
				return nil, err
			}
			for _, rel := range rels {
				if rel.Strength < opts.minEdgeWeight() {
					continue
				}
				neighborID := rel.TargetEntityID
				if neighborID == id {
					neighborID = rel.SourceEntityID
				}
				if _, already := visited[neighborID]; already {
					continue
				}
				visited[neighborID] = pathStep{entityID: neighborID, via: rel, parent: id}
				if neighborID == targetEntityID {
					return r.reconstructPath(ctx, visited, targetEntityID)
				}
				nextFrontier = append(nextFrontier, neighborID)
			}
		}
		frontier = nextFrontier
	}

	return &PathSearchResult{Found: false}, nil
}

func (r *Retriever) reconstructPath(ctx context.Context, visited map[string]pathStep, targetID string) (*PathSearchResult, error) {
	var entityIDs []string
	var rels []*storage.Relationship

	cur := targetID
	for {
		step := visited[cur]
		entityIDs = append([]string{cur}, entityIDs...)
		if step.via == nil {
			break
		}
		rels = append([]*storage.Relationship{step.via}, rels...)
		cur = step.parent
	}

	entities := make([]*storage.Entity, 0, len(entityIDs))
	for _, id := range entityIDs {
		entity, err := r.store.GetEntity(ctx, id)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}

	return &PathSearchResult{Found: true, Entities: entities, Relationships: rels}, nil
}
