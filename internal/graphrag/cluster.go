package graphrag

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rcae/rcae/internal/storage"
)

// buildCommunities clears and rebuilds the full community hierarchy from
// the current entity/relationship graph (spec §4.5 step 6). No Go
// implementation of Leiden clustering exists among the libraries this
// project draws on, so level 0 uses a deterministic union-find
// (connected-components) partition over edges at or above the strength
// threshold — the fallback spec §4.5 explicitly allows ("a deterministic
// fallback partition by connected components is acceptable when Leiden is
// unavailable"). Higher levels connect two communities of the previous
// level when a relationship at or above the same strength threshold
// crosses between their entity sets. Level 0 has already merged along
// every such relationship, so no crossing edge remains and the hierarchy
// stops at level 0; connected components has no resolution knob to tune.
func (b *Builder) buildCommunities(ctx context.Context, opts BuildOptions) ([]*storage.Community, error) {
	entities, err := b.store.ListEntities(ctx)
	if err != nil {
		return nil, err
	}
	relationships, err := b.store.ListRelationships(ctx)
	if err != nil {
		return nil, err
	}

	entityIDs := make([]string, len(entities))
	for i, e := range entities {
		entityIDs[i] = e.ID
	}

	threshold := opts.minEdgeStrength()
	var allCommunities []*storage.Community

	level := clusterByConnectedComponents(entityIDs, relationships, threshold)
	for _, members := range level {
		allCommunities = append(allCommunities, &storage.Community{Level: 0, EntityIDs: members})
	}

	for depth := 1; depth < opts.maxLevel() && len(level) > 1; depth++ {
		nodeIDs := make([]string, len(level))
		for i := range level {
			nodeIDs[i] = fmt.Sprintf("%d", i)
		}
		crossEdges := crossCommunityEdges(level, relationships, threshold)

		nextGroups := clusterByConnectedComponents(nodeIDs, crossEdges, 0)
		if len(nextGroups) >= len(level) {
			break // no further coarsening possible
		}

		var nextLevel [][]string
		for _, nodeGroup := range nextGroups {
			var entityMembers []string
			for _, nodeID := range nodeGroup {
				var idx int
				fmt.Sscanf(nodeID, "%d", &idx)
				entityMembers = append(entityMembers, level[idx]...)
			}
			allCommunities = append(allCommunities, &storage.Community{Level: depth, EntityIDs: entityMembers})
			nextLevel = append(nextLevel, entityMembers)
		}
		level = nextLevel
	}

	if err := b.store.ReplaceCommunities(ctx, allCommunities, time.Now().Unix()); err != nil {
		return nil, err
	}
	return b.store.ListCommunities(ctx, -1)
}

// clusterByConnectedComponents partitions nodeIDs into connected
// components using union-find over relationships at or above threshold
// (0 means "any strength"), restricted to edges whose endpoints are both
// present in nodeIDs.
func clusterByConnectedComponents(nodeIDs []string, relationships []*storage.Relationship, threshold int) [][]string {
	parent := make(map[string]string, len(nodeIDs))
	present := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		parent[id] = id
		present[id] = true
	}

	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for _, r := range relationships {
		if threshold > 0 && r.Strength < threshold {
			continue
		}
		if !present[r.SourceEntityID] || !present[r.TargetEntityID] {
			continue
		}
		union(r.SourceEntityID, r.TargetEntityID)
	}

	groups := map[string][]string{}
	for _, id := range nodeIDs {
		root := find(id)
		groups[root] = append(groups[root], id)
	}

	var roots []string
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	out := make([][]string, 0, len(roots))
	for _, root := range roots {
		members := groups[root]
		sort.Strings(members)
		out = append(out, members)
	}
	return out
}

// crossCommunityEdges synthesizes a relationship list between synthetic
// index-string community-node ids, one per group in level, so the same
// union-find primitive clusters communities the way it clusters entities.
func crossCommunityEdges(level [][]string, relationships []*storage.Relationship, threshold int) []*storage.Relationship {
	memberOf := map[string]int{}
	for i, members := range level {
		for _, id := range members {
			memberOf[id] = i
		}
	}

	seen := map[[2]int]bool{}
	var edges []*storage.Relationship
	for _, r := range relationships {
		if threshold > 0 && r.Strength < threshold {
			continue
		}
		srcIdx, srcOK := memberOf[r.SourceEntityID]
		tgtIdx, tgtOK := memberOf[r.TargetEntityID]
		if !srcOK || !tgtOK || srcIdx == tgtIdx {
			continue
		}
		key := [2]int{srcIdx, tgtIdx}
		if srcIdx > tgtIdx {
			key = [2]int{tgtIdx, srcIdx}
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		edges = append(edges, &storage.Relationship{
			SourceEntityID: fmt.Sprintf("%d", srcIdx),
			TargetEntityID: fmt.Sprintf("%d", tgtIdx),
			Strength:       r.Strength,
		})
	}
	return edges
}
