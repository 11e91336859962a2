package retriever

import "sort"

// RankedItem is one source's contribution to a reciprocal-rank-fusion pass:
// an identifier plus its rank (1-based, best first) within that source.
type RankedItem struct {
	ID     string
	Rank   int
	Source string
}

// FusedItem is one id after fusion, carrying its combined RRF score and the
// best (lowest) rank it achieved across all sources that mentioned it.
type FusedItem struct {
	ID       string
	Score    float64
	BestRank int
	Sources  []string
}

const rrfRankBias = 60

// ReciprocalRankFusion fuses ranked candidate lists from multiple sources
// using RRF with rank bias k=60 and per-source weights (spec §4.6: "Fusion
// at the context layer: candidate file lists... are fused by reciprocal
// rank fusion with rank bias k=60 and per-source weights"). Duplicate ids
// collapse to their best rank across all the lists that mention them. The
// result is sorted by descending fused score and truncated to topK.
func ReciprocalRankFusion(lists map[string][]RankedItem, weights map[string]float64, topK int) []FusedItem {
	scores := make(map[string]float64)
	bestRank := make(map[string]int)
	sources := make(map[string][]string)

	for source, items := range lists {
		weight := weights[source]
		if weight <= 0 {
			weight = 1
		}
		for _, item := range items {
			rank := item.Rank
			if rank <= 0 {
				rank = 1
			}
			scores[item.ID] += weight / float64(rrfRankBias+rank)
			if prev, ok := bestRank[item.ID]; !ok || rank < prev {
				bestRank[item.ID] = rank
			}
			sources[item.ID] = append(sources[item.ID], source)
		}
	}

	out := make([]FusedItem, 0, len(scores))
	for id, score := range scores {
		out = append(out, FusedItem{ID: id, Score: score, BestRank: bestRank[id], Sources: sources[id]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})

	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}
