package assembler

import (
	"sort"
	"strings"

	"github.com/rcae/rcae/pkg/chunk"
)

// scoreBlend applies per-source weights to each candidate's relevance (spec
// §4.7 step 3: "Score-blend per source with configured weights"). Graph
// candidates arrive with their edge-count and mention-count boost
// (1 + 0.01·edges + 0.01·mentions) already applied by fetchGraphCandidates;
// memory, code and report candidates carry their raw vector-search score.
// No importance or freshness boost is applied to any candidate.
func (a *Assembler) scoreBlend(bySource map[string][]Candidate, opts AssembleOptions) map[string][]Candidate {
	out := make(map[string][]Candidate, len(bySource))
	for source, cands := range bySource {
		weight := opts.SourceWeights[source]
		if weight <= 0 {
			weight = 1
		}
		blended := make([]Candidate, len(cands))
		for i, c := range cands {
			c.Relevance *= weight
			blended[i] = c
		}
		sort.SliceStable(blended, func(i, j int) bool { return blended[i].Relevance > blended[j].Relevance })
		out[source] = blended
	}
	return out
}

// packBudget greedily packs each section's ranked candidates into its
// allocated token share, then promotes leftover budget into a second pass
// over whatever didn't fit the first time (spec §4.7 step 4). Evidence
// preserves the deterministic section-then-rank inclusion order (step 5).
//
// Each candidate's packed cost is its own Tokens plus scaffoldTokens' charge
// for the render-time overhead (§4.7 step 5's section headers and
// separators) that candidate would add, so the rendered context's token
// count never exceeds totalBudget (spec §8: "returned token count <=
// budget") even though packing only ever sees candidate text.
func packBudget(bySource map[string][]Candidate, totalBudget int, fractions map[string]float64, query string, tokenizer *chunk.Tokenizer, template Template) (map[string][]Candidate, []Evidence) {
	order := []string{sourceMemory, sourceCode, sourceGraph, sourceReport}

	included := map[string][]Candidate{}
	started := map[string]bool{}
	var evidence []Evidence
	var overflow []Candidate
	leftover := 0

	cost := func(source string, c Candidate) int {
		return c.Tokens + scaffoldTokens(tokenizer, template, source, c, started[source])
	}

	for _, source := range order {
		sectionBudget := int(float64(totalBudget) * fractions[source])
		remaining := sectionBudget

		for _, c := range bySource[source] {
			need := cost(source, c)
			if need <= remaining {
				included[source] = append(included[source], c)
				remaining -= need
				started[source] = true
				evidence = append(evidence, newEvidence(c, true, "fit within section budget", query))
			} else {
				overflow = append(overflow, c)
			}
		}
		leftover += remaining
	}

	sort.SliceStable(overflow, func(i, j int) bool { return overflow[i].Relevance > overflow[j].Relevance })
	for _, c := range overflow {
		need := cost(c.Source, c)
		if need <= leftover {
			included[c.Source] = append(included[c.Source], c)
			leftover -= need
			started[c.Source] = true
			evidence = append(evidence, newEvidence(c, true, "promoted into leftover cross-section budget", query))
		} else {
			evidence = append(evidence, newEvidence(c, false, "exceeded remaining token budget", query))
		}
	}

	return included, evidence
}

func newEvidence(c Candidate, included bool, reason, query string) Evidence {
	return Evidence{
		ID:         c.ID,
		Source:     c.Source,
		Rank:       c.Rank,
		Relevance:  c.Relevance,
		Tokens:     c.Tokens,
		Included:   included,
		Reason:     reason,
		QueryTerms: matchingQueryTerms(query, c.Text),
		Payload:    c.Payload,
	}
}

// matchingQueryTerms returns the query's words that also appear in text,
// in query order, for the evidence trail's queryTerms[] field.
func matchingQueryTerms(query, text string) []string {
	lowerText := strings.ToLower(text)
	var terms []string
	seen := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if seen[w] {
			continue
		}
		if strings.Contains(lowerText, w) {
			terms = append(terms, w)
			seen[w] = true
		}
	}
	return terms
}
