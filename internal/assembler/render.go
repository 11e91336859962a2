package assembler

import (
	"fmt"
	"strings"

	"github.com/toon-format/toon-go"

	"github.com/rcae/rcae/pkg/chunk"
)

// sectionOrder fixes the deterministic section-then-rank rendering order
// (spec §4.7 step 5: evidence is "a stable, deterministic sequence preserving
// the inclusion order").
var sectionOrder = []string{sourceMemory, sourceCode, sourceGraph, sourceReport}

var sectionTitle = map[string]string{
	sourceMemory: "Memories",
	sourceCode:   "Code",
	sourceGraph:  "Graph",
	sourceReport: "Reports",
}

// render renders packed candidates per section into the chosen template
// (spec §4.7 step 5: "one of {default, compact, detailed} templates").
func render(packed map[string][]Candidate, template Template) string {
	switch template {
	case TemplateCompact:
		return renderCompact(packed)
	case TemplateDetailed:
		return renderDetailed(packed)
	default:
		return renderDefault(packed)
	}
}

func renderDefault(packed map[string][]Candidate) string {
	var b strings.Builder
	for _, source := range sectionOrder {
		cands := packed[source]
		if len(cands) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", sectionTitle[source])
		for _, c := range cands {
			b.WriteString(c.Text)
			b.WriteString("\n\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderDetailed(packed map[string][]Candidate) string {
	var b strings.Builder
	for _, source := range sectionOrder {
		cands := packed[source]
		if len(cands) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", sectionTitle[source])
		for _, c := range cands {
			fmt.Fprintf(&b, "### %s (rank %d, relevance %.3f, %d tokens)\n\n", c.ID, c.Rank, c.Relevance, c.Tokens)
			b.WriteString(c.Text)
			b.WriteString("\n\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderCompact uses TOON (spec: "TOON gives a real 'compact' template
// renderer", DESIGN.md) instead of hand-rolled compact JSON. Payloads are
// built as plain maps, matching the teacher's MarshalTOON(map[string]any)
// idiom rather than struct tags whose TOON field-naming isn't exercised
// anywhere in the pack.
func renderCompact(packed map[string][]Candidate) string {
	sections := map[string]any{}
	for _, source := range sectionOrder {
		cands := packed[source]
		if len(cands) == 0 {
			continue
		}
		items := make([]map[string]any, 0, len(cands))
		for _, c := range cands {
			items = append(items, map[string]any{
				"id":        c.ID,
				"rank":      c.Rank,
				"relevance": c.Relevance,
				"text":      c.Text,
			})
		}
		sections[source] = items
	}

	out, err := toon.MarshalString(sections, toon.WithLengthMarkers(true))
	if err != nil {
		return renderDefault(packed)
	}
	return out
}

// scaffoldTokens measures the render-time overhead packBudget must reserve
// against the budget so the rendered context never exceeds opts.Budget
// (spec §8's "returned token count <= budget"): the section header, charged
// once per section on its first included candidate, plus the per-candidate
// separators and (for the detailed template) metadata line that render adds
// on top of each candidate's own Tokens count.
func scaffoldTokens(tokenizer *chunk.Tokenizer, template Template, source string, c Candidate, sectionStarted bool) int {
	cost := 0
	if !sectionStarted {
		cost += tokenizer.CountTokens(fmt.Sprintf("## %s\n\n", sectionTitle[source]))
	}
	switch template {
	case TemplateDetailed:
		cost += tokenizer.CountTokens(fmt.Sprintf("### %s (rank %d, relevance %.3f, %d tokens)\n\n", c.ID, c.Rank, c.Relevance, c.Tokens))
		cost += tokenizer.CountTokens("\n\n")
	case TemplateCompact:
		cost += tokenizer.CountTokens(fmt.Sprintf("id:%s rank:%d relevance:%.3f", c.ID, c.Rank, c.Relevance))
	default:
		cost += tokenizer.CountTokens("\n\n")
	}
	return cost
}
