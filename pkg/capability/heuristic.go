package capability

import (
	"context"
	"regexp"
	"strings"
)

// capitalizedPhrase matches runs of Title-Case words, e.g. "Postgres ACID
// Compliance" — the same class of signal the lightrag-style reference
// implementations in the corpus use when no LLM extraction is available.
var capitalizedPhrase = regexp.MustCompile(`\b([A-Z][a-zA-Z0-9]*(?:\s+[A-Z][a-zA-Z0-9]*){0,3})\b`)

// quotedPhrase matches `backtick`-quoted identifiers, common for code symbols
// and config keys mentioned in memory content; double-quoted text is not
// matched.
var quotedPhrase = regexp.MustCompile("`([^`]{2,40})`")

var stopWords = map[string]bool{
	"The": true, "This": true, "That": true, "These": true, "Those": true,
	"A": true, "An": true, "It": true, "We": true, "I": true, "They": true,
	"But": true, "And": true, "Or": true, "So": true, "If": true, "When": true,
}

// HeuristicExtractor implements Extractor without any LLM, per spec §4.5
// step 2's fallback path and §9's "never fatal" design note for extraction.
// It never returns an error.
type HeuristicExtractor struct{}

// NewHeuristicExtractor returns the always-available fallback Extractor.
func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

func (HeuristicExtractor) Extract(_ context.Context, content string) (ExtractionResult, error) {
	names := map[string]string{} // canonical name -> first mention sentence

	for _, m := range capitalizedPhrase.FindAllString(content, -1) {
		m = strings.TrimSpace(m)
		if len(strings.Fields(m)) == 1 && stopWords[m] {
			continue
		}
		if len(m) < 3 {
			continue
		}
		if _, ok := names[m]; !ok {
			names[m] = mentionSentence(content, m)
		}
	}
	for _, m := range quotedPhrase.FindAllStringSubmatch(content, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		if _, ok := names[name]; !ok {
			names[name] = mentionSentence(content, name)
		}
	}

	result := ExtractionResult{}
	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
		result.Entities = append(result.Entities, ExtractedEntity{
			CanonicalName: name,
			EntityType:    "CONCEPT",
			Description:   names[name],
			Confidence:    0.35,
			MentionText:   names[name],
		})
	}

	// Heuristic relationship inference between co-occurring entities:
	// every pair of entities found in the same piece of content gets a
	// weak, generic "related_to" edge, per spec §4.5 step 2.
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			result.Relationships = append(result.Relationships, ExtractedRelationship{
				Source:      ordered[i],
				Target:      ordered[j],
				Type:        "RELATED_TO",
				Description: "mentioned together in the same memory",
				Strength:    2,
				Confidence:  0.3,
			})
		}
	}

	return result, nil
}

func mentionSentence(content, name string) string {
	idx := strings.Index(content, name)
	if idx < 0 {
		return name
	}
	start := strings.LastIndexAny(content[:idx], ".\n")
	if start < 0 {
		start = 0
	} else {
		start++
	}
	end := idx + len(name)
	if rest := strings.IndexAny(content[end:], ".\n"); rest >= 0 {
		end += rest
	} else {
		end = len(content)
	}
	return strings.TrimSpace(content[start:end])
}
