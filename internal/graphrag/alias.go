// Package graphrag builds and queries the entity/community graph (spec
// §4.5): LLM-or-heuristic extraction, alias-normalized entity merge,
// relationship strength accumulation, community clustering, and community
// report generation. Grounded on the teacher's surrealdb_entities.go (entity
// create/merge/relationship shape) rebuilt over this engine's sqlite-backed
// internal/storage rather than SurrealDB, and on pkg/capability for the
// extraction/embedding seam the teacher never had (its extraction was tied
// directly to a single provider).
package graphrag

import (
	"regexp"
	"strings"
)

var punctuation = regexp.MustCompile(`[\[\](){}<>"'` + "`" + `.,;:!?]`)
var separators = regexp.MustCompile(`[\s_\-/]+`)

// normalizeAlias lowercases, strips punctuation/brackets, and collapses
// separators to a single space, per spec §4.5 step 3's entity-merge
// normalization.
func normalizeAlias(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = punctuation.ReplaceAllString(s, "")
	s = separators.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// aliasMatch reports whether two normalized aliases should be considered
// the same entity: exact equality, or one containing the other as a
// substring (spec §4.5 step 3: "look up by exact, substring, or containment
// match").
func aliasMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// blendDescriptions folds a freshly extracted description into an existing
// entity's, per spec §4.5 step 3's "re-blend description" merge step. The
// new text is dropped if empty or already covered by the existing
// description, and appended otherwise so repeated mentions accumulate
// detail instead of the merge silently discarding it.
func blendDescriptions(existing, fresh string) string {
	fresh = strings.TrimSpace(fresh)
	if fresh == "" {
		return existing
	}
	if existing == "" {
		return fresh
	}
	if strings.Contains(strings.ToLower(existing), strings.ToLower(fresh)) {
		return existing
	}
	return existing + " " + fresh
}
