// Package relations implements the Relation Detectors (spec §4.8):
// memory-to-memory relation proposal (shared files, temporal proximity, tag
// overlap, embedding similarity, supersedes-by-title-overlap) and
// cross-layer memory<->code-node proposal (identifier mentions, exact
// file-path matches, tag/keyword matches). Grounded on the teacher's
// surrealdb_relations.go suggestion-upsert shape (RecordMemoryRelation /
// RecordCrossLayerRelation in internal/storage already carry the
// manual/suggested/automatic storage-mode branching this package drives),
// and on original_source/'s distinction between auto-applied and
// suggested relations, which spec.md's distillation collapsed into a single
// always-applied relation.
package relations

import (
	"math"
	"regexp"
	"strings"

	"github.com/rcae/rcae/internal/storage"
)

// RuleTable maps a (sourceType, targetType) pair to the relation type the
// memory-memory detector should propose when both signals and rule agree,
// per spec §4.8 ("decision→solution ⇒ causes; pattern→architecture ⇒
// implements; etc.").
var RuleTable = map[[2]string]string{
	{"decision", "solution"}:     "causes",
	{"solution", "decision"}:     "causes",
	{"pattern", "architecture"}:  "implements",
	{"architecture", "pattern"}:  "implements",
	{"decision", "architecture"}: "informs",
	{"solution", "pattern"}:      "informs",
}

// DefaultRelationType is used when no rule-table entry matches.
const DefaultRelationType = "relates_to"

// relationTypeFor resolves the rule table, falling back to the default.
func relationTypeFor(sourceType, targetType string) string {
	if t, ok := RuleTable[[2]string{sourceType, targetType}]; ok {
		return t
	}
	return DefaultRelationType
}

// AutoApplyThreshold is the combined-confidence floor for auto-applying a
// memory-memory or cross-layer proposal under StorageModeAutomatic; below
// it, storageModeFor holds the proposal as a suggestion instead. Manual and
// suggested modes are not affected by it. Spec §4.8: "high-confidence
// proposals may auto-apply, others are stored as suggestions".
const AutoApplyThreshold = 0.85

// SupersedesTitleJaccard is the minimum title-token Jaccard overlap between
// two same-type memories (newer superseding older) for a supersedes
// candidate, per spec §4.8 ("≥ 0.7 Jaccard-title-overlap").
const SupersedesTitleJaccard = 0.7

var tokenSplit = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// tokenize lowercases and splits on non-alphanumeric runs, used by the
// title-Jaccard supersedes check.
func tokenize(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, tok := range tokenSplit.Split(strings.ToLower(s), -1) {
		if tok == "" {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

// jaccard computes the Jaccard similarity between two token sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tagSet(tags []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		out[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return out
}

func fileSet(files []string) map[string]struct{} {
	out := make(map[string]struct{}, len(files))
	for _, f := range files {
		out[f] = struct{}{}
	}
	return out
}

func hasOverlap(a, b map[string]struct{}) bool {
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}

// cosine computes cosine similarity between two equal-length vectors,
// returning 0 if either is empty or the lengths differ (callers never pass
// vectors that should legitimately mismatch, since both come from the same
// embedding capability).
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// storageModeFor picks the mode a detected signal should be written under:
// automatic configurations still hold low-confidence signals as suggestions
// rather than silently applying noise.
func storageModeFor(configured storage.StorageMode, confidence float64) storage.StorageMode {
	if configured == storage.StorageModeAutomatic && confidence < AutoApplyThreshold {
		return storage.StorageModeSuggested
	}
	return configured
}
