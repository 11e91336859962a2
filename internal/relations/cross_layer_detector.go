package relations

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rcae/rcae/internal/storage"
)

// CrossLayerDetector proposes memory<->code-node links via code-identifier
// references in memory content, exact file-path matches against
// relatedFiles, and tag/keyword matches against node names (spec §4.8).
type CrossLayerDetector struct {
	store *storage.Store
}

// NewCrossLayerDetector wires a CrossLayerDetector over the store.
func NewCrossLayerDetector(store *storage.Store) *CrossLayerDetector {
	return &CrossLayerDetector{store: store}
}

// identifierPattern matches word and dotted-path tokens; of these,
// extractIdentifierCandidates keeps only the ones looksLikeIdentifier
// accepts as likely symbol names rather than prose.
var identifierPattern = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*\b`)

// CrossLayerProposal is a candidate memory<->code-node link.
type CrossLayerProposal struct {
	CodeNodeID      string
	RelationType    string
	Confidence      float64
	DetectionMethod string
}

// Detect inspects mem's content and metadata against the code graph and
// returns one proposal per matched node.
func (d *CrossLayerDetector) Detect(ctx context.Context, mem *storage.Memory) ([]CrossLayerProposal, error) {
	var proposals []CrossLayerProposal
	seen := map[string]bool{}

	// (b) exact file-path matches: a memory naming a project file it
	// documents is the strongest signal available.
	for _, rf := range mem.RelatedFiles {
		clean := filepath.ToSlash(filepath.Clean(rf))
		nodes, err := d.store.ListCodeNodesByFile(ctx, clean)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			proposals = append(proposals, CrossLayerProposal{
				CodeNodeID:      n.ID,
				RelationType:    "documents",
				Confidence:      0.9,
				DetectionMethod: "file_path",
			})
		}
	}

	// (a) code-identifier references found in free-text content.
	candidates := extractIdentifierCandidates(mem.Content)
	if len(candidates) > 0 {
		nodes, err := d.store.SearchCodeNodesByNames(ctx, candidates)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			proposals = append(proposals, CrossLayerProposal{
				CodeNodeID:      n.ID,
				RelationType:    "references",
				Confidence:      0.7,
				DetectionMethod: "identifier_mention",
			})
		}
	}

	// (c) tag/keyword matches: a memory tagged with a name that happens to
	// be a known symbol is a weaker but still useful signal.
	tagCandidates := make([]string, 0, len(mem.Tags))
	for _, t := range mem.Tags {
		tagCandidates = append(tagCandidates, t)
	}
	if len(tagCandidates) > 0 {
		nodes, err := d.store.SearchCodeNodesByNames(ctx, tagCandidates)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			proposals = append(proposals, CrossLayerProposal{
				CodeNodeID:      n.ID,
				RelationType:    "tagged",
				Confidence:      0.5,
				DetectionMethod: "tag_match",
			})
		}
	}

	return proposals, nil
}

// Apply records every proposal under mode, returning the number actually
// written.
func (d *CrossLayerDetector) Apply(ctx context.Context, memoryID string, proposals []CrossLayerProposal, mode storage.StorageMode, now int64) (int, error) {
	n := 0
	for _, p := range proposals {
		effectiveMode := storageModeFor(mode, p.Confidence)
		rel, err := d.store.RecordCrossLayerRelation(ctx, &storage.CrossLayerRelation{
			MemoryID:        memoryID,
			CodeNodeID:      p.CodeNodeID,
			RelationType:    p.RelationType,
			Confidence:      p.Confidence,
			DetectionMethod: p.DetectionMethod,
		}, effectiveMode, now)
		if err != nil {
			return n, err
		}
		if rel != nil {
			n++
		}
	}
	return n, nil
}

// extractIdentifierCandidates pulls plausible code-identifier tokens out of
// free text: mixed-case, dotted or underscore-containing tokens of at least 4
// characters, which filters out common English words without requiring a
// language-specific tokenizer.
func extractIdentifierCandidates(content string) []string {
	matches := identifierPattern.FindAllString(content, -1)
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		if len(m) < 4 || seen[m] {
			continue
		}
		if !looksLikeIdentifier(m) {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// looksLikeIdentifier reports whether tok has the shape of a code symbol
// name rather than an ordinary prose word: camelCase, PascalCase,
// snake_case, or a dotted path.
func looksLikeIdentifier(tok string) bool {
	hasUpperAfterLower := false
	for i := 1; i < len(tok); i++ {
		if tok[i] >= 'A' && tok[i] <= 'Z' && tok[i-1] >= 'a' && tok[i-1] <= 'z' {
			hasUpperAfterLower = true
			break
		}
	}
	return hasUpperAfterLower || strings.Contains(tok, "_") || strings.Contains(tok, ".")
}
