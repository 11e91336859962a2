// Package scip adapts an external compiler-accurate indexer's JSON
// occurrence stream into code nodes (spec §4.2 step 3, "preferred: invoke an
// external compiler-accurate indexer that yields a document/symbol graph").
// It digs fields out of the indexer's JSON with tidwall/gjson rather than
// binding a full schema, matching the teacher's "quick JSON digging" idiom
// used in its SurrealDB query helpers (see DESIGN.md).
package scip

import (
	"context"
	"os/exec"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/rcae/rcae/internal/storage"
)

// Occurrence is one symbol occurrence surfaced by the external indexer,
// dug out of its JSON dump. Only the definition occurrences feed CodeNode
// creation; reference occurrences would feed CodeEdge creation in a fuller
// SCIP consumer, but this adapter focuses on the node side since no SCIP
// binary is bundled with this engine — Occurrences degrades to "indexer
// absent" (empty, nil) whenever the external tool can't be found or run,
// letting Builder fall through to the tree-sitter fallback transparently.
type Occurrence struct {
	Symbol     string
	Kind       string // function | class | interface | type
	Name       string
	StartLine  int
	EndLine    int
	Signature  string
	DocComment string
}

// Adapter invokes an external compiler-accurate indexer binary (e.g. a
// language-specific "scip-<lang> index" command) over a project root and
// parses its JSON occurrence dump. When no such binary is configured or
// discoverable on PATH, Occurrences returns (nil, nil) rather than an
// error, so callers treat "indexer absent" the same as "indexer declined"
// per spec §4.2's "Two strategies coexist" without treating it as fatal.
type Adapter struct {
	root   string
	binary string // resolved indexer binary name, empty if none found
}

// NewAdapter looks for a "scip-index" binary on PATH; if absent, the
// returned Adapter's Occurrences always yields (nil, nil), causing Builder
// to use the tree-sitter fallback for every file.
func NewAdapter(root string) *Adapter {
	bin, err := exec.LookPath("scip-index")
	if err != nil {
		return &Adapter{root: root}
	}
	return &Adapter{root: root, binary: bin}
}

// Occurrences runs the configured indexer over a single file (relative to
// the adapter's root) and returns its parsed occurrences.
func (a *Adapter) Occurrences(ctx context.Context, relPath string) ([]Occurrence, error) {
	if a == nil || a.binary == "" {
		return nil, nil
	}
	abs := filepath.Join(a.root, relPath)
	cmd := exec.CommandContext(ctx, a.binary, "--format=json", abs)
	out, err := cmd.Output()
	if err != nil {
		return nil, nil // degrade silently; tree-sitter fallback takes over
	}
	return parseOccurrences(out), nil
}

// parseOccurrences digs the occurrence array out of the indexer's JSON
// using gjson paths rather than a bound struct, since different indexer
// versions vary their envelope shape more than their occurrence shape.
func parseOccurrences(doc []byte) []Occurrence {
	var out []Occurrence
	gjson.GetBytes(doc, "occurrences").ForEach(func(_, occ gjson.Result) bool {
		out = append(out, Occurrence{
			Symbol:     occ.Get("symbol").String(),
			Kind:       occ.Get("symbol_kind").String(),
			Name:       occ.Get("display_name").String(),
			StartLine:  int(occ.Get("range.start_line").Int()),
			EndLine:    int(occ.Get("range.end_line").Int()),
			Signature:  occ.Get("signature_documentation.text").String(),
			DocComment: occ.Get("documentation.0").String(),
		})
		return true
	})
	return out
}

// ToCodeNodes maps a file's occurrences into code nodes, following spec
// §4.2 step 3's "map its occurrences into nodes (function/class/interface/
// type)".
func ToCodeNodes(relPath string, occurrences []Occurrence) []*storage.CodeNode {
	nodes := make([]*storage.CodeNode, 0, len(occurrences))
	for _, occ := range occurrences {
		if occ.Name == "" {
			continue
		}
		kind := mapOccurrenceKind(occ.Kind)
		start, end := occ.StartLine, occ.EndLine
		nodes = append(nodes, &storage.CodeNode{
			ID:        relPath + ":" + kind + ":" + occ.Name,
			Type:      kind,
			Name:      occ.Name,
			FilePath:  relPath,
			StartLine: &start,
			EndLine:   &end,
			Signature: occ.Signature,
			Summary:   occ.DocComment,
			Metadata:  map[string]any{"scip_symbol": occ.Symbol},
		})
	}
	return nodes
}

func mapOccurrenceKind(k string) string {
	switch k {
	case "Class", "Struct", "Enum":
		return "class"
	case "Interface", "Trait":
		return "interface"
	case "Type", "TypeAlias":
		return "type"
	case "Module", "Namespace", "Package":
		return "module"
	default:
		return "function"
	}
}
