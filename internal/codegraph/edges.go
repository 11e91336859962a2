package codegraph

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rcae/rcae/internal/storage"
	"github.com/rcae/rcae/pkg/treesitter"
)

// importPatterns gives each language a best-effort regex for local/relative
// import targets. Only project-relative targets are resolved to an edge,
// since this is the fallback structural parser path (spec §4.2 step 3b,
// "language-specific structural parsing for non-TS ecosystems; produce
// nodes with signatures, best-effort edges") — external package imports
// have no corresponding CodeNode to point at.
var importPatterns = map[treesitter.Language]*regexp.Regexp{
	treesitter.LanguageGo:         regexp.MustCompile(`(?m)^\s*"([./][^"]+)"`),
	treesitter.LanguageTypeScript: regexp.MustCompile(`(?m)\bfrom\s+['"](\.[^'"]+)['"]`),
	treesitter.LanguageJavaScript: regexp.MustCompile(`(?m)\bfrom\s+['"](\.[^'"]+)['"]`),
	treesitter.LanguagePython:     regexp.MustCompile(`(?m)^\s*from\s+(\.[\w.]*)\s+import`),
	treesitter.LanguageRust:       regexp.MustCompile(`(?m)^\s*use\s+(crate|self|super)::([\w:]+)`),
}

// ExtractImportEdges returns best-effort "imports" edges from a file's
// module node to the module node of any locally-resolvable import target.
// Unresolvable (external/library) imports are silently dropped, since the
// code graph only has nodes for files inside the project.
func ExtractImportEdges(lang treesitter.Language, relPath string, content []byte, knownModules map[string]string) []*storage.CodeEdge {
	pattern, ok := importPatterns[lang]
	if !ok {
		return nil
	}
	fromID, ok := knownModules[relPath]
	if !ok {
		return nil
	}

	dir := filepath.Dir(relPath)
	var edges []*storage.CodeEdge
	seen := map[string]bool{}
	for _, m := range pattern.FindAllStringSubmatch(string(content), -1) {
		target := m[len(m)-1]
		target = strings.TrimPrefix(target, "./")
		candidate := filepath.ToSlash(filepath.Join(dir, target))
		toID, ok := resolveModule(candidate, knownModules)
		if !ok || toID == fromID || seen[toID] {
			continue
		}
		seen[toID] = true
		edges = append(edges, &storage.CodeEdge{FromNode: fromID, ToNode: toID, EdgeType: "imports"})
	}
	return edges
}

// resolveModule tries candidate and a handful of common source-extension
// suffixes (since import specifiers usually omit the extension) against the
// known module-node index.
func resolveModule(candidate string, knownModules map[string]string) (string, bool) {
	if id, ok := knownModules[candidate]; ok {
		return id, true
	}
	for _, ext := range []string{".go", ".ts", ".tsx", ".js", ".jsx", ".py", ".rs"} {
		if id, ok := knownModules[candidate+ext]; ok {
			return id, true
		}
		if id, ok := knownModules[filepath.ToSlash(filepath.Join(candidate, "index"+ext))]; ok {
			return id, true
		}
	}
	return "", false
}

// wordRef reports whether name appears in text as a whole identifier, not as
// a substring of a longer identifier.
func wordRef(text, name string) bool {
	if name == "" || len(name) < 2 {
		return false
	}
	idx := 0
	for {
		i := strings.Index(text[idx:], name)
		if i < 0 {
			return false
		}
		pos := idx + i
		before := byte(' ')
		if pos > 0 {
			before = text[pos-1]
		}
		after := byte(' ')
		if end := pos + len(name); end < len(text) {
			after = text[end]
		}
		if !isIdentChar(before) && !isIdentChar(after) {
			return true
		}
		idx = pos + len(name)
		if idx >= len(text) {
			return false
		}
	}
}

func isIdentChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// ExtractReferenceEdges adds a best-effort "references" edge between two
// symbols extracted from the same file when one symbol's signature mentions
// the other's name as a whole identifier. This is deliberately conservative
// (same-file only) since it has no type information to disambiguate
// shadowed names across files.
func ExtractReferenceEdges(nodes []*storage.CodeNode) []*storage.CodeEdge {
	var edges []*storage.CodeEdge
	for _, from := range nodes {
		if from.Type == "module" {
			continue
		}
		haystack := from.Signature + "\n" + from.Summary
		for _, to := range nodes {
			if to.ID == from.ID || to.Type == "module" {
				continue
			}
			if wordRef(haystack, to.Name) {
				edges = append(edges, &storage.CodeEdge{FromNode: from.ID, ToNode: to.ID, EdgeType: "references"})
			}
		}
	}
	return edges
}
