package codegraph

import (
	"testing"

	"github.com/rcae/rcae/pkg/treesitter"
)

func TestExtractImportEdgesResolvesLocalGoImports(t *testing.T) {
	content := []byte(`package foo

import (
	"fmt"
	"./bar"
)
`)
	known := map[string]string{
		"main.go": "mod:main.go",
		"bar.go":  "mod:bar.go",
	}

	edges := ExtractImportEdges(treesitter.LanguageGo, "main.go", content, known)
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d: %+v", len(edges), edges)
	}
	if edges[0].FromNode != "mod:main.go" || edges[0].ToNode != "mod:bar.go" {
		t.Fatalf("unexpected edge: %+v", edges[0])
	}
	if edges[0].EdgeType != "imports" {
		t.Fatalf("expected imports edge type, got %q", edges[0].EdgeType)
	}
}

func TestExtractImportEdgesDropsUnresolvable(t *testing.T) {
	content := []byte(`package foo

import "./missing"
`)
	known := map[string]string{"main.go": "mod:main.go"}

	edges := ExtractImportEdges(treesitter.LanguageGo, "main.go", content, known)
	if len(edges) != 0 {
		t.Fatalf("expected no edges for unresolvable import, got %+v", edges)
	}
}

func TestWordRefMatchesWholeIdentifierOnly(t *testing.T) {
	if !wordRef("return doThing(x)", "doThing") {
		t.Fatalf("expected whole-word match")
	}
	if wordRef("return doThingElse(x)", "doThing") {
		t.Fatalf("expected no match against substring of a longer identifier")
	}
}
