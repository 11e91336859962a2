package relations

import (
	"context"
	"testing"

	"github.com/rcae/rcae/internal/storage"
)

func TestCrossLayerDetectorFilePathMatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertCodeNode(ctx, &storage.CodeNode{
		ID: "src/auth.ts:function:authenticate", Type: "function", Name: "authenticate", FilePath: "src/auth.ts",
	}, 1); err != nil {
		t.Fatalf("UpsertCodeNode() error = %v", err)
	}

	mem, _ := s.CreateMemory(ctx, storage.CreateMemoryInput{
		Title: "auth design", Content: "documents the login flow",
		RelatedFiles: []string{"src/auth.ts"}, Now: 1,
	})

	d := NewCrossLayerDetector(s)
	proposals, err := d.Detect(ctx, mem)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(proposals) != 1 || proposals[0].DetectionMethod != "file_path" {
		t.Fatalf("Detect() = %+v, want one file_path proposal", proposals)
	}
}

func TestCrossLayerDetectorIdentifierMention(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertCodeNode(ctx, &storage.CodeNode{
		ID: "src/auth.ts:function:authenticateUser", Type: "function", Name: "authenticateUser", FilePath: "src/auth.ts",
	}, 1); err != nil {
		t.Fatalf("UpsertCodeNode() error = %v", err)
	}

	mem, _ := s.CreateMemory(ctx, storage.CreateMemoryInput{
		Title: "note", Content: "remember to harden authenticateUser against timing attacks", Now: 1,
	})

	d := NewCrossLayerDetector(s)
	proposals, err := d.Detect(ctx, mem)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	found := false
	for _, p := range proposals {
		if p.DetectionMethod == "identifier_mention" {
			found = true
		}
	}
	if !found {
		t.Errorf("Detect() did not find identifier mention; got %+v", proposals)
	}
}

func TestLooksLikeIdentifier(t *testing.T) {
	cases := map[string]bool{
		"authenticateUser": true,
		"snake_case_name":  true,
		"pkg.Symbol":       true,
		"remember":         false,
		"against":          false,
	}
	for tok, want := range cases {
		if got := looksLikeIdentifier(tok); got != want {
			t.Errorf("looksLikeIdentifier(%q) = %v, want %v", tok, got, want)
		}
	}
}
