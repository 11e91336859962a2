package storage

import (
	"context"
	"testing"
)

func TestUpsertCodeNodeIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n := &CodeNode{ID: "n1", Type: "function", Name: "Foo", FilePath: "foo.go"}
	if err := s.UpsertCodeNode(ctx, n, 1); err != nil {
		t.Fatalf("UpsertCodeNode() error = %v", err)
	}
	n.Summary = "does foo things"
	if err := s.UpsertCodeNode(ctx, n, 2); err != nil {
		t.Fatalf("UpsertCodeNode() re-upsert error = %v", err)
	}

	got, err := s.GetCodeNode(ctx, "n1")
	if err != nil {
		t.Fatalf("GetCodeNode() error = %v", err)
	}
	if got.Summary != "does foo things" || got.UpdatedAt != 2 {
		t.Errorf("GetCodeNode() = %+v, want updated summary and timestamp", got)
	}
}

func TestDeleteCodeNodesByFileCascadesEdges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.UpsertCodeNode(ctx, &CodeNode{ID: "n1", Type: "function", Name: "A", FilePath: "a.go"}, 1)
	s.UpsertCodeNode(ctx, &CodeNode{ID: "n2", Type: "function", Name: "B", FilePath: "b.go"}, 1)
	if err := s.UpsertCodeEdge(ctx, &CodeEdge{FromNode: "n1", ToNode: "n2", EdgeType: "calls"}); err != nil {
		t.Fatalf("UpsertCodeEdge() error = %v", err)
	}

	if err := s.DeleteCodeNodesByFile(ctx, "a.go"); err != nil {
		t.Fatalf("DeleteCodeNodesByFile() error = %v", err)
	}

	edges, err := s.EdgesFrom(ctx, "n1")
	if err != nil {
		t.Fatalf("EdgesFrom() error = %v", err)
	}
	if len(edges) != 0 {
		t.Errorf("EdgesFrom(n1) after delete = %d edges, want 0", len(edges))
	}

	remaining, err := s.ListCodeNodesByFile(ctx, "b.go")
	if err != nil {
		t.Fatalf("ListCodeNodesByFile() error = %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("ListCodeNodesByFile(b.go) = %d nodes, want 1 (untouched)", len(remaining))
	}
}

func TestFileHashRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.GetFileHash(ctx, "missing.go"); err == nil {
		t.Error("GetFileHash(missing) = nil error, want NotFoundError")
	}

	if err := s.SetFileHash(ctx, "foo.go", "abc123", 1); err != nil {
		t.Fatalf("SetFileHash() error = %v", err)
	}
	h, err := s.GetFileHash(ctx, "foo.go")
	if err != nil {
		t.Fatalf("GetFileHash() error = %v", err)
	}
	if h.ContentHash != "abc123" {
		t.Errorf("ContentHash = %q, want abc123", h.ContentHash)
	}

	if err := s.SetFileHash(ctx, "foo.go", "def456", 2); err != nil {
		t.Fatalf("SetFileHash() update error = %v", err)
	}
	h, _ = s.GetFileHash(ctx, "foo.go")
	if h.ContentHash != "def456" {
		t.Errorf("ContentHash after update = %q, want def456", h.ContentHash)
	}

	if err := s.DeleteFileHash(ctx, "foo.go"); err != nil {
		t.Fatalf("DeleteFileHash() error = %v", err)
	}
	if _, err := s.GetFileHash(ctx, "foo.go"); err == nil {
		t.Error("GetFileHash() after delete = nil error, want NotFoundError")
	}
}
