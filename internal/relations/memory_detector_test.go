package relations

import (
	"context"
	"testing"

	"github.com/rcae/rcae/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMemoryDetectorSharedFiles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, _ := s.CreateMemory(ctx, storage.CreateMemoryInput{
		Type: "decision", Title: "use postgres", Content: "we picked postgres",
		RelatedFiles: []string{"db/schema.sql"}, Now: 100,
	})
	_, _ = s.CreateMemory(ctx, storage.CreateMemoryInput{
		Type: "solution", Title: "why postgres wins", Content: "acid guarantees",
		RelatedFiles: []string{"db/schema.sql"}, Now: 200,
	})

	d := NewMemoryDetector(s, nil, nil)
	proposals, err := d.Detect(ctx, a, 0)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(proposals) != 1 {
		t.Fatalf("Detect() = %d proposals, want 1", len(proposals))
	}
	if proposals[0].RelationType != "causes" {
		t.Errorf("RelationType = %q, want causes (decision->solution rule)", proposals[0].RelationType)
	}
}

func TestMemoryDetectorSupersedes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v1, _ := s.CreateMemory(ctx, storage.CreateMemoryInput{
		Type: "decision", Title: "use redis for caching", Content: "initial decision", Now: 100,
	})
	v2, _ := s.CreateMemory(ctx, storage.CreateMemoryInput{
		Type: "decision", Title: "use redis for caching layer", Content: "refined decision", Now: 200,
	})

	d := NewMemoryDetector(s, nil, nil)
	proposals, err := d.Detect(ctx, v2, 0)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	found := false
	for _, p := range proposals {
		if p.TargetMemoryID == v1.ID && p.RelationType == "supersedes" {
			found = true
		}
	}
	if !found {
		t.Errorf("Detect() did not propose supersedes(v2 -> v1); got %+v", proposals)
	}
}

func TestMemoryDetectorApplyManualModeDropsAll(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a, _ := s.CreateMemory(ctx, storage.CreateMemoryInput{Title: "a", Content: "a", RelatedFiles: []string{"x.go"}, Now: 1})
	_, _ = s.CreateMemory(ctx, storage.CreateMemoryInput{Title: "b", Content: "b", RelatedFiles: []string{"x.go"}, Now: 1})

	d := NewMemoryDetector(s, nil, nil)
	proposals, _ := d.Detect(ctx, a, 0)
	n, err := d.Apply(ctx, a.ID, proposals, storage.StorageModeManual, 1)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Apply(manual) wrote %d relations, want 0", n)
	}
}

func TestCombinedConfidenceDominatesOnStrongestSignal(t *testing.T) {
	weak := combinedConfidence([]Signal{{Method: "tag_overlap", Confidence: 0.3}})
	strong := combinedConfidence([]Signal{{Method: "shared_files", Confidence: 0.6}, {Method: "tag_overlap", Confidence: 0.3}})
	if strong <= weak {
		t.Errorf("combined confidence with a corroborating signal (%v) should exceed single weak signal (%v)", strong, weak)
	}
	if strong > 1.0 {
		t.Errorf("combined confidence = %v, want <= 1.0", strong)
	}
}
