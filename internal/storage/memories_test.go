package storage

import (
	"context"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetMemory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m, err := s.CreateMemory(ctx, CreateMemoryInput{
		Type: "decision", Title: "use sqlite", Content: "embedded store decision",
		Tags: []string{"storage"}, Importance: 0.8, Now: 100,
	})
	if err != nil {
		t.Fatalf("CreateMemory() error = %v", err)
	}
	if m.Status != MemoryStatusApproved {
		t.Errorf("Status = %q, want approved", m.Status)
	}

	got, err := s.GetMemory(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMemory() error = %v", err)
	}
	if got.Title != "use sqlite" || len(got.Tags) != 1 || got.Tags[0] != "storage" {
		t.Errorf("GetMemory() = %+v, want matching title/tags", got)
	}
}

func TestCreateMemoryRejectsEmptyTitle(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateMemory(context.Background(), CreateMemoryInput{Content: "x", Now: 1})
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("CreateMemory() error = %v, want *ValidationError", err)
	}
}

func TestCreateMemoryPendingStatus(t *testing.T) {
	s := openTestStore(t)
	m, err := s.CreateMemory(context.Background(), CreateMemoryInput{
		Title: "t", Content: "c", Pending: true, Now: 1,
	})
	if err != nil {
		t.Fatalf("CreateMemory() error = %v", err)
	}
	if m.Status != MemoryStatusPending {
		t.Errorf("Status = %q, want pending", m.Status)
	}
}

func TestApproveMemory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	m, _ := s.CreateMemory(ctx, CreateMemoryInput{Title: "t", Content: "c", Pending: true, Now: 1})

	approved, err := s.ApproveMemory(ctx, m.ID)
	if err != nil {
		t.Fatalf("ApproveMemory() error = %v", err)
	}
	if approved.Status != MemoryStatusApproved {
		t.Errorf("Status = %q, want approved", approved.Status)
	}

	if _, err := s.ApproveMemory(ctx, m.ID); err == nil {
		t.Error("ApproveMemory() on already-approved memory = nil, want error")
	}
}

func TestUpdateMemoryReportsReembedNeed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	m, _ := s.CreateMemory(ctx, CreateMemoryInput{Title: "t", Content: "c", Now: 1})

	newImportance := 0.9
	res, err := s.UpdateMemory(ctx, m.ID, UpdateMemoryInput{Importance: &newImportance, Now: 2})
	if err != nil {
		t.Fatalf("UpdateMemory() error = %v", err)
	}
	if res.NeedsReembed {
		t.Error("NeedsReembed = true for importance-only change, want false")
	}

	newTitle := "new title"
	res, err = s.UpdateMemory(ctx, m.ID, UpdateMemoryInput{Title: &newTitle, Now: 3})
	if err != nil {
		t.Fatalf("UpdateMemory() error = %v", err)
	}
	if !res.NeedsReembed {
		t.Error("NeedsReembed = false for title change, want true")
	}
}

func TestDeleteMemoryCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a, _ := s.CreateMemory(ctx, CreateMemoryInput{Title: "a", Content: "a", Now: 1})
	b, _ := s.CreateMemory(ctx, CreateMemoryInput{Title: "b", Content: "b", Now: 1})

	if _, err := s.RecordMemoryRelation(ctx, &MemoryRelation{
		SourceMemoryID: a.ID, TargetMemoryID: b.ID, RelationType: "related_to", DetectionMethod: "test",
	}, StorageModeAutomatic, 1); err != nil {
		t.Fatalf("RecordMemoryRelation() error = %v", err)
	}

	if err := s.DeleteMemory(ctx, a.ID); err != nil {
		t.Fatalf("DeleteMemory() error = %v", err)
	}

	rels, err := s.MemoryRelationsForMemory(ctx, b.ID)
	if err != nil {
		t.Fatalf("MemoryRelationsForMemory() error = %v", err)
	}
	if len(rels) != 0 {
		t.Errorf("MemoryRelationsForMemory() after delete = %d rels, want 0", len(rels))
	}

	if _, err := s.GetMemory(ctx, a.ID); err == nil {
		t.Error("GetMemory() after delete = nil error, want NotFoundError")
	}
}

func TestListMemoriesFiltersByType(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.CreateMemory(ctx, CreateMemoryInput{Type: "decision", Title: "a", Content: "a", Now: 1})
	s.CreateMemory(ctx, CreateMemoryInput{Type: "pattern", Title: "b", Content: "b", Now: 2})

	got, err := s.ListMemories(ctx, ListMemoriesFilter{Type: "decision"})
	if err != nil {
		t.Fatalf("ListMemories() error = %v", err)
	}
	if len(got) != 1 || got[0].Type != "decision" {
		t.Errorf("ListMemories(decision) = %+v, want 1 decision memory", got)
	}
}
