package storage

import (
	"context"
	"testing"
)

func TestRecordMemoryRelationManualModeDrops(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a, _ := s.CreateMemory(ctx, CreateMemoryInput{Title: "a", Content: "a", Now: 1})
	b, _ := s.CreateMemory(ctx, CreateMemoryInput{Title: "b", Content: "b", Now: 1})

	r, err := s.RecordMemoryRelation(ctx, &MemoryRelation{
		SourceMemoryID: a.ID, TargetMemoryID: b.ID, RelationType: "related_to", DetectionMethod: "test",
	}, StorageModeManual, 1)
	if err != nil {
		t.Fatalf("RecordMemoryRelation() error = %v", err)
	}
	if r != nil {
		t.Errorf("RecordMemoryRelation(manual) = %+v, want nil", r)
	}

	rels, _ := s.MemoryRelationsForMemory(ctx, a.ID)
	if len(rels) != 0 {
		t.Errorf("MemoryRelationsForMemory() = %d, want 0 under manual mode", len(rels))
	}
}

func TestRecordMemoryRelationSuggestedModeIsPending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a, _ := s.CreateMemory(ctx, CreateMemoryInput{Title: "a", Content: "a", Now: 1})
	b, _ := s.CreateMemory(ctx, CreateMemoryInput{Title: "b", Content: "b", Now: 1})

	r, err := s.RecordMemoryRelation(ctx, &MemoryRelation{
		SourceMemoryID: a.ID, TargetMemoryID: b.ID, RelationType: "related_to", DetectionMethod: "test",
	}, StorageModeSuggested, 1)
	if err != nil {
		t.Fatalf("RecordMemoryRelation() error = %v", err)
	}
	if r.Status != SuggestionStatusPending {
		t.Errorf("Status = %q, want pending", r.Status)
	}

	applied, _ := s.MemoryRelationsForMemory(ctx, a.ID)
	if len(applied) != 0 {
		t.Errorf("MemoryRelationsForMemory() = %d applied, want 0 while pending", len(applied))
	}

	pending, err := s.PendingMemoryRelations(ctx)
	if err != nil {
		t.Fatalf("PendingMemoryRelations() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("PendingMemoryRelations() = %d, want 1", len(pending))
	}

	if err := s.ApplyMemoryRelationSuggestion(ctx, pending[0].ID); err != nil {
		t.Fatalf("ApplyMemoryRelationSuggestion() error = %v", err)
	}

	applied, _ = s.MemoryRelationsForMemory(ctx, a.ID)
	if len(applied) != 1 {
		t.Errorf("MemoryRelationsForMemory() after apply = %d, want 1", len(applied))
	}
}

func TestBulkApplyMemoryRelationSuggestionsAllOrNothing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a, _ := s.CreateMemory(ctx, CreateMemoryInput{Title: "a", Content: "a", Now: 1})
	b, _ := s.CreateMemory(ctx, CreateMemoryInput{Title: "b", Content: "b", Now: 1})

	r, _ := s.RecordMemoryRelation(ctx, &MemoryRelation{
		SourceMemoryID: a.ID, TargetMemoryID: b.ID, RelationType: "related_to", DetectionMethod: "test",
	}, StorageModeSuggested, 1)

	if _, err := s.BulkApplyMemoryRelationSuggestions(ctx, []string{r.ID, "does-not-exist"}); err == nil {
		t.Fatal("BulkApplyMemoryRelationSuggestions() = nil error, want error when one id is invalid")
	}

	pending, _ := s.PendingMemoryRelations(ctx)
	if len(pending) != 1 {
		t.Errorf("PendingMemoryRelations() after failed bulk apply = %d, want 1 (rolled back)", len(pending))
	}

	applied, err := s.BulkApplyMemoryRelationSuggestions(ctx, []string{r.ID})
	if err != nil {
		t.Fatalf("BulkApplyMemoryRelationSuggestions() error = %v", err)
	}
	if applied != 1 {
		t.Errorf("applied = %d, want 1", applied)
	}
}

func TestUpsertRelationshipStrengthensOnRepeat(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e1 := &Entity{CanonicalName: "Foo"}
	e2 := &Entity{CanonicalName: "Bar"}
	if err := s.CreateEntity(ctx, e1, 1); err != nil {
		t.Fatalf("CreateEntity() error = %v", err)
	}
	if err := s.CreateEntity(ctx, e2, 1); err != nil {
		t.Fatalf("CreateEntity() error = %v", err)
	}

	rel := &Relationship{SourceEntityID: e1.ID, TargetEntityID: e2.ID, RelationshipType: "uses", Strength: 3}
	if err := s.UpsertRelationship(ctx, rel, "mem1", "first mention", 1); err != nil {
		t.Fatalf("UpsertRelationship() error = %v", err)
	}

	rel2 := &Relationship{SourceEntityID: e1.ID, TargetEntityID: e2.ID, RelationshipType: "uses", Strength: 3}
	if err := s.UpsertRelationship(ctx, rel2, "mem2", "second mention", 2); err != nil {
		t.Fatalf("UpsertRelationship() repeat error = %v", err)
	}

	all, err := s.ListRelationships(ctx)
	if err != nil {
		t.Fatalf("ListRelationships() error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("ListRelationships() = %d, want 1 merged relationship", len(all))
	}
	if all[0].Strength != 6 {
		t.Errorf("Strength = %d, want 6 after repeated extraction", all[0].Strength)
	}
}

func TestFindEntityByAliasIsCaseInsensitive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := &Entity{CanonicalName: "PostgreSQL"}
	if err := s.CreateEntity(ctx, e, 1); err != nil {
		t.Fatalf("CreateEntity() error = %v", err)
	}

	got, err := s.FindEntityByAlias(ctx, "  postgresql  ")
	if err != nil {
		t.Fatalf("FindEntityByAlias() error = %v", err)
	}
	if got.ID != e.ID {
		t.Errorf("FindEntityByAlias() = %+v, want entity %s", got, e.ID)
	}
}
