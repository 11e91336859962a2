package vectorstore

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`CREATE TABLE vector_payloads (
		vector_id TEXT PRIMARY KEY,
		memory_id TEXT,
		kind TEXT NOT NULL,
		title TEXT,
		tags TEXT NOT NULL DEFAULT '[]',
		related_files TEXT NOT NULL DEFAULT '[]',
		importance REAL NOT NULL DEFAULT 0,
		dim INTEGER NOT NULL,
		embedding BLOB NOT NULL,
		extra TEXT NOT NULL DEFAULT '{}'
	)`)
	if err != nil {
		t.Fatalf("create table error = %v", err)
	}
	return db
}

func TestEmbeddedUpsertRejectsDimensionMismatch(t *testing.T) {
	store := NewEmbeddedStore(openTestDB(t), 3)
	err := store.Upsert(context.Background(), Record{ID: "v1", Kind: "memory", Vector: []float32{1, 2}})
	if err != ErrDimensionMismatch {
		t.Errorf("Upsert() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestEmbeddedSearchRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	store := NewEmbeddedStore(openTestDB(t), 3)

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}
	must(store.Upsert(ctx, Record{ID: "close", Kind: "memory", Vector: []float32{1, 0, 0}}))
	must(store.Upsert(ctx, Record{ID: "far", Kind: "memory", Vector: []float32{0, 1, 0}}))
	must(store.Upsert(ctx, Record{ID: "opposite", Kind: "memory", Vector: []float32{-1, 0, 0}}))

	results, err := store.Search(ctx, []float32{1, 0, 0}, 3, Filter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Search() returned %d results, want 3", len(results))
	}
	if results[0].Record.ID != "close" {
		t.Errorf("top result = %q, want close", results[0].Record.ID)
	}
	if results[0].Score < 0.99 {
		t.Errorf("identical-direction score = %f, want >= 0.99", results[0].Score)
	}
	if results[len(results)-1].Record.ID != "opposite" {
		t.Errorf("bottom result = %q, want opposite", results[len(results)-1].Record.ID)
	}
}

func TestEmbeddedSearchFiltersByKindAndTags(t *testing.T) {
	ctx := context.Background()
	store := NewEmbeddedStore(openTestDB(t), 2)

	store.Upsert(ctx, Record{ID: "a", Kind: "memory", Tags: []string{"go"}, Vector: []float32{1, 0}})
	store.Upsert(ctx, Record{ID: "b", Kind: "code_unit", Tags: []string{"go"}, Vector: []float32{1, 0}})
	store.Upsert(ctx, Record{ID: "c", Kind: "memory", Tags: []string{"rust"}, Vector: []float32{1, 0}})

	results, err := store.Search(ctx, []float32{1, 0}, 10, Filter{Kind: "memory", TagsAnyOf: []string{"go"}})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Record.ID != "a" {
		t.Errorf("Search() = %+v, want only record a", results)
	}
}

func TestEmbeddedDeleteByMemoryID(t *testing.T) {
	ctx := context.Background()
	store := NewEmbeddedStore(openTestDB(t), 2)

	store.Upsert(ctx, Record{ID: "v1", MemoryID: "m1", Kind: "memory", Vector: []float32{1, 0}})
	store.Upsert(ctx, Record{ID: "v2", MemoryID: "m1", Kind: "memory", Vector: []float32{0, 1}})
	store.Upsert(ctx, Record{ID: "v3", MemoryID: "m2", Kind: "memory", Vector: []float32{1, 1}})

	if err := store.DeleteByMemoryID(ctx, "m1"); err != nil {
		t.Fatalf("DeleteByMemoryID() error = %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Count != 1 {
		t.Errorf("Stats().Count = %d, want 1", stats.Count)
	}
}

func TestEmbeddedUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewEmbeddedStore(openTestDB(t), 2)

	store.Upsert(ctx, Record{ID: "v1", Kind: "memory", Title: "first", Vector: []float32{1, 0}})
	store.Upsert(ctx, Record{ID: "v1", Kind: "memory", Title: "second", Vector: []float32{0, 1}})

	stats, _ := store.Stats(ctx)
	if stats.Count != 1 {
		t.Errorf("Stats().Count = %d, want 1 after re-upsert of same id", stats.Count)
	}

	results, err := store.Search(ctx, []float32{0, 1}, 1, Filter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Record.Title != "second" {
		t.Errorf("Search() after re-upsert = %+v, want title=second", results)
	}
}
