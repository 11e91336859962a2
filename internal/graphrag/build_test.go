package graphrag

import (
	"context"
	"testing"

	"github.com/rcae/rcae/internal/storage"
	"github.com/rcae/rcae/internal/vectorstore"
	"github.com/rcae/rcae/pkg/capability"
)

type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec(float32(i + 1))
	}
	return out, nil
}

func (f fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return f.vec(1), nil
}

func (f fakeEmbedder) Dimension() int { return f.dim }

func (f fakeEmbedder) vec(seed float32) []float32 {
	v := make([]float32, f.dim)
	for i := range v {
		v[i] = seed
	}
	return v
}

func newTestBuilder(t *testing.T) (*Builder, *storage.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := storage.OpenMemory(ctx)
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	vecs := vectorstore.NewEmbeddedStore(st.DB(), 4)
	embedder := fakeEmbedder{dim: 4}
	extractor := capability.NewHeuristicExtractor()
	return NewBuilder(st, vecs, embedder, extractor, 2), st
}

func TestBuildExtractsEntitiesAndRelationships(t *testing.T) {
	ctx := context.Background()
	b, st := newTestBuilder(t)

	mem, err := st.CreateMemory(ctx, storage.CreateMemoryInput{
		Type:    "decision",
		Title:   "Adopt Postgres",
		Content: "We chose `Postgres` over `MySQL` for ACID Compliance reasons.",
	})
	if err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}

	stats, err := b.Build(ctx, BuildOptions{MemoryIDs: []string{mem.ID}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if stats.NoOp {
		t.Fatalf("expected build to process the memory, got noOp")
	}
	if stats.EntitiesCreated == 0 {
		t.Fatalf("expected at least one entity created, got stats=%+v", stats)
	}
	if stats.RelationshipsUpserted == 0 {
		t.Fatalf("expected co-occurring entities to produce relationships, got stats=%+v", stats)
	}

	entities, err := st.ListEntities(ctx)
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(entities) == 0 {
		t.Fatalf("expected entities persisted")
	}
	for _, e := range entities {
		if e.EmbeddingID == "" {
			t.Fatalf("expected entity %s to have an embedding id", e.ID)
		}
	}
}

func TestBuildSkipsAlreadyExtractedMemoryWithoutReindexAll(t *testing.T) {
	ctx := context.Background()
	b, st := newTestBuilder(t)

	mem, err := st.CreateMemory(ctx, storage.CreateMemoryInput{
		Type: "note", Title: "Note", Content: "`Redis` caches sessions.",
	})
	if err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}

	if _, err := b.Build(ctx, BuildOptions{MemoryIDs: []string{mem.ID}}); err != nil {
		t.Fatalf("first Build: %v", err)
	}

	stats, err := b.Build(ctx, BuildOptions{MemoryIDs: []string{mem.ID}})
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if !stats.NoOp {
		t.Fatalf("expected second build over the same memory to be a no-op, got %+v", stats)
	}
}

func TestNormalizeAliasAndMatch(t *testing.T) {
	if normalizeAlias("  Postgres DB!  ") != "postgres db" {
		t.Fatalf("unexpected normalization: %q", normalizeAlias("  Postgres DB!  "))
	}
	if !aliasMatch("postgres", "postgres db") {
		t.Fatalf("expected containment match")
	}
	if aliasMatch("postgres", "mysql") {
		t.Fatalf("expected no match between unrelated aliases")
	}
}
