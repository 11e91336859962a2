package assembler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rcae/rcae/internal/retriever"
	"github.com/rcae/rcae/internal/storage"
	"github.com/rcae/rcae/internal/vectorstore"
)

type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func newTestAssembler(t *testing.T) (*Assembler, *storage.Store, vectorstore.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := storage.OpenMemory(ctx)
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	vecs := vectorstore.NewEmbeddedStore(st.DB(), 4)
	embedder := &fakeEmbedder{dim: 4}
	ret := retriever.NewRetriever(st, vecs, embedder)
	return NewAssembler(st, vecs, embedder, ret), st, vecs
}

func seedMemory(t *testing.T, st *storage.Store, vecs vectorstore.Store, title, content string, vec []float32) *storage.Memory {
	t.Helper()
	ctx := context.Background()
	m, err := st.CreateMemory(ctx, storage.CreateMemoryInput{
		Type: "note", Title: title, Content: content, Importance: 0.5, Now: time.Now().Unix(),
	})
	if err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}
	if err := vecs.Upsert(ctx, vectorstore.Record{ID: "memory:" + m.ID, MemoryID: m.ID, Kind: storage.VectorKindMemory, Vector: vec}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	return m
}

func TestAssembleReturnsWithinBudget(t *testing.T) {
	ctx := context.Background()
	a, st, vecs := newTestAssembler(t)

	for i := 0; i < 10; i++ {
		seedMemory(t, st, vecs, "memory about postgres", strings.Repeat("word ", 60), []float32{1, 0, 0, 0})
	}

	result, err := a.Assemble(ctx, AssembleOptions{Query: "postgres", Budget: 256})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	tok := a.tokenizer.CountTokens(result.Context)
	if tok > 256 {
		t.Errorf("Assemble() context tokens = %d, want <= 256", tok)
	}

	included := 0
	for _, e := range result.Evidence {
		if e.Included {
			included++
		}
	}
	if included > 4 {
		t.Errorf("Assemble() included %d items, want <= 4 for 60-token candidates in a 256-token budget", included)
	}
}

func TestAssembleEmptyProjectReturnsEmptyContext(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newTestAssembler(t)

	result, err := a.Assemble(ctx, AssembleOptions{Query: "anything", Budget: 1000})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if result.Context != "" {
		t.Errorf("Assemble() context = %q, want empty", result.Context)
	}
	if len(result.Evidence) != 0 {
		t.Errorf("Assemble() evidence = %+v, want empty", result.Evidence)
	}
}

func TestAssembleCacheHitsUntilWrite(t *testing.T) {
	ctx := context.Background()
	a, st, vecs := newTestAssembler(t)
	seedMemory(t, st, vecs, "memory one", "content one", []float32{1, 0, 0, 0})

	opts := AssembleOptions{Query: "memory", Budget: 1000}
	first, err := a.Assemble(ctx, opts)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	second, err := a.Assemble(ctx, opts)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if first != second {
		t.Errorf("Assemble() cache miss on identical query/budget, want cached pointer reused")
	}

	seedMemory(t, st, vecs, "memory two", "content two", []float32{1, 0, 0, 0})
	third, err := a.Assemble(ctx, opts)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if third == second {
		t.Errorf("Assemble() returned stale cached result after a write affecting memories")
	}
}

func TestResetContextCacheForcesRecompute(t *testing.T) {
	ctx := context.Background()
	a, st, vecs := newTestAssembler(t)
	seedMemory(t, st, vecs, "memory one", "content one", []float32{1, 0, 0, 0})

	opts := AssembleOptions{Query: "memory", Budget: 1000}
	first, err := a.Assemble(ctx, opts)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	a.ResetContextCache()

	second, err := a.Assemble(ctx, opts)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if first == second {
		t.Errorf("ResetContextCache() did not force a fresh AssembleResult")
	}
}

func TestRenderCompactProducesNonEmptyOutput(t *testing.T) {
	packed := map[string][]Candidate{
		sourceMemory: {{ID: "m1", Rank: 1, Relevance: 0.9, Text: "hello world"}},
	}
	out := renderCompact(packed)
	if out == "" {
		t.Fatal("renderCompact() returned empty string")
	}
}

func TestMatchingQueryTermsPreservesOrderAndDedupes(t *testing.T) {
	terms := matchingQueryTerms("postgres postgres acid", "we chose postgres for acid guarantees")
	if len(terms) != 2 || terms[0] != "postgres" || terms[1] != "acid" {
		t.Fatalf("matchingQueryTerms() = %v, want [postgres acid]", terms)
	}
}
