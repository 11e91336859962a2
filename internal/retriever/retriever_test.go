package retriever

import (
	"context"
	"testing"
	"time"

	"github.com/rcae/rcae/internal/storage"
	"github.com/rcae/rcae/internal/vectorstore"
)

func newTestRetriever(t *testing.T) (*Retriever, *storage.Store, *fakeEmbedder) {
	t.Helper()
	ctx := context.Background()
	st, err := storage.OpenMemory(ctx)
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	vecs := vectorstore.NewEmbeddedStore(st.DB(), 4)
	embedder := &fakeEmbedder{dim: 4}
	return NewRetriever(st, vecs, embedder), st, embedder
}

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

func seedEntity(t *testing.T, st *storage.Store, vecs vectorstore.Store, name string, vec []float32) *storage.Entity {
	t.Helper()
	ctx := context.Background()
	e := &storage.Entity{CanonicalName: name, EntityType: "technology", Description: name + " description", MentionCount: 2, ExtractionConfidence: 0.8}
	if err := st.CreateEntity(ctx, e, time.Now().Unix()); err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}
	vectorID := "graphrag_entity:" + e.ID
	if err := vecs.Upsert(ctx, vectorstore.Record{ID: vectorID, Vector: vec, Kind: "graphrag_entity"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := st.SetEntityEmbedding(ctx, e.ID, vectorID, time.Now().Unix()); err != nil {
		t.Fatalf("SetEntityEmbedding: %v", err)
	}
	return e
}

func TestLocalSearchSeedsAndExpands(t *testing.T) {
	ctx := context.Background()
	r, st, _ := newTestRetriever(t)

	a := seedEntity(t, st, r.vectors, "Postgres", []float32{1, 0, 0, 0})
	b := seedEntity(t, st, r.vectors, "MySQL", []float32{0, 1, 0, 0})

	rel := &storage.Relationship{SourceEntityID: a.ID, TargetEntityID: b.ID, RelationshipType: "alternative_to", Strength: 5}
	if err := st.UpsertRelationship(ctx, rel, "", "", time.Now().Unix()); err != nil {
		t.Fatalf("UpsertRelationship: %v", err)
	}

	result, err := r.LocalSearch(ctx, "Postgres", []float32{1, 0, 0, 0}, LocalSearchOptions{})
	if err != nil {
		t.Fatalf("LocalSearch: %v", err)
	}
	if len(result.Entities) == 0 {
		t.Fatalf("expected at least the seed entity")
	}
	if len(result.Relationships) != 1 {
		t.Fatalf("expected the Postgres-MySQL relationship to be traversed, got %d", len(result.Relationships))
	}
}

func TestFindPathDirectEdge(t *testing.T) {
	ctx := context.Background()
	r, st, _ := newTestRetriever(t)

	a := seedEntity(t, st, r.vectors, "Postgres", []float32{1, 0, 0, 0})
	b := seedEntity(t, st, r.vectors, "MySQL", []float32{0, 1, 0, 0})

	rel := &storage.Relationship{SourceEntityID: a.ID, TargetEntityID: b.ID, RelationshipType: "alternative_to", Strength: 5}
	if err := st.UpsertRelationship(ctx, rel, "", "", time.Now().Unix()); err != nil {
		t.Fatalf("UpsertRelationship: %v", err)
	}

	path, err := r.FindPath(ctx, a.ID, b.ID, PathSearchOptions{})
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if !path.Found {
		t.Fatalf("expected a path to be found")
	}
	if len(path.Entities) != 2 || len(path.Relationships) != 1 {
		t.Fatalf("unexpected path shape: %+v", path)
	}
}

func TestFindPathNoRoute(t *testing.T) {
	ctx := context.Background()
	r, st, _ := newTestRetriever(t)

	a := seedEntity(t, st, r.vectors, "Postgres", []float32{1, 0, 0, 0})
	b := seedEntity(t, st, r.vectors, "Kubernetes", []float32{0, 1, 0, 0})

	path, err := r.FindPath(ctx, a.ID, b.ID, PathSearchOptions{})
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if path.Found {
		t.Fatalf("expected no path between disconnected entities")
	}
}

func TestReciprocalRankFusionCombinesAndDedupes(t *testing.T) {
	lists := map[string][]RankedItem{
		"lexical": {{ID: "a", Rank: 1}, {ID: "b", Rank: 2}},
		"vector":  {{ID: "b", Rank: 1}, {ID: "c", Rank: 2}},
	}
	fused := ReciprocalRankFusion(lists, map[string]float64{"lexical": 1, "vector": 1.5}, 10)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused items, got %d", len(fused))
	}
	if fused[0].ID != "b" {
		t.Fatalf("expected 'b' (present in both lists) to rank first, got %q", fused[0].ID)
	}
}

func TestReciprocalRankFusionTopK(t *testing.T) {
	lists := map[string][]RankedItem{
		"s": {{ID: "a", Rank: 1}, {ID: "b", Rank: 2}, {ID: "c", Rank: 3}},
	}
	fused := ReciprocalRankFusion(lists, nil, 2)
	if len(fused) != 2 {
		t.Fatalf("expected topK truncation to 2, got %d", len(fused))
	}
}

func TestLexicalScoreExactBeatsFuzzy(t *testing.T) {
	if lexicalScore("postgres", "postgres") != 1.0 {
		t.Fatalf("expected exact match score of 1.0")
	}
	if lexicalScore("postgres", "postgresql") <= lexicalScore("postgres", "banana") {
		t.Fatalf("expected closer string to score higher")
	}
}

func TestCosineSimilarityIdenticalVectors(t *testing.T) {
	v := []float32{1, 2, 3}
	if sim := cosineSimilarity(v, v); sim < 0.999 {
		t.Fatalf("expected identical vectors to have similarity ~1, got %f", sim)
	}
}
