// Package retriever implements the Hybrid Retriever (spec §4.6): local
// (entity-centric BFS), global (community-report-centric), and drift
// (iterative hypothesis-embedding) search modes over the persisted GraphRAG
// graph and vector stores, plus reciprocal rank fusion for combining
// candidate lists at the context layer. Grounded on the teacher's
// pkg/mcp_tools/string_similarity.go (agnivade/levenshtein-based lexical
// scoring) generalized into the blended vector+lexical seed scoring spec
// §4.6 requires, which the teacher never needed since it had no entity
// graph to traverse.
package retriever

import (
	"context"
	"math"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/rcae/rcae/internal/storage"
	"github.com/rcae/rcae/internal/vectorstore"
	"github.com/rcae/rcae/pkg/capability"
)

// Retriever wires the store, vector index, and embedding capability every
// search mode needs.
type Retriever struct {
	store    *storage.Store
	vectors  vectorstore.Store
	embedder capability.Embedder
}

// NewRetriever wires a Retriever over an already-open store, vector index,
// and embedding capability.
func NewRetriever(store *storage.Store, vectors vectorstore.Store, embedder capability.Embedder) *Retriever {
	return &Retriever{store: store, vectors: vectors, embedder: embedder}
}

// ScoredEntity pairs an entity with its blended relevance score and BFS
// depth from the nearest seed (0 for seeds themselves).
type ScoredEntity struct {
	Entity *storage.Entity
	Score  float64
	Depth  int
}

const entityVectorPrefix = "graphrag_entity:"

func entityIDFromVectorID(vectorID string) string {
	return strings.TrimPrefix(vectorID, entityVectorPrefix)
}

// lexicalScore scores query against text on [0,1] using exact/prefix/
// contains checks backed by a normalized Levenshtein similarity for
// everything else — the same agnivade/levenshtein dependency the teacher
// uses for preference-name fuzzy matching (pkg/mcp_tools/
// string_similarity.go), generalized from "find the closest known string"
// into a relevance signal.
func lexicalScore(query, text string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	t := strings.ToLower(strings.TrimSpace(text))
	if q == "" || t == "" {
		return 0
	}
	if q == t {
		return 1.0
	}
	if strings.HasPrefix(t, q) {
		return 0.9
	}
	if strings.Contains(t, q) {
		return 0.75
	}

	overlap := wordOverlap(q, t)
	dist := levenshtein.ComputeDistance(q, t)
	maxLen := len(q)
	if len(t) > maxLen {
		maxLen = len(t)
	}
	var editSim float64
	if maxLen > 0 {
		editSim = 1 - float64(dist)/float64(maxLen)
		if editSim < 0 {
			editSim = 0
		}
	}
	if overlap > editSim {
		return overlap
	}
	return editSim
}

func wordOverlap(a, b string) float64 {
	aw := strings.Fields(a)
	bw := strings.Fields(b)
	if len(aw) == 0 || len(bw) == 0 {
		return 0
	}
	set := make(map[string]bool, len(bw))
	for _, w := range bw {
		set[w] = true
	}
	hit := 0
	for _, w := range aw {
		if set[w] {
			hit++
		}
	}
	return float64(hit) / float64(len(aw))
}

// cosineSimilarity returns raw cosine similarity in [-1,1], used by drift
// search's convergence check (spec §4.6: "terminate early when the cosine
// similarity between consecutive hypothesis embeddings >= convergenceThreshold").
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// deadlineExceeded reports whether ctx is done, so every search honors an
// optional cancellation deadline at its suspension points
// (spec §4.6: "every search accepts an optional deadline; any suspension
// point... must honour cancellation").
func deadlineExceeded(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
