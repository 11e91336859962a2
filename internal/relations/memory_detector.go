package relations

import (
	"context"
	"math"

	"github.com/rcae/rcae/internal/storage"
	"github.com/rcae/rcae/internal/vectorstore"
	"github.com/rcae/rcae/pkg/capability"
)

// MemoryDetector proposes memory-to-memory relations for a created or
// updated memory against the rest of the project's memories (spec §4.8).
type MemoryDetector struct {
	store    *storage.Store
	vectors  vectorstore.Store
	embedder capability.Embedder

	// TemporalWindowSeconds bounds the (b) temporal-proximity signal: two
	// memories created within this window of each other earn a proximity
	// boost. Defaults to one hour if zero.
	TemporalWindowSeconds int64
}

// NewMemoryDetector wires a MemoryDetector over the store, vector index,
// and embedding capability.
func NewMemoryDetector(store *storage.Store, vectors vectorstore.Store, embedder capability.Embedder) *MemoryDetector {
	return &MemoryDetector{store: store, vectors: vectors, embedder: embedder}
}

// Signal is one detection method's finding about a pair of memories, prior
// to being folded into a combined confidence.
type Signal struct {
	Method     string // shared_files | temporal | tag_overlap | embedding | supersedes
	Confidence float64
}

// Proposal is a candidate memory-memory relation with its supporting
// signals, ready to be recorded under a storage mode.
type Proposal struct {
	TargetMemoryID string
	RelationType   string
	Confidence     float64
	Signals        []Signal
}

// Detect evaluates src against every other memory in the project (capped by
// candidateLimit, 0 meaning "no extra limit beyond the store's own cap") and
// returns one Proposal per candidate that clears any signal's floor.
// Signals with strong rule-table agreement and ≥ AutoApplyThreshold combined
// confidence are intended for auto-apply by the caller; the rest for
// suggestion storage — spec §4.8: "high-confidence proposals may auto-apply,
// others are stored as suggestions".
func (d *MemoryDetector) Detect(ctx context.Context, src *storage.Memory, candidateLimit int) ([]Proposal, error) {
	others, err := d.store.ListMemories(ctx, storage.ListMemoriesFilter{Limit: candidateLimit})
	if err != nil {
		return nil, err
	}

	var srcVec []float32
	if d.embedder != nil {
		v, err := d.embedder.EmbedQuery(ctx, src.Title+"\n"+src.Content)
		if err == nil {
			srcVec = v
		}
		// embedding failure degrades to the other three signals, per spec
		// §7 ("EmbeddingError ... triggers per-item fallback") — this
		// detector's fallback is simply omitting the embedding signal.
	}

	srcFiles := fileSet(src.RelatedFiles)
	srcTags := tagSet(src.Tags)
	srcTitleTokens := tokenize(src.Title)

	window := d.TemporalWindowSeconds
	if window <= 0 {
		window = 3600
	}

	var proposals []Proposal
	for _, other := range others {
		if other.ID == src.ID {
			continue
		}
		var signals []Signal

		if hasOverlap(srcFiles, fileSet(other.RelatedFiles)) {
			signals = append(signals, Signal{Method: "shared_files", Confidence: 0.6})
		}

		if delta := abs64(src.CreatedAt - other.CreatedAt); delta <= window {
			proximity := 1 - float64(delta)/float64(window)
			signals = append(signals, Signal{Method: "temporal", Confidence: 0.3 + 0.3*proximity})
		}

		if tagOverlap := jaccard(srcTags, tagSet(other.Tags)); tagOverlap > 0 {
			signals = append(signals, Signal{Method: "tag_overlap", Confidence: 0.4 + 0.4*tagOverlap})
		}

		if srcVec != nil && other.QdrantID != "" {
			if sim, ok := d.embeddingSimilarity(ctx, srcVec, other.QdrantID); ok && sim > 0.5 {
				signals = append(signals, Signal{Method: "embedding", Confidence: sim})
			}
		}

		relType := relationTypeFor(src.Type, other.Type)
		if src.Type == other.Type && other.CreatedAt < src.CreatedAt {
			if titleOverlap := jaccard(srcTitleTokens, tokenize(other.Title)); titleOverlap >= SupersedesTitleJaccard {
				signals = append(signals, Signal{Method: "supersedes", Confidence: 0.6 + 0.4*titleOverlap})
				relType = "supersedes"
			}
		}

		if len(signals) == 0 {
			continue
		}
		proposals = append(proposals, Proposal{
			TargetMemoryID: other.ID,
			RelationType:   relType,
			Confidence:     combinedConfidence(signals),
			Signals:        signals,
		})
	}
	return proposals, nil
}

// embeddingSimilarity looks up other's vector by its qdrantId and scores it
// against srcVec. The vector store's own Search already does cosine scoring
// when given a filter; here we want a single pairwise comparison, so we
// search narrowly and match by id rather than re-deriving the vector
// ourselves (the vector store, not this package, owns vector storage per
// spec §3 ownership rules).
func (d *MemoryDetector) embeddingSimilarity(ctx context.Context, srcVec []float32, otherVectorID string) (float64, bool) {
	if d.vectors == nil {
		return 0, false
	}
	results, err := d.vectors.Search(ctx, srcVec, 32, vectorstore.Filter{Kind: storage.VectorKindMemory})
	if err != nil {
		return 0, false
	}
	for _, r := range results {
		if r.Record.ID == otherVectorID {
			return r.Score, true
		}
	}
	return 0, false
}

// Apply records every proposal under mode, returning the number of
// relations actually written (manual mode writes none).
func (d *MemoryDetector) Apply(ctx context.Context, sourceMemoryID string, proposals []Proposal, mode storage.StorageMode, now int64) (int, error) {
	n := 0
	for _, p := range proposals {
		effectiveMode := storageModeFor(mode, p.Confidence)
		rel, err := d.store.RecordMemoryRelation(ctx, &storage.MemoryRelation{
			SourceMemoryID:  sourceMemoryID,
			TargetMemoryID:  p.TargetMemoryID,
			RelationType:    p.RelationType,
			Confidence:      p.Confidence,
			DetectionMethod: dominantMethod(p.Signals),
		}, effectiveMode, now)
		if err != nil {
			return n, err
		}
		if rel != nil {
			n++
		}
	}
	return n, nil
}

// combinedConfidence folds multiple signals into one score: the strongest
// signal dominates, with diminishing contribution from corroborating
// signals, so that two weak but agreeing signals can still cross
// AutoApplyThreshold while a single weak signal cannot.
func combinedConfidence(signals []Signal) float64 {
	max := 0.0
	sumRest := 0.0
	for _, s := range signals {
		if s.Confidence > max {
			sumRest += max
			max = s.Confidence
		} else {
			sumRest += s.Confidence
		}
	}
	combined := max + 0.15*sumRest
	return math.Min(combined, 1.0)
}

// dominantMethod names the strongest contributing signal as the
// detection_method recorded alongside the relation, so a reviewer can see
// what triggered the suggestion.
func dominantMethod(signals []Signal) string {
	best := ""
	bestConf := -1.0
	for _, s := range signals {
		if s.Confidence > bestConf {
			best = s.Method
			bestConf = s.Confidence
		}
	}
	return best
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
