// Package capability implements the re-architected "callback-style LLM
// hooks" pattern from the Design Notes: a capability abstraction with two
// operations (extract and embed), each with a synchronous, cooperatively
// suspending contract and a typed error, replacing the teacher's ad hoc
// per-provider embedder interface and giving the GraphRAG build pipeline
// (spec §4.5 step 2) an injectable extraction seam.
package capability

import (
	"context"
	"errors"
	"fmt"
)

// EmbeddingError is returned by Embedder on remote/backend failure. Per spec
// §7 it triggers per-item fallback for batch callers; it is never fatal on
// its own.
type EmbeddingError struct {
	Provider string
	Cause    error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding capability (%s): %v", e.Provider, e.Cause)
}

func (e *EmbeddingError) Unwrap() error { return e.Cause }

// ExtractionError is returned by Extractor on failure. Per spec §7 it
// triggers the heuristic fallback and is never fatal.
type ExtractionError struct {
	Cause error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction capability: %v", e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// ErrNoCapability is returned by a capability that has not been configured
// (e.g. no LLM credentials) so callers can distinguish "absent" from
// "failed" per spec §4.5 step 2 ("on failure or absent capability, fall back
// to regex/heuristic extraction").
var ErrNoCapability = errors.New("capability: not configured")

// Embedder produces fixed-dimension vectors for text. Implementations must
// be safe for concurrent use; the bounded-concurrency batch driver
// (pkg/concpool) calls EmbedQuery/EmbedDocuments from multiple goroutines.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// ExtractedEntity is one entity mention found in a memory's content, prior
// to alias normalization and merging (spec §4.5 step 3).
type ExtractedEntity struct {
	CanonicalName string
	EntityType    string
	Description   string
	Confidence    float64
	MentionText   string
}

// ExtractedRelationship is one relationship found between two entity mentions
// within the same extraction pass, prior to id resolution (spec §4.5 step 4).
type ExtractedRelationship struct {
	Source      string // entity mention text, resolved against the batch alias map
	Target      string
	Type        string
	Description string
	Strength    int // 1-10
	Confidence  float64
}

// ExtractionResult is the output of one Extractor.Extract call.
type ExtractionResult struct {
	Entities      []ExtractedEntity
	Relationships []ExtractedRelationship
}

// Extractor extracts entities and relationships from memory content. The LLM
// backed implementation returns ErrNoCapability when unconfigured; the
// heuristic implementation never fails.
type Extractor interface {
	Extract(ctx context.Context, content string) (ExtractionResult, error)
}
