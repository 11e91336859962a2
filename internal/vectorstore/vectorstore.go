// Package vectorstore implements the vector store contract (spec §4.4): an
// unordered collection of (id, vector, payload) records supporting
// dimension-checked upsert, delete by id or memory id, metadata-filtered
// nearest-neighbour search, and collection statistics. Two backends share
// this interface, selected by configuration rather than at runtime: an
// embedded backend riding on the same modernc.org/sqlite handle as
// internal/storage, and a remote HTTP backend for a network vector service.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when an upserted vector's length does not
// match the collection's configured dimension. The teacher's SurrealDB
// backend silently zero-pads or truncates mismatched vectors; spec §4.4
// requires this to fail loudly instead, since a silently reshaped vector
// corrupts similarity search without any visible symptom.
var ErrDimensionMismatch = errors.New("vectorstore: dimension mismatch")

// ErrNotFound is returned when a lookup or delete targets an id that does
// not exist.
var ErrNotFound = errors.New("vectorstore: not found")

// BackendError wraps a transient or permanent failure from a backend.
// Transient is set when the caller should retry (spec §4.4: "transient
// backend errors are retried a bounded number of times with exponential
// backoff at the caller").
type BackendError struct {
	Op        string
	Transient bool
	Cause     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("vectorstore: %s: %v", e.Op, e.Cause)
}

func (e *BackendError) Unwrap() error { return e.Cause }

// Record is a single (id, vector, payload) entry.
type Record struct {
	ID        string
	MemoryID  string // empty for graphrag_entity/graphrag_report records
	Kind      string // memory | code_unit | graphrag_entity | graphrag_report
	Title     string
	Tags      []string
	Related   []string // relatedFiles
	Importance float64
	Vector    []float32
	Extra     map[string]any
}

// Filter narrows a Search call. Zero-valued fields are ignored; multiple
// non-zero fields conjoin (AND).
type Filter struct {
	Kind          string
	TagsAnyOf     []string
	RelatedAnyOf  []string
	MinImportance float64
}

// SearchResult is one ranked hit. Score is cosine similarity normalized to
// [0,1]; per spec §4.4, identical vectors score ≥ 0.99.
type SearchResult struct {
	Record Record
	Score  float64
}

// Stats summarizes a collection.
type Stats struct {
	Count     int
	Dimension int
}

// Store is the vector store contract shared by every backend.
type Store interface {
	// Upsert inserts or replaces vec under id. Returns ErrDimensionMismatch
	// if len(vec) does not match the store's configured dimension.
	Upsert(ctx context.Context, rec Record) error

	// Delete removes a single record by id. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error

	// DeleteByMemoryID removes every record tied to memoryID — used when a
	// memory with multiple associated vectors (e.g. chunked content) is
	// deleted or re-embedded.
	DeleteByMemoryID(ctx context.Context, memoryID string) error

	// Search returns the top-k records by cosine similarity to query,
	// narrowed by filter.
	Search(ctx context.Context, query []float32, k int, filter Filter) ([]SearchResult, error)

	// Stats reports the collection's current size and dimension.
	Stats(ctx context.Context) (Stats, error)

	// Close releases backend resources.
	Close() error
}
