package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"math"
	"sort"
	"strings"
)

// EmbeddedStore is the embedded backend: a brute-force cosine search over
// the vector_payloads table internal/storage's migrations create in the
// same sqlite file. Per spec §4.4 this is the default backend and the one
// the embedded vector-capable SQL extension contemplates; modernc.org/sqlite
// has no native ANN index, so search here is exact (cosine over every row),
// acceptable at the project-local scale this engine targets.
type EmbeddedStore struct {
	db        *sql.DB
	dimension int
}

// NewEmbeddedStore wraps db (shared with internal/storage.Store.DB()) with
// the given fixed vector dimension.
func NewEmbeddedStore(db *sql.DB, dimension int) *EmbeddedStore {
	return &EmbeddedStore{db: db, dimension: dimension}
}

func (e *EmbeddedStore) Upsert(ctx context.Context, rec Record) error {
	if len(rec.Vector) != e.dimension {
		return ErrDimensionMismatch
	}
	tagsJSON, err := json.Marshal(rec.Tags)
	if err != nil {
		return &BackendError{Op: "upsert-marshal-tags", Cause: err}
	}
	relatedJSON, err := json.Marshal(rec.Related)
	if err != nil {
		return &BackendError{Op: "upsert-marshal-related", Cause: err}
	}
	extraJSON, err := json.Marshal(rec.Extra)
	if err != nil {
		return &BackendError{Op: "upsert-marshal-extra", Cause: err}
	}

	_, err = e.db.ExecContext(ctx, `
		INSERT INTO vector_payloads (vector_id, memory_id, kind, title, tags, related_files, importance, dim, embedding, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(vector_id) DO UPDATE SET
			memory_id = excluded.memory_id,
			kind = excluded.kind,
			title = excluded.title,
			tags = excluded.tags,
			related_files = excluded.related_files,
			importance = excluded.importance,
			dim = excluded.dim,
			embedding = excluded.embedding,
			extra = excluded.extra`,
		rec.ID, nullIfEmpty(rec.MemoryID), rec.Kind, rec.Title, string(tagsJSON), string(relatedJSON), rec.Importance, e.dimension, encodeVector(rec.Vector), string(extraJSON),
	)
	if err != nil {
		return &BackendError{Op: "upsert", Cause: err}
	}
	return nil
}

func (e *EmbeddedStore) Delete(ctx context.Context, id string) error {
	res, err := e.db.ExecContext(ctx, `DELETE FROM vector_payloads WHERE vector_id = ?`, id)
	if err != nil {
		return &BackendError{Op: "delete", Cause: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &BackendError{Op: "delete-rows-affected", Cause: err}
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (e *EmbeddedStore) DeleteByMemoryID(ctx context.Context, memoryID string) error {
	_, err := e.db.ExecContext(ctx, `DELETE FROM vector_payloads WHERE memory_id = ?`, memoryID)
	if err != nil {
		return &BackendError{Op: "delete-by-memory-id", Cause: err}
	}
	return nil
}

func (e *EmbeddedStore) Search(ctx context.Context, query []float32, k int, filter Filter) ([]SearchResult, error) {
	if len(query) != e.dimension {
		return nil, ErrDimensionMismatch
	}

	sqlQuery := `SELECT vector_id, memory_id, kind, title, tags, related_files, importance, embedding FROM vector_payloads WHERE 1=1`
	var args []any
	if filter.Kind != "" {
		sqlQuery += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	if filter.MinImportance > 0 {
		sqlQuery += ` AND importance >= ?`
		args = append(args, filter.MinImportance)
	}

	rows, err := e.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, &BackendError{Op: "search-query", Cause: err}
	}
	defer rows.Close()

	var candidates []SearchResult
	for rows.Next() {
		var rec Record
		var memoryID sql.NullString
		var tagsJSON, relatedJSON string
		var embeddingBlob []byte
		if err := rows.Scan(&rec.ID, &memoryID, &rec.Kind, &rec.Title, &tagsJSON, &relatedJSON, &rec.Importance, &embeddingBlob); err != nil {
			return nil, &BackendError{Op: "search-scan", Cause: err}
		}
		rec.MemoryID = memoryID.String
		if err := json.Unmarshal([]byte(tagsJSON), &rec.Tags); err != nil {
			return nil, &BackendError{Op: "search-unmarshal-tags", Cause: err}
		}
		if err := json.Unmarshal([]byte(relatedJSON), &rec.Related); err != nil {
			return nil, &BackendError{Op: "search-unmarshal-related", Cause: err}
		}

		if len(filter.TagsAnyOf) > 0 && !anyOf(rec.Tags, filter.TagsAnyOf) {
			continue
		}
		if len(filter.RelatedAnyOf) > 0 && !anyOf(rec.Related, filter.RelatedAnyOf) {
			continue
		}

		vec := decodeVector(embeddingBlob, e.dimension)
		score := cosineSimilarity(query, vec)
		candidates = append(candidates, SearchResult{Record: rec, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, &BackendError{Op: "search-rows", Cause: err}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

func (e *EmbeddedStore) Stats(ctx context.Context) (Stats, error) {
	var count int
	if err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vector_payloads`).Scan(&count); err != nil {
		return Stats{}, &BackendError{Op: "stats", Cause: err}
	}
	return Stats{Count: count, Dimension: e.dimension}, nil
}

func (e *EmbeddedStore) Close() error { return nil } // shares the storage package's handle; owner closes it

func anyOf(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, v := range have {
		set[strings.ToLower(v)] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[strings.ToLower(w)]; ok {
			return true
		}
	}
	return false
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte, dim int) []float32 {
	out := make([]float32, dim)
	for i := 0; i < dim && (i+1)*4 <= len(buf); i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

// cosineSimilarity returns a value normalized into [0,1], per spec §4.4.
// Raw cosine similarity ranges [-1,1]; the normalization is (cos+1)/2 so
// identical vectors score 1.0 and opposite vectors score 0.0.
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
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return (cos + 1) / 2
}
