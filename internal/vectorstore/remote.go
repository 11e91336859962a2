package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteStore is the network vector service backend (spec §4.4's "a network
// vector service with an HTTP/gRPC client"). It speaks a minimal JSON/HTTP
// protocol against a collection endpoint; gRPC is left for a future
// backend since none of the example pack's vector clients wire a gRPC
// transport for this shape of API.
type RemoteStore struct {
	baseURL    string
	collection string
	dimension  int
	client     *http.Client
	maxRetries int
}

// RemoteOption configures a RemoteStore.
type RemoteOption func(*RemoteStore)

// WithHTTPClient overrides the default http.Client (timeouts, transport).
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *RemoteStore) { r.client = c }
}

// WithMaxRetries overrides the default retry bound for transient errors.
func WithMaxRetries(n int) RemoteOption {
	return func(r *RemoteStore) { r.maxRetries = n }
}

// NewRemoteStore returns a RemoteStore targeting baseURL/collection.
func NewRemoteStore(baseURL, collection string, dimension int, opts ...RemoteOption) *RemoteStore {
	r := &RemoteStore{
		baseURL:    baseURL,
		collection: collection,
		dimension:  dimension,
		client:     &http.Client{Timeout: 30 * time.Second},
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type remoteUpsertRequest struct {
	ID         string         `json:"id"`
	MemoryID   string         `json:"memory_id,omitempty"`
	Kind       string         `json:"kind"`
	Title      string         `json:"title"`
	Tags       []string       `json:"tags,omitempty"`
	Related    []string       `json:"related_files,omitempty"`
	Importance float64        `json:"importance"`
	Vector     []float32      `json:"vector"`
	Extra      map[string]any `json:"extra,omitempty"`
}

func (r *RemoteStore) Upsert(ctx context.Context, rec Record) error {
	if len(rec.Vector) != r.dimension {
		return ErrDimensionMismatch
	}
	body := remoteUpsertRequest{
		ID: rec.ID, MemoryID: rec.MemoryID, Kind: rec.Kind, Title: rec.Title,
		Tags: rec.Tags, Related: rec.Related, Importance: rec.Importance, Vector: rec.Vector, Extra: rec.Extra,
	}
	return r.doWithRetry(ctx, "upsert", func(ctx context.Context) error {
		return r.postJSON(ctx, fmt.Sprintf("/collections/%s/points", r.collection), body, nil)
	})
}

func (r *RemoteStore) Delete(ctx context.Context, id string) error {
	return r.doWithRetry(ctx, "delete", func(ctx context.Context) error {
		return r.deleteRequest(ctx, fmt.Sprintf("/collections/%s/points/%s", r.collection, id))
	})
}

func (r *RemoteStore) DeleteByMemoryID(ctx context.Context, memoryID string) error {
	return r.doWithRetry(ctx, "delete-by-memory-id", func(ctx context.Context) error {
		return r.postJSON(ctx, fmt.Sprintf("/collections/%s/points/delete-by-memory", r.collection), map[string]string{"memory_id": memoryID}, nil)
	})
}

type remoteSearchRequest struct {
	Vector        []float32 `json:"vector"`
	K             int       `json:"k"`
	Kind          string    `json:"kind,omitempty"`
	TagsAnyOf     []string  `json:"tags_any_of,omitempty"`
	RelatedAnyOf  []string  `json:"related_any_of,omitempty"`
	MinImportance float64   `json:"min_importance,omitempty"`
}

type remoteSearchResponse struct {
	Results []struct {
		Record remoteUpsertRequest `json:"record"`
		Score  float64             `json:"score"`
	} `json:"results"`
}

func (r *RemoteStore) Search(ctx context.Context, query []float32, k int, filter Filter) ([]SearchResult, error) {
	if len(query) != r.dimension {
		return nil, ErrDimensionMismatch
	}
	req := remoteSearchRequest{
		Vector: query, K: k, Kind: filter.Kind, TagsAnyOf: filter.TagsAnyOf,
		RelatedAnyOf: filter.RelatedAnyOf, MinImportance: filter.MinImportance,
	}
	var resp remoteSearchResponse
	err := r.doWithRetry(ctx, "search", func(ctx context.Context) error {
		return r.postJSON(ctx, fmt.Sprintf("/collections/%s/search", r.collection), req, &resp)
	})
	if err != nil {
		return nil, err
	}

	out := make([]SearchResult, 0, len(resp.Results))
	for _, res := range resp.Results {
		out = append(out, SearchResult{
			Record: Record{
				ID: res.Record.ID, MemoryID: res.Record.MemoryID, Kind: res.Record.Kind, Title: res.Record.Title,
				Tags: res.Record.Tags, Related: res.Record.Related, Importance: res.Record.Importance,
				Vector: res.Record.Vector, Extra: res.Record.Extra,
			},
			Score: res.Score,
		})
	}
	return out, nil
}

func (r *RemoteStore) Stats(ctx context.Context) (Stats, error) {
	var resp struct {
		Count     int `json:"count"`
		Dimension int `json:"dimension"`
	}
	err := r.doWithRetry(ctx, "stats", func(ctx context.Context) error {
		return r.getJSON(ctx, fmt.Sprintf("/collections/%s", r.collection), &resp)
	})
	if err != nil {
		return Stats{}, err
	}
	return Stats{Count: resp.Count, Dimension: resp.Dimension}, nil
}

func (r *RemoteStore) Close() error { return nil }

// doWithRetry retries fn on transient BackendErrors with exponential
// backoff, per spec §4.4's "transient backend errors are retried a bounded
// number of times with exponential backoff at the caller". Permanent
// errors (including ErrDimensionMismatch and ErrNotFound) return
// immediately.
func (r *RemoteStore) doWithRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	backoff := 200 * time.Millisecond
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		var be *BackendError
		if !asBackendError(err, &be) || !be.Transient {
			return err
		}
		if attempt == r.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return &BackendError{Op: op, Transient: true, Cause: lastErr}
}

func asBackendError(err error, target **BackendError) bool {
	be, ok := err.(*BackendError)
	if !ok {
		return false
	}
	*target = be
	return true
}

func (r *RemoteStore) postJSON(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return &BackendError{Op: "marshal", Cause: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return &BackendError{Op: "new-request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return r.do(req, out)
}

func (r *RemoteStore) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return &BackendError{Op: "new-request", Cause: err}
	}
	return r.do(req, out)
}

func (r *RemoteStore) deleteRequest(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, r.baseURL+path, nil)
	if err != nil {
		return &BackendError{Op: "new-request", Cause: err}
	}
	return r.do(req, nil)
}

func (r *RemoteStore) do(req *http.Request, out any) error {
	resp, err := r.client.Do(req)
	if err != nil {
		return &BackendError{Op: "http", Transient: true, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 500 {
		b, _ := io.ReadAll(resp.Body)
		return &BackendError{Op: "http-status", Transient: true, Cause: fmt.Errorf("status %d: %s", resp.StatusCode, b)}
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return &BackendError{Op: "http-status", Transient: false, Cause: fmt.Errorf("status %d: %s", resp.StatusCode, b)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &BackendError{Op: "decode", Cause: err}
	}
	return nil
}
