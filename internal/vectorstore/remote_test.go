package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRemoteUpsertRejectsDimensionMismatch(t *testing.T) {
	store := NewRemoteStore("http://unused", "memories", 3)
	err := store.Upsert(context.Background(), Record{ID: "v1", Vector: []float32{1, 2}})
	if err != ErrDimensionMismatch {
		t.Errorf("Upsert() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestRemoteSearchParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/memories/search" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"record": map[string]any{"id": "v1", "kind": "memory", "title": "hit"}, "score": 0.97},
			},
		})
	}))
	defer srv.Close()

	store := NewRemoteStore(srv.URL, "memories", 2)
	results, err := store.Search(context.Background(), []float32{1, 0}, 5, Filter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Record.ID != "v1" || results[0].Score != 0.97 {
		t.Errorf("Search() = %+v, want one hit with id=v1 score=0.97", results)
	}
}

func TestRemoteRetriesOnTransientError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"count": 5, "dimension": 2})
	}))
	defer srv.Close()

	store := NewRemoteStore(srv.URL, "memories", 2, WithMaxRetries(5))
	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Count != 5 {
		t.Errorf("Stats().Count = %d, want 5", stats.Count)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRemoteDoesNotRetryPermanentError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	store := NewRemoteStore(srv.URL, "memories", 2, WithMaxRetries(5))
	_, err := store.Stats(context.Background())
	if err == nil {
		t.Fatal("Stats() error = nil, want error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on permanent error)", attempts)
	}
}

func TestRemoteDeleteReturnsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := NewRemoteStore(srv.URL, "memories", 2)
	err := store.Delete(context.Background(), "missing")
	if err != ErrNotFound {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}
