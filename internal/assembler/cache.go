package assembler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/rcae/rcae/internal/storage"
)

// contextCache memoizes AssembleResults keyed by (queryHash, budget,
// template, flags, data version) (spec §4.7 step 6). It is invalidated
// implicitly whenever the underlying write counters move, and explicitly via
// ResetContextCache.
type contextCache struct {
	mu      sync.Mutex
	entries map[string]*AssembleResult
}

func newContextCache() *contextCache {
	return &contextCache{entries: map[string]*AssembleResult{}}
}

func (c *contextCache) get(key string) (*AssembleResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[key]
	return r, ok
}

func (c *contextCache) put(key string, result *AssembleResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = result
}

// reset drops every cached entry (spec §4.7 step 6: "resetContextCache() is
// an exposed imperative").
func (c *contextCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]*AssembleResult{}
}

// cacheKey folds the query, budget, template, and flags together with the
// store's write counters, so that a write affecting memories/entities/
// reports/code nodes changes the key without needing an explicit pub/sub
// invalidation path (spec §8: "a write... followed by the same query
// produces a fresh context differing from the cached one iff the change
// affected its top-k" — folding in the counters is the conservative
// superset of that: any relevant write forces a fresh assembly).
func (a *Assembler) cacheKey(ctx context.Context, opts AssembleOptions) (string, error) {
	counters, err := a.store.WriteCounters(ctx)
	if err != nil {
		return "", fmt.Errorf("assembler: cache key: %w", err)
	}

	kinds := make([]string, 0, len(counters))
	for k := range counters {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	h := sha256.New()
	fmt.Fprintf(h, "q=%s|budget=%d|template=%s|memtopk=%d|codetopk=%d|commlevel=%d|reports=%t",
		opts.Query, opts.Budget, opts.Template, opts.MemoryTopK, opts.CodeTopK, opts.CommunityLevel, opts.IncludeReports)
	for _, k := range kinds {
		fmt.Fprintf(h, "|%s=%d", k, counters[storage.WriteKind(k)])
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
