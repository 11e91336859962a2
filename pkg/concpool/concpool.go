// Package concpool provides the bounded-concurrency batch driver named in
// the Design Notes ("Async extraction" -> bounded-concurrency batch driver
// with a fixed concurrency and inter-batch pause; cancellation propagated to
// in-flight requests"). It wraps sourcegraph/conc's pool so every batch
// fan-out in the engine — the code-graph embedding queue, GraphRAG entity
// embedding, and the Context Assembler's parallel candidate fetch — goes
// through one place.
package concpool

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// Batch runs fn over items with at most concurrency goroutines in flight at
// once, collecting one result per item in input order. A context cancellation
// stops spawning new work and callers observe ctx.Err() via the returned
// error; in-flight goroutines are not force-killed (Go has no such
// mechanism) but fn is expected to check ctx itself for long-running work.
func Batch[T, R any](ctx context.Context, concurrency int, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]R, len(items))
	p := pool.New().WithMaxGoroutines(concurrency).WithContext(ctx).WithCancelOnError()

	for i, item := range items {
		i, item := i, item
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := fn(ctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// BatchTolerant is like Batch but never aborts the whole run on a single
// item's failure — it matches the indexer's "batch failures are logged,
// skipped, and do not abort the overall scan" policy (spec §4.2, §7). Errors
// are returned alongside results, one slot per item, nil where fn succeeded.
func BatchTolerant[T, R any](ctx context.Context, concurrency int, items []T, fn func(context.Context, T) (R, error)) ([]R, []error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]R, len(items))
	errs := make([]error, len(items))
	p := pool.New().WithMaxGoroutines(concurrency)

	for i, item := range items {
		i, item := i, item
		p.Go(func() {
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return
			}
			r, err := fn(ctx, item)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = r
		})
	}
	p.Wait()
	return results, errs
}
