// Package concurrency wraps the conc pool with the cancellation and error
// semantics evaluation relies on.
package concurrency

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// NewPool returns a pool whose tasks respect context cancellation: the first
// task error cancels the remaining tasks, and Wait returns only that first
// error.
func NewPool(ctx context.Context, maxGoroutines int) *pool.ContextPool {
	return pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(maxGoroutines)
}
