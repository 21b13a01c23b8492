package concurrency

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPool(t *testing.T) {
	t.Run("runs_all_tasks", func(t *testing.T) {
		pool := NewPool(context.Background(), 2)

		var ran atomic.Int32
		for i := 0; i < 5; i++ {
			pool.Go(func(ctx context.Context) error {
				ran.Add(1)
				return nil
			})
		}

		require.NoError(t, pool.Wait())
		require.Equal(t, int32(5), ran.Load())
	})

	t.Run("first_error_cancels_siblings", func(t *testing.T) {
		pool := NewPool(context.Background(), 2)
		boom := errors.New("boom")

		pool.Go(func(ctx context.Context) error {
			return boom
		})
		pool.Go(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})

		require.ErrorIs(t, pool.Wait(), boom)
	})

	t.Run("respects_parent_cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		pool := NewPool(ctx, 1)

		pool.Go(func(ctx context.Context) error {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		})

		require.ErrorIs(t, pool.Wait(), context.Canceled)
	})
}
