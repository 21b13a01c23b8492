package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/decantio/decant/pkg/pipeline"
)

func TestMemorySource(t *testing.T) {
	ctx := context.Background()
	src := NewMemory(userSchema(), [][]any{
		{int64(1), "anne"},
		{int64(2), "bob"},
	})

	t.Run("reads_are_independent", func(t *testing.T) {
		first, err := src.Read(ctx)
		require.NoError(t, err)
		second, err := src.Read(ctx)
		require.NoError(t, err)

		a, err := pipeline.Drain(ctx, first)
		require.NoError(t, err)
		b, err := pipeline.Drain(ctx, second)
		require.NoError(t, err)

		require.Len(t, a, 2)
		require.Equal(t, a, b)
	})

	t.Run("empty_source_is_done_immediately", func(t *testing.T) {
		iter, err := NewMemory(userSchema(), nil).Read(ctx)
		require.NoError(t, err)
		defer iter.Stop()

		_, err = iter.Next(ctx)
		require.ErrorIs(t, err, pipeline.ErrIteratorDone)
	})
}

func TestConvertingIterator(t *testing.T) {
	ctx := context.Background()

	t.Run("coerces_tuples_to_schema_types", func(t *testing.T) {
		// JSON-decoded numbers arrive as float64.
		src := NewMemory(userSchema(), [][]any{
			{float64(1), "anne"},
			{float64(2), "bob"},
		})
		iter, err := src.Read(ctx)
		require.NoError(t, err)

		records, err := pipeline.Drain[pipeline.Record](ctx, NewConvertingIterator(userSchema(), iter))
		require.NoError(t, err)
		require.Equal(t, []pipeline.Record{
			{int64(1), "anne"},
			{int64(2), "bob"},
		}, records)
	})

	t.Run("unconvertible_tuple_fails_next", func(t *testing.T) {
		src := NewMemory(userSchema(), [][]any{
			{"not-a-number", "anne"},
		})
		iter, err := src.Read(ctx)
		require.NoError(t, err)

		converting := NewConvertingIterator(userSchema(), iter)
		defer converting.Stop()

		_, err = converting.Next(ctx)
		require.Error(t, err)
		require.NotErrorIs(t, err, pipeline.ErrIteratorDone)
		require.Contains(t, err.Error(), "convert tuple")
	})

	t.Run("arity_mismatch_fails_next", func(t *testing.T) {
		src := NewMemory(userSchema(), [][]any{
			{int64(1)},
		})
		iter, err := src.Read(ctx)
		require.NoError(t, err)

		converting := NewConvertingIterator(userSchema(), iter)
		defer converting.Stop()

		_, err = converting.Next(ctx)
		require.Error(t, err)
	})
}
