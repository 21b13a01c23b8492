package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/decantio/decant/internal/engine"
	"github.com/decantio/decant/pkg/pipeline"
	"github.com/decantio/decant/pkg/planner"
	"github.com/decantio/decant/pkg/snapshot"
	"github.com/decantio/decant/pkg/source"
)

func numberSchema() pipeline.Schema {
	return pipeline.NewSchema(pipeline.Field{Name: "n", Type: pipeline.TypeInt})
}

func planOf(t *testing.T, terminal *pipeline.Node) *planner.Plan {
	t.Helper()

	plan, err := planner.New().Plan(terminal)
	require.NoError(t, err)
	return plan
}

func TestMaterialize(t *testing.T) {
	ctx := context.Background()

	t.Run("captures_records_behind_a_literal_node", func(t *testing.T) {
		reg := source.NewRegistry()
		require.NoError(t, reg.Register("numbers", source.NewMemory(numberSchema(), [][]any{
			{int64(1)}, {int64(2)}, {int64(3)},
		})))

		double := pipeline.Map("double", func(rec pipeline.Record) (pipeline.Record, error) {
			return pipeline.Record{rec[0].(int64) * 2}, nil
		})
		terminal := pipeline.NewSourceNode("numbers", numberSchema()).Compose(double)

		store := New(engine.NewLocal(reg))
		require.Equal(t, snapshot.BackendMemory, store.Kind())

		handle, err := store.Materialize(ctx, planOf(t, terminal))
		require.NoError(t, err)

		require.NotEmpty(t, handle.ID())
		require.Equal(t, snapshot.BackendMemory, handle.Kind())
		require.Empty(t, handle.Location())
		require.Equal(t, int64(3), handle.Records())

		node := handle.Node()
		require.Equal(t, pipeline.KindLiteral, node.Kind())
		require.Equal(t, []pipeline.Record{{int64(2)}, {int64(4)}, {int64(6)}}, node.Records())
	})

	t.Run("empty_output_yields_empty_literal", func(t *testing.T) {
		reg := source.NewRegistry()
		require.NoError(t, reg.Register("numbers", source.NewMemory(numberSchema(), nil)))

		store := New(engine.NewLocal(reg))
		handle, err := store.Materialize(ctx, planOf(t, pipeline.NewSourceNode("numbers", numberSchema())))
		require.NoError(t, err)

		require.Zero(t, handle.Records())
		require.Empty(t, handle.Node().Records())
	})

	t.Run("failed_run_returns_no_handle", func(t *testing.T) {
		reg := source.NewRegistry()
		require.NoError(t, reg.Register("numbers", source.NewMemory(numberSchema(), [][]any{
			{int64(1)}, {int64(2)},
		})))

		boom := errors.New("boom")
		failing := pipeline.Map("explode", func(rec pipeline.Record) (pipeline.Record, error) {
			if rec[0].(int64) == 2 {
				return nil, boom
			}
			return rec, nil
		})
		terminal := pipeline.NewSourceNode("numbers", numberSchema()).Compose(failing)

		store := New(engine.NewLocal(reg))
		handle, err := store.Materialize(ctx, planOf(t, terminal))
		require.ErrorIs(t, err, boom)
		require.Nil(t, handle)
	})

	t.Run("repeated_materializations_are_independent", func(t *testing.T) {
		reg := source.NewRegistry()
		require.NoError(t, reg.Register("numbers", source.NewMemory(numberSchema(), [][]any{
			{int64(5)},
		})))

		store := New(engine.NewLocal(reg))
		plan := planOf(t, pipeline.NewSourceNode("numbers", numberSchema()))

		first, err := store.Materialize(ctx, plan)
		require.NoError(t, err)
		second, err := store.Materialize(ctx, plan)
		require.NoError(t, err)

		require.NotEqual(t, first.ID(), second.ID())
		require.NotSame(t, first.Node(), second.Node())
		require.Equal(t, first.Node().Records(), second.Node().Records())
	})
}
