package tempfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

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

func registerNumbers(t *testing.T, reg *source.Registry, values ...int64) *pipeline.Node {
	t.Helper()

	tuples := make([][]any, 0, len(values))
	for _, v := range values {
		tuples = append(tuples, []any{v})
	}
	require.NoError(t, reg.Register("numbers", source.NewMemory(numberSchema(), tuples)))
	return pipeline.NewSourceNode("numbers", numberSchema())
}

func TestMaterialize(t *testing.T) {
	t.Cleanup(func() {
		goleak.VerifyNone(t)
	})
	ctx := context.Background()

	t.Run("writes_file_and_registers_reentry_source", func(t *testing.T) {
		reg := source.NewRegistry()
		terminal := registerNumbers(t, reg, 1, 2, 3)

		dir := t.TempDir()
		store := New(engine.NewLocal(reg), reg, dir)
		require.Equal(t, snapshot.BackendTransientFile, store.Kind())
		require.Equal(t, dir, store.Dir())

		handle, err := store.Materialize(ctx, planOf(t, terminal))
		require.NoError(t, err)

		location := handle.Location()
		require.Equal(t, dir, filepath.Dir(location))
		require.True(t, IsSnapshotFile(location))
		require.True(t, strings.HasPrefix(filepath.Base(location), "snapshot-"))
		require.True(t, strings.HasSuffix(location, ".rec"))

		info, err := os.Stat(location)
		require.NoError(t, err)
		require.Equal(t, info.Size(), handle.Bytes())
		require.Equal(t, int64(3), handle.Records())

		// The handle's node is a plain source read of the registered file.
		node := handle.Node()
		require.Equal(t, pipeline.KindSource, node.Kind())
		require.True(t, node.IsDirectSourceRead())
		require.Equal(t, location, node.SourceName())
		require.True(t, reg.IsRegistered(location))
	})

	t.Run("snapshot_file_replays_the_captured_records", func(t *testing.T) {
		reg := source.NewRegistry()
		terminal := registerNumbers(t, reg, 4, 5)

		store := New(engine.NewLocal(reg), reg, t.TempDir())
		handle, err := store.Materialize(ctx, planOf(t, terminal))
		require.NoError(t, err)

		src, err := reg.Lookup(handle.Location())
		require.NoError(t, err)
		require.True(t, src.Schema().Equal(numberSchema()))

		iter, err := src.Read(ctx)
		require.NoError(t, err)
		records, err := pipeline.Drain[pipeline.Record](ctx, source.NewConvertingIterator(numberSchema(), iter))
		require.NoError(t, err)
		require.Equal(t, []pipeline.Record{{int64(4)}, {int64(5)}}, records)
	})

	t.Run("failed_run_registers_nothing", func(t *testing.T) {
		reg := source.NewRegistry()
		src := registerNumbers(t, reg, 1, 2)

		boom := errors.New("boom")
		failing := pipeline.Map("explode", func(rec pipeline.Record) (pipeline.Record, error) {
			if rec[0].(int64) == 2 {
				return nil, boom
			}
			return rec, nil
		})

		dir := t.TempDir()
		store := New(engine.NewLocal(reg), reg, dir)
		handle, err := store.Materialize(ctx, planOf(t, src.Compose(failing)))
		require.ErrorIs(t, err, boom)
		require.Nil(t, handle)

		// Only the original source remains resolvable.
		require.Equal(t, []string{"numbers"}, reg.Names())
	})

	t.Run("default_directory_under_temp_root", func(t *testing.T) {
		reg := source.NewRegistry()
		store := New(engine.NewLocal(reg), reg, "")
		require.Equal(t, filepath.Join(os.TempDir(), "decant"), store.Dir())
	})
}

// Concurrent materializations must never collide on a snapshot location.
func TestMaterializeConcurrentLocations(t *testing.T) {
	t.Cleanup(func() {
		goleak.VerifyNone(t)
	})

	reg := source.NewRegistry()
	terminal := registerNumbers(t, reg, 1, 2, 3)
	store := New(engine.NewLocal(reg), reg, t.TempDir())
	plan := planOf(t, terminal)

	const n = 64

	var (
		mu        sync.Mutex
		locations = map[string]struct{}{}
	)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			handle, err := store.Materialize(ctx, plan)
			if err != nil {
				return err
			}
			mu.Lock()
			locations[handle.Location()] = struct{}{}
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Len(t, locations, n)

	// One registration per snapshot plus the original source.
	require.Equal(t, n+1, reg.Len())
}

func TestIsSnapshotFile(t *testing.T) {
	require.True(t, IsSnapshotFile("/tmp/decant/snapshot-123e4567.rec"))
	require.True(t, IsSnapshotFile("snapshot-abc.rec"))
	require.False(t, IsSnapshotFile("/tmp/decant/other-123.rec"))
	require.False(t, IsSnapshotFile("/tmp/decant/snapshot-123.tmp"))
	require.False(t, IsSnapshotFile("data.jsonl"))
}
