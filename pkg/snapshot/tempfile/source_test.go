package tempfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/decantio/decant/internal/codec"
	"github.com/decantio/decant/internal/engine"
	"github.com/decantio/decant/pkg/pipeline"
	"github.com/decantio/decant/pkg/source"
)

func TestSnapshotSource(t *testing.T) {
	ctx := context.Background()

	t.Run("missing_file_fails_read", func(t *testing.T) {
		src := NewSource(filepath.Join(t.TempDir(), "snapshot-gone.rec"), numberSchema())
		_, err := src.Read(ctx)
		require.Error(t, err)
	})

	t.Run("garbage_file_fails_read", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "snapshot-bad.rec")
		require.NoError(t, os.WriteFile(path, []byte("not a snapshot"), 0o600))

		_, err := NewSource(path, numberSchema()).Read(ctx)
		require.ErrorIs(t, err, codec.ErrCorruptSnapshot)
	})

	t.Run("schema_mismatch_fails_read", func(t *testing.T) {
		reg := source.NewRegistry()
		terminal := registerNumbers(t, reg, 1)
		store := New(engine.NewLocal(reg), reg, t.TempDir())

		handle, err := store.Materialize(ctx, planOf(t, terminal))
		require.NoError(t, err)

		other := pipeline.NewSchema(pipeline.Field{Name: "other", Type: pipeline.TypeString})
		_, err = NewSource(handle.Location(), other).Read(ctx)
		require.ErrorIs(t, err, codec.ErrCorruptSnapshot)
	})
}
