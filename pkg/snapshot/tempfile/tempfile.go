// Package tempfile implements the transient-file snapshot backend used for
// distributed runtime mode. Materialized output is written to a snapshot
// file and immediately registered as a session source, so iterating the
// handle's node streams straight from the file with no further evaluation.
package tempfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/decantio/decant/internal/build"
	"github.com/decantio/decant/internal/codec"
	"github.com/decantio/decant/internal/engine"
	"github.com/decantio/decant/pkg/logger"
	"github.com/decantio/decant/pkg/pipeline"
	"github.com/decantio/decant/pkg/planner"
	"github.com/decantio/decant/pkg/snapshot"
	"github.com/decantio/decant/pkg/source"
)

var tracer = otel.Tracer("decant/pkg/snapshot/tempfile")

var (
	snapshotFilesWrittenCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "snapshot_files_written_count",
		Help:      "The total number of snapshot files written.",
	})

	snapshotRecordsWrittenCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "snapshot_records_written_count",
		Help:      "The total number of records written into snapshot files.",
	})

	snapshotBytesWrittenCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "snapshot_bytes_written_count",
		Help:      "The total number of bytes written into snapshot files.",
	})
)

const (
	filePrefix = "snapshot-"
	fileExt    = ".rec"
)

// IsSnapshotFile reports whether name looks like a snapshot file produced by
// this backend.
func IsSnapshotFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, filePrefix) && strings.HasSuffix(base, fileExt)
}

// DefaultDir returns the directory snapshot files land in when a store is
// built without an explicit one.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), "decant")
}

// Store materializes plans into transient snapshot files under one
// directory.
type Store struct {
	engine   engine.Engine
	registry *source.Registry
	dir      string
	logger   logger.Logger
}

var _ snapshot.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for materialization diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New returns a transient-file store evaluating plans with e and registering
// finished snapshot files in registry. An empty dir falls back to a decant
// directory under the OS temp root.
func New(e engine.Engine, registry *source.Registry, dir string, opts ...Option) *Store {
	if dir == "" {
		dir = DefaultDir()
	}

	s := &Store{
		engine:   e,
		registry: registry,
		dir:      dir,
		logger:   logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the directory snapshot files are written into.
func (s *Store) Dir() string {
	return s.dir
}

// Kind implements snapshot.Store.
func (s *Store) Kind() snapshot.BackendKind {
	return snapshot.BackendTransientFile
}

// Materialize streams the plan's output into a fresh snapshot file, then
// registers the file as a source under its path. The returned handle's node
// is a direct read of that source, so iterating it takes the same path as
// any other registered source. A failed run leaves the partial file on disk
// but never registers it.
func (s *Store) Materialize(ctx context.Context, plan *planner.Plan) (*snapshot.Handle, error) {
	ctx, span := tracer.Start(ctx, "tempfile.Materialize")
	defer span.End()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}

	location := filepath.Join(s.dir, filePrefix+uuid.NewString()+fileExt)
	file, err := os.OpenFile(location, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create snapshot file: %w", err)
	}

	schema := plan.Terminal().Schema()
	w, err := codec.NewWriter(file, schema)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	runErr := s.engine.Run(ctx, plan, engine.SinkFunc(func(ctx context.Context, rec pipeline.Record) error {
		return w.WriteRecord(rec)
	}))
	if runErr == nil {
		runErr = w.Flush()
	}
	closeErr := file.Close()
	if runErr != nil {
		return nil, runErr
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close snapshot file: %w", closeErr)
	}

	info, err := os.Stat(location)
	if err != nil {
		return nil, fmt.Errorf("stat snapshot file: %w", err)
	}

	if err := s.registry.Register(location, NewSource(location, schema)); err != nil {
		return nil, fmt.Errorf("register snapshot source: %w", err)
	}

	node := pipeline.NewSourceNode(location, schema)
	handle := snapshot.NewHandle(snapshot.BackendTransientFile, node,
		snapshot.WithLocation(location),
		snapshot.WithStats(w.Count(), info.Size()),
	)

	snapshotFilesWrittenCounter.Inc()
	snapshotRecordsWrittenCounter.Add(float64(handle.Records()))
	snapshotBytesWrittenCounter.Add(float64(handle.Bytes()))

	s.logger.Debug("materialized plan into snapshot file",
		zap.String("snapshot_id", handle.ID()),
		zap.String("location", location),
		zap.Int64("records", handle.Records()),
		zap.Int64("bytes", handle.Bytes()),
	)
	return handle, nil
}
