// Package memory implements the in-process snapshot backend used for local
// runtime mode.
package memory

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/decantio/decant/internal/engine"
	"github.com/decantio/decant/pkg/logger"
	"github.com/decantio/decant/pkg/pipeline"
	"github.com/decantio/decant/pkg/planner"
	"github.com/decantio/decant/pkg/snapshot"
)

var tracer = otel.Tracer("decant/pkg/snapshot/memory")

// Store materializes plans into in-process record collections.
type Store struct {
	engine engine.Engine
	logger logger.Logger
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

// New returns a memory-backed store evaluating plans with e.
func New(e engine.Engine, opts ...Option) *Store {
	s := &Store{
		engine: e,
		logger: logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Kind implements snapshot.Store.
func (s *Store) Kind() snapshot.BackendKind {
	return snapshot.BackendMemory
}

// Materialize collects the plan's output into memory and returns a handle
// whose node replays the collection. A failed run returns no handle; records
// collected before the failure are discarded.
func (s *Store) Materialize(ctx context.Context, plan *planner.Plan) (*snapshot.Handle, error) {
	ctx, span := tracer.Start(ctx, "memory.Materialize")
	defer span.End()

	var records []pipeline.Record
	err := s.engine.Run(ctx, plan, engine.SinkFunc(func(ctx context.Context, rec pipeline.Record) error {
		records = append(records, rec)
		return nil
	}))
	if err != nil {
		return nil, err
	}

	node := pipeline.NewLiteralNode(plan.Terminal().Schema(), records)
	handle := snapshot.NewHandle(snapshot.BackendMemory, node,
		snapshot.WithStats(int64(len(records)), 0),
	)

	s.logger.Debug("materialized plan into memory",
		zap.String("snapshot_id", handle.ID()),
		zap.Int64("records", handle.Records()),
	)
	return handle, nil
}
