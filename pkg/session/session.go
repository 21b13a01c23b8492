// Package session ties the pieces together for one interactive run: a
// source registry, a runtime mode fixed at construction, and the
// materializer serving that mode. Its iteration entry points decide, per
// node, between streaming a source directly and materializing first.
package session

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/decantio/decant/internal/engine"
	"github.com/decantio/decant/pkg/logger"
	"github.com/decantio/decant/pkg/materialize"
	"github.com/decantio/decant/pkg/pipeline"
	"github.com/decantio/decant/pkg/planner"
	"github.com/decantio/decant/pkg/snapshot"
	"github.com/decantio/decant/pkg/snapshot/memory"
	"github.com/decantio/decant/pkg/snapshot/tempfile"
	"github.com/decantio/decant/pkg/source"
)

// Materializer materializes a terminal node into a snapshot handle.
type Materializer interface {
	Materialize(ctx context.Context, terminal *pipeline.Node) (*snapshot.Handle, error)
}

// Session is the interactive entry point of decant. All methods are safe
// for concurrent use.
type Session struct {
	id           string
	registry     *source.Registry
	mode         materialize.RuntimeMode
	materializer Materializer
	logger       logger.Logger
	dumpWriter   io.Writer
	snapshotDir  string
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger, also threaded into the engine and
// snapshot stores built by the session.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithMode fixes the session's runtime mode. Defaults to local.
func WithMode(mode materialize.RuntimeMode) Option {
	return func(s *Session) {
		s.mode = mode
	}
}

// WithSnapshotDir sets the directory the transient-file backend writes
// snapshot files into.
func WithSnapshotDir(dir string) Option {
	return func(s *Session) {
		s.snapshotDir = dir
	}
}

// WithDumpWriter sets the diagnostic stream Dump writes records to.
// Defaults to standard output.
func WithDumpWriter(w io.Writer) Option {
	return func(s *Session) {
		s.dumpWriter = w
	}
}

// WithMaterializer replaces the materializer the session builds for its
// mode. The caller is responsible for keeping the replacement consistent
// with the session's registry.
func WithMaterializer(m Materializer) Option {
	return func(s *Session) {
		s.materializer = m
	}
}

// New returns a ready session. Unless WithMaterializer overrides it, the
// session wires a local evaluation engine and both snapshot backends over
// its own registry.
func New(opts ...Option) *Session {
	s := &Session{
		id:         ulid.Make().String(),
		registry:   source.NewRegistry(),
		mode:       materialize.ModeLocal,
		logger:     logger.NewNoopLogger(),
		dumpWriter: os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.materializer == nil {
		eng := engine.NewLocal(s.registry, engine.WithLogger(s.logger))
		stores := []snapshot.Store{
			memory.New(eng, memory.WithLogger(s.logger)),
			tempfile.New(eng, s.registry, s.snapshotDir, tempfile.WithLogger(s.logger)),
		}
		s.materializer = materialize.New(stores,
			materialize.WithMode(s.mode),
			materialize.WithLogger(s.logger),
		)
	}

	s.logger.Debug("session created",
		zap.String("session_id", s.id),
		zap.String("mode", s.mode.String()),
	)
	return s
}

// ID returns the session's unique id.
func (s *Session) ID() string {
	return s.id
}

// Mode returns the session's runtime mode.
func (s *Session) Mode() materialize.RuntimeMode {
	return s.mode
}

// Registry returns the session's source registry.
func (s *Session) Registry() *source.Registry {
	return s.registry
}

// Register binds name to src for the lifetime of the session.
func (s *Session) Register(name string, src source.Source) error {
	return s.registry.Register(name, src)
}

// Deregister removes the binding for name. Nodes already reading the name
// fail on their next iteration.
func (s *Session) Deregister(name string) error {
	return s.registry.Deregister(name)
}

// IsRegistered reports whether name currently resolves.
func (s *Session) IsRegistered(name string) bool {
	return s.registry.IsRegistered(name)
}

// Materialize produces a snapshot of pipe's output on the backend implied
// by the session's mode. The returned handle's node composes and iterates
// like any other node.
func (s *Session) Materialize(ctx context.Context, pipe *pipeline.Node) (*snapshot.Handle, error) {
	return s.materializer.Materialize(ctx, pipe)
}

// Iterate opens pull-based iteration over pipe's output. The sequence is
// finite and single-pass; callers stop it via Stop or by draining it.
//
// The decision procedure, in order: a head node directly reading a
// registered source streams from the source with no materialization; a node
// holding an in-memory collected result replays the collection; everything
// else materializes once and iterates the materialized node, which by
// construction lands in one of the first two cases.
func (s *Session) Iterate(ctx context.Context, pipe *pipeline.Node) (pipeline.RecordIterator, error) {
	if pipe == nil {
		return nil, fmt.Errorf("nil node: %w", planner.ErrInvalidPlan)
	}

	if pipe.IsDirectSourceRead() {
		name := pipe.SourceName()
		src, err := s.registry.Lookup(name)
		if err != nil {
			// A direct-read node over an unbound name is an internal
			// consistency failure, never a materialization trigger.
			return nil, fmt.Errorf("direct read of %q: %w", name, err)
		}
		raw, err := src.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("open source %q: %w", name, err)
		}
		s.logger.Debug("iterating source directly",
			zap.String("session_id", s.id),
			zap.String("source", name),
		)
		return source.NewConvertingIterator(pipe.Schema(), raw), nil
	}

	if pipe.Kind() == pipeline.KindLiteral {
		return pipeline.NewStaticRecordIterator(pipe.Records()), nil
	}

	handle, err := s.materializer.Materialize(ctx, pipe)
	if err != nil {
		return nil, err
	}
	return s.Iterate(ctx, handle.Node())
}

// Collect fully drains Iterate into an ordered collection. The result must
// fit in memory; that is the caller's responsibility. On any failure no
// records are returned.
func (s *Session) Collect(ctx context.Context, pipe *pipeline.Node) ([]pipeline.Record, error) {
	iter, err := s.Iterate(ctx, pipe)
	if err != nil {
		return nil, err
	}
	return pipeline.Drain[pipeline.Record](ctx, iter)
}

// Dump drains Iterate, writing each record to the session's dump writer as
// tab-separated name=value pairs.
func (s *Session) Dump(ctx context.Context, pipe *pipeline.Node) error {
	iter, err := s.Iterate(ctx, pipe)
	if err != nil {
		return err
	}
	defer iter.Stop()

	schema := pipe.Schema()
	for {
		rec, err := iter.Next(ctx)
		if err != nil {
			if err == pipeline.ErrIteratorDone {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return nil
			}
			return err
		}
		if _, err := fmt.Fprintln(s.dumpWriter, schema.FormatRecord(rec)); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
}

// Close deregisters every source binding and releases sources holding
// external resources. The session must not be used afterwards.
func (s *Session) Close() {
	for name, src := range s.registry.Sources() {
		if closer, ok := src.(interface{ Close() }); ok {
			closer.Close()
		}
		_ = s.registry.Deregister(name)
	}

	s.logger.Debug("session closed", zap.String("session_id", s.id))
}
