package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/decantio/decant/internal/concurrency"
	"github.com/decantio/decant/pkg/logger"
	"github.com/decantio/decant/pkg/pipeline"
	"github.com/decantio/decant/pkg/planner"
	"github.com/decantio/decant/pkg/source"
	"github.com/decantio/decant/pkg/telemetry"
)

var tracer = otel.Tracer("decant/internal/engine")

const defaultMaxParallelBranches = 4

// Local evaluates plans in-process. Records flow through the node graph by
// pushing: each node wraps its downstream's emit function, so evaluation
// needs no intermediate buffering except at concat branches.
type Local struct {
	registry            *source.Registry
	logger              logger.Logger
	maxParallelBranches int
}

var _ Engine = (*Local)(nil)

// LocalOption configures a Local engine.
type LocalOption func(*Local)

// WithLogger sets the logger used for evaluation diagnostics.
func WithLogger(l logger.Logger) LocalOption {
	return func(e *Local) {
		e.logger = l
	}
}

// WithMaxParallelBranches caps how many concat branches evaluate
// concurrently.
func WithMaxParallelBranches(n int) LocalOption {
	return func(e *Local) {
		if n > 0 {
			e.maxParallelBranches = n
		}
	}
}

// NewLocal returns a Local engine resolving source reads through registry.
func NewLocal(registry *source.Registry, opts ...LocalOption) *Local {
	e := &Local{
		registry:            registry,
		logger:              logger.NewNoopLogger(),
		maxParallelBranches: defaultMaxParallelBranches,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run evaluates the plan's terminal node and pushes every output record into
// sink in order.
func (e *Local) Run(ctx context.Context, plan *planner.Plan, sink Sink) error {
	ctx, span := tracer.Start(ctx, "Run", trace.WithAttributes(
		attribute.KeyValue{Key: "plan_size", Value: attribute.IntValue(plan.Size())},
	))
	defer span.End()

	e.logger.Debug(fmt.Sprintf("evaluating plan with %d nodes", plan.Size()))

	err := e.emit(ctx, plan.Terminal(), func(rec pipeline.Record) error {
		return sink.Put(ctx, rec)
	})
	if err != nil {
		telemetry.TraceError(span, err)
	}
	return err
}

// emit evaluates node, invoking out once per output record in order.
func (e *Local) emit(ctx context.Context, node *pipeline.Node, out func(pipeline.Record) error) error {
	switch node.Kind() {
	case pipeline.KindSource:
		return e.emitSource(ctx, node, out)
	case pipeline.KindLiteral:
		return e.emitLiteral(ctx, node, out)
	case pipeline.KindTransform:
		return e.emitTransform(ctx, node, out)
	case pipeline.KindConcat:
		return e.emitConcat(ctx, node, out)
	default:
		return fmt.Errorf("unknown node kind %v", node.Kind())
	}
}

func (e *Local) emitSource(ctx context.Context, node *pipeline.Node, out func(pipeline.Record) error) error {
	src, err := e.registry.Lookup(node.SourceName())
	if err != nil {
		return fmt.Errorf("resolve %s: %w", node, err)
	}

	raw, err := src.Read(ctx)
	if err != nil {
		return fmt.Errorf("read %s: %w", node, err)
	}

	iter := source.NewConvertingIterator(node.Schema(), raw)
	defer iter.Stop()

	for {
		rec, err := iter.Next(ctx)
		if err != nil {
			if err == pipeline.ErrIteratorDone {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return nil
			}
			return fmt.Errorf("read %s: %w", node, err)
		}
		if err := out(rec); err != nil {
			return err
		}
	}
}

func (e *Local) emitLiteral(ctx context.Context, node *pipeline.Node, out func(pipeline.Record) error) error {
	for _, rec := range node.Records() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := out(rec); err != nil {
			return err
		}
	}
	return nil
}

func (e *Local) emitTransform(ctx context.Context, node *pipeline.Node, out func(pipeline.Record) error) error {
	tr := node.Transform()
	return e.emit(ctx, node.Upstreams()[0], func(in pipeline.Record) error {
		outputs, err := tr.Apply(in)
		if err != nil {
			return fmt.Errorf("apply %s: %w", node, err)
		}
		for _, rec := range outputs {
			if err := out(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// emitConcat evaluates every branch concurrently, buffering each branch's
// output, then replays the buffers in upstream order so the concatenated
// sequence stays deterministic.
func (e *Local) emitConcat(ctx context.Context, node *pipeline.Node, out func(pipeline.Record) error) error {
	branches := node.Upstreams()
	if len(branches) == 1 {
		return e.emit(ctx, branches[0], out)
	}

	buffers := make([][]pipeline.Record, len(branches))
	pool := concurrency.NewPool(ctx, e.maxParallelBranches)
	for i, branch := range branches {
		pool.Go(func(ctx context.Context) error {
			return e.emit(ctx, branch, func(rec pipeline.Record) error {
				buffers[i] = append(buffers[i], rec)
				return nil
			})
		})
	}
	if err := pool.Wait(); err != nil {
		return err
	}

	for _, buffer := range buffers {
		for _, rec := range buffer {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := out(rec); err != nil {
				return err
			}
		}
	}
	return nil
}
