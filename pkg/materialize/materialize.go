// Package materialize orchestrates on-demand materialization: plan the
// minimal subgraph for a node, pick the backend implied by the session's
// runtime mode, and hand the plan to that backend's store.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/decantio/decant/internal/build"
	"github.com/decantio/decant/pkg/logger"
	"github.com/decantio/decant/pkg/pipeline"
	"github.com/decantio/decant/pkg/planner"
	"github.com/decantio/decant/pkg/snapshot"
	"github.com/decantio/decant/pkg/telemetry"
)

var tracer = otel.Tracer("decant/pkg/materialize")

var (
	materializationsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "materializations_count",
		Help:      "The total number of materialization requests, labeled by backend and outcome.",
	}, []string{"backend", "outcome"})

	materializationDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:                       build.ProjectName,
		Name:                            "materialization_duration_ms",
		Help:                            "The materialization latency in milliseconds, labeled by backend.",
		Buckets:                         []float64{1, 5, 25, 100, 500, 2000, 10000},
		NativeHistogramBucketFactor:     1.1,
		NativeHistogramMaxBucketNumber:  100,
		NativeHistogramMinResetDuration: time.Hour,
	}, []string{"backend"})
)

// ErrMaterializationFailed wraps every runtime failure to materialize a
// node. The underlying cause stays reachable through the error chain.
var ErrMaterializationFailed = errors.New("materialization failed")

// Materializer materializes nodes for one session. It is safe for
// concurrent use.
type Materializer struct {
	planner *planner.Planner
	stores  map[snapshot.BackendKind]snapshot.Store
	mode    RuntimeMode
	logger  logger.Logger
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithMode fixes the runtime mode backends are selected for. Defaults to
// ModeLocal.
func WithMode(mode RuntimeMode) Option {
	return func(m *Materializer) {
		m.mode = mode
	}
}

// WithLogger sets the logger used for materialization diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(m *Materializer) {
		m.logger = l
	}
}

// New returns a Materializer dispatching to the given stores, keyed by their
// backend kind.
func New(stores []snapshot.Store, opts ...Option) *Materializer {
	byKind := make(map[snapshot.BackendKind]snapshot.Store, len(stores))
	for _, store := range stores {
		byKind[store.Kind()] = store
	}

	m := &Materializer{
		planner: planner.New(),
		stores:  byKind,
		mode:    ModeLocal,
		logger:  logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mode returns the runtime mode the materializer selects backends for.
func (m *Materializer) Mode() RuntimeMode {
	return m.mode
}

// Materialize plans the minimal subgraph for terminal, runs it on the
// backend selected for the session's mode and returns the resulting handle.
// A planning failure passes through untouched; every runtime failure is
// wrapped in ErrMaterializationFailed.
func (m *Materializer) Materialize(ctx context.Context, terminal *pipeline.Node) (*snapshot.Handle, error) {
	backend := SelectBackend(m.mode)

	ctx, span := tracer.Start(ctx, "Materialize", trace.WithAttributes(
		attribute.KeyValue{Key: "backend", Value: attribute.StringValue(backend.String())},
	))
	defer span.End()

	start := time.Now()

	plan, err := m.planner.Plan(terminal)
	if err != nil {
		materializationsCounter.WithLabelValues(backend.String(), "invalid").Inc()
		return nil, err
	}

	store, ok := m.stores[backend]
	if !ok {
		materializationsCounter.WithLabelValues(backend.String(), "failure").Inc()
		return nil, fmt.Errorf("%w: no store for backend %s", ErrMaterializationFailed, backend)
	}

	handle, err := store.Materialize(ctx, plan)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrMaterializationFailed, err)
		materializationsCounter.WithLabelValues(backend.String(), "failure").Inc()
		telemetry.TraceError(span, err)
		m.logger.Error("materialization failed",
			zap.String("backend", backend.String()),
			zap.Int("plan_size", plan.Size()),
			zap.Error(err),
		)
		return nil, err
	}

	materializationsCounter.WithLabelValues(backend.String(), "success").Inc()
	materializationDurationHistogram.
		WithLabelValues(backend.String()).
		Observe(float64(time.Since(start).Milliseconds()))

	m.logger.Debug("materialized node",
		zap.String("snapshot_id", handle.ID()),
		zap.String("backend", backend.String()),
		zap.Int("plan_size", plan.Size()),
		zap.String("plan_fingerprint", strconv.FormatUint(plan.Fingerprint(), 16)),
		zap.Int64("records", handle.Records()),
	)
	return handle, nil
}
