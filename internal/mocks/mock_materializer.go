package mocks

import (
	"context"
	"sync/atomic"

	"github.com/decantio/decant/pkg/pipeline"
	"github.com/decantio/decant/pkg/snapshot"
)

type materializer interface {
	Materialize(ctx context.Context, terminal *pipeline.Node) (*snapshot.Handle, error)
}

// CountingMaterializer delegates to an inner materializer and counts calls,
// so tests can assert how often materialization actually happened.
type CountingMaterializer struct {
	inner materializer
	count atomic.Int64
}

func NewCountingMaterializer(inner materializer) *CountingMaterializer {
	return &CountingMaterializer{inner: inner}
}

func (m *CountingMaterializer) Materialize(ctx context.Context, terminal *pipeline.Node) (*snapshot.Handle, error) {
	m.count.Add(1)
	return m.inner.Materialize(ctx, terminal)
}

// Count returns how many times Materialize was called.
func (m *CountingMaterializer) Count() int64 {
	return m.count.Load()
}

// FailingMaterializer fails every call with Err, counting attempts.
type FailingMaterializer struct {
	Err   error
	count atomic.Int64
}

func (m *FailingMaterializer) Materialize(ctx context.Context, terminal *pipeline.Node) (*snapshot.Handle, error) {
	m.count.Add(1)
	return nil, m.Err
}

// Count returns how many times Materialize was called.
func (m *FailingMaterializer) Count() int64 {
	return m.count.Load()
}
