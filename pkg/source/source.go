// Package source holds the session-scoped registry of named external data
// sources and the built-in source implementations. A source produces raw
// tuples; the typed record view is layered on top by a converting iterator
// driven by the consuming node's schema.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/decantio/decant/pkg/pipeline"
)

var (
	// ErrSourceExists is returned when registering a name that is already
	// bound in the registry.
	ErrSourceExists = errors.New("source name already registered")

	// ErrSourceNotRegistered is returned when resolving a name with no
	// binding, including a name whose binding was deregistered after the
	// reading node was constructed.
	ErrSourceNotRegistered = errors.New("source not registered")
)

// Source is a named provider of raw tuples. Implementations must support
// any number of concurrent Read calls, each returning an independent
// iterator.
type Source interface {
	// Schema describes the tuples the source produces.
	Schema() pipeline.Schema

	// Read opens a fresh iteration over the source's tuples.
	Read(ctx context.Context) (pipeline.TupleIterator, error)
}

type convertingIterator struct {
	inner  pipeline.TupleIterator
	schema pipeline.Schema
}

var _ pipeline.RecordIterator = (*convertingIterator)(nil)

// NewConvertingIterator wraps a raw tuple iterator with per-record coercion
// into the given schema. A tuple that cannot be coerced fails that Next call;
// the iterator remains usable for subsequent tuples.
func NewConvertingIterator(schema pipeline.Schema, inner pipeline.TupleIterator) pipeline.RecordIterator {
	return &convertingIterator{inner: inner, schema: schema}
}

func (c *convertingIterator) Next(ctx context.Context) (pipeline.Record, error) {
	tuple, err := c.inner.Next(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := c.schema.Convert(tuple)
	if err != nil {
		return nil, fmt.Errorf("convert tuple: %w", err)
	}
	return rec, nil
}

func (c *convertingIterator) Stop() {
	c.inner.Stop()
}
