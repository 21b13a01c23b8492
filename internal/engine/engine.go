// Package engine evaluates execution plans, streaming the terminal node's
// records into a caller-supplied sink.
package engine

import (
	"context"

	"github.com/decantio/decant/pkg/pipeline"
	"github.com/decantio/decant/pkg/planner"
)

// Sink receives the records one plan evaluation produces, in the terminal
// node's output order.
type Sink interface {
	Put(ctx context.Context, rec pipeline.Record) error
}

// Engine runs a plan to completion against sink. Run either delivers the
// complete record sequence or returns an error; a sink that has seen any
// Put calls before an error holds a partial sequence the caller must
// discard.
type Engine interface {
	Run(ctx context.Context, plan *planner.Plan, sink Sink) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, rec pipeline.Record) error

func (f SinkFunc) Put(ctx context.Context, rec pipeline.Record) error {
	return f(ctx, rec)
}
