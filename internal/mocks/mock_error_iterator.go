package mocks

import (
	"context"
	"fmt"

	"github.com/decantio/decant/pkg/pipeline"
)

// errorIterator is a mock iterator that returns an error on the second Next
// call.
type errorIterator[T any] struct {
	items          []T
	originalLength int
}

func (s *errorIterator[T]) Next(ctx context.Context) (T, error) {
	var val T

	if ctx.Err() != nil {
		return val, ctx.Err()
	}

	if len(s.items) != s.originalLength {
		return val, fmt.Errorf("simulated errors")
	}

	if len(s.items) == 0 {
		return val, pipeline.ErrIteratorDone
	}

	next, rest := s.items[0], s.items[1:]
	s.items = rest

	return next, nil
}

func (s *errorIterator[T]) Stop() {}

// NewErrorIterator mocks the case where Next returns an error after the
// first successful Next().
func NewErrorIterator(tuples [][]any) pipeline.TupleIterator {
	return &errorIterator[[]any]{
		items:          tuples,
		originalLength: len(tuples),
	}
}

// ErrorSource is a source whose iterators fail after the first tuple.
type ErrorSource struct {
	SourceSchema pipeline.Schema
	Tuples       [][]any
}

func (s *ErrorSource) Schema() pipeline.Schema {
	return s.SourceSchema
}

func (s *ErrorSource) Read(ctx context.Context) (pipeline.TupleIterator, error) {
	return NewErrorIterator(s.Tuples), nil
}
