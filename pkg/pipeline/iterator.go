package pipeline

import (
	"context"
	"errors"
)

// ErrIteratorDone signals normal exhaustion of an iterator.
var ErrIteratorDone = errors.New("iterator done")

// Iterator is the pull-based iteration contract used across decant.
type Iterator[T any] interface {
	// Next returns the next available item. If the iterator is exhausted or
	// the context is cancelled it returns ErrIteratorDone.
	Next(ctx context.Context) (T, error)

	// Stop terminates iteration over the underlying iterator. It is safe to
	// call Stop more than once.
	Stop()
}

// RecordIterator iterates a node's output records. It is closed by explicitly
// calling Stop() or by calling Next() until it returns ErrIteratorDone.
type RecordIterator = Iterator[Record]

// TupleIterator iterates raw, untyped source tuples before schema coercion.
type TupleIterator = Iterator[[]any]

type staticIterator[T any] struct {
	items []T
}

func (s *staticIterator[T]) Next(ctx context.Context) (T, error) {
	var val T
	select {
	case <-ctx.Done():
		return val, ErrIteratorDone
	default:
		if len(s.items) == 0 {
			return val, ErrIteratorDone
		}

		next, rest := s.items[0], s.items[1:]
		s.items = rest

		return next, nil
	}
}

func (s *staticIterator[T]) Stop() {}

// NewStaticIterator returns an Iterator over the provided slice. The slice is
// consumed in place; callers must not reuse it.
func NewStaticIterator[T any](items []T) Iterator[T] {
	return &staticIterator[T]{items: items}
}

// NewStaticRecordIterator returns a RecordIterator over a copy of the given
// records, so a shared immutable collection can back many iterations.
func NewStaticRecordIterator(records []Record) RecordIterator {
	items := make([]Record, len(records))
	copy(items, records)
	return &staticIterator[Record]{items: items}
}

// Drain consumes iter until exhaustion and returns every item in order. The
// iterator is stopped before returning. On any error other than
// ErrIteratorDone no items are returned. A cancelled context surfaces as the
// context's error, never as a truncated result.
func Drain[T any](ctx context.Context, iter Iterator[T]) ([]T, error) {
	defer iter.Stop()

	var out []T
	for {
		item, err := iter.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrIteratorDone) {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				return out, nil
			}
			return nil, err
		}
		out = append(out, item)
	}
}
