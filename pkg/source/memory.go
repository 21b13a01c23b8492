package source

import (
	"context"

	"github.com/decantio/decant/pkg/pipeline"
)

// Memory is a Source over a fixed in-process tuple slice. It is the default
// source kind for tests and for small inline datasets in a sources manifest.
type Memory struct {
	schema pipeline.Schema
	tuples [][]any
}

var _ Source = (*Memory)(nil)

// NewMemory returns a Memory source over the given tuples. The slice is
// retained, not copied; callers must not modify it afterwards.
func NewMemory(schema pipeline.Schema, tuples [][]any) *Memory {
	return &Memory{schema: schema, tuples: tuples}
}

func (m *Memory) Schema() pipeline.Schema {
	return m.schema
}

// Read returns an independent iterator over the tuples; the backing slice is
// shared across reads and never consumed.
func (m *Memory) Read(ctx context.Context) (pipeline.TupleIterator, error) {
	items := make([][]any, len(m.tuples))
	copy(items, m.tuples)
	return pipeline.NewStaticIterator(items), nil
}
