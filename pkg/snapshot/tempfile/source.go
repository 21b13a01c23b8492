package tempfile

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/decantio/decant/internal/codec"
	"github.com/decantio/decant/pkg/pipeline"
	"github.com/decantio/decant/pkg/source"
)

// Source reads a snapshot file back as raw tuples. The store registers one
// per finished materialization; the path doubles as the source name.
type Source struct {
	path   string
	schema pipeline.Schema
}

var _ source.Source = (*Source)(nil)

// NewSource returns a source streaming the snapshot file at path. The file
// is opened per Read.
func NewSource(path string, schema pipeline.Schema) *Source {
	return &Source{path: path, schema: schema}
}

func (s *Source) Schema() pipeline.Schema {
	return s.schema
}

func (s *Source) Read(ctx context.Context) (pipeline.TupleIterator, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}

	r, err := codec.NewReader(file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if !r.Schema().Equal(s.schema) {
		_ = file.Close()
		return nil, fmt.Errorf("snapshot schema %s does not match source schema %s: %w",
			r.Schema(), s.schema, codec.ErrCorruptSnapshot)
	}

	return &fileIterator{file: file, reader: r}, nil
}

type fileIterator struct {
	file   *os.File
	reader *codec.Reader
}

var _ pipeline.TupleIterator = (*fileIterator)(nil)

func (i *fileIterator) Next(ctx context.Context) ([]any, error) {
	select {
	case <-ctx.Done():
		return nil, pipeline.ErrIteratorDone
	default:
	}

	rec, err := i.reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, pipeline.ErrIteratorDone
		}
		return nil, err
	}
	return rec, nil
}

func (i *fileIterator) Stop() {
	_ = i.file.Close()
}
