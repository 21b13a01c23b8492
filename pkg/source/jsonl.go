package source

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/decantio/decant/pkg/pipeline"
)

// JSONL is a Source over a newline-delimited JSON file. Each line is one
// object; tuple values are extracted by schema field name. Missing fields
// yield nil values, blank lines are skipped.
type JSONL struct {
	path   string
	schema pipeline.Schema
}

var _ Source = (*JSONL)(nil)

// NewJSONL returns a JSONL source reading path. The file is opened per Read,
// not here, so a source can be registered before the file exists.
func NewJSONL(path string, schema pipeline.Schema) *JSONL {
	return &JSONL{path: path, schema: schema}
}

func (s *JSONL) Schema() pipeline.Schema {
	return s.schema
}

func (s *JSONL) Read(ctx context.Context) (pipeline.TupleIterator, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open jsonl source: %w", err)
	}

	return &jsonlIterator{
		file:    file,
		scanner: bufio.NewScanner(file),
		fields:  s.schema.Fields(),
		path:    s.path,
	}, nil
}

type jsonlIterator struct {
	file    *os.File
	scanner *bufio.Scanner
	fields  []pipeline.Field
	path    string
	line    int
}

var _ pipeline.TupleIterator = (*jsonlIterator)(nil)

func (i *jsonlIterator) Next(ctx context.Context) ([]any, error) {
	select {
	case <-ctx.Done():
		return nil, pipeline.ErrIteratorDone
	default:
	}

	for {
		if !i.scanner.Scan() {
			if err := i.scanner.Err(); err != nil {
				return nil, fmt.Errorf("read %s: %w", i.path, err)
			}
			return nil, pipeline.ErrIteratorDone
		}
		i.line++

		raw := i.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		if !gjson.ValidBytes(raw) {
			return nil, fmt.Errorf("%s:%d: invalid json", i.path, i.line)
		}

		parsed := gjson.ParseBytes(raw)
		tuple := make([]any, len(i.fields))
		for j, field := range i.fields {
			if val := parsed.Get(field.Name); val.Exists() {
				tuple[j] = val.Value()
			}
		}
		return tuple, nil
	}
}

func (i *jsonlIterator) Stop() {
	_ = i.file.Close()
}
