// Package codec implements the on-disk snapshot record format.
//
// A snapshot file is a magic/version header, a schema block, then a sequence
// of length-prefixed record blocks. Schema and records are serialized as
// protobuf ListValues; integers travel as decimal strings because a protobuf
// Value models numbers as float64, which cannot carry the full int64 range.
package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/decantio/decant/pkg/pipeline"
)

// ErrCorruptSnapshot is returned when a snapshot file fails structural
// validation: bad magic, unsupported version, truncated blocks or values
// inconsistent with the embedded schema.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

var magic = [4]byte{'D', 'R', 'E', 'C'}

const (
	formatVersion = 1

	// maxBlockBytes caps a single length prefix so a corrupt file cannot
	// drive an unbounded allocation.
	maxBlockBytes = 16 << 20
)

const (
	schemaFieldName = "name"
	schemaFieldType = "type"
)

// Writer streams records into the snapshot format. A Writer is not safe for
// concurrent use.
type Writer struct {
	w      *bufio.Writer
	schema pipeline.Schema
	fields []pipeline.Field
	count  int64
}

// NewWriter writes the header and schema block to w and returns a Writer
// accepting records of that schema. Callers must Flush before closing the
// underlying file.
func NewWriter(w io.Writer, schema pipeline.Schema) (*Writer, error) {
	bw := bufio.NewWriter(w)

	if _, err := bw.Write(magic[:]); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := bw.WriteByte(formatVersion); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	header, err := encodeSchema(schema)
	if err != nil {
		return nil, err
	}
	if err := writeBlock(bw, header); err != nil {
		return nil, fmt.Errorf("write schema block: %w", err)
	}

	return &Writer{
		w:      bw,
		schema: schema,
		fields: schema.Fields(),
	}, nil
}

// WriteRecord appends one record block. The record must match the writer's
// schema.
func (w *Writer) WriteRecord(rec pipeline.Record) error {
	if len(rec) != len(w.fields) {
		return fmt.Errorf("record has %d values, schema %s has %d fields", len(rec), w.schema, len(w.fields))
	}

	values := make([]*structpb.Value, len(rec))
	for i, v := range rec {
		encoded, err := encodeValue(v, w.fields[i].Type)
		if err != nil {
			return fmt.Errorf("field %q: %w", w.fields[i].Name, err)
		}
		values[i] = encoded
	}

	block, err := proto.Marshal(&structpb.ListValue{Values: values})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := writeBlock(w.w, block); err != nil {
		return fmt.Errorf("write record block: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of records written so far.
func (w *Writer) Count() int64 {
	return w.count
}

// Flush pushes buffered bytes to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Reader decodes a snapshot stream. A Reader is not safe for concurrent use.
type Reader struct {
	r      *bufio.Reader
	schema pipeline.Schema
	fields []pipeline.Field
}

// NewReader validates the header and schema block of r and returns a Reader
// positioned at the first record.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)

	var header [5]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", ErrCorruptSnapshot)
	}
	if [4]byte(header[:4]) != magic {
		return nil, fmt.Errorf("bad magic %q: %w", header[:4], ErrCorruptSnapshot)
	}
	if header[4] != formatVersion {
		return nil, fmt.Errorf("unsupported format version %d: %w", header[4], ErrCorruptSnapshot)
	}

	block, err := readBlock(br)
	if err != nil {
		return nil, fmt.Errorf("read schema block: %w", ErrCorruptSnapshot)
	}
	schema, err := decodeSchema(block)
	if err != nil {
		return nil, err
	}

	return &Reader{
		r:      br,
		schema: schema,
		fields: schema.Fields(),
	}, nil
}

// Schema returns the schema embedded in the snapshot header.
func (r *Reader) Schema() pipeline.Schema {
	return r.schema
}

// Read returns the next record, or io.EOF after the last one.
func (r *Reader) Read() (pipeline.Record, error) {
	block, err := readBlock(r.r)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read record block: %w", ErrCorruptSnapshot)
	}

	var list structpb.ListValue
	if err := proto.Unmarshal(block, &list); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", ErrCorruptSnapshot)
	}
	values := list.GetValues()
	if len(values) != len(r.fields) {
		return nil, fmt.Errorf("record has %d values, schema %s has %d fields: %w", len(values), r.schema, len(r.fields), ErrCorruptSnapshot)
	}

	rec := make(pipeline.Record, len(values))
	for i, v := range values {
		decoded, err := decodeValue(v, r.fields[i].Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", r.fields[i].Name, err)
		}
		rec[i] = decoded
	}
	return rec, nil
}

func writeBlock(w *bufio.Writer, block []byte) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(len(block)))
	if _, err := w.Write(buf[:n]); err != nil {
		return err
	}
	_, err := w.Write(block)
	return err
}

func readBlock(r *bufio.Reader) ([]byte, error) {
	size, err := binary.ReadUvarint(r)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, err
	}
	if size > maxBlockBytes {
		return nil, fmt.Errorf("block of %d bytes exceeds limit", size)
	}

	block := make([]byte, size)
	if _, err := io.ReadFull(r, block); err != nil {
		return nil, fmt.Errorf("truncated block: %w", err)
	}
	return block, nil
}

func encodeSchema(schema pipeline.Schema) ([]byte, error) {
	fields := schema.Fields()
	if len(fields) == 0 {
		return nil, fmt.Errorf("schema must declare at least one field")
	}

	values := make([]*structpb.Value, len(fields))
	for i, f := range fields {
		values[i] = structpb.NewStructValue(&structpb.Struct{
			Fields: map[string]*structpb.Value{
				schemaFieldName: structpb.NewStringValue(f.Name),
				schemaFieldType: structpb.NewStringValue(f.Type.String()),
			},
		})
	}

	block, err := proto.Marshal(&structpb.ListValue{Values: values})
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return block, nil
}

func decodeSchema(block []byte) (pipeline.Schema, error) {
	var list structpb.ListValue
	if err := proto.Unmarshal(block, &list); err != nil {
		return pipeline.Schema{}, fmt.Errorf("unmarshal schema: %w", ErrCorruptSnapshot)
	}

	fields := make([]pipeline.Field, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		entry := v.GetStructValue()
		if entry == nil {
			return pipeline.Schema{}, fmt.Errorf("schema entry is not a struct: %w", ErrCorruptSnapshot)
		}
		name := entry.GetFields()[schemaFieldName].GetStringValue()
		typ, err := pipeline.ParseFieldType(entry.GetFields()[schemaFieldType].GetStringValue())
		if name == "" || err != nil {
			return pipeline.Schema{}, fmt.Errorf("malformed schema entry: %w", ErrCorruptSnapshot)
		}
		fields = append(fields, pipeline.Field{Name: name, Type: typ})
	}
	if len(fields) == 0 {
		return pipeline.Schema{}, fmt.Errorf("schema has no fields: %w", ErrCorruptSnapshot)
	}
	return pipeline.NewSchema(fields...), nil
}

func encodeValue(v any, t pipeline.FieldType) (*structpb.Value, error) {
	if v == nil {
		return structpb.NewNullValue(), nil
	}

	switch t {
	case pipeline.TypeString:
		if s, ok := v.(string); ok {
			return structpb.NewStringValue(s), nil
		}
	case pipeline.TypeInt:
		if n, ok := v.(int64); ok {
			return structpb.NewStringValue(strconv.FormatInt(n, 10)), nil
		}
	case pipeline.TypeFloat:
		if f, ok := v.(float64); ok {
			return structpb.NewNumberValue(f), nil
		}
	case pipeline.TypeBool:
		if b, ok := v.(bool); ok {
			return structpb.NewBoolValue(b), nil
		}
	}
	return nil, fmt.Errorf("value %T does not match field type %s", v, t)
}

func decodeValue(v *structpb.Value, t pipeline.FieldType) (any, error) {
	if _, ok := v.GetKind().(*structpb.Value_NullValue); ok {
		return nil, nil
	}

	switch t {
	case pipeline.TypeString:
		if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
			return s.StringValue, nil
		}
	case pipeline.TypeInt:
		if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
			n, err := strconv.ParseInt(s.StringValue, 10, 64)
			if err == nil {
				return n, nil
			}
		}
	case pipeline.TypeFloat:
		if f, ok := v.GetKind().(*structpb.Value_NumberValue); ok {
			return f.NumberValue, nil
		}
	case pipeline.TypeBool:
		if b, ok := v.GetKind().(*structpb.Value_BoolValue); ok {
			return b.BoolValue, nil
		}
	}
	return nil, fmt.Errorf("value kind %T does not match field type %s: %w", v.GetKind(), t, ErrCorruptSnapshot)
}
