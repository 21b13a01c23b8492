package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FieldType enumerates the value types a record field may carry.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeFloat
	TypeBool
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	default:
		return "unknown"
	}
}

// ParseFieldType parses the textual form used in sources manifests.
func ParseFieldType(s string) (FieldType, error) {
	switch s {
	case "string":
		return TypeString, nil
	case "int":
		return TypeInt, nil
	case "float":
		return TypeFloat, nil
	case "bool":
		return TypeBool, nil
	default:
		return 0, fmt.Errorf("unknown field type: %q", s)
	}
}

// Field is one named, typed position in a record.
type Field struct {
	Name string
	Type FieldType
}

// Schema is the record-shape descriptor attached to every Node: an ordered
// list of named, typed fields. A Schema is immutable once constructed.
type Schema struct {
	fields []Field
}

// NewSchema constructs a Schema over the given fields. The fields are copied.
func NewSchema(fields ...Field) Schema {
	out := make([]Field, len(fields))
	copy(out, fields)
	return Schema{fields: out}
}

// Fields returns a copy of the schema's fields in declaration order.
func (s Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len returns the number of fields.
func (s Schema) Len() int {
	return len(s.fields)
}

// Equal reports whether both schemas have the same fields, names and types,
// in the same order.
func (s Schema) Equal(other Schema) bool {
	if len(s.fields) != len(other.fields) {
		return false
	}
	for i, f := range s.fields {
		if other.fields[i] != f {
			return false
		}
	}
	return true
}

func (s Schema) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, f := range s.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteByte(':')
		b.WriteString(f.Type.String())
	}
	b.WriteByte(')')
	return b.String()
}

// Convert coerces a raw source tuple into a typed Record. The tuple must have
// exactly one value per schema field; nil values pass through untouched.
func (s Schema) Convert(raw []any) (Record, error) {
	if len(raw) != len(s.fields) {
		return nil, fmt.Errorf("tuple has %d values, schema %s has %d fields", len(raw), s, len(s.fields))
	}

	rec := make(Record, len(raw))
	for i, v := range raw {
		converted, err := convertValue(v, s.fields[i].Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", s.fields[i].Name, err)
		}
		rec[i] = converted
	}
	return rec, nil
}

// FormatRecord renders a record as "name=value" pairs for diagnostic output.
func (s Schema) FormatRecord(rec Record) string {
	var b strings.Builder
	for i, f := range s.fields {
		if i > 0 {
			b.WriteByte('\t')
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		if i < len(rec) {
			fmt.Fprintf(&b, "%v", rec[i])
		}
	}
	return b.String()
}

func convertValue(v any, t FieldType) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch t {
	case TypeString:
		switch val := v.(type) {
		case string:
			return val, nil
		case []byte:
			return string(val), nil
		}
	case TypeInt:
		switch val := v.(type) {
		case int64:
			return val, nil
		case int:
			return int64(val), nil
		case int32:
			return int64(val), nil
		case int16:
			return int64(val), nil
		case int8:
			return int64(val), nil
		case uint32:
			return int64(val), nil
		case uint16:
			return int64(val), nil
		case uint8:
			return int64(val), nil
		case float64:
			if val != math.Trunc(val) || val < math.MinInt64 || val >= math.MaxInt64 {
				return nil, fmt.Errorf("cannot convert non-integral %v to int", val)
			}
			return int64(val), nil
		case []byte:
			// Some database drivers hand back numeric columns as raw bytes.
			parsed, err := strconv.ParseInt(string(val), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to int", val)
			}
			return parsed, nil
		}
	case TypeFloat:
		switch val := v.(type) {
		case float64:
			return val, nil
		case float32:
			return float64(val), nil
		case int64:
			return float64(val), nil
		case int:
			return float64(val), nil
		case []byte:
			parsed, err := strconv.ParseFloat(string(val), 64)
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to float", val)
			}
			return parsed, nil
		}
	case TypeBool:
		switch val := v.(type) {
		case bool:
			return val, nil
		case int64:
			// MySQL models BOOLEAN as TINYINT(1).
			return val != 0, nil
		case []byte:
			parsed, err := strconv.ParseBool(string(val))
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to bool", val)
			}
			return parsed, nil
		}
	}

	return nil, fmt.Errorf("cannot convert %T to %s", v, t)
}
