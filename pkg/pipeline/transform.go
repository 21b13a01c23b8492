package pipeline

// Transform is one deferred operation composed onto a node. Apply is
// flatMap-general: a transform may produce zero, one or many output records
// per input record. Transforms are re-run on every materialization and must
// not retain state across records.
type Transform interface {
	// Name identifies the transform in plan fingerprints, logs and errors.
	Name() string

	// OutputSchema returns the schema of the transform's output given its
	// input schema.
	OutputSchema(in Schema) Schema

	// Apply produces the output records for one input record.
	Apply(in Record) ([]Record, error)
}

type funcTransform struct {
	name   string
	schema func(Schema) Schema
	apply  func(Record) ([]Record, error)
}

var _ Transform = (*funcTransform)(nil)

func (t *funcTransform) Name() string { return t.name }

func (t *funcTransform) OutputSchema(in Schema) Schema { return t.schema(in) }

func (t *funcTransform) Apply(in Record) ([]Record, error) { return t.apply(in) }

func identitySchema(in Schema) Schema { return in }

// Map returns a schema-preserving one-to-one transform.
func Map(name string, fn func(Record) (Record, error)) Transform {
	return &funcTransform{
		name:   name,
		schema: identitySchema,
		apply: func(in Record) ([]Record, error) {
			out, err := fn(in)
			if err != nil {
				return nil, err
			}
			return []Record{out}, nil
		},
	}
}

// Filter returns a transform keeping only records the predicate accepts.
func Filter(name string, pred func(Record) (bool, error)) Transform {
	return &funcTransform{
		name:   name,
		schema: identitySchema,
		apply: func(in Record) ([]Record, error) {
			keep, err := pred(in)
			if err != nil {
				return nil, err
			}
			if !keep {
				return nil, nil
			}
			return []Record{in}, nil
		},
	}
}

// FlatMap returns a schema-preserving one-to-many transform.
func FlatMap(name string, fn func(Record) ([]Record, error)) Transform {
	return &funcTransform{
		name:   name,
		schema: identitySchema,
		apply:  fn,
	}
}

// Project returns a one-to-one transform reshaping records into the given
// output schema.
func Project(name string, out Schema, fn func(Record) (Record, error)) Transform {
	return &funcTransform{
		name:   name,
		schema: func(Schema) Schema { return out },
		apply: func(in Record) ([]Record, error) {
			rec, err := fn(in)
			if err != nil {
				return nil, err
			}
			return []Record{rec}, nil
		},
	}
}
