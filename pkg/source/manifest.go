package source

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/decantio/decant/pkg/pipeline"
	"github.com/decantio/decant/pkg/source/sqldb"
)

// Source kinds accepted in a manifest definition.
const (
	KindMemory = "memory"
	KindJSONL  = "jsonl"
	KindSQL    = "sql"
)

// Manifest is the declarative form of a registry's bindings, typically
// loaded from a sources.yaml file.
type Manifest struct {
	Sources []Definition `json:"sources"`
}

// Definition declares one named source.
type Definition struct {
	Name   string      `json:"name"`
	Kind   string      `json:"kind"`
	Schema []FieldSpec `json:"schema"`

	// Path locates the file backing a jsonl source.
	Path string `json:"path,omitempty"`

	// Driver, DSN and Table configure a sql source.
	Driver string `json:"driver,omitempty"`
	DSN    string `json:"dsn,omitempty"`
	Table  string `json:"table,omitempty"`

	// Tuples inlines the data of a memory source.
	Tuples [][]any `json:"tuples,omitempty"`
}

// FieldSpec is the textual form of one schema field.
type FieldSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks structural requirements: unique non-empty names, parseable
// schemas and the per-kind mandatory fields.
func (m *Manifest) Validate() error {
	seen := map[string]struct{}{}
	for _, def := range m.Sources {
		if def.Name == "" {
			return fmt.Errorf("manifest source with empty name")
		}
		if _, ok := seen[def.Name]; ok {
			return fmt.Errorf("manifest source %q defined twice", def.Name)
		}
		seen[def.Name] = struct{}{}

		if _, err := def.schema(); err != nil {
			return fmt.Errorf("manifest source %q: %w", def.Name, err)
		}

		switch def.Kind {
		case KindMemory:
		case KindJSONL:
			if def.Path == "" {
				return fmt.Errorf("manifest source %q: jsonl requires a path", def.Name)
			}
		case KindSQL:
			if def.Driver == "" || def.DSN == "" || def.Table == "" {
				return fmt.Errorf("manifest source %q: sql requires driver, dsn and table", def.Name)
			}
		default:
			return fmt.Errorf("manifest source %q: unknown kind %q", def.Name, def.Kind)
		}
	}
	return nil
}

// Apply builds every declared source and registers it. Bindings registered
// before a failing definition stay registered.
func (m *Manifest) Apply(reg *Registry) error {
	for _, def := range m.Sources {
		src, err := def.build()
		if err != nil {
			return fmt.Errorf("build source %q: %w", def.Name, err)
		}
		if err := reg.Register(def.Name, src); err != nil {
			return err
		}
	}
	return nil
}

func (d Definition) schema() (pipeline.Schema, error) {
	if len(d.Schema) == 0 {
		return pipeline.Schema{}, fmt.Errorf("schema must declare at least one field")
	}

	fields := make([]pipeline.Field, 0, len(d.Schema))
	for _, spec := range d.Schema {
		if spec.Name == "" {
			return pipeline.Schema{}, fmt.Errorf("schema field with empty name")
		}
		typ, err := pipeline.ParseFieldType(spec.Type)
		if err != nil {
			return pipeline.Schema{}, fmt.Errorf("schema field %q: %w", spec.Name, err)
		}
		fields = append(fields, pipeline.Field{Name: spec.Name, Type: typ})
	}
	return pipeline.NewSchema(fields...), nil
}

func (d Definition) build() (Source, error) {
	schema, err := d.schema()
	if err != nil {
		return nil, err
	}

	switch d.Kind {
	case KindMemory:
		return NewMemory(schema, d.Tuples), nil
	case KindJSONL:
		return NewJSONL(d.Path, schema), nil
	case KindSQL:
		return sqldb.New(d.Driver, d.DSN, d.Table, schema)
	default:
		return nil, fmt.Errorf("unknown kind %q", d.Kind)
	}
}
