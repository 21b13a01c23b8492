package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testSchema() Schema {
	return NewSchema(
		Field{Name: "id", Type: TypeInt},
		Field{Name: "name", Type: TypeString},
	)
}

func TestNodeConstruction(t *testing.T) {
	t.Run("source_node_is_direct_source_read", func(t *testing.T) {
		n := NewSourceNode("users", testSchema())

		require.Equal(t, KindSource, n.Kind())
		require.True(t, n.IsDirectSourceRead())
		require.Equal(t, "users", n.SourceName())
		require.Empty(t, n.Upstreams())
		require.Equal(t, "source(users)", n.String())
	})

	t.Run("literal_node_keeps_records", func(t *testing.T) {
		schema := NewSchema(Field{Name: "v", Type: TypeInt})
		records := []Record{{int64(1)}, {int64(2)}}
		n := NewLiteralNode(schema, records)

		require.Equal(t, KindLiteral, n.Kind())
		require.False(t, n.IsDirectSourceRead())
		require.Equal(t, records, n.Records())
		require.Equal(t, "literal(2 records)", n.String())
	})

	t.Run("compose_is_pure", func(t *testing.T) {
		src := NewSourceNode("users", testSchema())
		tr := Map("noop", func(r Record) (Record, error) { return r, nil })

		composed := src.Compose(tr)

		require.NotSame(t, src, composed)
		require.Equal(t, KindTransform, composed.Kind())
		require.False(t, composed.IsDirectSourceRead())
		require.Equal(t, []*Node{src}, composed.Upstreams())

		// The receiver must remain untouched and reusable.
		require.Equal(t, KindSource, src.Kind())
		require.Empty(t, src.Upstreams())
	})

	t.Run("shared_upstream_has_multiple_consumers", func(t *testing.T) {
		src := NewSourceNode("users", testSchema())
		tr := Map("noop", func(r Record) (Record, error) { return r, nil })

		left := src.Compose(tr)
		right := src.Compose(tr)

		require.Same(t, src, left.Upstreams()[0])
		require.Same(t, src, right.Upstreams()[0])
	})
}

func TestConcat(t *testing.T) {
	t.Run("requires_at_least_one_node", func(t *testing.T) {
		_, err := Concat()
		require.Error(t, err)
	})

	t.Run("rejects_schema_mismatch", func(t *testing.T) {
		a := NewSourceNode("a", NewSchema(Field{Name: "v", Type: TypeInt}))
		b := NewSourceNode("b", NewSchema(Field{Name: "v", Type: TypeString}))

		_, err := Concat(a, b)
		require.ErrorContains(t, err, "schema mismatch")
	})

	t.Run("keeps_upstream_order", func(t *testing.T) {
		schema := NewSchema(Field{Name: "v", Type: TypeInt})
		a := NewSourceNode("a", schema)
		b := NewSourceNode("b", schema)

		n, err := Concat(a, b)
		require.NoError(t, err)
		require.Equal(t, KindConcat, n.Kind())
		require.Equal(t, []*Node{a, b}, n.Upstreams())
	})
}

func TestTransformHelpers(t *testing.T) {
	schema := NewSchema(Field{Name: "v", Type: TypeInt})

	t.Run("map_produces_one_record", func(t *testing.T) {
		double := Map("double", func(r Record) (Record, error) {
			return Record{r[0].(int64) * 2}, nil
		})

		out, err := double.Apply(Record{int64(3)})
		require.NoError(t, err)
		require.Equal(t, []Record{{int64(6)}}, out)
		require.True(t, double.OutputSchema(schema).Equal(schema))
	})

	t.Run("filter_drops_records", func(t *testing.T) {
		odd := Filter("odd", func(r Record) (bool, error) {
			return r[0].(int64)%2 == 1, nil
		})

		out, err := odd.Apply(Record{int64(2)})
		require.NoError(t, err)
		require.Empty(t, out)

		out, err = odd.Apply(Record{int64(3)})
		require.NoError(t, err)
		require.Len(t, out, 1)
	})

	t.Run("flatmap_fans_out", func(t *testing.T) {
		dup := FlatMap("dup", func(r Record) ([]Record, error) {
			return []Record{r, r}, nil
		})

		out, err := dup.Apply(Record{int64(1)})
		require.NoError(t, err)
		require.Len(t, out, 2)
	})

	t.Run("project_reshapes_schema", func(t *testing.T) {
		out := NewSchema(Field{Name: "label", Type: TypeString})
		tr := Project("label", out, func(r Record) (Record, error) {
			return Record{"v"}, nil
		})

		require.True(t, tr.OutputSchema(schema).Equal(out))

		recs, err := tr.Apply(Record{int64(9)})
		require.NoError(t, err)
		require.Equal(t, []Record{{"v"}}, recs)
	})
}
