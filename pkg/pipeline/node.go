// Package pipeline defines the lazily-evaluated pipeline DAG model: nodes,
// the transforms composed onto them, the record schema vocabulary, and the
// pull-based iterator types the rest of decant is built on.
//
// A Node is an immutable description of a deferred computation. Nodes are
// shared: a node may be upstream of many downstream consumers, so the DAG is
// held together by plain pointers and nodes are never copied or mutated after
// construction. The Go garbage collector reclaims a node once no live node or
// in-flight plan references it.
package pipeline

import "fmt"

// NodeKind discriminates the structural variants of a Node.
type NodeKind int

const (
	// KindSource is an unmodified read of a registered source. Nodes of this
	// kind are the only ones eligible for the iteration fast path.
	KindSource NodeKind = iota

	// KindLiteral is a node backed by an in-process collected record
	// sequence, such as the output of a memory-backed materialization.
	KindLiteral

	// KindTransform applies a Transform to a single upstream node.
	KindTransform

	// KindConcat emits every upstream's records in upstream order.
	KindConcat
)

func (k NodeKind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindLiteral:
		return "literal"
	case KindTransform:
		return "transform"
	case KindConcat:
		return "concat"
	default:
		return "unknown"
	}
}

// Node is an immutable handle to a deferred, possibly-composed computation
// producing a typed record sequence. Construction is referentially
// transparent: composing never mutates the receiver.
type Node struct {
	kind       NodeKind
	schema     Schema
	upstreams  []*Node
	sourceName string
	records    []Record
	transform  Transform
}

// NewSourceNode returns a node representing a direct, unmodified read of the
// registered source with the given name. Whether the name actually resolves
// is checked at iteration time, not here.
func NewSourceNode(name string, schema Schema) *Node {
	return &Node{
		kind:       KindSource,
		schema:     schema,
		sourceName: name,
	}
}

// NewLiteralNode returns a node over an already-collected, in-process record
// sequence. The records slice is retained, not copied; callers must not
// modify it afterwards.
func NewLiteralNode(schema Schema, records []Record) *Node {
	return &Node{
		kind:    KindLiteral,
		schema:  schema,
		records: records,
	}
}

// NewTransformNode returns a node applying tr to every record produced by
// upstream.
func NewTransformNode(tr Transform, upstream *Node) *Node {
	return &Node{
		kind:      KindTransform,
		schema:    tr.OutputSchema(upstream.Schema()),
		upstreams: []*Node{upstream},
		transform: tr,
	}
}

// Concat returns a node emitting every given node's records in argument
// order. All nodes must share one schema. The nodes slice is retained, not
// copied; callers must not modify it afterwards.
func Concat(nodes ...*Node) (*Node, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("concat requires at least one upstream node")
	}

	schema := nodes[0].Schema()
	for _, n := range nodes[1:] {
		if !n.Schema().Equal(schema) {
			return nil, fmt.Errorf("concat schema mismatch: %s vs %s", schema, n.Schema())
		}
	}

	return &Node{
		kind:      KindConcat,
		schema:    schema,
		upstreams: nodes,
	}, nil
}

// Compose returns a new node applying tr to the receiver's output. The
// receiver is unchanged and remains usable by other consumers of the DAG.
func (n *Node) Compose(tr Transform) *Node {
	return NewTransformNode(tr, n)
}

// Kind returns the node's structural variant.
func (n *Node) Kind() NodeKind {
	return n.kind
}

// Schema returns the node's record-shape descriptor.
func (n *Node) Schema() Schema {
	return n.schema
}

// Upstreams returns the node's upstream references in order. The returned
// slice is a read-only view into the node; callers must not modify it.
func (n *Node) Upstreams() []*Node {
	return n.upstreams
}

// IsDirectSourceRead reports whether the node represents an unmodified read
// of a registered source with no transformation applied.
func (n *Node) IsDirectSourceRead() bool {
	return n.kind == KindSource
}

// SourceName returns the registered source name for KindSource nodes, and ""
// otherwise.
func (n *Node) SourceName() string {
	return n.sourceName
}

// Records returns the collected record sequence backing a KindLiteral node,
// and nil otherwise. The returned slice must be treated as immutable.
func (n *Node) Records() []Record {
	return n.records
}

// Transform returns the transform applied by a KindTransform node, and nil
// otherwise.
func (n *Node) Transform() Transform {
	return n.transform
}

func (n *Node) String() string {
	switch n.kind {
	case KindSource:
		return fmt.Sprintf("source(%s)", n.sourceName)
	case KindLiteral:
		return fmt.Sprintf("literal(%d records)", len(n.records))
	case KindTransform:
		return fmt.Sprintf("transform(%s)", n.transform.Name())
	case KindConcat:
		return fmt.Sprintf("concat(%d)", len(n.upstreams))
	default:
		return "node(unknown)"
	}
}
