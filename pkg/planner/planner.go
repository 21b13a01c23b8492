// Package planner computes minimal execution plans over the pipeline DAG.
//
// A pipeline DAG is shared: one node may feed many downstream branches, and
// only some of those branches are relevant to any given request. The planner
// cuts the subgraph reachable from a single terminal node out of the full
// DAG so that materializing the terminal never pays for unrelated branches.
package planner

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/emirpasic/gods/sets/hashset"

	"github.com/decantio/decant/pkg/pipeline"
)

// ErrInvalidPlan is returned for a malformed planning request: a nil terminal
// or a cyclic upstream graph. Both indicate a caller bug, not a runtime
// condition, and are never retried.
var ErrInvalidPlan = errors.New("invalid plan")

// Plan is the minimal acyclic subgraph required to produce one terminal
// node's output: exactly the nodes reachable from the terminal via upstream
// edges, no more and no fewer. A Plan belongs to the materialization request
// that built it and is discarded once that request completes.
type Plan struct {
	terminal    *pipeline.Node
	nodes       []*pipeline.Node
	members     *hashset.Set
	fingerprint uint64
}

// Terminal returns the node whose output the plan produces.
func (p *Plan) Terminal() *pipeline.Node {
	return p.terminal
}

// Nodes returns the plan's nodes in deterministic upstream-first topological
// order; the terminal is always last. The returned slice is a read-only view.
func (p *Plan) Nodes() []*pipeline.Node {
	return p.nodes
}

// Size returns the number of nodes in the plan.
func (p *Plan) Size() int {
	return len(p.nodes)
}

// Contains reports whether n is part of the plan.
func (p *Plan) Contains(n *pipeline.Node) bool {
	return p.members.Contains(n)
}

// Fingerprint returns a stable hash of the plan's structure: node kinds,
// names, schemas and edges. Planning an unchanged DAG twice yields equal
// fingerprints. Literal record contents are not hashed; the fingerprint
// captures structure, not data.
func (p *Plan) Fingerprint() uint64 {
	return p.fingerprint
}

// Planner builds minimal plans for terminal nodes.
type Planner struct{}

// New returns a Planner.
func New() *Planner {
	return &Planner{}
}

type color int

const (
	white color = iota // not yet visited
	grey               // on the traversal stack
	black              // fully explored
)

type frame struct {
	node *pipeline.Node
	next int
}

// Plan traverses upstream references from terminal, visiting each reachable
// node exactly once, and returns the minimal plan for it. A DAG built through
// the pipeline constructors cannot contain a cycle, but a caller that
// violated node immutability can present one; that fails with ErrInvalidPlan
// instead of looping.
func (p *Planner) Plan(terminal *pipeline.Node) (*Plan, error) {
	if terminal == nil {
		return nil, fmt.Errorf("nil terminal node: %w", ErrInvalidPlan)
	}

	var (
		order   []*pipeline.Node
		members = hashset.New()
		colors  = map[*pipeline.Node]color{terminal: grey}
		stack   = []frame{{node: terminal}}
	)

	// Iterative depth-first search, coloring nodes white/grey/black. Nodes
	// land in order on post-visit, so every node's upstreams precede it.
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		ups := top.node.Upstreams()

		if top.next < len(ups) {
			up := ups[top.next]
			top.next++

			switch colors[up] {
			case grey:
				return nil, fmt.Errorf("cycle detected at %s: %w", up, ErrInvalidPlan)
			case white:
				colors[up] = grey
				stack = append(stack, frame{node: up})
			}
			continue
		}

		colors[top.node] = black
		order = append(order, top.node)
		members.Add(top.node)
		stack = stack[:len(stack)-1]
	}

	return &Plan{
		terminal:    terminal,
		nodes:       order,
		members:     members,
		fingerprint: fingerprint(order),
	}, nil
}

// fingerprint hashes the plan structure over the deterministic node order.
// Upstream edges are encoded as indices into that order, so two structurally
// identical plans hash identically regardless of node addresses.
func fingerprint(order []*pipeline.Node) uint64 {
	index := make(map[*pipeline.Node]int, len(order))
	for i, n := range order {
		index[n] = i
	}

	var (
		digest = xxhash.New()
		buf    [binary.MaxVarintLen64]byte
	)
	writeUvarint := func(v uint64) {
		n := binary.PutUvarint(buf[:], v)
		_, _ = digest.Write(buf[:n])
	}

	for _, n := range order {
		writeUvarint(uint64(n.Kind()))
		_, _ = digest.WriteString(nodeLabel(n))
		_, _ = digest.WriteString(n.Schema().String())

		ups := n.Upstreams()
		writeUvarint(uint64(len(ups)))
		for _, up := range ups {
			writeUvarint(uint64(index[up]))
		}
	}

	return digest.Sum64()
}

func nodeLabel(n *pipeline.Node) string {
	switch n.Kind() {
	case pipeline.KindSource:
		return n.SourceName()
	case pipeline.KindTransform:
		return n.Transform().Name()
	default:
		return n.Kind().String()
	}
}
