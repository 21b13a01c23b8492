package snapshot

import (
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/decantio/decant/pkg/pipeline"
)

// Handle is the result of one successful materialization. Its node re-enters
// the pipeline DAG over the captured records, so downstream composition and
// iteration treat materialized output like any other node.
type Handle struct {
	id       string
	kind     BackendKind
	node     *pipeline.Node
	location string
	records  int64
	bytes    int64
}

// HandleOption configures a Handle at construction.
type HandleOption func(*Handle)

// WithLocation records where the backend persisted the output.
func WithLocation(location string) HandleOption {
	return func(h *Handle) {
		h.location = location
	}
}

// WithStats records the captured record count and on-disk size.
func WithStats(records, bytes int64) HandleOption {
	return func(h *Handle) {
		h.records = records
		h.bytes = bytes
	}
}

// NewHandle mints a handle with a fresh id. Stores call this once per
// successful materialization.
func NewHandle(kind BackendKind, node *pipeline.Node, opts ...HandleOption) *Handle {
	h := &Handle{
		id:   ulid.Make().String(),
		kind: kind,
		node: node,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ID returns the handle's unique id.
func (h *Handle) ID() string {
	return h.id
}

// Kind returns the backend that holds the records.
func (h *Handle) Kind() BackendKind {
	return h.kind
}

// Node returns the node re-entering the DAG over the captured output.
func (h *Handle) Node() *pipeline.Node {
	return h.node
}

// Schema returns the schema of the captured records.
func (h *Handle) Schema() pipeline.Schema {
	return h.node.Schema()
}

// Location returns the backend-specific storage location, empty for the
// memory backend.
func (h *Handle) Location() string {
	return h.location
}

// Records returns the number of captured records.
func (h *Handle) Records() int64 {
	return h.records
}

// Bytes returns the on-disk size of the captured output, zero for the memory
// backend.
func (h *Handle) Bytes() int64 {
	return h.bytes
}

func (h *Handle) String() string {
	return fmt.Sprintf("snapshot %s (%s, %d records)", h.id, h.kind, h.records)
}
