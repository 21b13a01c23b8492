// Package snapshot defines the materialization backends. A backend runs an
// execution plan to completion and captures the terminal output behind a
// handle the session can iterate and compose without re-running the plan.
package snapshot

import (
	"context"

	"github.com/decantio/decant/pkg/planner"
)

// BackendKind names a snapshot backend implementation.
type BackendKind int

const (
	// BackendMemory keeps materialized records in process memory.
	BackendMemory BackendKind = iota

	// BackendTransientFile spills materialized records into a transient
	// snapshot file and reads them back through the source layer.
	BackendTransientFile
)

func (k BackendKind) String() string {
	switch k {
	case BackendMemory:
		return "memory"
	case BackendTransientFile:
		return "transient-file"
	default:
		return "unknown"
	}
}

// Store materializes plans onto one backend.
type Store interface {
	// Kind identifies the backend.
	Kind() BackendKind

	// Materialize runs plan to completion and returns a handle over the
	// captured output. On failure no handle exists and no partial output is
	// observable through the session, though a transient-file backend may
	// leave an orphaned file behind for the cleaner.
	Materialize(ctx context.Context, plan *planner.Plan) (*Handle, error)
}
