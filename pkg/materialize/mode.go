package materialize

import (
	"fmt"

	"github.com/decantio/decant/pkg/snapshot"
)

// RuntimeMode describes where a session's pipelines execute. The mode is
// fixed for the lifetime of a session.
type RuntimeMode int

const (
	// ModeLocal runs everything in one process.
	ModeLocal RuntimeMode = iota

	// ModeDistributed runs evaluation where workers must be able to pick up
	// materialized output out of process.
	ModeDistributed
)

func (m RuntimeMode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeDistributed:
		return "distributed"
	default:
		return "unknown"
	}
}

// ParseRuntimeMode parses the textual mode used in configuration.
func ParseRuntimeMode(s string) (RuntimeMode, error) {
	switch s {
	case "local":
		return ModeLocal, nil
	case "distributed":
		return ModeDistributed, nil
	default:
		return 0, fmt.Errorf("unknown runtime mode %q, expected local or distributed", s)
	}
}

// SelectBackend maps a runtime mode onto the snapshot backend that holds
// materialized output: in-memory collections locally, transient files when
// output must be reachable out of process. It is a pure function of mode and
// panics on a mode outside the enum, which is a programmer error.
func SelectBackend(mode RuntimeMode) snapshot.BackendKind {
	switch mode {
	case ModeLocal:
		return snapshot.BackendMemory
	case ModeDistributed:
		return snapshot.BackendTransientFile
	default:
		panic(fmt.Sprintf("unknown runtime mode %d", mode))
	}
}
