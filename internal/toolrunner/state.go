// Package toolrunner executes external tools and streams their output to a
// result sink.
//
// One invocation is one OS process plus two reader goroutines (stderr and
// stdout). The caller blocks in Collect until both readers reach EOF, so the
// Run+Collect sequence is synchronous from the caller's point of view.
package toolrunner

// State represents the lifecycle state of a tool process.
type State int

const (
	// StateCreated is the initial state before the process is spawned.
	StateCreated State = iota

	// StateStarting indicates the process is being spawned.
	StateStarting

	// StateRunning indicates the process is running and being read.
	StateRunning

	// StateStopping indicates a stop was requested by the host.
	StateStopping

	// StateExited indicates the process exited and both streams drained.
	StateExited

	// StateFailed indicates the process could not be spawned.
	StateFailed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateExited:
		return "exited"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsActive returns true while the process may still produce output.
func (s State) IsActive() bool {
	return s == StateStarting || s == StateRunning || s == StateStopping
}
