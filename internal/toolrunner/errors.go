package toolrunner

import "errors"

// Failure classes. None of them propagate to the caller of Run or Collect;
// they are logged and, where visible to the user, written to the sink.
var (
	// ErrConfigurationMissing means no Command was prepared. Run is a no-op.
	ErrConfigurationMissing = errors.New("no command prepared")

	// ErrSpawnFailure means the OS could not create the process.
	ErrSpawnFailure = errors.New("tool process could not be started")

	// ErrStreamFailure means reading or decoding a child stream failed.
	ErrStreamFailure = errors.New("tool output stream failed")

	// ErrSinkFailure means the sink rejected an appended line.
	ErrSinkFailure = errors.New("result sink rejected line")

	// ErrInterruptedWait means the wait for the readers was interrupted.
	ErrInterruptedWait = errors.New("wait for tool output interrupted")
)
