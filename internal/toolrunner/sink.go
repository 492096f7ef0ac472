package toolrunner

import (
	"fmt"
	"io"
)

// Kind classifies a line appended to a Sink.
// The sink owns the mapping from Kind to visual style.
type Kind int

const (
	// KindOutput is a line read from the child's stdout.
	KindOutput Kind = iota

	// KindError is a line read from the child's stderr, or a spawn failure.
	KindError

	// KindMessage is a status line produced by the runner itself.
	KindMessage
)

// String returns the kind name used in logs and transcripts.
func (k Kind) String() string {
	switch k {
	case KindOutput:
		return "output"
	case KindError:
		return "error"
	case KindMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Sink receives the output of a tool run. It is the result console of the
// host.
//
// Implementations must be safe for concurrent use: the stdout reader, the
// stderr reader and the calling goroutine all append at the same time. Each
// AppendLine call is one atomic unit (text plus line terminator).
type Sink interface {
	// AppendLine appends one line. An error is logged by the runner and
	// never stops the stream readers.
	AppendLine(text string, kind Kind) error

	// AttachProcess hands the running process to the host so it can be
	// inspected or stopped.
	AttachProcess(p *Process)

	// DetachProcess is called once the process has finished.
	DetachProcess()

	// RegisterInputForwarder gives the host the child's stdin. A line the
	// user types into the console is written here.
	RegisterInputForwarder(w io.WriteCloser)

	// SetTitle updates the host's title to the running tool.
	SetTitle(title string)
}

// StartMessage returns the line emitted when a tool starts.
func StartMessage(toolName string) string {
	return fmt.Sprintf("'%s' tool executing...", toolName)
}

// FinishMessage returns the line emitted when a tool run completes.
func FinishMessage(toolName string) string {
	return fmt.Sprintf("'%s' tool execution finished.", toolName)
}

// DiscardSink is a Sink that drops everything.
type DiscardSink struct{}

func (DiscardSink) AppendLine(string, Kind) error         { return nil }
func (DiscardSink) AttachProcess(*Process)                {}
func (DiscardSink) DetachProcess()                        {}
func (DiscardSink) RegisterInputForwarder(io.WriteCloser) {}
func (DiscardSink) SetTitle(string)                       {}

var _ Sink = DiscardSink{}
