package toolrunner

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// maxLineSize bounds a single decoded line. Longer lines end the reader
// with a stream failure.
const maxLineSize = 1024 * 1024

// streamReader reads one child stream line by line and appends every line to
// the sink. Lines within a stream keep their order; there is no ordering
// between the stdout and stderr readers.
type streamReader struct {
	stream string // "stdout" or "stderr"
	kind   Kind
	r      io.Reader
	sink   Sink
	delay  time.Duration
	logger *slog.Logger
	runID  string

	// onLine is called for every line after it was appended.
	onLine func(line string)

	// Stats (atomic for thread-safety)
	bytesRead    atomic.Int64
	linesRead    atomic.Int64
	sinkFailures atomic.Int64
	failed       atomic.Bool
}

// run reads until EOF. It must run in its own goroutine.
func (sr *streamReader) run() {
	scanner := bufio.NewScanner(sr.r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		sr.bytesRead.Add(int64(len(line) + 1)) // +1 for newline
		sr.linesRead.Add(1)

		if err := sr.sink.AppendLine(line, sr.kind); err != nil {
			sr.sinkFailures.Add(1)
			sr.logger.Warn("sink_append_failed",
				"run_id", sr.runID,
				"stream", sr.stream,
				"error", fmt.Errorf("%w: %v", ErrSinkFailure, err),
			)
		}

		if sr.onLine != nil {
			sr.onLine(line)
		}

		// Throttle chatty tools so the console stays responsive
		if sr.delay > 0 {
			time.Sleep(sr.delay)
		}
	}

	if err := scanner.Err(); err != nil {
		sr.failed.Store(true)
		failure := fmt.Errorf("%w: %s: %v", ErrStreamFailure, sr.stream, err)
		sr.logger.Error("tool_stream_failed",
			"run_id", sr.runID,
			"stream", sr.stream,
			"error", failure,
		)
		// The rest of the stream is dropped; say so in the console
		if err := sr.sink.AppendLine(failure.Error(), KindError); err != nil {
			sr.sinkFailures.Add(1)
		}
		// Keep draining so the child never blocks on a full pipe
		_, _ = io.Copy(io.Discard, sr.r)
	}
}

// Failed reports whether the stream ended with a read error.
func (sr *streamReader) Failed() bool {
	return sr.failed.Load()
}

// Stats returns (bytesRead, linesRead).
func (sr *streamReader) Stats() (bytesRead int64, linesRead int64) {
	return sr.bytesRead.Load(), sr.linesRead.Load()
}
