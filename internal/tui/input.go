package tui

import (
	"errors"
	"io"
	"sync"
)

// errInputClosed is reported for input entered after the tool detached.
var errInputClosed = errors.New("tool no longer accepts input")

// inputWriter delivers console input to the tool's stdin from a single
// goroutine, so lines arrive in the order they were entered. Send never
// blocks the UI, even when the pipe is full.
type inputWriter struct {
	w io.Writer

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []pendingInput
	closed bool
}

type pendingInput struct {
	line string
	done chan error
}

func newInputWriter(w io.Writer) *inputWriter {
	iw := &inputWriter{w: w}
	iw.cond = sync.NewCond(&iw.mu)
	go iw.run()
	return iw
}

// Send queues line. The returned channel receives the write result.
func (iw *inputWriter) Send(line string) <-chan error {
	done := make(chan error, 1)

	iw.mu.Lock()
	defer iw.mu.Unlock()
	if iw.closed {
		done <- errInputClosed
		return done
	}
	iw.queue = append(iw.queue, pendingInput{line: line, done: done})
	iw.cond.Signal()
	return done
}

// Close stops the writer after the queued lines are written. It does not
// close the underlying stdin; the runner owns it.
func (iw *inputWriter) Close() {
	iw.mu.Lock()
	iw.closed = true
	iw.cond.Signal()
	iw.mu.Unlock()
}

func (iw *inputWriter) run() {
	for {
		iw.mu.Lock()
		for len(iw.queue) == 0 && !iw.closed {
			iw.cond.Wait()
		}
		if len(iw.queue) == 0 {
			iw.mu.Unlock()
			return
		}
		next := iw.queue[0]
		iw.queue = iw.queue[1:]
		iw.mu.Unlock()

		_, err := io.WriteString(iw.w, next.line+"\n")
		next.done <- err
	}
}
