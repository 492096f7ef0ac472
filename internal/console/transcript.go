package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/MuteSoft/apextext-sub002/internal/toolrunner"
)

// TranscriptSink writes every line with a timestamp and kind tag to a file.
// Paths ending in ".gz" are gzip-compressed.
type TranscriptSink struct {
	mu   sync.Mutex
	file *os.File
	gz   *gzip.Writer
	w    *bufio.Writer
	now  func() time.Time
	err  error
}

// OpenTranscript creates or truncates the transcript at path.
func OpenTranscript(path string) (*TranscriptSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create transcript dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create transcript: %w", err)
	}

	t := &TranscriptSink{file: f, now: time.Now}
	var dst io.Writer = f
	if strings.HasSuffix(path, ".gz") {
		t.gz = gzip.NewWriter(f)
		dst = t.gz
	}
	t.w = bufio.NewWriter(dst)
	return t, nil
}

// AppendLine implements toolrunner.Sink.
func (t *TranscriptSink) AppendLine(text string, kind toolrunner.Kind) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.w == nil {
		return os.ErrClosed
	}
	_, err := fmt.Fprintf(t.w, "%s [%s] %s\n", t.now().Format(time.RFC3339Nano), kind, text)
	if err != nil && t.err == nil {
		t.err = err
	}
	return err
}

// AttachProcess implements toolrunner.Sink.
func (t *TranscriptSink) AttachProcess(p *toolrunner.Process) {
	if p == nil {
		return
	}
	t.note(fmt.Sprintf("run %s pid %d", p.RunID(), p.PID()))
}

// DetachProcess implements toolrunner.Sink.
func (t *TranscriptSink) DetachProcess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w != nil {
		_ = t.w.Flush()
	}
}

// RegisterInputForwarder implements toolrunner.Sink. Transcripts take no input.
func (t *TranscriptSink) RegisterInputForwarder(io.WriteCloser) {}

// SetTitle implements toolrunner.Sink.
func (t *TranscriptSink) SetTitle(title string) {
	t.note("tool " + title)
}

func (t *TranscriptSink) note(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return
	}
	fmt.Fprintf(t.w, "%s [meta] %s\n", t.now().Format(time.RFC3339Nano), text)
}

// Close flushes and closes the transcript. The first write error, if any,
// is returned.
func (t *TranscriptSink) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.w == nil {
		return nil
	}
	errs := []error{t.err, t.w.Flush()}
	if t.gz != nil {
		errs = append(errs, t.gz.Close())
	}
	errs = append(errs, t.file.Close())
	t.w = nil

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

var _ toolrunner.Sink = (*TranscriptSink)(nil)
