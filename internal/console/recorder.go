package console

import (
	"io"
	"strings"
	"sync"

	"github.com/MuteSoft/apextext-sub002/internal/toolrunner"
)

// Line is one recorded sink line.
type Line struct {
	Text string
	Kind toolrunner.Kind
}

// Recorder keeps every appended line in memory.
type Recorder struct {
	mu       sync.Mutex
	lines    []Line
	title    string
	attached int
	detached int
	stdin    io.WriteCloser
}

// AppendLine implements toolrunner.Sink.
func (r *Recorder) AppendLine(text string, kind toolrunner.Kind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, Line{Text: text, Kind: kind})
	return nil
}

// AttachProcess implements toolrunner.Sink.
func (r *Recorder) AttachProcess(*toolrunner.Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached++
}

// DetachProcess implements toolrunner.Sink.
func (r *Recorder) DetachProcess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detached++
}

// RegisterInputForwarder implements toolrunner.Sink.
func (r *Recorder) RegisterInputForwarder(w io.WriteCloser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stdin = w
}

// SetTitle implements toolrunner.Sink.
func (r *Recorder) SetTitle(title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.title = title
}

// Lines returns a copy of all recorded lines.
func (r *Recorder) Lines() []Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Line(nil), r.lines...)
}

// Texts returns the text of every line of the given kind.
func (r *Recorder) Texts(kind toolrunner.Kind) []string {
	var out []string
	for _, l := range r.Lines() {
		if l.Kind == kind {
			out = append(out, l.Text)
		}
	}
	return out
}

// String returns all lines joined by newlines.
func (r *Recorder) String() string {
	lines := r.Lines()
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return strings.Join(texts, "\n")
}

// Title returns the last title set.
func (r *Recorder) Title() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.title
}

// Attachments returns how often a process was attached and detached.
func (r *Recorder) Attachments() (attached, detached int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attached, r.detached
}

var _ toolrunner.Sink = (*Recorder)(nil)
