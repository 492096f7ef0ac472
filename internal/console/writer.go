// Package console provides line sinks for tool output outside the TUI:
// a styled terminal writer, an in-memory recorder, a transcript file and a
// fan-out over several sinks.
package console

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/MuteSoft/apextext-sub002/internal/toolrunner"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4")).Italic(true)
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
)

// WriterSink writes styled lines to a terminal and forwards lines read from
// an input reader to the running tool.
type WriterSink struct {
	mu  sync.Mutex
	out io.Writer

	// Styled lines; false writes plain text.
	styled bool

	in        io.Reader
	pumpOnce  sync.Once
	fwdMu     sync.Mutex
	forwarder io.WriteCloser
	process   *toolrunner.Process
}

// NewWriterSink creates a sink writing to out. When in is non-nil, every line
// read from it is written to the stdin of the attached tool.
func NewWriterSink(out io.Writer, in io.Reader, styled bool) *WriterSink {
	return &WriterSink{out: out, in: in, styled: styled}
}

// AppendLine implements toolrunner.Sink.
func (s *WriterSink) AppendLine(text string, kind toolrunner.Kind) error {
	if s.styled {
		switch kind {
		case toolrunner.KindError:
			text = errorStyle.Render(text)
		case toolrunner.KindMessage:
			text = messageStyle.Render(text)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.out, text)
	return err
}

// AttachProcess implements toolrunner.Sink.
func (s *WriterSink) AttachProcess(p *toolrunner.Process) {
	s.fwdMu.Lock()
	defer s.fwdMu.Unlock()
	s.process = p
}

// DetachProcess implements toolrunner.Sink.
func (s *WriterSink) DetachProcess() {
	s.fwdMu.Lock()
	defer s.fwdMu.Unlock()
	s.process = nil
	s.forwarder = nil
}

// Process returns the attached process, or nil.
func (s *WriterSink) Process() *toolrunner.Process {
	s.fwdMu.Lock()
	defer s.fwdMu.Unlock()
	return s.process
}

// RegisterInputForwarder implements toolrunner.Sink.
func (s *WriterSink) RegisterInputForwarder(w io.WriteCloser) {
	s.fwdMu.Lock()
	s.forwarder = w
	s.fwdMu.Unlock()

	if s.in != nil {
		s.pumpOnce.Do(func() { go s.pump() })
	}
}

// SetTitle implements toolrunner.Sink.
func (s *WriterSink) SetTitle(title string) {
	if !s.styled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, titleStyle.Render("== "+title+" =="))
}

// pump copies input lines to the current forwarder. Lines typed while no
// tool is running are dropped.
func (s *WriterSink) pump() {
	scanner := bufio.NewScanner(s.in)
	for scanner.Scan() {
		line := scanner.Text()

		s.fwdMu.Lock()
		w := s.forwarder
		s.fwdMu.Unlock()
		if w == nil {
			continue
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			s.fwdMu.Lock()
			if s.forwarder == w {
				s.forwarder = nil
			}
			s.fwdMu.Unlock()
		}
	}

	// EOF on the input closes the tool's stdin
	s.fwdMu.Lock()
	w := s.forwarder
	s.fwdMu.Unlock()
	if w != nil {
		_ = w.Close()
	}
}

var _ toolrunner.Sink = (*WriterSink)(nil)
