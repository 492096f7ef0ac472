package tui

import (
	"errors"
	"io"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/MuteSoft/apextext-sub002/internal/toolrunner"
)

// ErrConsoleClosed is returned by Sink.AppendLine after Close.
var ErrConsoleClosed = errors.New("console closed")

// Sender delivers messages to a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Sink is a toolrunner.Sink that feeds a console program.
type Sink struct {
	sender Sender
	closed atomic.Bool
}

// NewSink creates a Sink sending to s.
func NewSink(s Sender) *Sink {
	return &Sink{sender: s}
}

// AppendLine implements toolrunner.Sink.
func (s *Sink) AppendLine(text string, kind toolrunner.Kind) error {
	if s.closed.Load() {
		return ErrConsoleClosed
	}
	s.sender.Send(LineMsg{Text: text, Kind: kind})
	return nil
}

// AttachProcess implements toolrunner.Sink.
func (s *Sink) AttachProcess(p *toolrunner.Process) {
	s.send(AttachMsg{Process: p})
}

// DetachProcess implements toolrunner.Sink.
func (s *Sink) DetachProcess() {
	s.send(DetachMsg{})
}

// RegisterInputForwarder implements toolrunner.Sink.
func (s *Sink) RegisterInputForwarder(w io.WriteCloser) {
	s.send(ForwarderMsg{W: w})
}

// SetTitle implements toolrunner.Sink.
func (s *Sink) SetTitle(title string) {
	s.send(TitleMsg{Title: title})
}

// SendResult shows the final result of a run.
func (s *Sink) SendResult(r toolrunner.Result) {
	s.send(ResultMsg{Result: r})
}

// Close makes later appends fail. Call it once the program has exited.
func (s *Sink) Close() {
	s.closed.Store(true)
}

func (s *Sink) send(msg tea.Msg) {
	if s.closed.Load() {
		return
	}
	s.sender.Send(msg)
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

var _ toolrunner.Sink = (*Sink)(nil)
