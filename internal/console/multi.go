package console

import (
	"errors"
	"io"

	"github.com/MuteSoft/apextext-sub002/internal/toolrunner"
)

// MultiSink fans every call out to several sinks.
// Only the first sink receives the input forwarder, so user input reaches
// the tool exactly once.
type MultiSink struct {
	sinks []toolrunner.Sink
}

// NewMultiSink creates a fan-out over sinks. Nil sinks are skipped.
func NewMultiSink(sinks ...toolrunner.Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// AppendLine appends to every sink and joins their errors.
func (m *MultiSink) AppendLine(text string, kind toolrunner.Kind) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.AppendLine(text, kind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AttachProcess implements toolrunner.Sink.
func (m *MultiSink) AttachProcess(p *toolrunner.Process) {
	for _, s := range m.sinks {
		s.AttachProcess(p)
	}
}

// DetachProcess implements toolrunner.Sink.
func (m *MultiSink) DetachProcess() {
	for _, s := range m.sinks {
		s.DetachProcess()
	}
}

// RegisterInputForwarder implements toolrunner.Sink.
func (m *MultiSink) RegisterInputForwarder(w io.WriteCloser) {
	if len(m.sinks) > 0 {
		m.sinks[0].RegisterInputForwarder(w)
	}
}

// SetTitle implements toolrunner.Sink.
func (m *MultiSink) SetTitle(title string) {
	for _, s := range m.sinks {
		s.SetTitle(title)
	}
}

var _ toolrunner.Sink = (*MultiSink)(nil)
