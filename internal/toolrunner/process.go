package toolrunner

import (
	"errors"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Process is the handle of one running tool. The host gets it through
// Sink.AttachProcess and may inspect or stop it.
type Process struct {
	runID    string
	toolName string
	cmd      *exec.Cmd

	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	startTime time.Time
	spawnErr  error

	stateMu sync.RWMutex
	state   State

	// done is closed once Wait has returned in Collect.
	done     chan struct{}
	doneOnce sync.Once
}

func newProcess(runID, toolName string) *Process {
	return &Process{
		runID:    runID,
		toolName: toolName,
		state:    StateCreated,
		done:     make(chan struct{}),
	}
}

// RunID returns the identifier of this run.
func (p *Process) RunID() string { return p.runID }

// ToolName returns the tool label.
func (p *Process) ToolName() string { return p.toolName }

// Started reports whether the OS process was obtained.
func (p *Process) Started() bool { return p != nil && p.cmd != nil && p.cmd.Process != nil }

// Err returns the spawn error, or nil if the process started.
func (p *Process) Err() error { return p.spawnErr }

// PID returns the OS process id, or 0 if not started.
func (p *Process) PID() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

// setState updates the state and returns the previous one.
func (p *Process) setState(s State) State {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	old := p.state
	p.state = s
	return old
}

// Uptime returns how long the process has been running, or 0 if it is not.
func (p *Process) Uptime() time.Duration {
	if !p.State().IsActive() || p.startTime.IsZero() {
		return 0
	}
	return time.Since(p.startTime)
}

// Done returns a channel closed once the process has been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

func (p *Process) markDone() {
	p.doneOnce.Do(func() { close(p.done) })
}

// Stop gracefully stops the tool and any children it spawned.
// It first sends SIGTERM to the process group, then SIGKILL if the process
// is not reaped within timeout.
func (p *Process) Stop(timeout time.Duration) error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}

	select {
	case <-p.done:
		return nil
	default:
	}

	if p.State() == StateRunning {
		p.setState(StateStopping)
	}

	p.signal(syscall.SIGTERM)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-timer.C:
		p.signal(syscall.SIGKILL)
		return errors.New("process did not exit gracefully")
	}
}

// signal sends sig to the process group, falling back to the process.
func (p *Process) signal(sig syscall.Signal) {
	pid := p.cmd.Process.Pid
	if pgid, err := syscall.Getpgid(pid); err == nil {
		_ = syscall.Kill(-pgid, sig)
		return
	}
	_ = p.cmd.Process.Signal(sig)
}
