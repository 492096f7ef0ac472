// Package process provides abstractions for describing and spawning external
// tool processes.
package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// Builder turns a Command into an executable command.
// This interface allows the tool runner to be tested without real processes.
type Builder interface {
	// BuildCommand returns a ready-to-start command.
	// The command should NOT be started yet.
	BuildCommand(c *Command) (*exec.Cmd, error)
}

// ExecBuilder implements Builder with os/exec.
type ExecBuilder struct {
	// Environ supplies the parent environment. Defaults to os.Environ.
	Environ func() []string
}

// BuildCommand creates an exec.Cmd from the full argument vector, merged
// environment and resolved working directory. The child gets its own process
// group so the whole tree can be signalled on stop.
func (b ExecBuilder) BuildCommand(c *Command) (*exec.Cmd, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	environ := b.Environ
	if environ == nil {
		environ = os.Environ
	}

	argv := c.Argv()
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = c.Env(environ())
	cmd.Dir = c.ResolveDir()

	// Set process group for clean shutdown
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	return cmd, nil
}

// ExitCode extracts the exit code from a Wait() error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}

	// Executable could not be run at all
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return 127
	}

	// Unknown error, assume exit code 1
	return 1
}
