package toolrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/MuteSoft/apextext-sub002/internal/logging"
	"github.com/MuteSoft/apextext-sub002/internal/process"
)

// DefaultPullDelay is the pause after each appended line. It keeps the host
// console responsive and throttles very chatty tools.
const DefaultPullDelay = 10 * time.Millisecond

// DefaultStopTimeout is how long Stop waits after SIGTERM before SIGKILL.
const DefaultStopTimeout = 3 * time.Second

// recentErrorLines is how many stderr lines a Result keeps.
const recentErrorLines = 10

// Callbacks contains optional callback functions for run events.
type Callbacks struct {
	// OnStateChange is called when a process changes state.
	OnStateChange func(runID string, oldState, newState State)

	// OnStart is called when a tool process has been spawned.
	OnStart func(runID, tool string, pid int)

	// OnSpawnFailure is called when a tool process could not be spawned.
	OnSpawnFailure func(tool string, err error)

	// OnLine is called for every line read from the child.
	OnLine func(tool string, kind Kind)

	// OnExit is called once per collected run with the final result.
	OnExit func(result Result)
}

// Result is the outcome of one tool run.
type Result struct {
	RunID    string
	ToolName string

	// Successful starts true and turns false on the first stderr line.
	// A spawn failure leaves it true; see SpawnError.
	Successful bool

	// ExitObserved reports whether a process was obtained at all.
	ExitObserved bool

	// ExitCode is -1 when no process was obtained.
	ExitCode int

	Duration     time.Duration
	StdoutLines  int64
	StderrLines  int64
	SpawnError   error
	Interrupted  bool
	RecentErrors []string

	// Diagnostics counts stderr lines per logging.DiagnosticPatterns entry.
	Diagnostics map[string]int
}

// Config holds configuration for creating a Runner.
type Config struct {
	Builder   process.Builder
	Logger    *slog.Logger
	Callbacks Callbacks

	// PullDelay is slept after every appended line. 0 disables throttling.
	PullDelay time.Duration

	// SpawnRetries is how often a "text file busy" spawn is retried.
	SpawnRetries int
	Backoff      BackoffConfig

	// StopTimeout is the SIGTERM grace period on interruption.
	StopTimeout time.Duration

	// Verbose mirrors every output line into the debug log.
	Verbose bool
}

// Runner executes tool commands.
// A Runner is safe for concurrent use; every run has its own state.
type Runner struct {
	builder      process.Builder
	logger       *slog.Logger
	callbacks    Callbacks
	pullDelay    time.Duration
	spawnRetries int
	backoff      BackoffConfig
	stopTimeout  time.Duration
	verbose      bool
}

// New creates a Runner with the given configuration.
func New(cfg Config) *Runner {
	builder := cfg.Builder
	if builder == nil {
		builder = process.ExecBuilder{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	backoff := cfg.Backoff
	if backoff.Initial <= 0 {
		backoff = DefaultBackoffConfig()
	}
	stopTimeout := cfg.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	pullDelay := cfg.PullDelay
	if pullDelay < 0 {
		pullDelay = 0
	}

	return &Runner{
		builder:      builder,
		logger:       logger,
		callbacks:    cfg.Callbacks,
		pullDelay:    pullDelay,
		spawnRetries: cfg.SpawnRetries,
		backoff:      backoff,
		stopTimeout:  stopTimeout,
		verbose:      cfg.Verbose,
	}
}

// Execute runs cmd and blocks until both output streams are drained.
// A nil cmd is a no-op.
func (r *Runner) Execute(ctx context.Context, cmd *process.Command, sink Sink, showOutput bool) Result {
	p := r.Run(ctx, cmd, sink, showOutput)
	return r.Collect(ctx, cmd, p, sink, showOutput)
}

// Run spawns cmd and returns its handle without waiting for output.
//
// A nil cmd returns nil with no side effects. When spawning fails the error
// is logged and written to the sink as a KindError line; the returned
// Process then reports Started() == false.
func (r *Runner) Run(ctx context.Context, cmd *process.Command, sink Sink, showOutput bool) *Process {
	if cmd == nil {
		r.logger.Debug("tool_run_skipped", "reason", ErrConfigurationMissing.Error())
		return nil
	}

	tool := cmd.ToolName()
	p := newProcess(uuid.NewString(), tool)

	if showOutput {
		r.appendLine(sink, p.runID, StartMessage(tool), KindMessage)
	}

	r.transition(p, StateStarting)
	if err := r.spawn(ctx, p, cmd); err != nil {
		p.spawnErr = err
		r.transition(p, StateFailed)
		p.markDone()

		r.logger.Error("tool_spawn_failed",
			"run_id", p.runID,
			"tool", tool,
			"argv", cmd.Argv(),
			"error", err,
		)
		r.appendLine(sink, p.runID, err.Error(), KindError)
		if r.callbacks.OnSpawnFailure != nil {
			r.callbacks.OnSpawnFailure(tool, err)
		}
		return p
	}

	p.startTime = time.Now()
	r.transition(p, StateRunning)

	r.logger.Info("tool_started",
		"run_id", p.runID,
		"tool", tool,
		"pid", p.PID(),
		"dir", p.cmd.Dir,
	)
	if r.callbacks.OnStart != nil {
		r.callbacks.OnStart(p.runID, tool, p.PID())
	}

	if showOutput {
		sink.AttachProcess(p)
		sink.SetTitle(tool)
	}
	return p
}

// spawn starts the process, retrying while the executable is busy.
func (r *Runner) spawn(ctx context.Context, p *Process, cmd *process.Command) error {
	backoff := NewBackoff(time.Now().UnixNano(), r.backoff)

	for {
		err := r.startOnce(p, cmd)
		if err == nil {
			return nil
		}
		if !errors.Is(err, syscall.ETXTBSY) || backoff.Attempts() >= r.spawnRetries {
			return fmt.Errorf("%w: %w", ErrSpawnFailure, err)
		}

		r.logger.Debug("tool_spawn_retry",
			"run_id", p.runID,
			"tool", p.toolName,
			"attempt", backoff.Attempts()+1,
			"error", err,
		)
		if werr := backoff.Wait(ctx); werr != nil {
			return fmt.Errorf("%w: %w", ErrSpawnFailure, err)
		}
	}
}

// startOnce builds a fresh exec.Cmd with pipes and starts it.
// An exec.Cmd cannot be restarted, so every attempt builds a new one.
func (r *Runner) startOnce(p *Process, cmd *process.Command) error {
	ec, err := r.builder.BuildCommand(cmd)
	if err != nil {
		return err
	}

	stdin, err := ec.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := ec.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := ec.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return fmt.Errorf("stderr pipe: %w", err)
	}

	// Start closes the pipes itself when it fails
	if err := ec.Start(); err != nil {
		return err
	}

	p.cmd = ec
	p.stdin = stdin
	p.stdout = stdout
	p.stderr = stderr
	return nil
}

// Collect streams the output of p into sink and waits for it to finish.
//
// If p is nil or never started, only the completion line is emitted and the
// result is Successful with ExitObserved false. Cancelling ctx stops the
// process; the remaining output is still drained before Collect returns.
func (r *Runner) Collect(ctx context.Context, cmd *process.Command, p *Process, sink Sink, showOutput bool) Result {
	if cmd == nil {
		return Result{Successful: true, ExitCode: -1}
	}

	tool := cmd.ToolName()
	result := Result{
		ToolName:   tool,
		Successful: true,
		ExitCode:   -1,
	}
	if p != nil {
		result.RunID = p.runID
		result.SpawnError = p.spawnErr
	}

	if p == nil || !p.Started() {
		r.appendLine(sink, result.RunID, FinishMessage(tool), KindMessage)
		r.finish(result)
		return result
	}
	result.ExitObserved = true

	handler := logging.NewOutputHandler(tool, p.runID, r.logger, r.verbose)

	// Written only by the stderr reader, read after the join
	successful := true

	errReader := &streamReader{
		stream: "stderr",
		kind:   KindError,
		r:      p.stderr,
		sink:   sink,
		delay:  r.pullDelay,
		logger: r.logger,
		runID:  p.runID,
		onLine: func(line string) {
			successful = false
			handler.HandleStderr(line)
			if r.callbacks.OnLine != nil {
				r.callbacks.OnLine(tool, KindError)
			}
		},
	}
	outReader := &streamReader{
		stream: "stdout",
		kind:   KindOutput,
		r:      p.stdout,
		sink:   sink,
		delay:  r.pullDelay,
		logger: r.logger,
		runID:  p.runID,
		onLine: func(line string) {
			handler.HandleStdout(line)
			if r.callbacks.OnLine != nil {
				r.callbacks.OnLine(tool, KindOutput)
			}
		},
	}

	sink.RegisterInputForwarder(p.stdin)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		errReader.run()
	}()
	go func() {
		defer wg.Done()
		outReader.run()
	}()

	readersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(readersDone)
	}()

	select {
	case <-readersDone:
	case <-ctx.Done():
		result.Interrupted = true
		r.logger.Warn("tool_wait_interrupted",
			"run_id", p.runID,
			"tool", tool,
			"error", fmt.Errorf("%w: %v", ErrInterruptedWait, ctx.Err()),
		)
		go func() {
			if err := p.Stop(r.stopTimeout); err != nil {
				r.logger.Warn("force_killing_process", "run_id", p.runID, "pid", p.PID())
			}
		}()
		<-readersDone
	}

	// Wait closes the pipes, so it must come after both readers hit EOF
	waitErr := p.cmd.Wait()
	p.markDone()
	r.transition(p, StateExited)

	// An undecodable stderr line is still error output
	if errReader.Failed() {
		successful = false
	}
	result.Successful = successful
	result.ExitCode = process.ExitCode(waitErr)
	result.Duration = time.Since(p.startTime)
	_, result.StdoutLines = outReader.Stats()
	_, result.StderrLines = errReader.Stats()
	result.RecentErrors = handler.RecentLines(recentErrorLines)
	result.Diagnostics = handler.CountDiagnostics()

	r.logger.Info("tool_finished",
		"run_id", p.runID,
		"tool", tool,
		"pid", p.PID(),
		"exit_code", result.ExitCode,
		"successful", result.Successful,
		"stdout_lines", result.StdoutLines,
		"stderr_lines", result.StderrLines,
		"duration", result.Duration.String(),
	)

	r.appendLine(sink, p.runID, FinishMessage(tool), KindMessage)
	if showOutput {
		sink.DetachProcess()
	}

	r.finish(result)
	return result
}

// appendLine appends a runner-produced line, logging sink failures.
func (r *Runner) appendLine(sink Sink, runID, text string, kind Kind) {
	if err := sink.AppendLine(text, kind); err != nil {
		r.logger.Warn("sink_append_failed",
			"run_id", runID,
			"kind", kind.String(),
			"error", fmt.Errorf("%w: %v", ErrSinkFailure, err),
		)
	}
}

func (r *Runner) transition(p *Process, s State) {
	old := p.setState(s)
	if r.callbacks.OnStateChange != nil && old != s {
		r.callbacks.OnStateChange(p.runID, old, s)
	}
}

func (r *Runner) finish(result Result) {
	if r.callbacks.OnExit != nil {
		r.callbacks.OnExit(result)
	}
}
