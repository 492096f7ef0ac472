// Package orchestrator wires configuration, tools, sinks and metrics into a
// single tool run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/MuteSoft/apextext-sub002/internal/config"
	"github.com/MuteSoft/apextext-sub002/internal/console"
	"github.com/MuteSoft/apextext-sub002/internal/metrics"
	"github.com/MuteSoft/apextext-sub002/internal/preflight"
	"github.com/MuteSoft/apextext-sub002/internal/process"
	"github.com/MuteSoft/apextext-sub002/internal/toolrunner"
	"github.com/MuteSoft/apextext-sub002/internal/tools"
	"github.com/MuteSoft/apextext-sub002/internal/tui"
)

// ErrUnknownTool is returned for a tool name that is neither built in nor in
// the catalog.
var ErrUnknownTool = errors.New("unknown tool")

// ErrPreflightFailed is returned when a required check fails.
var ErrPreflightFailed = errors.New("preflight checks failed (use --skip-preflight to override)")

// Options holds the process streams and build information.
type Options struct {
	Version string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Builder overrides how commands are spawned.
	Builder process.Builder
}

// Orchestrator coordinates all components for a tool run.
type Orchestrator struct {
	config  *config.Config
	catalog *config.Catalog
	logger  *slog.Logger

	registry        *tools.Registry
	runner          *toolrunner.Runner
	metrics         *metrics.Collector
	metricsRegistry *prometheus.Registry
	metricsServer   *metrics.Server

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// New creates an Orchestrator. cat may be nil.
func New(cfg *config.Config, cat *config.Catalog, logger *slog.Logger, opts Options) (*Orchestrator, error) {
	o := &Orchestrator{
		config:  cfg,
		catalog: cat,
		logger:  logger,
		stdin:   opts.Stdin,
		stdout:  opts.Stdout,
		stderr:  opts.Stderr,
	}
	if o.stdout == nil {
		o.stdout = os.Stdout
	}
	if o.stderr == nil {
		o.stderr = os.Stderr
	}

	registry, err := tools.NewDefaultRegistry(cfg, cat, o.prompter())
	if err != nil {
		return nil, err
	}
	o.registry = registry

	o.metricsRegistry = prometheus.NewRegistry()
	o.metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	o.metrics = metrics.NewCollectorWithRegistry(metrics.CollectorConfig{Version: opts.Version}, o.metricsRegistry)
	if cfg.MetricsAddr != "" {
		o.metricsServer = metrics.NewServer(cfg.MetricsAddr, o.metricsRegistry, logger)
	}

	o.runner = toolrunner.New(toolrunner.Config{
		Builder: opts.Builder,
		Logger:  logger,
		Callbacks: metrics.Chain(o.metrics.Callbacks(), toolrunner.Callbacks{
			OnStateChange: o.onStateChange,
		}),
		PullDelay:    cfg.PullDelay,
		SpawnRetries: cfg.SpawnRetries,
		Backoff: toolrunner.BackoffConfig{
			Initial:    cfg.BackoffInitial,
			Max:        cfg.BackoffMax,
			Multiplier: cfg.BackoffMultiply,
			JitterPct:  0.2,
		},
		StopTimeout: cfg.StopTimeout,
		Verbose:     cfg.Verbose,
	})

	return o, nil
}

// prompter asks for catalog parameters on the orchestrator's terminal.
func (o *Orchestrator) prompter() tools.Prompter {
	if o.stdin == nil {
		return nil
	}
	rc, ok := o.stdin.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(o.stdin)
	}
	return tools.ReadlinePrompter{Stdin: rc, Stdout: o.stderr}
}

// Document builds the document for path from the configured project layout.
func (o *Orchestrator) Document(path string) tools.Document {
	if path != "" {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	return tools.Document{
		Path:        path,
		ProjectRoot: o.config.ProjectRoot,
		ClassPath:   o.config.ClassPath,
		OutputDir:   o.config.OutputDir,
	}
}

// Prepare builds the command of the named tool for the document at path.
func (o *Orchestrator) Prepare(toolName, path string) (*process.Command, error) {
	p, ok := o.registry.Lookup(toolName)
	if !ok {
		return nil, fmt.Errorf("%w: %q (see 'list')", ErrUnknownTool, toolName)
	}
	return p.Prepare(o.Document(path))
}

// Run executes the named tool on the document at path. It blocks until the
// tool's output is drained and, with the TUI, until the console is closed.
func (o *Orchestrator) Run(ctx context.Context, toolName, path string) (toolrunner.Result, error) {
	cmd, err := o.Prepare(toolName, path)
	if err != nil {
		return toolrunner.Result{}, err
	}

	if !o.config.SkipPreflight {
		result := preflight.RunAll(ctx, preflight.Options{
			Tools: []preflight.Tool{{Name: cmd.ToolName(), Binary: cmd.BaseCommand()[0]}},
		})
		if !result.Passed || o.config.Verbose {
			preflight.PrintResults(o.stderr, result)
		}
		if !result.Passed {
			return toolrunner.Result{}, ErrPreflightFailed
		}
	}

	if o.metricsServer != nil {
		if err := o.metricsServer.Start(); err != nil {
			return toolrunner.Result{}, fmt.Errorf("failed to start metrics server: %w", err)
		}
	}
	defer o.shutdown()

	// Setup signal handling
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			o.logger.Info("received_signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	var transcript *console.TranscriptSink
	if o.config.Transcript != "" {
		transcript, err = console.OpenTranscript(o.config.Transcript)
		if err != nil {
			return toolrunner.Result{}, err
		}
		defer func() {
			if err := transcript.Close(); err != nil {
				o.logger.Warn("transcript_close_failed", "error", err)
			}
		}()
	}

	o.logger.Info("tool_run_starting", "tool", cmd.ToolName(), "command", cmd.String())

	if o.config.TUIEnabled {
		return o.runWithConsole(ctx, cmd, transcript)
	}
	out := console.NewWriterSink(o.stdout, o.stdin, !o.config.Plain)
	return o.runner.Execute(ctx, cmd, sinkWith(out, transcript), o.config.ShowOutput()), nil
}

// runWithConsole runs cmd while a full-screen console shows its output.
// Quitting the console interrupts the tool.
func (o *Orchestrator) runWithConsole(ctx context.Context, cmd *process.Command, transcript *console.TranscriptSink) (toolrunner.Result, error) {
	model := tui.New(tui.Config{
		AppName:     "apex-toolrun",
		StopTimeout: o.config.StopTimeout,
	})

	progOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithOutput(o.stdout)}
	if o.stdin != nil {
		progOpts = append(progOpts, tea.WithInput(o.stdin))
	}
	program := tea.NewProgram(model, progOpts...)
	sink := tui.NewSink(program)

	var uiErr error
	uiDone := make(chan struct{})
	go func() {
		_, uiErr = program.Run()
		sink.Close()
		close(uiDone)
	}()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	go func() {
		select {
		case <-uiDone:
			cancelRun()
		case <-runCtx.Done():
		}
	}()

	result := o.runner.Execute(runCtx, cmd, sinkWith(sink, transcript), o.config.ShowOutput())
	sink.SendResult(result)

	// An interrupted run closes the console; otherwise it stays until the
	// user quits.
	if ctx.Err() != nil {
		tui.SendQuit(program)
	}
	<-uiDone
	if uiErr != nil {
		return result, fmt.Errorf("console: %w", uiErr)
	}
	return result, nil
}

func sinkWith(primary toolrunner.Sink, transcript *console.TranscriptSink) toolrunner.Sink {
	if transcript == nil {
		return primary
	}
	return console.NewMultiSink(primary, transcript)
}

// shutdown stops the metrics server, dumps metrics and prints the summary.
func (o *Orchestrator) shutdown() {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if o.metricsServer != nil {
		if err := o.metricsServer.Shutdown(shutdownCtx); err != nil {
			o.logger.Warn("metrics_server_shutdown_error", "error", err)
		}
	}

	if o.config.MetricsDump != "" {
		if err := metrics.DumpFile(o.config.MetricsDump, o.metricsRegistry); err != nil {
			o.logger.Warn("metrics_dump_failed", "error", err)
		}
	}

	if o.config.Verbose || o.metricsServer != nil {
		o.printExitSummary(o.stderr)
	}
}

// PrintCommand writes the command line the tool would run.
func (o *Orchestrator) PrintCommand(w io.Writer, toolName, path string) error {
	cmd, err := o.Prepare(toolName, path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "# %s\n", cmd.ToolName())
	if dir := cmd.WorkingDirectory(); dir != "" {
		fmt.Fprintf(w, "# working directory: %s\n", dir)
	}
	env := cmd.Environment()
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "# env: %s=%s\n", k, env[k])
	}
	fmt.Fprintln(w, cmd.String())
	return nil
}

// List writes the available tools.
func (o *Orchestrator) List(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOOL\tSOURCE\tDESCRIPTION")
	for _, name := range o.registry.Names() {
		source, desc := "built-in", builtinDescriptions[name]
		if def, ok := o.catalog.Lookup(name); ok {
			source, desc = "catalog", def.Description
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, source, desc)
	}
	tw.Flush()
}

var builtinDescriptions = map[string]string{
	"Compile":         "compile the document",
	"Javadoc":         "generate documentation for a package",
	"Run Applet":      "show the document's applet in the applet viewer",
	"Run Application": "run the document's main class",
}

// Check runs the preflight checks for every configured tool and writes the
// results. It returns ErrPreflightFailed when a required check fails.
func (o *Orchestrator) Check(ctx context.Context, w io.Writer) error {
	checks := []preflight.Tool{
		{Name: "javac", Binary: o.config.JavacPath},
		{Name: "java", Binary: o.config.JavaPath},
		{Name: "javadoc", Binary: o.config.JavadocPath},
		// Removed from current JDKs
		{Name: "appletviewer", Binary: o.config.AppletViewerPath, Optional: true},
	}
	if o.catalog != nil {
		for _, def := range o.catalog.Tools {
			binary := def.Command[0]
			if strings.Contains(binary, "${") {
				continue
			}
			checks = append(checks, preflight.Tool{Name: def.Name, Binary: binary})
		}
	}

	result := preflight.RunAll(ctx, preflight.Options{
		Tools:   checks,
		WorkDir: o.config.ProjectRoot,
	})
	preflight.PrintResults(w, result)
	if !result.Passed {
		return ErrPreflightFailed
	}
	return nil
}

// Callback handlers

func (o *Orchestrator) onStateChange(runID string, oldState, newState toolrunner.State) {
	if o.config.Verbose {
		o.logger.Debug("tool_state_changed",
			"run_id", runID,
			"from", oldState.String(),
			"to", newState.String(),
		)
	}
}

// printExitSummary prints a summary of the runs.
func (o *Orchestrator) printExitSummary(w io.Writer) {
	summary := o.metrics.GenerateSummary()

	fmt.Fprintln(w)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
	fmt.Fprintln(w, "                      apex-toolrun Exit Summary")
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
	fmt.Fprintf(w, "Session Duration:       %s\n", formatDuration(summary.Elapsed))
	fmt.Fprintf(w, "Runs:                   %d\n", summary.Runs)
	fmt.Fprintf(w, "Output Lines:           %d\n", summary.StdoutLines)
	fmt.Fprintf(w, "Error Lines:            %d\n", summary.StderrLines)
	fmt.Fprintln(w)

	if summary.DurationMax > 0 {
		fmt.Fprintln(w, "Run Time:")
		fmt.Fprintf(w, "  P50 (median):         %s\n", summary.DurationP50.Round(time.Millisecond))
		fmt.Fprintf(w, "  P95:                  %s\n", summary.DurationP95.Round(time.Millisecond))
		fmt.Fprintf(w, "  Max:                  %s\n", summary.DurationMax.Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	if len(summary.Outcomes) > 0 {
		fmt.Fprintln(w, "Outcomes:")
		outcomes := make([]string, 0, len(summary.Outcomes))
		for k := range summary.Outcomes {
			outcomes = append(outcomes, k)
		}
		sort.Strings(outcomes)
		for _, k := range outcomes {
			fmt.Fprintf(w, "  %-20s %d\n", k, summary.Outcomes[k])
		}
		fmt.Fprintln(w)
	}

	if len(summary.Diagnostics) > 0 {
		fmt.Fprintln(w, "Diagnostics:")
		patterns := make([]string, 0, len(summary.Diagnostics))
		for p := range summary.Diagnostics {
			patterns = append(patterns, p)
		}
		sort.Strings(patterns)
		for _, p := range patterns {
			fmt.Fprintf(w, "  %-20s %d\n", p, summary.Diagnostics[p])
		}
		fmt.Fprintln(w)
	}

	if len(summary.ExitCodes) > 0 {
		fmt.Fprintln(w, "Exit Codes:")
		codes := make([]int, 0, len(summary.ExitCodes))
		for code := range summary.ExitCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "  %3d %-16s %d\n", code, exitCodeLabel(code), summary.ExitCodes[code])
		}
		fmt.Fprintln(w)
	}

	if o.metricsServer != nil {
		fmt.Fprintf(w, "Metrics endpoint was: http://%s/metrics\n", o.metricsServer.Addr())
	}
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
}

// ExitStatus maps a result to a process exit status. Diagnostics on stderr
// fail the run even when the tool exited 0.
func ExitStatus(r toolrunner.Result) int {
	switch {
	case r.SpawnError != nil:
		return 127
	case !r.ExitObserved:
		return 0
	case r.ExitCode > 0:
		return r.ExitCode
	case !r.Successful:
		return 1
	default:
		return 0
	}
}

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case 127:
		return "(not found)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

// Registry returns the tool registry.
func (o *Orchestrator) Registry() *tools.Registry {
	return o.registry
}

// Metrics returns the metrics collector for external access.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}
