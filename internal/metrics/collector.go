// Package metrics provides Prometheus metrics for tool runs.
//
// Every collector owns its metric vectors, so several collectors can be
// registered with separate registries (one per test, for instance).
package metrics

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MuteSoft/apextext-sub002/internal/toolrunner"
)

// Run outcomes used as the "outcome" label.
const (
	OutcomeOK             = "ok"
	OutcomeErrorsReported = "errors_reported"
	OutcomeInterrupted    = "interrupted"
	OutcomeSpawnFailed    = "spawn_failed"
	OutcomeSkipped        = "skipped"
)

// digestCompression matches the accuracy the summary percentiles need.
const digestCompression = 100

// Collector records tool run metrics.
type Collector struct {
	info          *prometheus.GaugeVec
	runsTotal     *prometheus.CounterVec
	spawnFailures *prometheus.CounterVec
	linesTotal    *prometheus.CounterVec
	exitsTotal    *prometheus.CounterVec
	diagnostics   *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	activeRuns    prometheus.Gauge

	startTime time.Time

	// For summary generation
	mu          sync.Mutex
	active      int
	peakActive  int
	runs        int64
	outcomes    map[string]int64
	exitCodes   map[int]int64
	stdoutLines int64
	stderrLines int64
	diagCounts  map[string]int64
	durations   *tdigest.TDigest
	maxDuration time.Duration
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version string
}

// NewCollector creates a collector registered with the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "apextext_toolrun_info",
				Help: "Information about the tool runner (value always 1)",
			},
			[]string{"version"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apextext_tool_runs_total",
				Help: "Collected tool runs by outcome",
			},
			[]string{"tool", "outcome"},
		),
		spawnFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apextext_tool_spawn_failures_total",
				Help: "Tool processes that could not be started",
			},
			[]string{"tool"},
		),
		linesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apextext_tool_output_lines_total",
				Help: "Lines read from tool processes",
			},
			[]string{"tool", "kind"},
		),
		exitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apextext_tool_exits_total",
				Help: "Tool process exits by category (success, error, signal)",
			},
			[]string{"category"},
		),
		diagnostics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apextext_tool_diagnostics_total",
				Help: "Error stream lines matching a diagnostic pattern (error:, warning:, ...)",
			},
			[]string{"tool", "pattern"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apextext_tool_run_duration_seconds",
				Help:    "Wall time from spawn until both streams were drained",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"tool"},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "apextext_tool_active_runs",
				Help: "Tool processes currently running",
			},
		),
		startTime:  time.Now(),
		outcomes:   make(map[string]int64),
		exitCodes:  make(map[int]int64),
		diagCounts: make(map[string]int64),
		durations:  tdigest.NewWithCompression(digestCompression),
	}

	registry.MustRegister(
		c.info,
		c.runsTotal,
		c.spawnFailures,
		c.linesTotal,
		c.exitsTotal,
		c.diagnostics,
		c.runDuration,
		c.activeRuns,
	)

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	c.info.WithLabelValues(version).Set(1)

	return c
}

// Callbacks returns runner callbacks that feed this collector.
func (c *Collector) Callbacks() toolrunner.Callbacks {
	return toolrunner.Callbacks{
		OnStart:        func(_, _ string, _ int) { c.RunStarted() },
		OnSpawnFailure: func(tool string, _ error) { c.SpawnFailed(tool) },
		OnLine:         c.RecordLine,
		OnExit:         c.RecordResult,
	}
}

// Chain combines callbacks so that both a and b are invoked.
func Chain(a, b toolrunner.Callbacks) toolrunner.Callbacks {
	return toolrunner.Callbacks{
		OnStateChange: func(runID string, o, n toolrunner.State) {
			if a.OnStateChange != nil {
				a.OnStateChange(runID, o, n)
			}
			if b.OnStateChange != nil {
				b.OnStateChange(runID, o, n)
			}
		},
		OnStart: func(runID, tool string, pid int) {
			if a.OnStart != nil {
				a.OnStart(runID, tool, pid)
			}
			if b.OnStart != nil {
				b.OnStart(runID, tool, pid)
			}
		},
		OnSpawnFailure: func(tool string, err error) {
			if a.OnSpawnFailure != nil {
				a.OnSpawnFailure(tool, err)
			}
			if b.OnSpawnFailure != nil {
				b.OnSpawnFailure(tool, err)
			}
		},
		OnLine: func(tool string, kind toolrunner.Kind) {
			if a.OnLine != nil {
				a.OnLine(tool, kind)
			}
			if b.OnLine != nil {
				b.OnLine(tool, kind)
			}
		},
		OnExit: func(result toolrunner.Result) {
			if a.OnExit != nil {
				a.OnExit(result)
			}
			if b.OnExit != nil {
				b.OnExit(result)
			}
		},
	}
}

// =============================================================================
// Event Recording Methods
// =============================================================================

// RunStarted records a spawned tool process.
func (c *Collector) RunStarted() {
	c.activeRuns.Inc()

	c.mu.Lock()
	c.active++
	if c.active > c.peakActive {
		c.peakActive = c.active
	}
	c.mu.Unlock()
}

// SpawnFailed records a tool process that could not be started.
func (c *Collector) SpawnFailed(tool string) {
	c.spawnFailures.WithLabelValues(tool).Inc()
}

// RecordLine records one line read from a tool.
func (c *Collector) RecordLine(tool string, kind toolrunner.Kind) {
	c.linesTotal.WithLabelValues(tool, kind.String()).Inc()
}

// RecordResult records a collected run.
func (c *Collector) RecordResult(r toolrunner.Result) {
	outcome := Outcome(r)
	c.runsTotal.WithLabelValues(r.ToolName, outcome).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.runs++
	c.outcomes[outcome]++
	if !r.ExitObserved {
		return
	}

	c.activeRuns.Dec()
	c.active--

	c.exitsTotal.WithLabelValues(exitCategory(r.ExitCode)).Inc()
	c.runDuration.WithLabelValues(r.ToolName).Observe(r.Duration.Seconds())

	c.exitCodes[r.ExitCode]++
	c.stdoutLines += r.StdoutLines
	c.stderrLines += r.StderrLines
	for pattern, n := range r.Diagnostics {
		c.diagnostics.WithLabelValues(r.ToolName, pattern).Add(float64(n))
		c.diagCounts[pattern] += int64(n)
	}
	c.durations.Add(r.Duration.Seconds(), 1)
	if r.Duration > c.maxDuration {
		c.maxDuration = r.Duration
	}
}

// Outcome classifies a result for the "outcome" label.
func Outcome(r toolrunner.Result) string {
	switch {
	case r.SpawnError != nil:
		return OutcomeSpawnFailed
	case !r.ExitObserved:
		return OutcomeSkipped
	case r.Interrupted:
		return OutcomeInterrupted
	case !r.Successful:
		return OutcomeErrorsReported
	default:
		return OutcomeOK
	}
}

func exitCategory(exitCode int) string {
	switch {
	case exitCode == 0:
		return "success"
	case exitCode > 128:
		return "signal"
	default:
		return "error"
	}
}

// =============================================================================
// Summary Generation
// =============================================================================

// Summary holds the data for generating an exit summary.
type Summary struct {
	Elapsed     time.Duration
	Runs        int64
	Outcomes    map[string]int64
	PeakActive  int
	ExitCodes   map[int]int64
	StdoutLines int64
	StderrLines int64
	Diagnostics map[string]int64
	DurationP50 time.Duration
	DurationP95 time.Duration
	DurationP99 time.Duration
	DurationMax time.Duration
}

// GenerateSummary creates a summary of all recorded runs.
func (c *Collector) GenerateSummary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		Elapsed:     time.Since(c.startTime),
		Runs:        c.runs,
		Outcomes:    make(map[string]int64, len(c.outcomes)),
		PeakActive:  c.peakActive,
		ExitCodes:   make(map[int]int64, len(c.exitCodes)),
		StdoutLines: c.stdoutLines,
		StderrLines: c.stderrLines,
		Diagnostics: make(map[string]int64, len(c.diagCounts)),
		DurationMax: c.maxDuration,
	}
	for k, v := range c.outcomes {
		s.Outcomes[k] = v
	}
	for k, v := range c.exitCodes {
		s.ExitCodes[k] = v
	}
	for k, v := range c.diagCounts {
		s.Diagnostics[k] = v
	}

	if c.durations.Count() > 0 {
		s.DurationP50 = seconds(c.durations.Quantile(0.50))
		s.DurationP95 = seconds(c.durations.Quantile(0.95))
		s.DurationP99 = seconds(c.durations.Quantile(0.99))
	}
	return s
}

// PeakActive returns the highest number of concurrent runs.
func (c *Collector) PeakActive() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peakActive
}

// Active returns the number of runs not yet collected.
func (c *Collector) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
