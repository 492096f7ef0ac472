// Package preflight provides startup validation checks.
package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/MuteSoft/apextext-sub002/internal/process"
)

// Note: syscall.RLIMIT_NPROC is not exported in Go's syscall package,
// so we read process limits from /proc/self/limits instead.

const (
	// Each run holds three pipes (six descriptors) plus the transcript.
	fdsPerRun   = 8
	fdsBaseline = 64

	minFreeMemoryMB = 256
	probeTimeout    = 5 * time.Second
)

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// Tool is an executable a run depends on.
type Tool struct {
	Name   string
	Binary string

	// Optional tools only warn when missing.
	Optional bool
}

// Options selects what RunAll checks.
type Options struct {
	Tools []Tool

	// WorkDir must exist when set.
	WorkDir string

	// ConcurrentRuns sizes the descriptor requirement. Zero means one.
	ConcurrentRuns int
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks.
func RunAll(ctx context.Context, opts Options) *Result {
	result := &Result{
		Checks: make([]Check, 0, len(opts.Tools)+5),
		Passed: true,
	}
	add := func(c Check) {
		result.Checks = append(result.Checks, c)
		if !c.Passed {
			result.Passed = false
		}
	}

	runs := opts.ConcurrentRuns
	if runs <= 0 {
		runs = 1
	}

	for _, tool := range opts.Tools {
		add(checkTool(ctx, tool))
	}
	if opts.WorkDir != "" {
		add(checkWorkDir(opts.WorkDir))
	}
	add(checkFileDescriptors(runs))
	add(checkProcessLimit(runs))

	// Warnings only
	add(checkMemory(ctx))
	add(checkLoad(ctx))

	return result
}

// checkTool verifies an executable resolves and reports its version.
func checkTool(ctx context.Context, tool Tool) Check {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	probe, err := process.ProbeVersion(ctx, tool.Binary)
	if err != nil {
		return Check{
			Name:    tool.Name,
			Passed:  tool.Optional,
			Warning: tool.Optional,
			Message: fmt.Sprintf("not found at %s: %v", tool.Binary, err),
		}
	}

	version := probe.Version
	if version == "" {
		version = "unknown"
	}
	return Check{
		Name:    tool.Name,
		Passed:  true,
		Message: fmt.Sprintf("found at %s (version %s)", probe.Path, version),
	}
}

// checkWorkDir verifies the working directory exists.
func checkWorkDir(dir string) Check {
	info, err := os.Stat(dir)
	switch {
	case err != nil:
		return Check{Name: "work_dir", Passed: false, Message: err.Error()}
	case !info.IsDir():
		return Check{Name: "work_dir", Passed: false, Message: fmt.Sprintf("%s is not a directory", dir)}
	}
	return Check{Name: "work_dir", Passed: true, Message: dir}
}

// checkFileDescriptors verifies sufficient file descriptors are available.
func checkFileDescriptors(runs int) Check {
	var limit syscall.Rlimit
	syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit)

	required := runs*fdsPerRun + fdsBaseline
	actual := int(limit.Cur)

	return Check{
		Name:     "file_descriptors",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -n %d (need %d for %d runs)", actual, required, runs),
	}
}

// checkProcessLimit verifies sufficient process slots are available.
func checkProcessLimit(runs int) Check {
	required := runs + 16

	data, err := os.ReadFile("/proc/self/limits")
	if err != nil {
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to check (non-Linux or restricted)",
		}
	}

	actual := parseMaxProcesses(string(data))
	if actual == 0 {
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to determine (assuming OK)",
		}
	}

	return Check{
		Name:     "process_limit",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -u %d (need %d)", actual, required),
	}
}

// parseMaxProcesses reads the soft "Max processes" limit from the contents
// of /proc/self/limits. It returns 0 when the line is missing.
func parseMaxProcesses(data string) int {
	for _, line := range strings.Split(data, "\n") {
		if !strings.HasPrefix(line, "Max processes") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return 0
		}
		if fields[2] == "unlimited" {
			return 1000000
		}
		var n int
		fmt.Sscanf(fields[2], "%d", &n)
		return n
	}
	return 0
}

// checkMemory warns when little memory is available for the tool.
func checkMemory(ctx context.Context) Check {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Check{
			Name:    "memory",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to read memory info: %v", err),
		}
	}

	availableMB := int(vm.Available / (1 << 20))
	return Check{
		Name:    "memory",
		Actual:  availableMB,
		Passed:  true,
		Warning: availableMB < minFreeMemoryMB,
		Message: fmt.Sprintf("%d MiB available (%.0f%% used)", availableMB, vm.UsedPercent),
	}
}

// checkLoad warns when the machine is saturated.
func checkLoad(ctx context.Context) Check {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return Check{
			Name:    "load",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to read load average: %v", err),
		}
	}

	cpus := runtime.NumCPU()
	return Check{
		Name:    "load",
		Passed:  true,
		Warning: avg.Load1 > float64(2*cpus),
		Message: fmt.Sprintf("load1 %.2f on %d CPUs", avg.Load1, cpus),
	}
}

// PrintResults writes the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "file_descriptors":
		return "ulimit -n 1024 (or edit /etc/security/limits.conf)"
	case "process_limit":
		return "ulimit -u 1024 (or edit /etc/security/limits.conf)"
	case "work_dir":
		return "create the directory or pass --project-root"
	case "javac", "java", "javadoc", "appletviewer":
		return "install a JDK and put its bin directory on PATH, or pass --" + name
	default:
		return "check the tool's command in the catalog and PATH"
	}
}
