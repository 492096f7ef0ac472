package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	// MaxLineLength is the maximum length of a logged line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the number of recent error lines kept per run.
	MaxBufferedLines = 100
)

// OutputHandler mirrors the output of one tool run into the structured log
// and keeps the most recent error-stream lines for the run summary.
type OutputHandler struct {
	tool    string
	runID   string
	logger  *slog.Logger
	verbose bool

	// Circular buffer of recent stderr lines
	buffer []string
	bufIdx int
	count  int

	// Diagnostic counts over every stderr line of the run
	diagnostics map[string]int
	mu          sync.Mutex
}

// NewOutputHandler creates a handler for one run of tool.
func NewOutputHandler(tool, runID string, logger *slog.Logger, verbose bool) *OutputHandler {
	return &OutputHandler{
		tool:    tool,
		runID:   runID,
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),

		diagnostics: make(map[string]int),
	}
}

// HandleStdout records a line read from the child's stdout.
// Stdout lines are only logged in verbose mode.
func (h *OutputHandler) HandleStdout(line string) {
	if !h.verbose || h.logger == nil {
		return
	}
	h.logger.Debug("tool_stdout",
		"tool", h.tool,
		"run_id", h.runID,
		"line", truncate(line),
	)
}

// HandleStderr records a line read from the child's stderr.
func (h *OutputHandler) HandleStderr(line string) {
	line = truncate(line)

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.count++
	for _, pattern := range DiagnosticPatterns {
		if strings.Contains(line, pattern) {
			h.diagnostics[pattern]++
		}
	}
	h.mu.Unlock()

	if h.logger == nil {
		return
	}
	level := ClassifyLine(line)
	if !h.verbose && level == slog.LevelDebug {
		return
	}
	h.logger.Log(context.Background(), level, "tool_stderr",
		"tool", h.tool,
		"run_id", h.runID,
		"line", line,
	)
}

// ClassifyLine picks a log level for a compiler-style diagnostic line.
func ClassifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	switch {
	case strings.Contains(lower, "error:"),
		strings.Contains(lower, "exception"),
		strings.Contains(lower, "fatal"):
		return slog.LevelWarn
	case strings.Contains(lower, "warning:"),
		strings.HasPrefix(lower, "note:"):
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// RecentLines returns up to n of the most recent stderr lines, oldest first.
func (h *OutputHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}
	if n > h.count {
		n = h.count
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		lines = append(lines, h.buffer[idx])
	}
	return lines
}

// DiagnosticPatterns are counted by CountDiagnostics.
var DiagnosticPatterns = []string{
	"error:",
	"warning:",
	"Exception",
	"cannot find symbol",
	"not found",
}

// CountDiagnostics returns how many stderr lines of the run matched each of
// DiagnosticPatterns. Patterns without a match are omitted.
func (h *OutputHandler) CountDiagnostics() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int, len(h.diagnostics))
	for pattern, n := range h.diagnostics {
		counts[pattern] = n
	}
	return counts
}

// truncate shortens line to at most MaxLineLength bytes without splitting a
// UTF-8 sequence.
func truncate(line string) string {
	if len(line) <= MaxLineLength {
		return line
	}
	cut := MaxLineLength
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut] + "...(truncated)"
}
