// Package logging provides structured logging for apex-toolrun.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects the logger output.
type Options struct {
	// Format is "json" or "text". Unknown values fall back to JSON.
	Format string

	// Level is "debug", "info", "warn" or "error".
	Level string

	// Verbose forces debug level and adds source locations.
	Verbose bool

	// Output defaults to os.Stderr so tool output on stdout stays clean.
	Output io.Writer
}

// New creates a structured logger from opts.
func New(opts Options) *slog.Logger {
	logLevel := parseLevel(opts.Level)
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}

	w := opts.Output
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "text":
		handler = slog.NewTextHandler(w, handlerOpts)
	default:
		handler = slog.NewJSONHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

// NewLogger creates a logger writing to stderr.
// Format should be "json" or "text".
// Level should be "debug", "info", "warn", or "error".
func NewLogger(format, level string, verbose bool) *slog.Logger {
	return New(Options{Format: format, Level: level, Verbose: verbose})
}

// NewLoggerWithWriter creates a logger that writes to a custom writer.
// Useful for testing.
func NewLoggerWithWriter(w io.Writer, format, level string) *slog.Logger {
	if format == "" {
		format = "text"
	}
	return New(Options{Format: format, Level: level, Output: w})
}

// Discard returns a logger that drops everything. The TUI console uses it
// so log records do not tear the screen.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// parseLevel converts a string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetDefault sets the default logger for the slog package.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
