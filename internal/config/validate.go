package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing every problem.
func Validate(cfg *Config) error {
	var errs []error

	// Tool binaries must be named
	binaries := []struct{ field, value string }{
		{"javac_path", cfg.JavacPath},
		{"java_path", cfg.JavaPath},
		{"javadoc_path", cfg.JavadocPath},
		{"appletviewer_path", cfg.AppletViewerPath},
	}
	for _, b := range binaries {
		if strings.TrimSpace(b.value) == "" {
			errs = append(errs, ValidationError{
				Field:   b.field,
				Message: "must not be empty",
			})
		}
	}

	if cfg.PullDelay < 0 {
		errs = append(errs, ValidationError{
			Field:   "pull_delay",
			Message: "must not be negative",
		})
	}

	if cfg.StopTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "stop_timeout",
			Message: "must be positive",
		})
	}

	// Spawn retry policy
	if cfg.SpawnRetries < 0 {
		errs = append(errs, ValidationError{
			Field:   "spawn_retries",
			Message: "must not be negative",
		})
	}
	if cfg.BackoffInitial <= 0 {
		errs = append(errs, ValidationError{
			Field:   "backoff_initial",
			Message: "must be positive",
		})
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		errs = append(errs, ValidationError{
			Field:   "backoff_max",
			Message: "must be >= backoff_initial",
		})
	}
	if cfg.BackoffMultiply < 1.0 {
		errs = append(errs, ValidationError{
			Field:   "backoff_multiply",
			Message: "must be >= 1.0",
		})
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be one of: debug, info, warn, error (got %q)", cfg.LogLevel),
		})
	}

	// The TUI owns the terminal, so the dump cannot go to stdout
	if cfg.TUIEnabled && cfg.MetricsDump == "-" {
		errs = append(errs, ValidationError{
			Field:   "metrics_dump",
			Message: "cannot write to stdout while the TUI is enabled",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
