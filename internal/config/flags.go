package config

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// FlagCategories groups flags for the usage output, in display order.
var FlagCategories = []struct {
	Title string
	Names []string
}{
	{"Tools", []string{"catalog", "javac", "java", "javadoc", "appletviewer"}},
	{"Document", []string{"project-root", "classpath", "output-dir", "package", "param"}},
	{"Runner", []string{"pull-delay", "stop-timeout", "hide-output", "spawn-retries", "backoff-initial", "backoff-max", "backoff-multiply"}},
	{"Console", []string{"tui", "plain", "transcript"}},
	{"Observability", []string{"metrics", "metrics-dump", "verbose", "log-format", "log-level"}},
	{"Diagnostics", []string{"skip-preflight"}},
}

// BindFlags registers every option on fs, using the current values of cfg
// as defaults. Call it after ApplyEnv so that flags override the environment.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	// Tools
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "Tool catalog file (.yaml, .yml, .toml or .json)")
	fs.StringVar(&cfg.JavacPath, "javac", cfg.JavacPath, "Path to the compiler binary")
	fs.StringVar(&cfg.JavaPath, "java", cfg.JavaPath, "Path to the application launcher")
	fs.StringVar(&cfg.JavadocPath, "javadoc", cfg.JavadocPath, "Path to the documentation generator")
	fs.StringVar(&cfg.AppletViewerPath, "appletviewer", cfg.AppletViewerPath, "Path to the applet viewer")

	// Document
	fs.StringVar(&cfg.ProjectRoot, "project-root", cfg.ProjectRoot, "Source root of the project (default: directory of the file)")
	fs.StringSliceVar(&cfg.ClassPath, "classpath", cfg.ClassPath, "Class path entries (can repeat)")
	fs.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "Directory for compiled classes and generated docs")
	fs.StringVar(&cfg.JavadocPackage, "package", cfg.JavadocPackage, "Dotted package to document (default: package of the file)")
	fs.StringArrayVar(&cfg.Params, "param", cfg.Params, "Extra runtime parameter (can repeat)")

	// Runner
	fs.DurationVar(&cfg.PullDelay, "pull-delay", cfg.PullDelay, "Pause after each output line (0 = no throttling)")
	fs.DurationVar(&cfg.StopTimeout, "stop-timeout", cfg.StopTimeout, "Grace period between SIGTERM and SIGKILL")
	fs.BoolVar(&cfg.HideOutput, "hide-output", cfg.HideOutput, "Suppress the start message and console attachment")
	fs.IntVar(&cfg.SpawnRetries, "spawn-retries", cfg.SpawnRetries, "Retries when the executable is busy")
	fs.DurationVar(&cfg.BackoffInitial, "backoff-initial", cfg.BackoffInitial, "First spawn retry delay")
	fs.DurationVar(&cfg.BackoffMax, "backoff-max", cfg.BackoffMax, "Maximum spawn retry delay")
	fs.Float64Var(&cfg.BackoffMultiply, "backoff-multiply", cfg.BackoffMultiply, "Spawn retry delay multiplier")

	// Console
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Show output in the interactive terminal console")
	fs.BoolVar(&cfg.Plain, "plain", cfg.Plain, "Disable styling of console lines")
	fs.StringVar(&cfg.Transcript, "transcript", cfg.Transcript, "Also write all lines to this file (.gz = compressed)")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	fs.StringVar(&cfg.MetricsDump, "metrics-dump", cfg.MetricsDump, `Write metrics in text format after the run ("-" = stdout)`)
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")

	// Diagnostics
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")
}

// PrintFlagCategories writes the flags of fs grouped by FlagCategories.
func PrintFlagCategories(w io.Writer, fs *pflag.FlagSet) {
	for _, cat := range FlagCategories {
		var lines []string
		for _, name := range cat.Names {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			lines = append(lines, formatFlag(f))
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s Flags:\n", cat.Title)
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
	}
}

// formatFlag renders one flag with its type hint and non-trivial default.
func formatFlag(f *pflag.Flag) string {
	name := "--" + f.Name
	if f.Shorthand != "" {
		name = "-" + f.Shorthand + ", " + name
	}
	if t := flagType(f); t != "" {
		name += " " + t
	}

	line := fmt.Sprintf("  %s\n    \t%s", name, f.Usage)
	switch f.DefValue {
	case "", "false", "0", "0s", "[]":
	default:
		line += fmt.Sprintf(" (default %s)", f.DefValue)
	}
	return line
}

// flagType returns a type hint for the flag value.
func flagType(f *pflag.Flag) string {
	switch t := f.Value.Type(); t {
	case "bool":
		return ""
	case "stringSlice", "stringArray":
		return "strings"
	default:
		return t
	}
}
