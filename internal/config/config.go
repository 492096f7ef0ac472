// Package config provides configuration management for apex-toolrun.
package config

import "time"

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "APEX_TOOLRUN_"

// Config holds all configuration options for the tool host.
type Config struct {
	// Tools
	CatalogPath      string `json:"catalog_path" env:"CATALOG"`
	JavacPath        string `json:"javac_path" env:"JAVAC"`
	JavaPath         string `json:"java_path" env:"JAVA"`
	JavadocPath      string `json:"javadoc_path" env:"JAVADOC"`
	AppletViewerPath string `json:"appletviewer_path" env:"APPLETVIEWER"`

	// Document
	ProjectRoot    string   `json:"project_root" env:"PROJECT_ROOT"`
	ClassPath      []string `json:"class_path" env:"CLASSPATH" envSeparator:":"`
	OutputDir      string   `json:"output_dir" env:"OUTPUT_DIR"`
	JavadocPackage string   `json:"javadoc_package" env:"JAVADOC_PACKAGE"`
	Params         []string `json:"params"`

	// Runner
	PullDelay   time.Duration `json:"pull_delay" env:"PULL_DELAY"` // 0 = no throttling
	StopTimeout time.Duration `json:"stop_timeout" env:"STOP_TIMEOUT"`
	HideOutput  bool          `json:"hide_output" env:"HIDE_OUTPUT"`

	// Spawn retry policy ("text file busy")
	SpawnRetries    int           `json:"spawn_retries" env:"SPAWN_RETRIES"`
	BackoffInitial  time.Duration `json:"backoff_initial" env:"BACKOFF_INITIAL"`
	BackoffMax      time.Duration `json:"backoff_max" env:"BACKOFF_MAX"`
	BackoffMultiply float64       `json:"backoff_multiply" env:"BACKOFF_MULTIPLY"`

	// Console
	TUIEnabled bool   `json:"tui" env:"TUI"`
	Plain      bool   `json:"plain" env:"PLAIN"` // no ANSI styling
	Transcript string `json:"transcript" env:"TRANSCRIPT"`

	// Observability
	MetricsAddr string `json:"metrics_addr" env:"METRICS_ADDR"` // "" = disabled
	MetricsDump string `json:"metrics_dump" env:"METRICS_DUMP"` // "-" = stdout
	Verbose     bool   `json:"verbose" env:"VERBOSE"`
	LogFormat   string `json:"log_format" env:"LOG_FORMAT"` // json, text
	LogLevel    string `json:"log_level" env:"LOG_LEVEL"`

	// Diagnostic modes
	SkipPreflight bool `json:"skip_preflight" env:"SKIP_PREFLIGHT"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Tools
		JavacPath:        "javac",
		JavaPath:         "java",
		JavadocPath:      "javadoc",
		AppletViewerPath: "appletviewer",

		// Runner
		PullDelay:   10 * time.Millisecond,
		StopTimeout: 3 * time.Second,

		// Spawn retry policy
		SpawnRetries:    3,
		BackoffInitial:  20 * time.Millisecond,
		BackoffMax:      500 * time.Millisecond,
		BackoffMultiply: 2,

		// Observability
		LogFormat: "text",
		LogLevel:  "warn",
	}
}

// ShowOutput reports whether start messages and host attachment are enabled.
func (c *Config) ShowOutput() bool {
	return !c.HideOutput
}
