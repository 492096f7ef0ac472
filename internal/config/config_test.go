package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.PullDelay != 10*time.Millisecond {
		t.Errorf("PullDelay = %v, want 10ms", cfg.PullDelay)
	}
	if cfg.JavacPath != "javac" || cfg.JavaPath != "java" {
		t.Errorf("tool binaries = %q/%q", cfg.JavacPath, cfg.JavaPath)
	}
	if !cfg.ShowOutput() {
		t.Error("ShowOutput() should default to true")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() is invalid: %v", err)
	}
}

// =============================================================================
// Validate
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantField string
	}{
		{"valid", func(c *Config) {}, ""},
		{"zero pull delay", func(c *Config) { c.PullDelay = 0 }, ""},
		{"negative pull delay", func(c *Config) { c.PullDelay = -time.Millisecond }, "pull_delay"},
		{"empty javac", func(c *Config) { c.JavacPath = " " }, "javac_path"},
		{"empty appletviewer", func(c *Config) { c.AppletViewerPath = "" }, "appletviewer_path"},
		{"zero stop timeout", func(c *Config) { c.StopTimeout = 0 }, "stop_timeout"},
		{"negative retries", func(c *Config) { c.SpawnRetries = -1 }, "spawn_retries"},
		{"zero backoff", func(c *Config) { c.BackoffInitial = 0 }, "backoff_initial"},
		{"max below initial", func(c *Config) { c.BackoffMax = time.Millisecond }, "backoff_max"},
		{"multiplier below one", func(c *Config) { c.BackoffMultiply = 0.5 }, "backoff_multiply"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"upper case level", func(c *Config) { c.LogLevel = "DEBUG" }, ""},
		{"tui with stdout dump", func(c *Config) { c.TUIEnabled = true; c.MetricsDump = "-" }, "metrics_dump"},
		{"tui with file dump", func(c *Config) { c.TUIEnabled = true; c.MetricsDump = "m.txt" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := Validate(cfg)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error on %s", tt.wantField)
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("Validate() = %v, want field %s", err, tt.wantField)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogFormat = "xml"
	cfg.StopTimeout = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}

	var ve ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("error %v does not contain a ValidationError", err)
	}
	for _, field := range []string{"log_format", "stop_timeout"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("missing %s in %v", field, err)
		}
	}
}

func TestValidationError(t *testing.T) {
	err := ValidationError{Field: "pull_delay", Message: "must not be negative"}
	if err.Error() != "pull_delay: must not be negative" {
		t.Errorf("Error() = %q", err.Error())
	}
}

// =============================================================================
// Flags
// =============================================================================

func TestBindFlags(t *testing.T) {
	cfg := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs, cfg)

	args := []string{
		"--javac", "/opt/jdk/bin/javac",
		"--classpath", "lib/a.jar,lib/b.jar",
		"--classpath", "out",
		"--param", "one two",
		"--param", "three",
		"--pull-delay", "0",
		"--tui",
		"-v",
		"--transcript", "run.log.gz",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() = %v", err)
	}

	if cfg.JavacPath != "/opt/jdk/bin/javac" {
		t.Errorf("JavacPath = %q", cfg.JavacPath)
	}
	if strings.Join(cfg.ClassPath, ":") != "lib/a.jar:lib/b.jar:out" {
		t.Errorf("ClassPath = %v", cfg.ClassPath)
	}
	if len(cfg.Params) != 2 || cfg.Params[0] != "one two" {
		t.Errorf("Params = %v", cfg.Params)
	}
	if cfg.PullDelay != 0 {
		t.Errorf("PullDelay = %v, want 0", cfg.PullDelay)
	}
	if !cfg.TUIEnabled || !cfg.Verbose {
		t.Error("bool flags not applied")
	}
	if cfg.Transcript != "run.log.gz" {
		t.Errorf("Transcript = %q", cfg.Transcript)
	}
	// Untouched values keep their defaults
	if cfg.JavaPath != "java" {
		t.Errorf("JavaPath = %q, want java", cfg.JavaPath)
	}
}

func TestFlagCategories_CoverAllFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs, DefaultConfig())

	categorized := make(map[string]bool)
	for _, cat := range FlagCategories {
		for _, name := range cat.Names {
			if fs.Lookup(name) == nil {
				t.Errorf("category %s lists unknown flag %q", cat.Title, name)
			}
			categorized[name] = true
		}
	}
	fs.VisitAll(func(f *pflag.Flag) {
		if !categorized[f.Name] {
			t.Errorf("flag %q is not in any category", f.Name)
		}
	})
}

func TestPrintFlagCategories(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs, DefaultConfig())

	var buf bytes.Buffer
	PrintFlagCategories(&buf, fs)
	out := buf.String()

	for _, want := range []string{
		"Tools Flags:",
		"--javac string",
		"(default javac)",
		"-v, --verbose",
		"--classpath strings",
		"--pull-delay duration",
		"(default 10ms)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("usage missing %q", want)
		}
	}
	if strings.Contains(out, "(default false)") {
		t.Error("false defaults should be omitted")
	}
}

// =============================================================================
// Environment
// =============================================================================

func TestApplyEnvFrom(t *testing.T) {
	cfg := DefaultConfig()
	err := ApplyEnvFrom(cfg, map[string]string{
		"APEX_TOOLRUN_JAVAC":         "/usr/lib/jvm/bin/javac",
		"APEX_TOOLRUN_PULL_DELAY":    "25ms",
		"APEX_TOOLRUN_CLASSPATH":     "lib/a.jar:out",
		"APEX_TOOLRUN_TUI":           "true",
		"APEX_TOOLRUN_SPAWN_RETRIES": "5",
		"JAVAC":                      "ignored-without-prefix",
	})
	if err != nil {
		t.Fatalf("ApplyEnvFrom() = %v", err)
	}

	if cfg.JavacPath != "/usr/lib/jvm/bin/javac" {
		t.Errorf("JavacPath = %q", cfg.JavacPath)
	}
	if cfg.PullDelay != 25*time.Millisecond {
		t.Errorf("PullDelay = %v", cfg.PullDelay)
	}
	if strings.Join(cfg.ClassPath, ",") != "lib/a.jar,out" {
		t.Errorf("ClassPath = %v", cfg.ClassPath)
	}
	if !cfg.TUIEnabled {
		t.Error("TUIEnabled not set")
	}
	if cfg.SpawnRetries != 5 {
		t.Errorf("SpawnRetries = %d", cfg.SpawnRetries)
	}
	// Unset variables keep defaults
	if cfg.JavaPath != "java" || cfg.LogFormat != "text" {
		t.Errorf("defaults overwritten: java=%q log_format=%q", cfg.JavaPath, cfg.LogFormat)
	}
}

func TestApplyEnvFrom_Invalid(t *testing.T) {
	cfg := DefaultConfig()
	err := ApplyEnvFrom(cfg, map[string]string{"APEX_TOOLRUN_PULL_DELAY": "soon"})
	if err == nil {
		t.Error("expected parse error for an invalid duration")
	}
}

// =============================================================================
// Catalog
// =============================================================================

const yamlCatalog = `
tools:
  - name: Lint
    description: Run checkstyle
    command: [checkstyle, -c, /etc/checks.xml]
    resources: ["${file}"]
  - name: Jar
    command: [jar]
    options: [cf, "${name}.jar"]
    prompt: Extra files
    workdir: "${project}"
    env:
      JAVA_TOOL_OPTIONS: -Xmx256m
`

const tomlCatalog = `
[[tools]]
name = "Lint"
command = ["checkstyle", "-c", "/etc/checks.xml"]
resources = ["${file}"]

[[tools]]
name = "Jar"
command = ["jar"]
options = ["cf", "${name}.jar"]
prompt = "Extra files"
workdir = "${project}"

[tools.env]
JAVA_TOOL_OPTIONS = "-Xmx256m"
`

const jsonCatalog = `{
  "tools": [
    {"name": "Lint", "command": ["checkstyle", "-c", "/etc/checks.xml"], "resources": ["${file}"]},
    {"name": "Jar", "command": ["jar"], "options": ["cf", "${name}.jar"], "prompt": "Extra files",
     "workdir": "${project}", "env": {"JAVA_TOOL_OPTIONS": "-Xmx256m"}}
  ]
}`

func TestLoadCatalog_Formats(t *testing.T) {
	tests := []struct {
		file    string
		content string
	}{
		{"tools.yaml", yamlCatalog},
		{"tools.yml", yamlCatalog},
		{"tools.toml", tomlCatalog},
		{"tools.json", jsonCatalog},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			cat, err := LoadCatalog(path)
			if err != nil {
				t.Fatalf("LoadCatalog() = %v", err)
			}
			if len(cat.Tools) != 2 {
				t.Fatalf("got %d tools, want 2", len(cat.Tools))
			}

			jar, ok := cat.Lookup("jar")
			if !ok {
				t.Fatal("Lookup(jar) failed")
			}
			if strings.Join(jar.Options, " ") != "cf ${name}.jar" {
				t.Errorf("Options = %v", jar.Options)
			}
			if jar.Prompt != "Extra files" || jar.WorkDir != "${project}" {
				t.Errorf("Jar = %+v", jar)
			}
			if jar.Env["JAVA_TOOL_OPTIONS"] != "-Xmx256m" {
				t.Errorf("Env = %v", jar.Env)
			}

			lint, _ := cat.Lookup("Lint")
			if len(lint.Command) != 3 || lint.Resources[0] != "${file}" {
				t.Errorf("Lint = %+v", lint)
			}
		})
	}
}

func TestLoadCatalog_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadCatalog(filepath.Join(dir, "tools.ini")); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("unknown extension error = %v", err)
	}
	if _, err := LoadCatalog(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"tools": [{"name": "X", "command": ["x"], "colour": "red"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(bad); err == nil {
		t.Error("expected error for an unknown JSON field")
	}
}

func TestCatalog_Validate(t *testing.T) {
	tests := []struct {
		name      string
		tools     []ToolDef
		wantError string
	}{
		{"empty catalog", nil, ""},
		{"valid", []ToolDef{{Name: "A", Command: []string{"a"}}}, ""},
		{"missing name", []ToolDef{{Command: []string{"a"}}}, "tools[0].name"},
		{"missing command", []ToolDef{{Name: "A"}}, "tools[0].command"},
		{"blank command", []ToolDef{{Name: "A", Command: []string{" "}}}, "tools[0].command"},
		{"duplicate name", []ToolDef{{Name: "A", Command: []string{"a"}}, {Name: "a", Command: []string{"b"}}}, "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Catalog{Tools: tt.tools}).Validate()
			if tt.wantError == "" {
				if err != nil {
					t.Errorf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantError) {
				t.Errorf("Validate() = %v, want %q", err, tt.wantError)
			}
		})
	}
}

func TestCatalog_LookupNil(t *testing.T) {
	var cat *Catalog
	if _, ok := cat.Lookup("x"); ok {
		t.Error("nil catalog should find nothing")
	}
}
