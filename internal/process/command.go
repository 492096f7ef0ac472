package process

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Spec holds the values used to build a Command.
// Tool preparers fill a Spec and hand it to NewCommand.
type Spec struct {
	// ToolName is the human-readable label used in status messages.
	ToolName string

	// BaseCommand is the executable followed by its fixed leading arguments.
	BaseCommand []string

	// Options are user or tool configured flags.
	Options []string

	// Resources are the files or packages the tool operates on.
	Resources []string

	// Params are additional runtime parameters, possibly prompted.
	Params []string

	// WorkingDirectory is the directory the child runs in.
	// Empty or nonexistent means the platform default.
	WorkingDirectory string

	// Environment is merged into the parent environment.
	Environment map[string]string

	// ReplaceEnv makes Environment the whole child environment.
	ReplaceEnv bool
}

// Command describes one external invocation.
// A Command is immutable: every accessor returns a copy.
type Command struct {
	toolName    string
	baseCommand []string
	options     []string
	resources   []string
	params      []string
	workDir     string
	env         map[string]string
	replaceEnv  bool
}

// NewCommand creates a Command from spec. Slices and maps are copied so later
// changes to spec do not leak into the Command.
func NewCommand(spec Spec) *Command {
	return &Command{
		toolName:    spec.ToolName,
		baseCommand: cloneStrings(spec.BaseCommand),
		options:     cloneStrings(spec.Options),
		resources:   cloneStrings(spec.Resources),
		params:      cloneStrings(spec.Params),
		workDir:     spec.WorkingDirectory,
		env:         cloneEnv(spec.Environment),
		replaceEnv:  spec.ReplaceEnv,
	}
}

// ToolName returns the label used in status messages.
func (c *Command) ToolName() string { return c.toolName }

// BaseCommand returns a copy of the executable and fixed arguments.
func (c *Command) BaseCommand() []string { return cloneStrings(c.baseCommand) }

// Options returns a copy of the configured flags.
func (c *Command) Options() []string { return cloneStrings(c.options) }

// Resources returns a copy of the target resources.
func (c *Command) Resources() []string { return cloneStrings(c.resources) }

// Params returns a copy of the runtime parameters.
func (c *Command) Params() []string { return cloneStrings(c.params) }

// WorkingDirectory returns the configured directory, which may not exist.
func (c *Command) WorkingDirectory() string { return c.workDir }

// Environment returns a copy of the environment overrides.
func (c *Command) Environment() map[string]string { return cloneEnv(c.env) }

// ReplaceEnv reports whether Environment replaces the parent environment.
func (c *Command) ReplaceEnv() bool { return c.replaceEnv }

// Argv returns baseCommand ++ options ++ resources ++ params.
// The order is fixed; some tools are positional.
func (c *Command) Argv() []string {
	argv := make([]string, 0, len(c.baseCommand)+len(c.options)+len(c.resources)+len(c.params))
	argv = append(argv, c.baseCommand...)
	argv = append(argv, c.options...)
	argv = append(argv, c.resources...)
	argv = append(argv, c.params...)
	return argv
}

// Env returns the child environment built from base (usually os.Environ()).
// Overridden keys are removed from base and the overrides appended in key
// order, so the result is deterministic.
func (c *Command) Env(base []string) []string {
	keys := make([]string, 0, len(c.env))
	for k := range c.env {
		if k == "" || strings.Contains(k, "=") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	if !c.replaceEnv {
		out = make([]string, 0, len(base)+len(keys))
		for _, kv := range base {
			name, _, _ := strings.Cut(kv, "=")
			if _, overridden := c.env[name]; overridden {
				continue
			}
			out = append(out, kv)
		}
	} else {
		out = make([]string, 0, len(keys))
	}

	for _, k := range keys {
		out = append(out, k+"="+c.env[k])
	}
	return out
}

// ResolveDir returns the working directory to spawn in.
// It returns "" (the platform default) when none is configured or the
// configured path is not an existing directory.
func (c *Command) ResolveDir() string {
	if c.workDir == "" {
		return ""
	}
	info, err := os.Stat(c.workDir)
	if err != nil || !info.IsDir() {
		return ""
	}
	return c.workDir
}

// String returns the shell-quoted command line (for debugging and print-cmd).
func (c *Command) String() string {
	argv := c.Argv()
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

// Validate checks that the command has an executable to run.
func (c *Command) Validate() error {
	if c == nil {
		return fmt.Errorf("command is nil")
	}
	if len(c.baseCommand) == 0 || strings.TrimSpace(c.baseCommand[0]) == "" {
		return fmt.Errorf("tool %q: base command is empty", c.toolName)
	}
	return nil
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`|&;<>()*?[]{}~#!") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneEnv(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
