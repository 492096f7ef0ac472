package tools

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/MuteSoft/apextext-sub002/internal/config"
	"github.com/MuteSoft/apextext-sub002/internal/process"
)

// ErrPromptCancelled is returned when the user aborts a parameter prompt.
var ErrPromptCancelled = errors.New("parameter prompt cancelled")

// Prompter asks the user for a line of input.
type Prompter interface {
	Prompt(label string) (string, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(label string) (string, error)

func (f PrompterFunc) Prompt(label string) (string, error) { return f(label) }

// ReadlinePrompter prompts on the terminal with line editing.
type ReadlinePrompter struct {
	Stdin  io.ReadCloser
	Stdout io.Writer
}

// Prompt reads one line. Ctrl+C and EOF return ErrPromptCancelled.
func (p ReadlinePrompter) Prompt(label string) (string, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          label + ": ",
		InterruptPrompt: "^C",
		EOFPrompt:       "",
		Stdin:           p.Stdin,
		Stdout:          p.Stdout,
	})
	if err != nil {
		return "", fmt.Errorf("init prompt: %w", err)
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err == readline.ErrInterrupt || err == io.EOF {
		return "", ErrPromptCancelled
	}
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// =============================================================================
// CustomTool
// =============================================================================

// CustomTool is a tool defined in the catalog.
type CustomTool struct {
	Def      config.ToolDef
	Prompter Prompter

	// Params are appended after the catalog params.
	Params []string
}

func (c CustomTool) Name() string { return c.Def.Name }

// Prepare expands placeholders and, when the definition has a prompt, asks
// for extra parameters. The document is optional unless a placeholder
// refers to it.
func (c CustomTool) Prepare(doc Document) (*process.Command, error) {
	vars := Placeholders(doc)
	needsDoc := false
	expand := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			if usesDocument(s) {
				needsDoc = true
			}
			out = append(out, vars.Replace(s))
		}
		return out
	}

	command := expand(c.Def.Command)
	opts := expand(c.Def.Options)
	resources := expand(c.Def.Resources)
	params := expand(c.Def.Params)
	workDir := vars.Replace(c.Def.WorkDir)
	if usesDocument(c.Def.WorkDir) {
		needsDoc = true
	}

	if needsDoc {
		if err := doc.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", c.Def.Name, err)
		}
	}

	if c.Def.Prompt != "" && c.Prompter != nil {
		answer, err := c.Prompter.Prompt(c.Def.Prompt)
		if err != nil {
			return nil, err
		}
		extra, err := SplitArgs(answer)
		if err != nil {
			return nil, err
		}
		params = append(params, extra...)
	}
	params = append(params, c.Params...)

	return process.NewCommand(process.Spec{
		ToolName:         c.Def.Name,
		BaseCommand:      command,
		Options:          opts,
		Resources:        resources,
		Params:           params,
		WorkingDirectory: workDir,
		Environment:      c.Def.Env,
		ReplaceEnv:       c.Def.ReplaceEnv,
	}), nil
}

var documentPlaceholders = []string{"${file}", "${dir}", "${name}", "${project}"}

func usesDocument(s string) bool {
	for _, p := range documentPlaceholders {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Placeholders returns the replacer for catalog placeholders.
func Placeholders(doc Document) *strings.Replacer {
	var dir, name, root string
	if doc.Path != "" {
		dir, name, root = doc.Dir(), doc.Name(), doc.Root()
	}
	return strings.NewReplacer(
		"${file}", doc.Path,
		"${dir}", dir,
		"${name}", name,
		"${project}", root,
		"${classpath}", doc.JoinedClassPath(),
		"${outdir}", doc.OutputDir,
	)
}

// SplitArgs splits a prompted line into arguments. Single and double quotes
// group words; a backslash escapes the next character outside single quotes.
func SplitArgs(s string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inArg   bool
		quote   rune
		escaped bool
	)

	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inArg = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inArg = true
		case r == ' ' || r == '\t' || r == '\n':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote in %q", quote, s)
	}
	if escaped {
		return nil, fmt.Errorf("trailing backslash in %q", s)
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
