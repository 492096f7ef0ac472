package tools

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MuteSoft/apextext-sub002/internal/process"
)

// Preparer builds the command of one tool for a document.
type Preparer interface {
	Name() string
	Prepare(doc Document) (*process.Command, error)
}

// =============================================================================
// Compiler
// =============================================================================

// Compiler compiles the active document.
type Compiler struct {
	Binary  string
	Options []string
	Env     map[string]string
}

func (c Compiler) Name() string { return "Compile" }

// Prepare runs the compiler in the document's directory on the document.
func (c Compiler) Prepare(doc Document) (*process.Command, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}

	opts := append([]string(nil), c.Options...)
	if doc.OutputDir != "" {
		opts = append(opts, "-d", doc.OutputDir)
	}
	if len(doc.ClassPath) > 0 {
		opts = append(opts, "-cp", strings.Join(doc.ClassPath, string(filepath.ListSeparator)))
	}

	return process.NewCommand(process.Spec{
		ToolName:         c.Name(),
		BaseCommand:      []string{orDefault(c.Binary, "javac")},
		Options:          opts,
		Resources:        []string{doc.Path},
		WorkingDirectory: doc.Dir(),
		Environment:      c.Env,
	}), nil
}

// =============================================================================
// Javadoc
// =============================================================================

// Javadoc generates documentation for a package.
type Javadoc struct {
	Binary  string
	Options []string

	// Package is the dotted package to document. Empty means the package of
	// the document.
	Package string
}

func (j Javadoc) Name() string { return "Javadoc" }

// Prepare resolves the package to its source files below the project root.
func (j Javadoc) Prepare(doc Document) (*process.Command, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}

	pkg := j.Package
	if pkg == "" {
		var err error
		if pkg, err = doc.Package(); err != nil {
			return nil, err
		}
	}

	resources, err := ResolvePackage(doc.Root(), pkg)
	if err != nil {
		return nil, err
	}

	outDir := doc.OutputDir
	if outDir == "" {
		outDir = filepath.Join(doc.Root(), "doc")
	}
	opts := append([]string(nil), j.Options...)
	opts = append(opts, "-d", outDir)

	return process.NewCommand(process.Spec{
		ToolName:         j.Name(),
		BaseCommand:      []string{orDefault(j.Binary, "javadoc")},
		Options:          opts,
		Resources:        resources,
		WorkingDirectory: doc.Root(),
	}), nil
}

// PackagePattern converts a dotted package to a source glob relative to the
// project root: "com.example.util" becomes "com/example/util/*.java".
func PackagePattern(pkg string) (string, error) {
	if pkg == "" {
		return "*.java", nil
	}
	parts := strings.Split(pkg, ".")
	for _, p := range parts {
		if !isIdentifier(p) {
			return "", fmt.Errorf("invalid package name %q", pkg)
		}
	}
	return strings.Join(parts, "/") + "/*.java", nil
}

// ResolvePackage expands the package pattern below root into sorted paths
// relative to root.
func ResolvePackage(root, pkg string) ([]string, error) {
	pattern, err := PackagePattern(pkg)
	if err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(root, filepath.FromSlash(pattern)))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no sources match %s below %s", pattern, root)
	}

	rel := make([]string, 0, len(matches))
	for _, m := range matches {
		r, err := filepath.Rel(root, m)
		if err != nil {
			return nil, err
		}
		rel = append(rel, r)
	}
	sort.Strings(rel)
	return rel, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// =============================================================================
// AppletRunner
// =============================================================================

// DefaultAppletWidth and DefaultAppletHeight size the generated harness.
const (
	DefaultAppletWidth  = 400
	DefaultAppletHeight = 300
)

var harnessTemplate = template.Must(template.New("harness").Parse(`<html>
<head><title>{{.Title}}</title></head>
<body>
<applet code="{{.Code}}" codebase="{{.CodeBase}}" width="{{.Width}}" height="{{.Height}}"></applet>
</body>
</html>
`))

// AppletRunner shows the document's applet in the applet viewer.
type AppletRunner struct {
	Binary string
	Width  int
	Height int
}

func (a AppletRunner) Name() string { return "Run Applet" }

// Prepare writes an HTML harness next to the source if none exists and
// points the viewer at it. An existing harness is never overwritten.
func (a AppletRunner) Prepare(doc Document) (*process.Command, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}

	harness := filepath.Join(doc.Dir(), doc.Name()+".html")
	if err := a.writeHarness(doc, harness); err != nil {
		return nil, err
	}

	return process.NewCommand(process.Spec{
		ToolName:         a.Name(),
		BaseCommand:      []string{orDefault(a.Binary, "appletviewer")},
		Resources:        []string{filepath.Base(harness)},
		WorkingDirectory: doc.Dir(),
	}), nil
}

func (a AppletRunner) writeHarness(doc Document, path string) error {
	qn, err := doc.QualifiedName()
	if err != nil {
		return err
	}
	codeBase := "."
	if doc.OutputDir != "" {
		if rel, err := filepath.Rel(doc.Dir(), doc.OutputDir); err == nil {
			codeBase = filepath.ToSlash(rel)
		}
	} else if rel, err := filepath.Rel(doc.Dir(), doc.Root()); err == nil {
		codeBase = filepath.ToSlash(rel)
	}

	data := struct {
		Title, Code, CodeBase string
		Width, Height         int
	}{
		Title:    doc.Name(),
		Code:     qn + ".class",
		CodeBase: codeBase,
		Width:    orDefaultInt(a.Width, DefaultAppletWidth),
		Height:   orDefaultInt(a.Height, DefaultAppletHeight),
	}

	return createExclusive(path, func(w io.Writer) error {
		return harnessTemplate.Execute(w, data)
	})
}

// createExclusive creates path and fills it with write. An existing file is
// left alone. A failed write removes the partial file so the next call
// starts over.
func createExclusive(path string, write func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create applet harness: %w", err)
	}

	err = write(f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("write applet harness: %w", err)
	}
	return nil
}

// =============================================================================
// ApplicationRunner
// =============================================================================

// ApplicationRunner runs the document's main class.
type ApplicationRunner struct {
	Binary  string
	Options []string
	Params  []string
	Env     map[string]string
}

func (r ApplicationRunner) Name() string { return "Run Application" }

// Prepare runs "java -cp <classpath> <class> <params>" from the project root.
func (r ApplicationRunner) Prepare(doc Document) (*process.Command, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}
	qn, err := doc.QualifiedName()
	if err != nil {
		return nil, err
	}

	cp := doc.JoinedClassPath()
	if cp == "" {
		cp = doc.Root()
	}
	opts := append([]string(nil), r.Options...)
	opts = append(opts, "-cp", cp)

	return process.NewCommand(process.Spec{
		ToolName:         r.Name(),
		BaseCommand:      []string{orDefault(r.Binary, "java")},
		Options:          opts,
		Resources:        []string{qn},
		Params:           r.Params,
		WorkingDirectory: doc.Root(),
		Environment:      r.Env,
	}), nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func orDefaultInt(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
