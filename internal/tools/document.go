// Package tools prepares the commands of the built-in and user-defined tools
// for the active document.
package tools

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrNoDocument is returned when a tool needs a document and none is open.
var ErrNoDocument = errors.New("no active document")

// Document is the source file the host has open.
type Document struct {
	// Path is the path of the source file.
	Path string

	// ProjectRoot is the source root. Empty means the file's directory.
	ProjectRoot string

	ClassPath []string
	OutputDir string
}

// Dir returns the directory of the document.
func (d Document) Dir() string {
	return filepath.Dir(d.Path)
}

// Name returns the file name without extension.
func (d Document) Name() string {
	base := filepath.Base(d.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Root returns the project root, defaulting to the document directory.
func (d Document) Root() string {
	if d.ProjectRoot != "" {
		return d.ProjectRoot
	}
	return d.Dir()
}

// QualifiedName returns the dotted class name of the document relative to
// the project root, e.g. "com.example.Main".
func (d Document) QualifiedName() (string, error) {
	if d.Path == "" {
		return "", ErrNoDocument
	}
	rel, err := filepath.Rel(d.Root(), d.Path)
	if err != nil {
		return "", fmt.Errorf("resolve class name: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("resolve class name: %s is outside %s", d.Path, d.Root())
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", "."), nil
}

// Package returns the dotted package of the document, or "" for the
// default package.
func (d Document) Package() (string, error) {
	qn, err := d.QualifiedName()
	if err != nil {
		return "", err
	}
	if i := strings.LastIndex(qn, "."); i >= 0 {
		return qn[:i], nil
	}
	return "", nil
}

// JoinedClassPath returns the class path in the platform list format. The
// output directory comes first when set.
func (d Document) JoinedClassPath() string {
	var entries []string
	if d.OutputDir != "" {
		entries = append(entries, d.OutputDir)
	}
	entries = append(entries, d.ClassPath...)
	return strings.Join(entries, string(filepath.ListSeparator))
}

func (d Document) validate() error {
	if strings.TrimSpace(d.Path) == "" {
		return ErrNoDocument
	}
	return nil
}
