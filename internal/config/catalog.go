package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ToolDef is a user-defined tool from the catalog.
//
// Options, Resources and Params may use the placeholders ${file}, ${dir},
// ${name}, ${project}, ${classpath} and ${outdir}.
type ToolDef struct {
	Name        string            `json:"name" yaml:"name" toml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Command     []string          `json:"command" yaml:"command" toml:"command"`
	Options     []string          `json:"options,omitempty" yaml:"options,omitempty" toml:"options,omitempty"`
	Resources   []string          `json:"resources,omitempty" yaml:"resources,omitempty" toml:"resources,omitempty"`
	Params      []string          `json:"params,omitempty" yaml:"params,omitempty" toml:"params,omitempty"`
	Prompt      string            `json:"prompt,omitempty" yaml:"prompt,omitempty" toml:"prompt,omitempty"`
	WorkDir     string            `json:"workdir,omitempty" yaml:"workdir,omitempty" toml:"workdir,omitempty"`
	Env         map[string]string `json:"env,omitempty" yaml:"env,omitempty" toml:"env,omitempty"`
	ReplaceEnv  bool              `json:"replace_env,omitempty" yaml:"replace_env,omitempty" toml:"replace_env,omitempty"`
}

// Catalog is the set of user-defined tools.
type Catalog struct {
	Tools []ToolDef `json:"tools" yaml:"tools" toml:"tools"`
}

// Catalog file formats.
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
	FormatJSON = "json"
)

// ErrUnknownFormat is returned for catalog files with an unsupported extension.
var ErrUnknownFormat = errors.New("unknown catalog format")

// FormatForPath picks the catalog format from the file extension.
func FormatForPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

// LoadCatalog reads and validates the catalog at path.
func LoadCatalog(path string) (*Catalog, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog load failed (%s): %w", path, err)
	}
	cat, err := ParseCatalog(data, format)
	if err != nil {
		return nil, fmt.Errorf("catalog parse failed (%s): %w", path, err)
	}
	return cat, nil
}

// ParseCatalog decodes and validates a catalog in the given format.
func ParseCatalog(data []byte, format string) (*Catalog, error) {
	var cat Catalog

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &cat); err != nil {
			return nil, err
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &cat); err != nil {
			return nil, err
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cat); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks that every tool has a unique name and a command.
func (c *Catalog) Validate() error {
	var errs []error
	seen := make(map[string]bool)

	for i, t := range c.Tools {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("tools[%d].name", i),
				Message: "must not be empty",
			})
		} else if seen[strings.ToLower(name)] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("tools[%d].name", i),
				Message: fmt.Sprintf("duplicate tool %q", name),
			})
		}
		seen[strings.ToLower(name)] = true

		if len(t.Command) == 0 || strings.TrimSpace(t.Command[0]) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("tools[%d].command", i),
				Message: "must name an executable",
			})
		}
	}

	return errors.Join(errs...)
}

// Lookup returns the tool with the given name, ignoring case.
func (c *Catalog) Lookup(name string) (ToolDef, bool) {
	if c == nil {
		return ToolDef{}, false
	}
	for _, t := range c.Tools {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return ToolDef{}, false
}
