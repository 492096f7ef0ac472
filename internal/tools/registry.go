package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MuteSoft/apextext-sub002/internal/config"
)

// Registry maps tool names to preparers. Lookups ignore case and treat
// spaces and dashes alike, so "run-application" finds "Run Application".
type Registry struct {
	tools map[string]Preparer
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Preparer)}
}

// NewDefaultRegistry registers the built-in tools configured by cfg and every
// tool of the catalog. Catalog tools may not shadow built-ins.
func NewDefaultRegistry(cfg *config.Config, cat *config.Catalog, prompter Prompter) (*Registry, error) {
	r := NewRegistry()

	builtins := []Preparer{
		Compiler{Binary: cfg.JavacPath},
		Javadoc{Binary: cfg.JavadocPath, Package: cfg.JavadocPackage},
		AppletRunner{Binary: cfg.AppletViewerPath},
		ApplicationRunner{Binary: cfg.JavaPath, Params: cfg.Params},
	}
	for _, p := range builtins {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}

	if cat != nil {
		for _, def := range cat.Tools {
			if err := r.Register(CustomTool{Def: def, Prompter: prompter, Params: cfg.Params}); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// Register adds p. Names must be unique.
func (r *Registry) Register(p Preparer) error {
	key := normalize(p.Name())
	if key == "" {
		return fmt.Errorf("tool has no name")
	}
	if _, ok := r.tools[key]; ok {
		return fmt.Errorf("tool %q already registered", p.Name())
	}
	r.tools[key] = p
	r.order = append(r.order, p.Name())
	return nil
}

// Lookup returns the preparer registered under name.
func (r *Registry) Lookup(name string) (Preparer, bool) {
	p, ok := r.tools[normalize(name)]
	return p, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// SortedNames returns the registered tool names sorted alphabetically.
func (r *Registry) SortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("-", " ", "_", " ").Replace(name)
}
