package evidence

import (
	"fmt"
	"strings"
)

// Factory builds an adapter. Factories that need credentials return a
// *ConfigError when they are missing.
type Factory func() (Adapter, error)

// Registry maps canonical adapter names and their aliases to factories.
// It is populated at startup and read-only afterwards.
type Registry struct {
	factories map[string]Factory
	aliases   map[string]string
	order     []string
}

// NewRegistry creates a new empty registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		aliases:   make(map[string]string),
	}
}

// Register adds a factory under name and any aliases.
func (r *Registry) Register(name string, factory Factory, aliases ...string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	if _, exists := r.aliases[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	r.factories[name] = factory
	r.aliases[name] = name
	for _, a := range aliases {
		a = strings.ToLower(strings.TrimSpace(a))
		if _, exists := r.aliases[a]; exists {
			return fmt.Errorf("%w: alias %s", ErrDuplicateName, a)
		}
		r.aliases[a] = name
	}
	r.order = append(r.order, name)
	return nil
}

// Canonical resolves an alias to its canonical adapter name.
func (r *Registry) Canonical(name string) (string, bool) {
	c, ok := r.aliases[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Names returns canonical names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Build constructs the adapter registered under name or one of its aliases.
func (r *Registry) Build(name string) (Adapter, error) {
	canonical, ok := r.Canonical(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAdapterNotFound, name)
	}
	return r.factories[canonical]()
}

// Selection is the outcome of resolving a list of requested adapter names.
type Selection struct {
	Adapters []Adapter
	// Unknown names that matched no registration.
	Unknown []string
	// Disabled adapters whose factory returned a ConfigError, keyed by
	// canonical name.
	Disabled map[string]string
}

// Select resolves names in order, dropping duplicates after alias
// resolution. Unknown names and misconfigured adapters are reported rather
// than failing the whole selection; any other factory error is returned.
func (r *Registry) Select(names []string) (Selection, error) {
	sel := Selection{Disabled: map[string]string{}}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		canonical, ok := r.Canonical(n)
		if !ok {
			sel.Unknown = append(sel.Unknown, n)
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}

		a, err := r.factories[canonical]()
		if err != nil {
			if IsConfigError(err) {
				sel.Disabled[canonical] = err.Error()
				continue
			}
			return Selection{}, fmt.Errorf("build adapter %s: %w", canonical, err)
		}
		sel.Adapters = append(sel.Adapters, a)
	}
	return sel, nil
}
