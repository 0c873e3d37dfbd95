package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry holds table specs in registration order. Export runs walk the
// registry in that order, so parents should be registered before children.
type Registry struct {
	mu    sync.RWMutex
	specs []TableSpec
	index map[string]int
}

// NewRegistry creates a registry from specs, validating each one.
func NewRegistry(specs ...TableSpec) (*Registry, error) {
	r := &Registry{}
	var errs []error
	for _, spec := range specs {
		if err := r.Add(spec); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

// Add validates spec and appends it to the registry.
func (r *Registry) Add(spec TableSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.index == nil {
		r.index = make(map[string]int)
	}
	if _, exists := r.index[spec.Name]; exists {
		return fmt.Errorf("%w: table already registered: %s", ErrInvalidRegistry, spec.Name)
	}

	spec.ExcludeColumns = append([]string(nil), spec.ExcludeColumns...)
	spec.JSONColumns = append([]string(nil), spec.JSONColumns...)

	r.index[spec.Name] = len(r.specs)
	r.specs = append(r.specs, spec)
	return nil
}

// Get returns a table spec by name.
// Returns false if not found.
func (r *Registry) Get(name string) (TableSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return TableSpec{}, false
	}
	return r.specs[i], true
}

// All returns every table spec in registration order.
func (r *Registry) All() []TableSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]TableSpec, len(r.specs))
	copy(result, r.specs)
	return result
}

// ByGroup returns the table specs of one group, in registration order.
func (r *Registry) ByGroup(group string) []TableSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []TableSpec
	for _, spec := range r.specs {
		if spec.Group == group {
			result = append(result, spec)
		}
	}
	return result
}

// Select returns the named tables in registry order, or every table when
// names is empty. An unregistered name fails with ErrUnknownTable.
func (r *Registry) Select(names ...string) ([]TableSpec, error) {
	if len(names) == 0 {
		return r.All(), nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := r.Get(n); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTable, n)
		}
		want[n] = true
	}

	var out []TableSpec
	for _, spec := range r.All() {
		if want[spec.Name] {
			out = append(out, spec)
		}
	}
	return out, nil
}

// Groups returns the distinct non-empty group names, sorted alphabetically.
func (r *Registry) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	for _, spec := range r.specs {
		if spec.Group != "" {
			seen[spec.Group] = true
		}
	}

	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}

	sort.Strings(groups)
	return groups
}

// Len returns the number of registered tables.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.specs)
}

var defaultRegistry = &Registry{}

// Register adds a table spec to the default registry.
// Panics if the table definition is invalid or a table with the same name is already registered.
func Register(spec TableSpec) {
	if err := defaultRegistry.Add(spec); err != nil {
		panic(err.Error())
	}
}

// Default returns the registry populated by Register.
func Default() *Registry {
	return defaultRegistry
}

// Clear removes all tables from the default registry.
// Primarily useful for testing.
func Clear() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.specs = nil
	defaultRegistry.index = nil
}
