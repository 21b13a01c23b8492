package source

import (
	"fmt"
	"sync"

	"golang.org/x/exp/maps"
)

// Registry is a session-scoped, mutable binding of names to sources. All
// methods are safe for concurrent use.
//
// Resolution is deliberately late: registering or deregistering a name never
// touches the nodes that read it. A node reading a deregistered name fails
// at iteration time with ErrSourceNotRegistered.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
	names   *nameSet
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: map[string]Source{},
		names:   newNameSet(),
	}
}

// Register binds name to src. Names are bound at most once; re-registering
// returns ErrSourceExists.
func (r *Registry) Register(name string, src Source) error {
	if name == "" {
		return fmt.Errorf("source name must not be empty")
	}
	if src == nil {
		return fmt.Errorf("source %q must not be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sources[name]; ok {
		return fmt.Errorf("%q: %w", name, ErrSourceExists)
	}
	r.sources[name] = src
	r.names.Add(name)
	return nil
}

// Deregister removes the binding for name. Nodes already constructed against
// the name keep referencing it and fail on their next read.
func (r *Registry) Deregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sources[name]; !ok {
		return fmt.Errorf("%q: %w", name, ErrSourceNotRegistered)
	}
	delete(r.sources, name)
	r.names.Remove(name)
	return nil
}

// Lookup resolves name to its source binding.
func (r *Registry) Lookup(name string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrSourceNotRegistered)
	}
	return src, nil
}

// IsRegistered reports whether name currently resolves.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.names.Exists(name)
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.names.Values()
}

// Sources returns a point-in-time copy of the bindings.
func (r *Registry) Sources() map[string]Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Clone(r.sources)
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.names.Size()
}
