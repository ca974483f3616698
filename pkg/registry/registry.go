// Package registry implements the name-keyed factory table used for storage,
// asset and export providers.
//
// A Registry is an explicitly constructed value owned by the application
// context. Registration normally happens once at startup; re-registering a
// name replaces the earlier entry (last registration wins).
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/menta2k/image-labeler/pkg/errdefs"
	"github.com/menta2k/image-labeler/pkg/types"
)

// Factory builds a provider of type T from its construction argument A
type Factory[A, T any] func(args A) (T, error)

// Registration describes one provider: its key, labels and factory
type Registration[A, T any] struct {
	Name        string
	DisplayName string
	Description string
	Factory     Factory[A, T]
}

// Registry maps provider names to registrations
type Registry[A, T any] struct {
	kind    string
	mu      sync.RWMutex
	entries map[string]Registration[A, T]
}

// New creates an empty registry. kind names the provider family in errors
// (for example "storage" or "export").
func New[A, T any](kind string) *Registry[A, T] {
	return &Registry[A, T]{
		kind:    kind,
		entries: make(map[string]Registration[A, T]),
	}
}

// Kind returns the provider family name
func (r *Registry[A, T]) Kind() string {
	return r.kind
}

// Register adds or replaces a registration
func (r *Registry[A, T]) Register(reg Registration[A, T]) error {
	if reg.Name == "" {
		return fmt.Errorf("register %s provider: empty name: %w", r.kind, errdefs.ErrInvalidArgument)
	}
	if reg.Factory == nil {
		return fmt.Errorf("register %s provider %q: nil factory: %w", r.kind, reg.Name, errdefs.ErrInvalidArgument)
	}
	if reg.DisplayName == "" {
		reg.DisplayName = reg.Name
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[reg.Name] = reg
	return nil
}

// RegisterFactory registers a factory under name, using name as display name
func (r *Registry[A, T]) RegisterFactory(name string, factory Factory[A, T]) error {
	return r.Register(Registration[A, T]{Name: name, DisplayName: name, Factory: factory})
}

// MustRegister is Register for static startup tables; it panics on error
func (r *Registry[A, T]) MustRegister(reg Registration[A, T]) {
	if err := r.Register(reg); err != nil {
		panic(err)
	}
}

// Create builds the provider registered under name. Factory errors are
// returned wrapped, never retried.
func (r *Registry[A, T]) Create(name string, args A) (T, error) {
	var zero T
	if name == "" {
		return zero, fmt.Errorf("create %s provider: empty name: %w", r.kind, errdefs.ErrInvalidArgument)
	}

	r.mu.RLock()
	reg, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("no %s provider has been registered with name '%s': %w", r.kind, name, errdefs.ErrNotFound)
	}

	provider, err := reg.Factory(args)
	if err != nil {
		return zero, fmt.Errorf("create %s provider '%s': %w", r.kind, name, err)
	}
	return provider, nil
}

// Has reports whether name is registered
func (r *Registry[A, T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Providers returns a snapshot of the registry. Mutating the returned map
// does not affect the registry.
func (r *Registry[A, T]) Providers() map[string]Registration[A, T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Registration[A, T], len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

// Names returns the registered names in sorted order
func (r *Registry[A, T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FromConnection creates the provider named by the connection's provider type,
// passing the connection's options to the factory.
func FromConnection[T any](r *Registry[types.ProviderOptions, T], conn *types.Connection) (T, error) {
	var zero T
	if conn == nil {
		return zero, fmt.Errorf("create %s provider: nil connection: %w", r.kind, errdefs.ErrInvalidArgument)
	}
	return r.Create(conn.ProviderType, conn.ProviderOptions)
}
