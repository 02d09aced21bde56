package bidi

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownBackend is returned when a requested model backend is not registered.
var ErrUnknownBackend = errors.New("bidi: unknown model backend") //nolint:gochecknoglobals // sentinel error

// BackendOptions carries connection settings for a model backend.
type BackendOptions struct {
	URL    string // upstream endpoint, backend-specific
	APIKey string
}

// Factory creates a Model for a given backend type.
type Factory func(opts BackendOptions) (Model, error)

// Registry manages model backend factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory for a backend type.
func (r *Registry) Register(backend string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[backend] = factory
}

// Create instantiates a model for the given backend type.
func (r *Registry) Create(backend string, opts BackendOptions) (Model, error) {
	r.mu.RLock()
	factory, ok := r.factories[backend]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("bidi.Registry.Create(%q): %w", backend, ErrUnknownBackend)
	}

	model, err := factory(opts)
	if err != nil {
		return nil, fmt.Errorf("bidi.Registry.Create(%q): %w", backend, err)
	}

	return model, nil
}

// Backends returns the registered backend types, sorted.
func (r *Registry) Backends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
