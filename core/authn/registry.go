package authn

import (
	"fmt"
	"sync"

	"authgate/core/utils"
)

// Factory builds a backend on first resolution. Registration happens once at
// startup; adding a new backend never touches the dispatch call site.
type Factory func() (Backend, error)

// Registry maps configured backend identifiers to lazily-built singleton
// backend instances. An unknown identifier resolves to the default backend so
// a misconfigured gateway keeps working; the fallback is logged as a
// configuration warning, never returned as an error.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	instances map[string]Backend
	defaultID string
	logger    *utils.Logger
}

func NewRegistry(defaultID string, logger *utils.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Backend),
		defaultID: defaultID,
		logger:    logger,
	}
}

func (r *Registry) Register(id string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = f
}

// Resolve returns the backend for id, constructing it on first use and
// reusing the instance for the process lifetime.
func (r *Registry) Resolve(id string) (Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[id]; !ok {
		r.logger.Warnf("auth backend %q is not registered, falling back to %q", id, r.defaultID)
		id = r.defaultID
	}
	if b, ok := r.instances[id]; ok {
		return b, nil
	}
	f, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("default auth backend %q is not registered", id)
	}
	b, err := f()
	if err != nil {
		return nil, err
	}
	r.instances[id] = b
	return b, nil
}
