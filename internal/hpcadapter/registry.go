package hpcadapter

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Factory constructs an Adapter for a given hpc_type.
type Factory func(log zerolog.Logger) Adapter

// Registry resolves an hpc_type string to its Adapter constructor.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a Registry pre-populated with the built-in slurm and
// fake backends.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("slurm", func(log zerolog.Logger) Adapter { return NewSlurmAdapter(log) })
	r.Register("fake", func(log zerolog.Logger) Adapter { return NewFakeAdapter(log) })
	return r
}

// Register adds or replaces the factory for hpcType.
func (r *Registry) Register(hpcType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[hpcType] = factory
}

// New constructs the Adapter registered for hpcType.
func (r *Registry) New(hpcType string, log zerolog.Logger) (Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[hpcType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHPCType, hpcType)
	}
	return factory(log), nil
}
