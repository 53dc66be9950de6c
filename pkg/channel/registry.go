package channel

import (
	"fmt"
	"slices"
	"sync"
)

// Registry resolves channel names to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates a registry holding adapters.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an adapter under its Name.
func (r *Registry) Register(a Adapter) error {
	if a == nil {
		return ErrAdapterNil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.adapters[a.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAdapter, a.Name())
	}
	r.adapters[a.Name()] = a
	return nil
}

// Get returns the adapter for name or ErrUnknownChannel.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, name)
	}
	return a, nil
}

// Names returns registered channel names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
