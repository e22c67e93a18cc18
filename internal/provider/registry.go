package provider

import (
	"fmt"
	"sync"
)

// Registered pairs a descriptor with its adapter.
type Registered struct {
	Descriptor Descriptor
	Adapter    Adapter
}

// Registry holds the available provider adapters. Registration happens at
// startup; reads during request processing are lock-free copies in
// registration order, which keeps downstream tie-breaking deterministic.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]Registered
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Registered)}
}

// Register adds an adapter under the descriptor's id.
func (r *Registry) Register(desc Descriptor, adapter Adapter) error {
	if desc.ID == "" {
		return fmt.Errorf("provider registry: descriptor id is required")
	}
	if adapter == nil {
		return fmt.Errorf("provider registry: adapter for %q is nil", desc.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[desc.ID]; exists {
		return fmt.Errorf("provider registry: duplicate id %q", desc.ID)
	}
	r.entries[desc.ID] = Registered{Descriptor: desc, Adapter: adapter}
	r.order = append(r.order, desc.ID)
	return nil
}

// Get returns the registered provider for an id.
func (r *Registry) Get(id string) (Registered, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	return entry, ok
}

// List returns all registered providers in registration order.
func (r *Registry) List() []Registered {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Registered, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

// Eligible filters to active providers whose declared support and adapter
// both accept the requested route. Order matches registration order.
func (r *Registry) Eligible(req Request) []Registered {
	out := make([]Registered, 0)
	for _, entry := range r.List() {
		desc := entry.Descriptor
		if !desc.Active {
			continue
		}
		if !desc.SupportsChain(req.SourceChain) || !desc.SupportsChain(req.DestinationChain) {
			continue
		}
		if !desc.SupportsToken(req.SourceToken) {
			continue
		}
		if !entry.Adapter.SupportsRoute(req.SourceChain, req.DestinationChain, req.SourceToken) {
			continue
		}
		out = append(out, entry)
	}
	return out
}
