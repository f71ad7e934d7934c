package worker

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps worker references to their invokers. Task descriptors bind
// tasks to workers by name; the registry resolves those names at dispatch
// time. An optional fallback serves names with no explicit registration.
type Registry struct {
	mu       sync.RWMutex
	invokers map[string]Invoker
	fallback Invoker
}

// NewRegistry creates an empty worker registry.
func NewRegistry() *Registry {
	return &Registry{
		invokers: make(map[string]Invoker),
	}
}

// Register binds a worker name to an invoker.
func (r *Registry) Register(name string, inv Invoker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invokers[name] = inv
}

// SetFallback sets the invoker used for worker names with no registration.
func (r *Registry) SetFallback(inv Invoker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = inv
}

// Resolve returns the invoker for a worker name.
func (r *Registry) Resolve(name string) (Invoker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if inv, ok := r.invokers[name]; ok {
		return inv, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("no invoker registered for worker %q", name)
}

// ResolveReviewer returns the invoker for a reviewer name if it supports
// review.
func (r *Registry) ResolveReviewer(name string) (Reviewer, error) {
	inv, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	rev, ok := inv.(Reviewer)
	if !ok {
		return nil, fmt.Errorf("worker %q does not support review", name)
	}
	return rev, nil
}

// Names returns the registered worker names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.invokers))
	for name := range r.invokers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
