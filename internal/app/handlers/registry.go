package handlers

import (
	"sort"
	"sync"

	"github.com/flowcanvas/flowcanvas/internal/core/graph"
)

// Registry maps node types to handlers with a fallback for unregistered
// types.
type Registry struct {
	mu       sync.RWMutex
	handlers map[graph.NodeType]Handler
	fallback Handler
	wrap     func(Handler) Handler
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithFailureInjection makes every handler honour config "fail": true fails
// with ErrSimulatedFailure, a string fails with that message.
func WithFailureInjection() RegistryOption {
	return func(r *Registry) { r.wrap = InjectFailures }
}

// NewRegistry creates an empty registry. Lookups of unregistered types
// return fallback.
func NewRegistry(fallback Handler, opts ...RegistryOption) *Registry {
	r := &Registry{
		handlers: make(map[graph.NodeType]Handler),
		wrap:     func(h Handler) Handler { return h },
	}
	for _, opt := range opts {
		opt(r)
	}
	r.fallback = r.wrap(fallback)
	return r
}

// Register adds or replaces the handler for t.
func (r *Registry) Register(t graph.NodeType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = r.wrap(h)
}

// Lookup returns the handler for t, or the fallback.
func (r *Registry) Lookup(t graph.NodeType) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[t]; ok {
		return h
	}
	return r.fallback
}

// Has reports whether t has its own handler.
func (r *Registry) Has(t graph.NodeType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[t]
	return ok
}

// Types returns the registered types in lexical order.
func (r *Registry) Types() []graph.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]graph.NodeType, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
