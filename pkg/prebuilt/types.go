package prebuilt

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/flowcanvas/flowcanvas/pkg/flowcanvas"
)

// Options are shared by every builder. Zero values keep the builder's
// defaults.
type Options struct {
	ID   string
	Name string
}

// Builder constructs a template graph.
// Implementations should be pure (no side effects) and return
// a valid graph that passes document validation.
type Builder interface {
	Name() string
	Description() string
	Build(ctx context.Context, opts Options) (*flowcanvas.Graph, error)
}

// BuildFunc is a convenience adapter to implement Builder via functions.
type BuildFunc struct {
	NameStr string
	DescStr string
	Fn      func(ctx context.Context, opts Options) (*flowcanvas.Graph, error)
}

func (b BuildFunc) Name() string        { return b.NameStr }
func (b BuildFunc) Description() string { return b.DescStr }
func (b BuildFunc) Build(ctx context.Context, opts Options) (*flowcanvas.Graph, error) {
	return b.Fn(ctx, opts)
}

// NewBuildFunc creates a Builder from a function.
func NewBuildFunc(name, description string, fn func(ctx context.Context, opts Options) (*flowcanvas.Graph, error)) BuildFunc {
	return BuildFunc{NameStr: name, DescStr: description, Fn: fn}
}

// Registry holds named prebuilts.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds or replaces a prebuilt builder.
func (r *Registry) Register(b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[b.Name()] = b
}

// MustRegister panics on duplicate names; useful during init() setup.
func (r *Registry) MustRegister(b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.builders[b.Name()]; exists {
		panic(fmt.Sprintf("prebuilt already registered: %s", b.Name()))
	}
	r.builders[b.Name()] = b
}

// Get retrieves a named prebuilt.
func (r *Registry) Get(name string) (Builder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[name]
	return b, ok
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for n := range r.builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build looks up name and builds it.
func (r *Registry) Build(ctx context.Context, name string, opts Options) (*flowcanvas.Graph, error) {
	b, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown prebuilt: %s", name)
	}
	return b.Build(ctx, opts)
}

// DefaultRegistry is a singleton for convenience. Projects can also
// construct their own Registry if they want isolation.
var DefaultRegistry = NewRegistry()
