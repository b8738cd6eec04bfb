// Package history implements snapshot-based undo/redo over graph edits.
package history

import (
	"log/slog"
	"sync"

	"github.com/flowcanvas/flowcanvas/internal/core/graph"
)

// DefaultMaxDepth bounds each stack; the oldest snapshot is evicted first.
const DefaultMaxDepth = 100

// Source is the state history captures and restores. graph.Model satisfies it.
type Source interface {
	Snapshot() ([]graph.Node, []graph.Edge)
	Replace(nodes []graph.Node, edges []graph.Edge)
}

// Snapshot is an immutable copy of the full node/edge collection.
type Snapshot struct {
	nodes []graph.Node
	edges []graph.Edge
}

// Nodes returns a copy of the captured nodes.
func (s Snapshot) Nodes() []graph.Node { return graph.CloneNodes(s.nodes) }

// Edges returns a copy of the captured edges.
func (s Snapshot) Edges() []graph.Edge { return graph.CloneEdges(s.edges) }

// Manager keeps past and future stacks of snapshots.
// PRINCIPLES:
// - Callers snapshot before every topology edit, never for run state
// - Undo and redo swap the current state with the top of a stack
type Manager struct {
	mu       sync.Mutex
	src      Source
	past     []Snapshot
	future   []Snapshot
	maxDepth int
	logger   *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxDepth sets the stack bound. Values below 1 disable the bound.
func WithMaxDepth(n int) Option {
	return func(m *Manager) { m.maxDepth = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a manager over src with empty stacks.
func NewManager(src Source, opts ...Option) *Manager {
	m := &Manager{
		src:      src,
		maxDepth: DefaultMaxDepth,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TakeSnapshot pushes the current state onto past and clears future.
func (m *Manager) TakeSnapshot() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.past = m.push(m.past, m.capture())
	m.future = nil
}

// Undo restores the most recent snapshot. It reports whether anything changed.
func (m *Manager) Undo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.past) == 0 {
		return false
	}
	prev := m.past[len(m.past)-1]
	m.past = m.past[:len(m.past)-1]
	m.future = m.push(m.future, m.capture())
	m.src.Replace(prev.nodes, prev.edges)
	m.logger.Debug("history: undo", slog.Int("past", len(m.past)), slog.Int("future", len(m.future)))
	return true
}

// Redo reapplies the most recently undone state. It reports whether anything changed.
func (m *Manager) Redo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.future) == 0 {
		return false
	}
	next := m.future[len(m.future)-1]
	m.future = m.future[:len(m.future)-1]
	m.past = m.push(m.past, m.capture())
	m.src.Replace(next.nodes, next.edges)
	m.logger.Debug("history: redo", slog.Int("past", len(m.past)), slog.Int("future", len(m.future)))
	return true
}

// CanUndo reports whether past is non-empty.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.past) > 0
}

// CanRedo reports whether future is non-empty.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.future) > 0
}

// Clear drops both stacks.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.past, m.future = nil, nil
	m.mu.Unlock()
}

// Depth returns the sizes of the past and future stacks.
func (m *Manager) Depth() (past, future int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.past), len(m.future)
}

func (m *Manager) capture() Snapshot {
	nodes, edges := m.src.Snapshot()
	return Snapshot{nodes: nodes, edges: edges}
}

func (m *Manager) push(stack []Snapshot, s Snapshot) []Snapshot {
	stack = append(stack, s)
	if m.maxDepth > 0 && len(stack) > m.maxDepth {
		evicted := len(stack) - m.maxDepth
		stack = append(stack[:0:0], stack[evicted:]...)
		m.logger.Debug("history: evicted oldest snapshot", slog.Int("count", evicted))
	}
	return stack
}
