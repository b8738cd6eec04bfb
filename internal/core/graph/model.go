package graph

import (
	"log/slog"
	"sync"
)

// Model owns the live node/edge collection shared by the editor and the
// execution engine. Every read returns a copy; every mutation returns the
// updated collection. Mutations addressing a missing id are accepted as
// silent no-ops and reported through the logger.
//
// Model is safe for concurrent use.
type Model struct {
	mu     sync.RWMutex
	nodes  []Node
	edges  []Edge
	logger *slog.Logger
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithLogger sets the logger used to report no-op mutations.
func WithLogger(l *slog.Logger) ModelOption {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewModel creates a model holding copies of nodes and edges.
func NewModel(nodes []Node, edges []Edge, opts ...ModelOption) *Model {
	m := &Model{
		nodes:  CloneNodes(nodes),
		edges:  CloneEdges(edges),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Nodes returns a copy of the node list in insertion order.
func (m *Model) Nodes() []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return CloneNodes(m.nodes)
}

// Edges returns a copy of the edge list in insertion order.
func (m *Model) Edges() []Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return CloneEdges(m.edges)
}

// Len returns the number of nodes.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// Snapshot returns deep copies of both collections taken under one lock.
func (m *Model) Snapshot() ([]Node, []Edge) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return CloneNodes(m.nodes), CloneEdges(m.edges)
}

// Replace swaps in copies of nodes and edges wholesale.
func (m *Model) Replace(nodes []Node, edges []Edge) {
	n, e := CloneNodes(nodes), CloneEdges(edges)
	m.mu.Lock()
	m.nodes, m.edges = n, e
	m.mu.Unlock()
}

// Node returns the node with the given id.
func (m *Model) Node(id string) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.indexOf(id); i >= 0 {
		return m.nodes[i].Clone(), true
	}
	return Node{}, false
}

// OutgoingEdges returns the edges whose source is nodeID, in edge order.
func (m *Model) OutgoingEdges(nodeID string) []Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Outgoing(m.edges, nodeID)
}

// IncomingTargets returns the set of all edge target ids.
func (m *Model) IncomingTargets() map[string]struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Targets(m.edges)
}

// AddNode appends node. A duplicate id is a no-op.
func (m *Model) AddNode(node Node) []Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexOf(node.ID) >= 0 {
		m.logger.Warn("graph: add node ignored, duplicate id", slog.String("node_id", node.ID))
		return CloneNodes(m.nodes)
	}
	m.nodes = append(m.nodes, node.Clone())
	return CloneNodes(m.nodes)
}

// AddEdge appends edge. A missing endpoint or duplicate id is a no-op.
func (m *Model) AddEdge(edge Edge) []Edge {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.indexOf(edge.Source) < 0:
		m.logger.Warn("graph: add edge ignored, source missing",
			slog.String("edge_id", edge.ID), slog.String("source", edge.Source))
	case m.indexOf(edge.Target) < 0:
		m.logger.Warn("graph: add edge ignored, target missing",
			slog.String("edge_id", edge.ID), slog.String("target", edge.Target))
	case m.edgeIndexOf(edge.ID) >= 0:
		m.logger.Warn("graph: add edge ignored, duplicate id", slog.String("edge_id", edge.ID))
	default:
		m.edges = append(m.edges, edge)
	}
	return CloneEdges(m.edges)
}

// RemoveNode deletes the node with the given id. Edges touching it are
// left in place.
func (m *Model) RemoveNode(id string) []Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		m.missing("remove node", id)
		return CloneNodes(m.nodes)
	}
	m.nodes = append(m.nodes[:i:i], m.nodes[i+1:]...)
	return CloneNodes(m.nodes)
}

// RemoveEdge deletes the edge with the given id.
func (m *Model) RemoveEdge(id string) []Edge {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.edgeIndexOf(id)
	if i < 0 {
		m.logger.Warn("graph: remove edge ignored, edge missing", slog.String("edge_id", id))
		return CloneEdges(m.edges)
	}
	m.edges = append(m.edges[:i:i], m.edges[i+1:]...)
	return CloneEdges(m.edges)
}

// SetNodeStatus updates the status of one node.
func (m *Model) SetNodeStatus(id string, status Status) []Node {
	return m.update("set status", id, func(n *Node) { n.Data.Status = status })
}

// SetNodeResult stores the output of one node.
func (m *Model) SetNodeResult(id string, result string) []Node {
	return m.update("set result", id, func(n *Node) { n.Data.Result = &result })
}

// SetNodePosition moves one node on the canvas.
func (m *Model) SetNodePosition(id string, pos Position) []Node {
	return m.update("set position", id, func(n *Node) { n.Position = pos })
}

// ResetStatuses sets every node to idle. Results are kept.
func (m *Model) ResetStatuses() []Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.nodes {
		m.nodes[i].Data.Status = StatusIdle
	}
	return CloneNodes(m.nodes)
}

func (m *Model) update(op, id string, fn func(*Node)) []Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		m.missing(op, id)
		return CloneNodes(m.nodes)
	}
	fn(&m.nodes[i])
	return CloneNodes(m.nodes)
}

func (m *Model) missing(op, id string) {
	m.logger.Warn("graph: "+op+" ignored, node missing", slog.String("node_id", id))
}

func (m *Model) indexOf(id string) int {
	for i := range m.nodes {
		if m.nodes[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *Model) edgeIndexOf(id string) int {
	for i := range m.edges {
		if m.edges[i].ID == id {
			return i
		}
	}
	return -1
}

// Outgoing filters edges whose source is nodeID, preserving order.
func Outgoing(edges []Edge, nodeID string) []Edge {
	var out []Edge
	for _, e := range edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Targets returns the set of edge target ids.
func Targets(edges []Edge) map[string]struct{} {
	out := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		out[e.Target] = struct{}{}
	}
	return out
}

// StartNodes returns the nodes with no incoming edge, in node order.
func StartNodes(nodes []Node, edges []Edge) []Node {
	targets := Targets(edges)
	var out []Node
	for _, n := range nodes {
		if _, ok := targets[n.ID]; !ok {
			out = append(out, n)
		}
	}
	return out
}
