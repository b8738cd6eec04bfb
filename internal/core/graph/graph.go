// Package graph provides the core workflow graph entities: nodes, edges,
// the node catalogue, and the live Model mutated by the editor and the
// execution engine. It has no dependencies outside the standard library
// except for the uuid-backed id generator.
package graph

import (
	"time"
)

// Graph is the persisted interchange form of a workflow
// PRINCIPLES:
// - KISS: Ordered slices, the same shape the canvas exchanges
// - SRP: Only responsible for document structure, not execution
type Graph struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Nodes     []Node    `json:"nodes"`
	Edges     []Edge    `json:"edges"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate ensures graph integrity: node and edge fields are well formed,
// ids are unique, and every edge references existing nodes.
func (g *Graph) Validate() error {
	if g.ID == "" {
		return ErrInvalidGraphID
	}
	seen := make(map[string]struct{}, len(g.Nodes))
	for i := range g.Nodes {
		if err := g.Nodes[i].Validate(); err != nil {
			return err
		}
		if _, dup := seen[g.Nodes[i].ID]; dup {
			return ErrDuplicateNode
		}
		seen[g.Nodes[i].ID] = struct{}{}
	}
	edgeIDs := make(map[string]struct{}, len(g.Edges))
	for i := range g.Edges {
		e := &g.Edges[i]
		if err := e.Validate(); err != nil {
			return err
		}
		if _, dup := edgeIDs[e.ID]; dup {
			return ErrDuplicateEdge
		}
		edgeIDs[e.ID] = struct{}{}
		if _, ok := seen[e.Source]; !ok {
			return ErrSourceNodeNotFound
		}
		if _, ok := seen[e.Target]; !ok {
			return ErrTargetNodeNotFound
		}
	}
	return nil
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	out := *g
	out.Nodes = CloneNodes(g.Nodes)
	out.Edges = CloneEdges(g.Edges)
	return &out
}

// CloneNodes deep-copies a node slice.
func CloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i := range nodes {
		out[i] = nodes[i].Clone()
	}
	return out
}

// CloneEdges copies an edge slice.
func CloneEdges(edges []Edge) []Edge {
	if edges == nil {
		return nil
	}
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}
