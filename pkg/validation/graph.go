package validation

import (
	"fmt"

	"github.com/flowcanvas/flowcanvas/internal/core/graph"
)

// GraphValidationOptions controls optional validation checks.
type GraphValidationOptions struct {
	// CheckCycles enables detection of directed cycles.
	CheckCycles bool
	// KnownTypesOnly rejects node types missing from the catalogue.
	KnownTypesOnly bool
}

// ValidateGraph validates a document loaded from an external source:
// field formats first, then structure, then the optional checks.
func ValidateGraph(g *graph.Graph, opts ...GraphValidationOptions) error {
	if g == nil {
		return fmt.Errorf("graph is nil")
	}
	if err := ValidateStruct(RecordFrom(g)); err != nil {
		return err
	}
	if err := g.Validate(); err != nil {
		return err
	}

	var cfg GraphValidationOptions
	if len(opts) > 0 {
		cfg = opts[0]
	}
	if cfg.KnownTypesOnly {
		for _, n := range g.Nodes {
			if !graph.Known(n.Type) {
				return fmt.Errorf("node %s: %w", n.ID, graph.ErrInvalidNodeType)
			}
		}
	}
	if cfg.CheckCycles && HasCycle(g.Nodes, g.Edges) {
		return graph.ErrCyclicGraph
	}
	return nil
}

// HasCycle reports whether the directed graph contains a cycle.
func HasCycle(nodes []graph.Node, edges []graph.Edge) bool {
	_, found := FindCycle(nodes, edges)
	return found
}

// FindCycle returns the node ids of one directed cycle, first node repeated
// at the end. Nodes are visited in list order and edges in edge order, so
// the result is deterministic.
func FindCycle(nodes []graph.Node, edges []graph.Edge) ([]string, bool) {
	const (
		white = 0 // unvisited
		gray  = 1 // visiting
		black = 2 // visited
	)
	color := make(map[string]int, len(nodes))
	adj := make(map[string][]string, len(nodes))
	for _, e := range edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	var stack []string
	var cycle []string
	var dfs func(string) bool
	dfs = func(u string) bool {
		color[u] = gray
		stack = append(stack, u)
		for _, v := range adj[u] {
			switch color[v] {
			case gray:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == v {
						cycle = append(append([]string{}, stack[i:]...), v)
						break
					}
				}
				return true
			case white:
				if dfs(v) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
		return false
	}
	for _, n := range nodes {
		if color[n.ID] == white && dfs(n.ID) {
			return cycle, true
		}
	}
	return nil, false
}
