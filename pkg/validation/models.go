package validation

import (
	"github.com/flowcanvas/flowcanvas/internal/core/graph"
)

// DocumentRecord is the tagged form of an interchange document
// PRINCIPLES:
// - Single Responsibility: field format rules only, structure is graph.Graph.Validate
type DocumentRecord struct {
	ID    string       `json:"id" validate:"required,max=100"`
	Name  string       `json:"name" validate:"max=200"`
	Nodes []NodeRecord `json:"nodes" validate:"dive"`
	Edges []EdgeRecord `json:"edges" validate:"dive"`
}

// NodeRecord is the tagged form of a node.
type NodeRecord struct {
	ID   string         `json:"id" validate:"required,node_id"`
	Type string         `json:"type" validate:"required,max=64"`
	Data NodeDataRecord `json:"data"`
}

// NodeDataRecord is the tagged form of node data.
type NodeDataRecord struct {
	Label  string `json:"label" validate:"max=200"`
	Status string `json:"status" validate:"omitempty,node_status"`
}

// EdgeRecord is the tagged form of an edge.
type EdgeRecord struct {
	ID           string `json:"id" validate:"required,edge_id"`
	Source       string `json:"source" validate:"required,node_id"`
	Target       string `json:"target" validate:"required,node_id"`
	SourceHandle string `json:"sourceHandle" validate:"omitempty,branch_label"`
}

// RecordFrom converts g into its tagged form.
func RecordFrom(g *graph.Graph) *DocumentRecord {
	rec := &DocumentRecord{
		ID:    g.ID,
		Name:  g.Name,
		Nodes: make([]NodeRecord, 0, len(g.Nodes)),
		Edges: make([]EdgeRecord, 0, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		rec.Nodes = append(rec.Nodes, NodeRecord{
			ID:   n.ID,
			Type: string(n.Type),
			Data: NodeDataRecord{Label: n.Data.Label, Status: string(n.Data.Status)},
		})
	}
	for _, e := range g.Edges {
		rec.Edges = append(rec.Edges, EdgeRecord{
			ID:           e.ID,
			Source:       e.Source,
			Target:       e.Target,
			SourceHandle: string(e.SourceHandle),
		})
	}
	return rec
}
