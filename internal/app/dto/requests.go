package dto

import (
	"time"

	"github.com/flowcanvas/flowcanvas/internal/core/graph"
)

// DropNodeRequest is the payload of a palette drop.
type DropNodeRequest struct {
	Type     string         `json:"type" validate:"required,node_type"`
	Label    string         `json:"label" validate:"max=200"`
	Position graph.Position `json:"position"`
}

// ConnectRequest connects two existing nodes.
type ConnectRequest struct {
	Source       string `json:"source" validate:"required,node_id"`
	Target       string `json:"target" validate:"required,node_id"`
	SourceHandle string `json:"sourceHandle" validate:"omitempty,branch_label"`
}

// MoveNodeRequest repositions a node.
type MoveNodeRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SaveWorkflowRequest stores the given document, or the current canvas
// when Nodes is empty.
type SaveWorkflowRequest struct {
	Name  string       `json:"name" validate:"max=200"`
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

// Document returns the request as a graph with the given id.
func (r *SaveWorkflowRequest) Document(id string, now time.Time) *graph.Graph {
	return &graph.Graph{
		ID:        id,
		Name:      r.Name,
		Nodes:     r.Nodes,
		Edges:     r.Edges,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HistoryState reports undo/redo availability.
type HistoryState struct {
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

// GraphView is the read model returned to the canvas.
type GraphView struct {
	Nodes   []graph.Node `json:"nodes"`
	Edges   []graph.Edge `json:"edges"`
	Running bool         `json:"running"`
	History HistoryState `json:"history"`
}
