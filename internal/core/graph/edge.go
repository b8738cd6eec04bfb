// Package graph provides edge definitions
package graph

// BranchLabel names which logical output of a branching node an edge
// represents. The empty label is the primary path.
type BranchLabel string

const (
	// LabelNone marks an unlabeled edge: the default/true path.
	LabelNone BranchLabel = ""
	// LabelFalse is the else side of an if node.
	LabelFalse BranchLabel = "false"
	// LabelDefault is the fallthrough output of a switch node.
	LabelDefault BranchLabel = "default"
	// LabelCase1 is the first case output of a switch node.
	LabelCase1 BranchLabel = "case1"
	// LabelCase2 is the second case output of a switch node.
	LabelCase2 BranchLabel = "case2"
)

// Known reports whether l belongs to the static label set.
func (l BranchLabel) Known() bool {
	switch l {
	case LabelNone, LabelFalse, LabelDefault, LabelCase1, LabelCase2:
		return true
	}
	return false
}

// Edge represents a connection between nodes
// PRINCIPLES:
// - KISS: Simple edge representation
// - SRP: Only responsible for edge data
type Edge struct {
	ID           string      `json:"id"`
	Source       string      `json:"source"`
	Target       string      `json:"target"`
	SourceHandle BranchLabel `json:"sourceHandle,omitempty"`
}

// Validate ensures edge integrity
func (e *Edge) Validate() error {
	if e.ID == "" {
		return ErrInvalidEdgeID
	}
	if e.Source == "" {
		return ErrInvalidSource
	}
	if e.Target == "" {
		return ErrInvalidTarget
	}
	return nil
}

// Labeled reports whether the edge carries a branch label.
func (e Edge) Labeled() bool {
	return e.SourceHandle != LabelNone
}
