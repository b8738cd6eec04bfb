package graph

import "errors"

// Errors reported by document validation and canvas edits.
var (
	// Document
	ErrInvalidGraphID = errors.New("invalid graph ID")
	ErrGraphNotFound  = errors.New("graph not found")
	ErrCyclicGraph    = errors.New("cyclic dependency detected")

	// Nodes
	ErrInvalidNodeID   = errors.New("invalid node ID")
	ErrInvalidNodeType = errors.New("invalid node type")
	ErrInvalidStatus   = errors.New("invalid node status")
	ErrNodeNotFound    = errors.New("node not found")
	ErrDuplicateNode   = errors.New("duplicate node ID")

	// Edges and branch handles
	ErrInvalidEdgeID      = errors.New("invalid edge ID")
	ErrInvalidSource      = errors.New("invalid source node")
	ErrInvalidTarget      = errors.New("invalid target node")
	ErrSourceNodeNotFound = errors.New("source node not found")
	ErrTargetNodeNotFound = errors.New("target node not found")
	ErrDuplicateEdge      = errors.New("duplicate edge ID")
	ErrUnknownLabel       = errors.New("unknown branch label")
)
