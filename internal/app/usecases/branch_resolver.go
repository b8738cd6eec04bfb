package usecases

import (
	"log/slog"
	"math/rand/v2"

	"github.com/flowcanvas/flowcanvas/internal/app/handlers"
	"github.com/flowcanvas/flowcanvas/internal/core/graph"
)

// LogicMode selects the side an if node takes.
type LogicMode string

const (
	LogicTrue   LogicMode = "true"
	LogicFalse  LogicMode = "false"
	LogicRandom LogicMode = "random"
)

// BranchResolver implements EdgeSelector
// PRINCIPLES:
// - Exact label matching against a fixed label set
// - An unlabeled edge only ever stands for the default or true side
type BranchResolver struct {
	rand   handlers.Rand
	logger *slog.Logger
}

// NewBranchResolver creates a resolver. r is used for logicMode "random";
// nil means math/rand/v2.
func NewBranchResolver(r handlers.Rand, logger *slog.Logger) *BranchResolver {
	if r == nil {
		r = handlers.RandFunc(rand.IntN)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BranchResolver{rand: r, logger: logger}
}

// Select returns the subset of candidates to follow after node produced
// output. Candidate order is preserved.
func (b *BranchResolver) Select(node graph.Node, output string, candidates []graph.Edge) []graph.Edge {
	switch node.Type {
	case graph.NodeTypeSwitch:
		return b.selectSwitch(node, output, candidates)
	case graph.NodeTypeIf:
		if b.Condition(node) {
			return withLabel(candidates, graph.LabelNone)
		}
		return withLabel(candidates, graph.LabelFalse)
	default:
		return candidates
	}
}

// Condition evaluates an if node's logicMode. Missing or unknown modes
// count as true.
func (b *BranchResolver) Condition(node graph.Node) bool {
	switch ParseLogicMode(node.Data.Config["logicMode"]) {
	case LogicFalse:
		return false
	case LogicRandom:
		return b.rand.IntN(2) == 1
	default:
		return true
	}
}

func (b *BranchResolver) selectSwitch(node graph.Node, output string, candidates []graph.Edge) []graph.Edge {
	label := graph.BranchLabel(output)
	switch label {
	case graph.LabelDefault:
		var out []graph.Edge
		for _, e := range candidates {
			if e.SourceHandle == graph.LabelDefault || e.SourceHandle == graph.LabelNone {
				out = append(out, e)
			}
		}
		return out
	case graph.LabelCase1, graph.LabelCase2:
		return withLabel(candidates, label)
	default:
		b.logger.Debug("branch: switch output is not a case label",
			slog.String("node_id", node.ID), slog.String("output", output))
		return nil
	}
}

// ParseLogicMode accepts the string and boolean forms stored in node config.
func ParseLogicMode(v interface{}) LogicMode {
	switch t := v.(type) {
	case bool:
		if t {
			return LogicTrue
		}
		return LogicFalse
	case string:
		switch LogicMode(t) {
		case LogicFalse, LogicRandom:
			return LogicMode(t)
		}
	}
	return LogicTrue
}

func withLabel(edges []graph.Edge, label graph.BranchLabel) []graph.Edge {
	var out []graph.Edge
	for _, e := range edges {
		if e.SourceHandle == label {
			out = append(out, e)
		}
	}
	return out
}
