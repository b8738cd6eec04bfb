// Package run provides the persisted record of a finished workflow run
// and the Recorder interface its stores implement.
package run

import (
	"time"

	"github.com/flowcanvas/flowcanvas/internal/core/eventlog"
	"github.com/flowcanvas/flowcanvas/internal/core/graph"
)

// Record is the archived outcome of one run
// PRINCIPLES:
// - KISS: Final node states and the full log, nothing intermediate
// - SRP: Only responsible for run data structure
type Record struct {
	ID         string           `json:"id"`
	WorkflowID string           `json:"workflow_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Outcomes   []NodeOutcome    `json:"outcomes"`
	Log        []eventlog.Entry `json:"log"`
	Metadata   Metadata         `json:"metadata"`
}

// NodeOutcome is the final state of one node after a run.
type NodeOutcome struct {
	NodeID string         `json:"node_id"`
	Label  string         `json:"label"`
	Type   graph.NodeType `json:"type"`
	Status graph.Status   `json:"status"`
	Result *string        `json:"result,omitempty"`
}

// Metadata contains additional information about a run
type Metadata struct {
	Trigger    string   `json:"trigger,omitempty"`
	Executed   int      `json:"executed"`
	Failed     int      `json:"failed"`
	CycleFound bool     `json:"cycle_found,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// Duration returns the wall time of the run.
func (r *Record) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Outcome returns the recorded outcome for nodeID.
func (r *Record) Outcome(nodeID string) (NodeOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.NodeID == nodeID {
			return o, true
		}
	}
	return NodeOutcome{}, false
}

// Validate ensures record integrity
func (r *Record) Validate() error {
	if r.ID == "" {
		return ErrInvalidRunID
	}
	if r.WorkflowID == "" {
		return ErrInvalidWorkflowID
	}
	if r.FinishedAt.Before(r.StartedAt) {
		return ErrInvalidTimeRange
	}
	return nil
}

// OutcomesFrom builds outcomes from the node list in node order.
func OutcomesFrom(nodes []graph.Node) []NodeOutcome {
	out := make([]NodeOutcome, 0, len(nodes))
	for _, n := range nodes {
		c := n.Clone()
		out = append(out, NodeOutcome{
			NodeID: c.ID,
			Label:  c.Data.Label,
			Type:   c.Type,
			Status: c.StatusOrIdle(),
			Result: c.Data.Result,
		})
	}
	return out
}
