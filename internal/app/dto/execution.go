package dto

import (
	"time"

	"github.com/flowcanvas/flowcanvas/internal/core/graph"
)

// RunSummary describes one finished run
type RunSummary struct {
	RunID      string        `json:"run_id"`
	WorkflowID string        `json:"workflow_id"`
	Status     RunStatus     `json:"status"`
	Steps      []StepResult  `json:"steps"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	Duration   time.Duration `json:"duration"`
	Cycle      []string      `json:"cycle,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// RunStatus is the overall outcome of a run.
type RunStatus string

const (
	// RunStatusCompleted means every visited node succeeded.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusPartial means at least one visited node failed.
	RunStatusPartial RunStatus = "partial"
	// RunStatusCycle means a branch reached a node already on its path and
	// was stopped there.
	RunStatusCycle RunStatus = "cycle_detected"
	// RunStatusHalted means the node visit budget ran out.
	RunStatusHalted RunStatus = "halted"
)

// StepResult records one node visit. A node reached through two paths
// appears twice.
type StepResult struct {
	Step      int            `json:"step"`
	NodeID    string         `json:"node_id"`
	NodeType  graph.NodeType `json:"node_type"`
	Label     string         `json:"label"`
	Status    graph.Status   `json:"status"`
	Output    string         `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	Duration  time.Duration  `json:"duration"`
}

// Executed returns the number of node visits.
func (s *RunSummary) Executed() int { return len(s.Steps) }

// Failed returns the number of failed node visits.
func (s *RunSummary) Failed() int {
	n := 0
	for _, st := range s.Steps {
		if st.Status == graph.StatusError {
			n++
		}
	}
	return n
}

// Visited reports whether nodeID was executed at least once.
func (s *RunSummary) Visited(nodeID string) bool {
	for _, st := range s.Steps {
		if st.NodeID == nodeID {
			return true
		}
	}
	return false
}

// VisitOrder returns node ids in execution order.
func (s *RunSummary) VisitOrder() []string {
	out := make([]string, 0, len(s.Steps))
	for _, st := range s.Steps {
		out = append(out, st.NodeID)
	}
	return out
}
