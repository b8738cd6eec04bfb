package usecases

import (
	"context"

	"github.com/flowcanvas/flowcanvas/internal/app/dto"
	"github.com/flowcanvas/flowcanvas/internal/core/eventlog"
	"github.com/flowcanvas/flowcanvas/internal/core/graph"
)

const streamBuffer = 64

// EventKind distinguishes stream events.
type EventKind string

const (
	EventStatus   EventKind = "status"
	EventLog      EventKind = "log"
	EventFinished EventKind = "finished"
)

// Event is one element of a RunStream.
type Event struct {
	Kind    EventKind       `json:"kind"`
	NodeID  string          `json:"nodeId,omitempty"`
	Status  graph.Status    `json:"status,omitempty"`
	Entry   *eventlog.Entry `json:"entry,omitempty"`
	Summary *dto.RunSummary `json:"summary,omitempty"`
}

// streamObserver forwards callbacks to a channel. Sends give up once done
// is closed.
type streamObserver struct {
	ch   chan<- Event
	done <-chan struct{}
}

func (s *streamObserver) send(ev Event) {
	select {
	case s.ch <- ev:
	case <-s.done:
	}
}

func (s *streamObserver) OnRunStart(context.Context, RunInfo) {}

func (s *streamObserver) OnNodeStatus(_ context.Context, _ RunInfo, node graph.Node, status graph.Status) {
	s.send(Event{Kind: EventStatus, NodeID: node.ID, Status: status})
}

func (s *streamObserver) OnLog(_ context.Context, _ RunInfo, entry eventlog.Entry) {
	s.send(Event{Kind: EventLog, NodeID: entry.NodeID, Entry: &entry})
}

func (s *streamObserver) OnRunFinished(_ context.Context, summary *dto.RunSummary) {
	s.send(Event{Kind: EventFinished, Summary: summary})
}

// Collect drains a stream into a slice.
func Collect(events <-chan Event) []Event {
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}
