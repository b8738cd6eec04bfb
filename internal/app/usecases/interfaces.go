package usecases

import (
	"context"

	"github.com/flowcanvas/flowcanvas/internal/app/handlers"
	"github.com/flowcanvas/flowcanvas/internal/core/eventlog"
	"github.com/flowcanvas/flowcanvas/internal/core/graph"
	"github.com/flowcanvas/flowcanvas/internal/core/run"
)

// WorkflowRepository defines the interface for workflow document storage
// PRINCIPLES:
// - SRP: Only responsible for document persistence
// - DIP: Used for dependency injection
type WorkflowRepository interface {
	Save(ctx context.Context, g *graph.Graph) error
	Get(ctx context.Context, id string) (*graph.Graph, error)
	List(ctx context.Context) ([]*graph.Graph, error)
	Delete(ctx context.Context, id string) error
}

// GraphModel is the live graph the engine reads at run start and writes
// statuses and results to. graph.Model satisfies it.
type GraphModel interface {
	Snapshot() ([]graph.Node, []graph.Edge)
	Nodes() []graph.Node
	ResetStatuses() []graph.Node
	SetNodeStatus(id string, status graph.Status) []graph.Node
	SetNodeResult(id string, result string) []graph.Node
}

// EventSink receives the run's log entries. eventlog.Log satisfies it.
type EventSink interface {
	Append(d eventlog.Draft) eventlog.Entry
	Clear()
	Entries() []eventlog.Entry
}

// HandlerLookup resolves the handler for a node type, falling back to a
// default. handlers.Registry satisfies it.
type HandlerLookup interface {
	Lookup(t graph.NodeType) handlers.Handler
}

// EdgeSelector decides which outgoing edges a finished node activates.
type EdgeSelector interface {
	Select(node graph.Node, output string, candidates []graph.Edge) []graph.Edge
}

// RunArchiver stores the record of a finished run.
type RunArchiver interface {
	Archive(ctx context.Context, record *run.Record) error
}
