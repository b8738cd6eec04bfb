// Package workspace is the editing surface over one live graph: palette
// drops, connections, deletions and drags go through it so that each
// topology edit is preceded by a history snapshot.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flowcanvas/flowcanvas/internal/app/dto"
	"github.com/flowcanvas/flowcanvas/internal/app/usecases"
	"github.com/flowcanvas/flowcanvas/internal/core/eventlog"
	"github.com/flowcanvas/flowcanvas/internal/core/graph"
	"github.com/flowcanvas/flowcanvas/internal/core/history"
	"github.com/flowcanvas/flowcanvas/internal/infrastructure/metrics"
	"github.com/flowcanvas/flowcanvas/pkg/validation"
)

// MsgNodeAdded is logged for every accepted palette drop.
const MsgNodeAdded = "Node added to canvas"

// DefaultDocumentID names the canvas until a document is loaded.
const DefaultDocumentID = usecases.DefaultWorkflowID

var (
	// ErrInvalidDrop is reported for drops with an empty or unknown type.
	ErrInvalidDrop = errors.New("invalid drop payload")
	// ErrNoFreeID is reported when the id generator only yields ids that
	// are already on the canvas.
	ErrNoFreeID = errors.New("no free id")
)

// Workspace binds the live model to its history, engine and log.
// PRINCIPLES:
// - Topology edits snapshot first, run state never does
// - Invalid edits are ignored and logged at debug level, never surfaced
// - Runs copy the topology, so edits during a run are allowed
type Workspace struct {
	mu      sync.Mutex
	model   *graph.Model
	history *history.Manager
	engine  *usecases.Engine
	log     *eventlog.Log
	ids     graph.IDGenerator
	logger  *slog.Logger
	now     func() time.Time

	docID     string
	docName   string
	createdAt time.Time
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithIDGenerator sets the generator for new node and edge ids.
func WithIDGenerator(g graph.IDGenerator) Option {
	return func(w *Workspace) {
		if g != nil {
			w.ids = g
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workspace) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithClock sets the time source for document timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Workspace) {
		if now != nil {
			w.now = now
		}
	}
}

// New creates a workspace over its collaborators. The caller builds the
// engine over the same model and log.
func New(model *graph.Model, hist *history.Manager, engine *usecases.Engine, log *eventlog.Log, opts ...Option) *Workspace {
	w := &Workspace{
		model:   model,
		history: hist,
		engine:  engine,
		log:     log,
		ids:     graph.NewSequenceIDs(0),
		logger:  slog.Default(),
		now:     time.Now,
		docID:   DefaultDocumentID,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.createdAt = w.now()
	return w
}

// DropNode adds a node from the palette. The label defaults to the
// catalogue label. Invalid payloads are ignored.
func (w *Workspace) DropNode(req dto.DropNodeRequest) (graph.Node, bool) {
	def, ok := graph.Lookup(graph.NodeType(req.Type))
	if !ok {
		w.ignored("drop", fmt.Errorf("%w: type %q", ErrInvalidDrop, req.Type))
		return graph.Node{}, false
	}
	label := req.Label
	if label == "" {
		label = def.Label
	}

	w.mu.Lock()
	taken := make(map[string]struct{})
	for _, n := range w.model.Nodes() {
		taken[n.ID] = struct{}{}
	}
	id, err := w.freeID("node", taken)
	if err != nil {
		w.mu.Unlock()
		w.ignored("drop", err)
		return graph.Node{}, false
	}
	node := graph.Node{
		ID:       id,
		Type:     def.Type,
		Position: req.Position,
		Data:     graph.NodeData{Label: label, Status: graph.StatusIdle},
	}
	w.snapshot()
	w.model.AddNode(node)
	w.mu.Unlock()

	w.log.Append(eventlog.Draft{NodeID: node.ID, NodeLabel: label, Message: MsgNodeAdded, Severity: eventlog.SeverityInfo})
	return node, true
}

// Connect adds an edge from source to target on the given branch handle.
// Unknown endpoints, unknown handles and repeated connections are ignored.
func (w *Workspace) Connect(source, target string, handle graph.BranchLabel) (graph.Edge, bool) {
	if !handle.Known() {
		w.ignored("connect", fmt.Errorf("%w: %q", graph.ErrUnknownLabel, handle))
		return graph.Edge{}, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range []string{source, target} {
		if _, ok := w.model.Node(id); !ok {
			w.ignored("connect", fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id))
			return graph.Edge{}, false
		}
	}
	for _, e := range w.model.OutgoingEdges(source) {
		if e.Target == target && e.SourceHandle == handle {
			w.ignored("connect", fmt.Errorf("edge %s already connects %s to %s", e.ID, source, target))
			return graph.Edge{}, false
		}
	}

	taken := make(map[string]struct{})
	for _, e := range w.model.Edges() {
		taken[e.ID] = struct{}{}
	}
	id, err := w.freeID("edge", taken)
	if err != nil {
		w.ignored("connect", err)
		return graph.Edge{}, false
	}
	edge := graph.Edge{ID: id, Source: source, Target: target, SourceHandle: handle}
	w.snapshot()
	w.model.AddEdge(edge)
	return edge, true
}

// DeleteNodes removes the given nodes together with every edge touching
// them. It returns the number of nodes removed.
func (w *Workspace) DeleteNodes(ids ...string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	present := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := w.model.Node(id); ok {
			present[id] = struct{}{}
		} else {
			w.ignored("delete node", fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id))
		}
	}
	if len(present) == 0 {
		return 0
	}

	w.snapshot()
	for _, e := range w.model.Edges() {
		_, src := present[e.Source]
		_, dst := present[e.Target]
		if src || dst {
			w.model.RemoveEdge(e.ID)
		}
	}
	for id := range present {
		w.model.RemoveNode(id)
	}
	return len(present)
}

// DeleteEdges removes the given edges and returns how many existed.
func (w *Workspace) DeleteEdges(ids ...string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	existing := make(map[string]struct{})
	for _, e := range w.model.Edges() {
		existing[e.ID] = struct{}{}
	}
	var remove []string
	for _, id := range ids {
		if _, ok := existing[id]; ok {
			remove = append(remove, id)
		}
	}
	if len(remove) == 0 {
		w.logger.Debug("workspace: delete edges ignored, none present", slog.Any("edge_ids", ids))
		return 0
	}

	w.snapshot()
	for _, id := range remove {
		w.model.RemoveEdge(id)
	}
	return len(remove)
}

// DragStart records the state before a drag. The drag itself moves nodes
// through MoveNode without further snapshots.
func (w *Workspace) DragStart() {
	w.mu.Lock()
	w.snapshot()
	w.mu.Unlock()
}

// MoveNode repositions a node. It reports whether the node exists.
func (w *Workspace) MoveNode(id string, pos graph.Position) bool {
	if _, ok := w.model.Node(id); !ok {
		w.ignored("move", fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id))
		return false
	}
	w.model.SetNodePosition(id, pos)
	return true
}

// Undo restores the previous topology. It reports whether anything changed.
func (w *Workspace) Undo() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	ok := w.history.Undo()
	if ok {
		metrics.HistoryOperation("undo")
	}
	return ok
}

// Redo reapplies the last undone edit. It reports whether anything changed.
func (w *Workspace) Redo() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	ok := w.history.Redo()
	if ok {
		metrics.HistoryOperation("redo")
	}
	return ok
}

func (w *Workspace) CanUndo() bool { return w.history.CanUndo() }
func (w *Workspace) CanRedo() bool { return w.history.CanRedo() }

// Run executes the current graph. See usecases.Engine.Run.
func (w *Workspace) Run(ctx context.Context) (*dto.RunSummary, error) {
	return w.engine.Run(ctx)
}

// RunStream executes the current graph and streams its events.
func (w *Workspace) RunStream(ctx context.Context) (<-chan usecases.Event, error) {
	return w.engine.RunStream(ctx)
}

// IsRunning reports whether a run is in flight.
func (w *Workspace) IsRunning() bool { return w.engine.IsRunning() }

// Graph returns copies of the current nodes and edges.
func (w *Workspace) Graph() ([]graph.Node, []graph.Edge) {
	return w.model.Snapshot()
}

// View returns the canvas read model.
func (w *Workspace) View() dto.GraphView {
	nodes, edges := w.model.Snapshot()
	return dto.GraphView{
		Nodes:   nodes,
		Edges:   edges,
		Running: w.engine.IsRunning(),
		History: dto.HistoryState{CanUndo: w.history.CanUndo(), CanRedo: w.history.CanRedo()},
	}
}

// Log returns a copy of the execution log.
func (w *Workspace) Log() []eventlog.Entry { return w.log.Entries() }

// ClearLog empties the execution log.
func (w *Workspace) ClearLog() { w.log.Clear() }

// Subscribe registers fn for every new log entry.
func (w *Workspace) Subscribe(fn eventlog.Listener) (unsubscribe func()) {
	return w.log.Subscribe(fn)
}

// Document returns the canvas as an interchange document.
func (w *Workspace) Document() *graph.Graph {
	nodes, edges := w.model.Snapshot()
	w.mu.Lock()
	defer w.mu.Unlock()
	return &graph.Graph{
		ID:        w.docID,
		Name:      w.docName,
		Nodes:     nodes,
		Edges:     edges,
		CreatedAt: w.createdAt,
		UpdatedAt: w.now(),
	}
}

// LoadDocument replaces the canvas with g after validating it. History is
// cleared and later runs are recorded under g's id.
func (w *Workspace) LoadDocument(g *graph.Graph) error {
	if err := validation.ValidateGraph(g); err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.model.Replace(g.Nodes, g.Edges)
	w.history.Clear()
	w.docID, w.docName = g.ID, g.Name
	w.createdAt = g.CreatedAt
	if w.createdAt.IsZero() {
		w.createdAt = w.now()
	}
	w.engine.SetWorkflowID(g.ID)
	w.logger.Info("workspace: document loaded",
		slog.String("workflow_id", g.ID), slog.Int("nodes", len(g.Nodes)), slog.Int("edges", len(g.Edges)))
	return nil
}

// freeID draws ids until one is not in taken. Loaded documents may
// already hold ids the generator will produce.
func (w *Workspace) freeID(prefix string, taken map[string]struct{}) (string, error) {
	for range len(taken) + 1 {
		id := w.ids.NewID(prefix)
		if _, ok := taken[id]; !ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %s ids exhausted after %d draws", ErrNoFreeID, prefix, len(taken)+1)
}

// caller holds w.mu
func (w *Workspace) snapshot() {
	w.history.TakeSnapshot()
	metrics.HistoryOperation("snapshot")
}

func (w *Workspace) ignored(op string, err error) {
	w.logger.Debug("workspace: "+op+" ignored", slog.String("error", err.Error()))
}
