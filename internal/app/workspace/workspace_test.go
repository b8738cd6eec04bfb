package workspace

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcanvas/flowcanvas/internal/adapters/llm"
	"github.com/flowcanvas/flowcanvas/internal/app/dto"
	"github.com/flowcanvas/flowcanvas/internal/app/handlers"
	"github.com/flowcanvas/flowcanvas/internal/app/usecases"
	"github.com/flowcanvas/flowcanvas/internal/core/eventlog"
	"github.com/flowcanvas/flowcanvas/internal/core/graph"
	"github.com/flowcanvas/flowcanvas/internal/core/history"
)

func newWorkspace(t *testing.T, lookup usecases.HandlerLookup) *Workspace {
	t.Helper()
	model := graph.NewModel(nil, nil)
	log := eventlog.New()
	if lookup == nil {
		lookup = handlers.NewDefaultRegistry(handlers.Deps{
			Sleeper: handlers.NoDelay,
			Rand:    handlers.RandFunc(func(int) int { return 0 }),
		})
	}
	engine := usecases.NewEngine(model, log, lookup)
	return New(model, history.NewManager(model), engine, log,
		WithClock(func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }))
}

func drop(t *testing.T, w *Workspace, typ graph.NodeType) graph.Node {
	t.Helper()
	n, ok := w.DropNode(dto.DropNodeRequest{Type: string(typ)})
	require.True(t, ok)
	return n
}

func nodeIDs(w *Workspace) []string {
	nodes, _ := w.Graph()
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestWorkspace_DropNode(t *testing.T) {
	w := newWorkspace(t, nil)

	n := drop(t, w, graph.NodeTypeGemini)
	assert.Equal(t, "node_0", n.ID)
	assert.Equal(t, "Gemini AI", n.Data.Label)
	assert.Equal(t, graph.StatusIdle, n.Data.Status)
	assert.True(t, w.CanUndo())

	entries := w.Log()
	require.Len(t, entries, 1)
	assert.Equal(t, MsgNodeAdded, entries[0].Message)
	assert.Equal(t, n.ID, entries[0].NodeID)
	assert.Equal(t, eventlog.SeverityInfo, entries[0].Severity)

	custom, ok := w.DropNode(dto.DropNodeRequest{Type: string(graph.NodeTypeDelay), Label: "Wait", Position: graph.Position{X: 10, Y: 20}})
	require.True(t, ok)
	assert.Equal(t, "Wait", custom.Data.Label)
	assert.Equal(t, graph.Position{X: 10, Y: 20}, custom.Position)
}

func TestWorkspace_DropNodeInvalidIgnored(t *testing.T) {
	w := newWorkspace(t, nil)
	for _, typ := range []string{"", "logic_loop"} {
		_, ok := w.DropNode(dto.DropNodeRequest{Type: typ})
		assert.False(t, ok, typ)
	}
	assert.Empty(t, nodeIDs(w))
	assert.Empty(t, w.Log())
	assert.False(t, w.CanUndo())
}

func TestWorkspace_Connect(t *testing.T) {
	w := newWorkspace(t, nil)
	a := drop(t, w, graph.NodeTypeIf)
	b := drop(t, w, graph.NodeTypeSlack)

	e, ok := w.Connect(a.ID, b.ID, graph.LabelFalse)
	require.True(t, ok)
	assert.Equal(t, graph.LabelFalse, e.SourceHandle)

	tests := []struct {
		name           string
		source, target string
		handle         graph.BranchLabel
	}{
		{"missing source", "ghost", b.ID, graph.LabelNone},
		{"missing target", a.ID, "ghost", graph.LabelNone},
		{"duplicate", a.ID, b.ID, graph.LabelFalse},
		{"unknown handle", a.ID, b.ID, "case9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := w.Connect(tt.source, tt.target, tt.handle)
			assert.False(t, ok)
		})
	}

	_, edges := w.Graph()
	assert.Len(t, edges, 1)

	require.True(t, w.Undo())
	_, edges = w.Graph()
	assert.Empty(t, edges)
}

func TestWorkspace_DeleteNodesRemovesDanglingEdges(t *testing.T) {
	w := newWorkspace(t, nil)
	a := drop(t, w, graph.NodeTypeTriggerManual)
	b := drop(t, w, graph.NodeTypeGemini)
	c := drop(t, w, graph.NodeTypeGoogleDocs)
	_, ok := w.Connect(a.ID, b.ID, graph.LabelNone)
	require.True(t, ok)
	_, ok = w.Connect(b.ID, c.ID, graph.LabelNone)
	require.True(t, ok)

	assert.Equal(t, 0, w.DeleteNodes("ghost"))
	assert.Equal(t, 1, w.DeleteNodes(b.ID, "ghost"))

	assert.Equal(t, []string{a.ID, c.ID}, nodeIDs(w))
	_, edges := w.Graph()
	assert.Empty(t, edges)

	require.True(t, w.Undo())
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, nodeIDs(w))
	_, edges = w.Graph()
	assert.Len(t, edges, 2)
}

func TestWorkspace_DeleteEdges(t *testing.T) {
	w := newWorkspace(t, nil)
	a := drop(t, w, graph.NodeTypeTriggerManual)
	b := drop(t, w, graph.NodeTypeTerminator)
	e, ok := w.Connect(a.ID, b.ID, graph.LabelNone)
	require.True(t, ok)

	past, _ := w.history.Depth()
	assert.Equal(t, 0, w.DeleteEdges("ghost"))
	after, _ := w.history.Depth()
	assert.Equal(t, past, after, "no-op delete must not snapshot")

	assert.Equal(t, 1, w.DeleteEdges(e.ID))
	_, edges := w.Graph()
	assert.Empty(t, edges)
}

func TestWorkspace_DragAndUndo(t *testing.T) {
	w := newWorkspace(t, nil)
	n := drop(t, w, graph.NodeTypeDelay)

	w.DragStart()
	for i := 1; i <= 5; i++ {
		require.True(t, w.MoveNode(n.ID, graph.Position{X: float64(i * 10)}))
	}
	assert.False(t, w.MoveNode("ghost", graph.Position{}))

	require.True(t, w.Undo())
	nodes, _ := w.Graph()
	require.Len(t, nodes, 1)
	assert.Equal(t, graph.Position{}, nodes[0].Position)

	require.True(t, w.Redo())
	nodes, _ = w.Graph()
	assert.Equal(t, 50.0, nodes[0].Position.X)
}

func TestWorkspace_UndoRedoSemantics(t *testing.T) {
	w := newWorkspace(t, nil)
	assert.False(t, w.Undo(), "empty undo is a no-op")
	assert.False(t, w.Redo())

	drop(t, w, graph.NodeTypeDelay)
	drop(t, w, graph.NodeTypeDelay)
	require.True(t, w.Undo())
	assert.True(t, w.CanRedo())

	drop(t, w, graph.NodeTypeSlack)
	assert.False(t, w.CanRedo(), "a new edit clears redo")
	assert.Len(t, nodeIDs(w), 2)

	view := w.View()
	assert.True(t, view.History.CanUndo)
	assert.False(t, view.History.CanRedo)
	assert.False(t, view.Running)
}

func TestWorkspace_RunDemo(t *testing.T) {
	w := newWorkspace(t, nil)
	start := drop(t, w, graph.NodeTypeTriggerManual)
	ai := drop(t, w, graph.NodeTypeGemini)
	doc := drop(t, w, graph.NodeTypeGoogleDocs)
	_, ok := w.Connect(start.ID, ai.ID, graph.LabelNone)
	require.True(t, ok)
	_, ok = w.Connect(ai.ID, doc.ID, graph.LabelNone)
	require.True(t, ok)

	summary, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dto.RunStatusCompleted, summary.Status)
	assert.Equal(t, []string{start.ID, ai.ID, doc.ID}, summary.VisitOrder())
	assert.False(t, w.IsRunning())

	nodes, _ := w.Graph()
	assert.True(t, strings.HasPrefix(nodes[1].ResultText(), llm.OfflineMarker))
	assert.Equal(t, handlers.OutputDocURL, nodes[2].ResultText())

	last := w.Log()[len(w.Log())-1]
	assert.Equal(t, usecases.MsgRunFinished, last.Message)
	assert.True(t, last.IsSystem())

	// run state is not undoable
	require.True(t, w.Undo())
	assert.Len(t, nodeIDs(w), 3)

	w.ClearLog()
	assert.Empty(t, w.Log())
}

func TestWorkspace_EditsDuringRun(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	reg := handlers.NewRegistry(handlers.HandlerFunc(func(ctx context.Context, _ graph.Node) (handlers.Result, error) {
		return handlers.Result{Output: "ok"}, nil
	}))
	reg.Register(graph.NodeTypeDelay, handlers.HandlerFunc(func(ctx context.Context, _ graph.Node) (handlers.Result, error) {
		close(entered)
		<-release
		return handlers.Result{Output: "done"}, nil
	}))

	w := newWorkspace(t, reg)
	a := drop(t, w, graph.NodeTypeDelay)

	done := make(chan *dto.RunSummary)
	go func() {
		s, _ := w.Run(context.Background())
		done <- s
	}()
	<-entered

	assert.True(t, w.IsRunning())
	_, err := w.Run(context.Background())
	assert.ErrorIs(t, err, usecases.ErrRunInProgress)

	b := drop(t, w, graph.NodeTypeSlack)
	_, ok := w.Connect(a.ID, b.ID, graph.LabelNone)
	require.True(t, ok)
	close(release)

	s := <-done
	assert.Equal(t, []string{a.ID}, s.VisitOrder(), "topology is copied at run start")
	nodes, _ := w.Graph()
	assert.Equal(t, graph.StatusIdle, nodes[1].StatusOrIdle())
}

func TestWorkspace_Documents(t *testing.T) {
	w := newWorkspace(t, nil)
	drop(t, w, graph.NodeTypeDelay)

	doc := w.Document()
	assert.Equal(t, DefaultDocumentID, doc.ID)
	assert.Len(t, doc.Nodes, 1)

	err := w.LoadDocument(&graph.Graph{ID: "bad", Nodes: []graph.Node{{ID: "x"}}})
	assert.Error(t, err)
	assert.Len(t, nodeIDs(w), 1, "rejected documents leave the canvas alone")

	loaded := &graph.Graph{
		ID:   "onboarding",
		Name: "Onboarding",
		Nodes: []graph.Node{
			{ID: "1", Type: graph.NodeTypeTriggerManual, Data: graph.NodeData{Label: "Manual Start"}},
			{ID: "2", Type: graph.NodeTypeSlack, Data: graph.NodeData{Label: "Send Slack"}},
		},
		Edges: []graph.Edge{{ID: "e1-2", Source: "1", Target: "2"}},
	}
	require.NoError(t, w.LoadDocument(loaded))
	assert.False(t, w.CanUndo())
	assert.Equal(t, []string{"1", "2"}, nodeIDs(w))

	doc = w.Document()
	assert.Equal(t, "onboarding", doc.ID)
	assert.Equal(t, "Onboarding", doc.Name)
	assert.Len(t, doc.Edges, 1)

	summary, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "onboarding", summary.WorkflowID)
}

type fixedIDs string

func (f fixedIDs) NewID(prefix string) string { return prefix + "_" + string(f) }

func TestWorkspace_GeneratedIDsSkipLoadedOnes(t *testing.T) {
	w := newWorkspace(t, nil)
	require.NoError(t, w.LoadDocument(&graph.Graph{
		ID: "imported",
		Nodes: []graph.Node{
			{ID: "node_0", Type: graph.NodeTypeTriggerManual, Data: graph.NodeData{Label: "Start"}},
			{ID: "node_1", Type: graph.NodeTypeSlack, Data: graph.NodeData{Label: "Slack"}},
		},
		Edges: []graph.Edge{{ID: "edge_3", Source: "node_0", Target: "node_1"}},
	}))
	before := len(w.Log())

	n := drop(t, w, graph.NodeTypeEmail)
	assert.Equal(t, "node_2", n.ID)
	assert.Equal(t, []string{"node_0", "node_1", "node_2"}, nodeIDs(w))
	require.Len(t, w.Log(), before+1)
	assert.Equal(t, n.ID, w.Log()[before].NodeID)

	e, ok := w.Connect("node_1", "node_2", graph.LabelNone)
	require.True(t, ok)
	assert.Equal(t, "edge_4", e.ID)
	_, edges := w.Graph()
	assert.Len(t, edges, 2)

	require.True(t, w.Undo())
	_, edges = w.Graph()
	assert.Len(t, edges, 1)
}

func TestWorkspace_DropWithoutFreeIDIgnored(t *testing.T) {
	model := graph.NewModel(nil, nil)
	log := eventlog.New()
	engine := usecases.NewEngine(model, log, handlers.NewDefaultRegistry(handlers.Deps{Sleeper: handlers.NoDelay}))
	w := New(model, history.NewManager(model), engine, log, WithIDGenerator(fixedIDs("x")))

	require.NoError(t, w.LoadDocument(&graph.Graph{
		ID:    "imported",
		Nodes: []graph.Node{{ID: "node_x", Type: graph.NodeTypeSlack, Data: graph.NodeData{Label: "Slack"}}},
	}))
	logged := len(w.Log())

	_, ok := w.DropNode(dto.DropNodeRequest{Type: string(graph.NodeTypeEmail)})
	assert.False(t, ok)
	assert.Equal(t, []string{"node_x"}, nodeIDs(w))
	assert.False(t, w.CanUndo())
	assert.Len(t, w.Log(), logged)
}

func TestWorkspace_Subscribe(t *testing.T) {
	w := newWorkspace(t, nil)
	var got []string
	unsubscribe := w.Subscribe(func(e eventlog.Entry) { got = append(got, e.Message) })
	drop(t, w, graph.NodeTypeDelay)
	unsubscribe()
	drop(t, w, graph.NodeTypeDelay)
	assert.Equal(t, []string{MsgNodeAdded}, got)
}
