package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcanvas/flowcanvas/internal/app/dto"
	"github.com/flowcanvas/flowcanvas/internal/app/usecases"
	"github.com/flowcanvas/flowcanvas/internal/core/eventlog"
	"github.com/flowcanvas/flowcanvas/internal/core/graph"
	"github.com/flowcanvas/flowcanvas/internal/core/run"
	"github.com/flowcanvas/flowcanvas/pkg/flowcanvas"
)

type cannedText string

func (c cannedText) Generate(context.Context, string) string { return string(c) }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt := flowcanvas.NewRuntime(
		flowcanvas.WithLogger(logger),
		flowcanvas.WithTextGenerator(cannedText("generated")),
		flowcanvas.WithIDGenerator(graph.NewSequenceIDs(1)),
	)
	srv := newServer(rt, logger)
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(func() {
		srv.workload.stop()
		ts.Close()
		rt.Close()
	})
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// buildDemo drops Manual Start -> Gemini AI -> Create Doc through the API.
func buildDemo(t *testing.T, ts *httptest.Server) []graph.Node {
	t.Helper()
	var nodes []graph.Node
	for _, typ := range []graph.NodeType{graph.NodeTypeTriggerManual, graph.NodeTypeGemini, graph.NodeTypeGoogleDocs} {
		resp := do(t, ts, http.MethodPost, "/nodes", `{"type":"`+string(typ)+`","position":{"x":1,"y":2}}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		nodes = append(nodes, decode[graph.Node](t, resp))
	}
	for i := 0; i+1 < len(nodes); i++ {
		resp := do(t, ts, http.MethodPost, "/edges", `{"source":"`+nodes[i].ID+`","target":"`+nodes[i+1].ID+`"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	return nodes
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, ts, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))

	resp = do(t, ts, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, ts, http.MethodGet, "/catalog", "")
	defs := decode[[]graph.Definition](t, resp)
	assert.Len(t, defs, len(graph.Definitions()))
}

func TestServer_EditAndRun(t *testing.T) {
	ts := newTestServer(t)
	nodes := buildDemo(t, ts)
	assert.Equal(t, "Manual Start", nodes[0].Data.Label)

	view := decode[dto.GraphView](t, do(t, ts, http.MethodGet, "/graph", ""))
	assert.Len(t, view.Nodes, 3)
	assert.Len(t, view.Edges, 2)
	assert.True(t, view.History.CanUndo)

	resp := do(t, ts, http.MethodPost, "/run", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[dto.RunSummary](t, resp)
	assert.Equal(t, dto.RunStatusCompleted, summary.Status)
	assert.Equal(t, 3, summary.Executed())

	entries := decode[[]eventlog.Entry](t, do(t, ts, http.MethodGet, "/log", ""))
	require.NotEmpty(t, entries)
	assert.Equal(t, usecases.MsgRunFinished, entries[len(entries)-1].Message)
	assert.Equal(t, eventlog.SystemNodeID, entries[len(entries)-1].NodeID)

	view = decode[dto.GraphView](t, do(t, ts, http.MethodGet, "/graph", ""))
	assert.Equal(t, "generated", view.Nodes[1].ResultText())
	assert.Equal(t, graph.StatusSuccess, view.Nodes[2].Data.Status)

	resp = do(t, ts, http.MethodDelete, "/log", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, decode[[]eventlog.Entry](t, do(t, ts, http.MethodGet, "/log", "")))
}

func TestServer_History(t *testing.T) {
	ts := newTestServer(t)
	nodes := buildDemo(t, ts)

	deleted := decode[map[string]int](t, do(t, ts, http.MethodDelete, "/nodes/"+nodes[1].ID, ""))
	assert.Equal(t, 1, deleted["deleted"])
	view := decode[dto.GraphView](t, do(t, ts, http.MethodGet, "/graph", ""))
	assert.Len(t, view.Nodes, 2)
	assert.Empty(t, view.Edges)

	undo := decode[historyResponse](t, do(t, ts, http.MethodPost, "/undo", ""))
	assert.True(t, undo.Changed)
	assert.True(t, undo.CanRedo)
	view = decode[dto.GraphView](t, do(t, ts, http.MethodGet, "/graph", ""))
	assert.Len(t, view.Nodes, 3)
	assert.Len(t, view.Edges, 2)

	redo := decode[historyResponse](t, do(t, ts, http.MethodPost, "/redo", ""))
	assert.True(t, redo.Changed)
	assert.False(t, redo.CanRedo)

	redo = decode[historyResponse](t, do(t, ts, http.MethodPost, "/redo", ""))
	assert.False(t, redo.Changed)

	resp := do(t, ts, http.MethodPost, "/drag-start", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, ts, http.MethodPatch, "/nodes/"+nodes[0].ID+"/position", `{"x":300,"y":40}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, ts, http.MethodPatch, "/nodes/ghost/position", `{"x":1,"y":1}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	undo = decode[historyResponse](t, do(t, ts, http.MethodPost, "/undo", ""))
	require.True(t, undo.Changed)
	view = decode[dto.GraphView](t, do(t, ts, http.MethodGet, "/graph", ""))
	assert.Equal(t, graph.Position{X: 1, Y: 2}, view.Nodes[0].Position)
}

func TestServer_RejectsInvalidPayloads(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name, method, path, body string
	}{
		{"unknown node type", http.MethodPost, "/nodes", `{"type":"logic_loop"}`},
		{"missing node type", http.MethodPost, "/nodes", `{}`},
		{"bad json", http.MethodPost, "/nodes", `{`},
		{"bad handle", http.MethodPost, "/edges", `{"source":"a","target":"b","sourceHandle":"case7"}`},
		{"bad runs limit", http.MethodGet, "/runs?limit=ten", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, ts, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	// well-formed but unknown endpoints are ignored
	resp := do(t, ts, http.MethodPost, "/edges", `{"source":"a","target":"b"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestServer_Workflows(t *testing.T) {
	ts := newTestServer(t)
	buildDemo(t, ts)

	resp := do(t, ts, http.MethodPut, "/workflows/onboarding", `{"name":"Onboarding"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := decode[graph.Graph](t, resp)
	assert.Equal(t, "onboarding", saved.ID)
	assert.Equal(t, "Onboarding", saved.Name)
	assert.Len(t, saved.Nodes, 3)

	body := `{"name":"Bad","nodes":[{"id":"a","type":"logic_delay","data":{"label":"A"}}],"edges":[{"id":"e","source":"a","target":"zzz"}]}`
	resp = do(t, ts, http.MethodPut, "/workflows/bad", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body = `{"name":"Tiny","nodes":[{"id":"a","type":"logic_delay","data":{"label":"A"}}]}`
	resp = do(t, ts, http.MethodPut, "/workflows/tiny", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := decode[[]graph.Graph](t, do(t, ts, http.MethodGet, "/workflows", ""))
	assert.Len(t, list, 2)

	resp = do(t, ts, http.MethodGet, "/workflows/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	view := decode[dto.GraphView](t, do(t, ts, http.MethodPost, "/workflows/tiny/open", ""))
	require.Len(t, view.Nodes, 1)
	assert.False(t, view.History.CanUndo)

	resp = do(t, ts, http.MethodDelete, "/workflows/tiny", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, ts, http.MethodPost, "/workflows/tiny/open", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Runs(t *testing.T) {
	ts := newTestServer(t)
	buildDemo(t, ts)

	first := decode[dto.RunSummary](t, do(t, ts, http.MethodPost, "/run", ""))
	second := decode[dto.RunSummary](t, do(t, ts, http.MethodPost, "/run", ""))

	records := decode[[]run.Record](t, do(t, ts, http.MethodGet, "/runs?workflow_id=default&limit=10", ""))
	require.Len(t, records, 2)
	assert.ElementsMatch(t, []string{first.RunID, second.RunID}, []string{records[0].ID, records[1].ID})

	rec := decode[run.Record](t, do(t, ts, http.MethodGet, "/runs/"+first.RunID, ""))
	assert.Equal(t, first.RunID, rec.ID)
	assert.NotEmpty(t, rec.Outcomes)

	resp := do(t, ts, http.MethodGet, "/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_RunStream(t *testing.T) {
	ts := newTestServer(t)
	buildDemo(t, ts)

	resp := do(t, ts, http.MethodPost, "/run?stream=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	var events []usecases.Event
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		var ev usecases.Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		events = append(events, ev)
	}
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, usecases.EventFinished, last.Kind)
	require.NotNil(t, last.Summary)
	assert.Equal(t, dto.RunStatusCompleted, last.Summary.Status)
}

func TestServer_Metrics(t *testing.T) {
	ts := newTestServer(t)
	buildDemo(t, ts)
	do(t, ts, http.MethodPost, "/run", "")

	resp := do(t, ts, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	out := string(body)
	assert.Contains(t, out, "# TYPE flowcanvas_runs_total counter")
	assert.Contains(t, out, `flowcanvas_node_executions_total{type="ai_gemini"}`)
	assert.Contains(t, out, `flowcanvas_history_operations_total{op="snapshot"}`)
}

func TestServer_Workload(t *testing.T) {
	ts := newTestServer(t)
	buildDemo(t, ts)

	resp := do(t, ts, http.MethodPost, "/workload/runs/start?rate_ms=5", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp = do(t, ts, http.MethodPost, "/workload/runs/start", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, ts, http.MethodPost, "/workload/runs/stop", "")
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "stopped")
	resp = do(t, ts, http.MethodPost, "/workload/runs/stop", "")
	body, _ = io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "not running")
}

func TestEscapeLabel(t *testing.T) {
	assert.Equal(t, `a\"b\\c\nd`, escapeLabel("a\"b\\c\nd"))
	assert.Equal(t, "one line", sanitizeHelp("one\nline"))
}
