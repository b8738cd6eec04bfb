package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/flowcanvas/flowcanvas/internal/app/dto"
	"github.com/flowcanvas/flowcanvas/internal/app/usecases"
	"github.com/flowcanvas/flowcanvas/internal/core/graph"
	"github.com/flowcanvas/flowcanvas/pkg/flowcanvas"
	"github.com/flowcanvas/flowcanvas/pkg/validation"
)

// server exposes one runtime's workspace over HTTP.
type server struct {
	rt       *flowcanvas.Runtime
	logger   *slog.Logger
	validate *validation.Middleware
	timeout  time.Duration
	workload *workloadManager
}

func newServer(rt *flowcanvas.Runtime, logger *slog.Logger) *server {
	ws := rt.Workspace()
	return &server{
		rt:       rt,
		logger:   logger,
		validate: validation.NewMiddleware(nil),
		timeout:  rt.Config().Server.RequestTimeout,
		workload: &workloadManager{run: ws.Run, logger: logger},
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintln(w, "flowcanvas server is running. See /graph, /healthz, /metrics, /debug/pprof/")
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("GET /metrics", promMetricsHandler)
	mux.Handle("/debug/", http.DefaultServeMux)

	mux.HandleFunc("GET /catalog", s.catalog)
	mux.HandleFunc("GET /graph", s.graph)
	mux.Handle("POST /nodes", s.validate.ValidateJSON(dto.DropNodeRequest{})(http.HandlerFunc(s.dropNode)))
	mux.Handle("PATCH /nodes/{id}/position", s.validate.ValidateJSON(dto.MoveNodeRequest{})(http.HandlerFunc(s.moveNode)))
	mux.HandleFunc("DELETE /nodes/{id}", s.deleteNode)
	mux.Handle("POST /edges", s.validate.ValidateJSON(dto.ConnectRequest{})(http.HandlerFunc(s.connect)))
	mux.HandleFunc("DELETE /edges/{id}", s.deleteEdge)
	mux.HandleFunc("POST /drag-start", s.dragStart)
	mux.HandleFunc("POST /undo", s.undo)
	mux.HandleFunc("POST /redo", s.redo)

	mux.HandleFunc("POST /run", s.run)
	mux.HandleFunc("GET /log", s.log)
	mux.HandleFunc("DELETE /log", s.clearLog)

	mux.HandleFunc("GET /workflows", s.listWorkflows)
	mux.HandleFunc("GET /workflows/{id}", s.getWorkflow)
	mux.Handle("PUT /workflows/{id}", s.validate.ValidateJSON(dto.SaveWorkflowRequest{})(http.HandlerFunc(s.saveWorkflow)))
	mux.HandleFunc("DELETE /workflows/{id}", s.deleteWorkflow)
	mux.HandleFunc("POST /workflows/{id}/open", s.openWorkflow)

	mux.Handle("GET /runs", s.validate.ValidateQueryParams(map[string]string{
		"workflow_id": "node_id",
		"limit":       "numeric",
		"offset":      "numeric",
	})(http.HandlerFunc(s.listRuns)))
	mux.HandleFunc("GET /runs/{id}", s.getRun)

	mux.HandleFunc("POST /workload/runs/start", s.workload.start)
	mux.HandleFunc("POST /workload/runs/stop", s.workload.stopHandler)

	return s.logRequests(mux)
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http: request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("elapsed", time.Since(start)))
	})
}

func (s *server) catalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, graph.Definitions())
}

func (s *server) graph(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.rt.Workspace().View())
}

func (s *server) dropNode(w http.ResponseWriter, r *http.Request) {
	req, _ := validation.Decoded[dto.DropNodeRequest](r)
	node, ok := s.rt.Workspace().DropNode(*req)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

func (s *server) moveNode(w http.ResponseWriter, r *http.Request) {
	req, _ := validation.Decoded[dto.MoveNodeRequest](r)
	if !s.rt.Workspace().MoveNode(r.PathValue("id"), graph.Position{X: req.X, Y: req.Y}) {
		writeMessage(w, http.StatusNotFound, "node not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) deleteNode(w http.ResponseWriter, r *http.Request) {
	n := s.rt.Workspace().DeleteNodes(r.PathValue("id"))
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (s *server) connect(w http.ResponseWriter, r *http.Request) {
	req, _ := validation.Decoded[dto.ConnectRequest](r)
	edge, ok := s.rt.Workspace().Connect(req.Source, req.Target, graph.BranchLabel(req.SourceHandle))
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, edge)
}

func (s *server) deleteEdge(w http.ResponseWriter, r *http.Request) {
	n := s.rt.Workspace().DeleteEdges(r.PathValue("id"))
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (s *server) dragStart(w http.ResponseWriter, _ *http.Request) {
	s.rt.Workspace().DragStart()
	w.WriteHeader(http.StatusNoContent)
}

type historyResponse struct {
	Changed bool `json:"changed"`
	dto.HistoryState
}

func (s *server) undo(w http.ResponseWriter, _ *http.Request) {
	ws := s.rt.Workspace()
	changed := ws.Undo()
	writeJSON(w, http.StatusOK, historyResponse{Changed: changed, HistoryState: dto.HistoryState{CanUndo: ws.CanUndo(), CanRedo: ws.CanRedo()}})
}

func (s *server) redo(w http.ResponseWriter, _ *http.Request) {
	ws := s.rt.Workspace()
	changed := ws.Redo()
	writeJSON(w, http.StatusOK, historyResponse{Changed: changed, HistoryState: dto.HistoryState{CanUndo: ws.CanUndo(), CanRedo: ws.CanRedo()}})
}

// run executes the canvas. With ?stream=true the events are written as
// newline-delimited JSON while the run progresses.
func (s *server) run(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	if stream, _ := strconv.ParseBool(r.URL.Query().Get("stream")); stream {
		s.runStream(ctx, w)
		return
	}

	summary, err := s.rt.Run(ctx)
	if errors.Is(err, usecases.ErrRunInProgress) {
		writeMessage(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *server) runStream(ctx context.Context, w http.ResponseWriter) {
	events, err := s.rt.Workspace().RunStream(ctx)
	if errors.Is(err, usecases.ErrRunInProgress) {
		writeMessage(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			s.logger.Debug("http: stream write failed", slog.String("error", err.Error()))
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *server) log(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.rt.Workspace().Log())
}

func (s *server) clearLog(w http.ResponseWriter, _ *http.Request) {
	s.rt.Workspace().ClearLog()
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	all, err := s.rt.ListWorkflows(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *server) getWorkflow(w http.ResponseWriter, r *http.Request) {
	g, err := s.rt.GetWorkflow(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// saveWorkflow stores the request body, or the current canvas when the body
// carries no nodes.
func (s *server) saveWorkflow(w http.ResponseWriter, r *http.Request) {
	req, _ := validation.Decoded[dto.SaveWorkflowRequest](r)
	id := r.PathValue("id")

	var doc *graph.Graph
	if len(req.Nodes) == 0 {
		doc = s.rt.Workspace().Document()
		doc.ID = id
		if req.Name != "" {
			doc.Name = req.Name
		}
	} else {
		doc = req.Document(id, time.Now())
	}
	if err := s.rt.SaveWorkflow(r.Context(), doc); err != nil {
		s.writeError(w, err)
		return
	}
	saved, err := s.rt.GetWorkflow(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *server) deleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.DeleteWorkflow(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) openWorkflow(w http.ResponseWriter, r *http.Request) {
	if _, err := s.rt.OpenWorkflow(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.rt.Workspace().View())
}

func (s *server) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	records, err := s.rt.Runs(r.Context(), q.Get("workflow_id"), limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *server) getRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.rt.LoadRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// writeError maps not-found to 404 and validation failures to 400.
func (s *server) writeError(w http.ResponseWriter, err error) {
	switch {
	case flowcanvas.IsNotFound(err):
		writeMessage(w, http.StatusNotFound, err.Error())
	case isValidation(err):
		if _, ok := validation.AsValidationErrors(err); ok {
			validation.WriteError(w, err)
			return
		}
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("http: request failed", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidation(err error) bool {
	if _, ok := validation.AsValidationErrors(err); ok {
		return true
	}
	for _, target := range []error{
		graph.ErrInvalidGraphID, graph.ErrDuplicateNode, graph.ErrDuplicateEdge,
		graph.ErrInvalidNodeID, graph.ErrInvalidNodeType, graph.ErrInvalidStatus,
		graph.ErrInvalidEdgeID, graph.ErrSourceNodeNotFound, graph.ErrTargetNodeNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
