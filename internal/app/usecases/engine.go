package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/flowcanvas/flowcanvas/internal/app/dto"
	"github.com/flowcanvas/flowcanvas/internal/app/handlers"
	"github.com/flowcanvas/flowcanvas/internal/core/eventlog"
	"github.com/flowcanvas/flowcanvas/internal/core/graph"
	"github.com/flowcanvas/flowcanvas/internal/core/run"
	"github.com/flowcanvas/flowcanvas/internal/infrastructure/metrics"
)

var (
	// ErrRunInProgress is returned while another run is active. Callers
	// that mirror the canvas treat it as a silent no-op.
	ErrRunInProgress = errors.New("run already in progress")
	// ErrNoHandler is the failure recorded when a lookup yields nil.
	ErrNoHandler = errors.New("no handler for node type")
)

const (
	DefaultWorkflowID    = "default"
	DefaultMaxNodeVisits = 10000
)

// Messages the engine writes under the system node.
const (
	MsgRunStarted  = "Starting workflow execution..."
	MsgRunFinished = "Workflow execution finished."
	MsgNoStartNode = "No starting trigger found: every node has an incoming edge (cycle present). Starting from the first node."
)

// EngineConfig holds the run policy.
type EngineConfig struct {
	WorkflowID string
	// DetectCycles stops any branch that would re-enter a node on its own
	// path. Cycles the traversal never takes are left alone.
	DetectCycles bool
	// MaxNodeVisits stops a run after this many node executions. Zero
	// disables the limit.
	MaxNodeVisits int
}

// DefaultEngineConfig returns cycle detection on and the default budget.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		WorkflowID:    DefaultWorkflowID,
		DetectCycles:  true,
		MaxNodeVisits: DefaultMaxNodeVisits,
	}
}

// Engine executes the live graph
// PRINCIPLES:
// - One run at a time; a second Run while running is a no-op
// - Sequential depth-first traversal, one node executing at a time
// - A failing node stops its own branch only
// - Topology is copied at run start; status and result writes go to the live model
type Engine struct {
	model    GraphModel
	events   EventSink
	handlers HandlerLookup
	branches EdgeSelector
	observer Observer
	archiver RunArchiver
	logger   *slog.Logger
	now      func() time.Time
	newRunID func() string

	mu      sync.RWMutex
	cfg     EngineConfig
	running atomic.Bool
	// runMu is held for a whole run body, so a run admitted right after
	// running clears waits until the previous finished entry is written.
	runMu sync.Mutex
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineConfig replaces the run policy.
func WithEngineConfig(cfg EngineConfig) EngineOption {
	return func(e *Engine) {
		if cfg.WorkflowID == "" {
			cfg.WorkflowID = DefaultWorkflowID
		}
		e.cfg = cfg
	}
}

// WithObservers adds run observers.
func WithObservers(obs ...Observer) EngineOption {
	return func(e *Engine) {
		e.observer = NewCompositeObserver(append([]Observer{e.observer}, obs...)...)
	}
}

// WithArchiver stores a run.Record after every run.
func WithArchiver(a RunArchiver) EngineOption {
	return func(e *Engine) { e.archiver = a }
}

// WithEdgeSelector replaces the branch resolver.
func WithEdgeSelector(s EdgeSelector) EngineOption {
	return func(e *Engine) {
		if s != nil {
			e.branches = s
		}
	}
}

// WithEngineLogger sets the logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source for run timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRunIDs overrides run id generation.
func WithRunIDs(fn func() string) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.newRunID = fn
		}
	}
}

// NewEngine creates an engine over the live model, log and handler table.
func NewEngine(model GraphModel, events EventSink, lookup HandlerLookup, opts ...EngineOption) *Engine {
	e := &Engine{
		model:    model,
		events:   events,
		handlers: lookup,
		observer: NoopObserver{},
		logger:   slog.Default(),
		now:      time.Now,
		newRunID: uuid.NewString,
		cfg:      DefaultEngineConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.branches == nil {
		e.branches = NewBranchResolver(nil, e.logger)
	}
	return e
}

// IsRunning reports whether a run is in flight.
func (e *Engine) IsRunning() bool { return e.running.Load() }

// Config returns the current run policy.
func (e *Engine) Config() EngineConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// SetWorkflowID changes the id recorded for subsequent runs.
func (e *Engine) SetWorkflowID(id string) {
	if id == "" {
		id = DefaultWorkflowID
	}
	e.mu.Lock()
	e.cfg.WorkflowID = id
	e.mu.Unlock()
}

// Run executes the graph and blocks until every reachable node settled.
// It returns ErrRunInProgress without side effects if a run is active.
func (e *Engine) Run(ctx context.Context) (*dto.RunSummary, error) {
	if !e.running.CompareAndSwap(false, true) {
		e.reject()
		return nil, ErrRunInProgress
	}
	return e.execute(ctx, e.observer), nil
}

// RunStream starts a run in the background and returns its events in
// order. The channel closes after the finished event. The caller must
// drain the channel or cancel ctx.
func (e *Engine) RunStream(ctx context.Context) (<-chan Event, error) {
	if !e.running.CompareAndSwap(false, true) {
		e.reject()
		return nil, ErrRunInProgress
	}
	ch := make(chan Event, streamBuffer)
	obs := NewCompositeObserver(e.observer, &streamObserver{ch: ch, done: ctx.Done()})
	go func() {
		defer close(ch)
		e.execute(ctx, obs)
	}()
	return ch, nil
}

func (e *Engine) reject() {
	metrics.RunRejected()
	e.logger.Debug("engine: run ignored, already running")
}

func (e *Engine) execute(ctx context.Context, obs Observer) *dto.RunSummary {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	cleared := false
	defer func() {
		if !cleared {
			e.running.Store(false)
		}
	}()

	cfg := e.Config()
	r := &runState{
		engine: e,
		ctx:    ctx,
		obs:    obs,
		cfg:    cfg,
		info:   RunInfo{RunID: e.newRunID(), WorkflowID: cfg.WorkflowID, StartedAt: e.now()},
	}
	summary := &dto.RunSummary{
		RunID:      r.info.RunID,
		WorkflowID: r.info.WorkflowID,
		StartTime:  r.info.StartedAt,
	}

	e.events.Clear()
	e.model.ResetStatuses()
	obs.OnRunStart(ctx, r.info)
	r.log(eventlog.System(MsgRunStarted, eventlog.SeverityInfo))

	nodes, edges := e.model.Snapshot()
	r.index(nodes, edges)

	starts := graph.StartNodes(nodes, edges)
	if len(starts) == 0 && len(nodes) > 0 {
		r.log(eventlog.System(MsgNoStartNode, eventlog.SeverityWarning))
		starts = nodes[:1]
	}
	for _, n := range starts {
		r.process(n, nil)
	}

	summary.Steps = r.steps
	summary.Cycle = r.cycle
	switch {
	case r.cycle != nil:
		summary.Status = dto.RunStatusCycle
		summary.Error = graph.ErrCyclicGraph.Error()
	case r.halted:
		summary.Status = dto.RunStatusHalted
		summary.Error = fmt.Sprintf("node visit limit of %d reached", cfg.MaxNodeVisits)
	case summary.Failed() > 0:
		summary.Status = dto.RunStatusPartial
	default:
		summary.Status = dto.RunStatusCompleted
	}
	summary.EndTime = e.now()
	summary.Duration = summary.EndTime.Sub(summary.StartTime)

	// Capture the record while this run still owns the model and the log.
	outcomes, entries := run.OutcomesFrom(e.model.Nodes()), e.events.Entries()
	e.running.Store(false)
	cleared = true
	finished := r.log(eventlog.System(MsgRunFinished, eventlog.SeveritySuccess))

	e.archive(ctx, summary, outcomes, append(entries, finished))
	obs.OnRunFinished(ctx, summary)
	return summary
}

func (e *Engine) archive(ctx context.Context, summary *dto.RunSummary, outcomes []run.NodeOutcome, entries []eventlog.Entry) {
	if e.archiver == nil {
		return
	}
	rec := &run.Record{
		ID:         summary.RunID,
		WorkflowID: summary.WorkflowID,
		StartedAt:  summary.StartTime,
		FinishedAt: summary.EndTime,
		Outcomes:   outcomes,
		Log:        entries,
		Metadata: run.Metadata{
			Trigger:    "manual",
			Executed:   summary.Executed(),
			Failed:     summary.Failed(),
			CycleFound: summary.Status == dto.RunStatusCycle,
		},
	}
	// The run itself never fails on archive errors.
	if err := e.archiver.Archive(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.Warn("engine: archive run failed", slog.String("run_id", rec.ID), slog.Any("error", err))
	}
}

// runState is the per-run traversal state.
type runState struct {
	engine *Engine
	ctx    context.Context
	obs    Observer
	cfg    EngineConfig
	info   RunInfo

	nodes  map[string]graph.Node
	edges  []graph.Edge
	steps  []dto.StepResult
	visits int
	halted bool
	// cycle is the first loop the traversal entered, closing id included.
	cycle []string
}

func (r *runState) index(nodes []graph.Node, edges []graph.Edge) {
	r.nodes = make(map[string]graph.Node, len(nodes))
	for _, n := range nodes {
		r.nodes[n.ID] = n
	}
	r.edges = edges
}

func (r *runState) log(d eventlog.Draft) eventlog.Entry {
	entry := r.engine.events.Append(d)
	r.obs.OnLog(r.ctx, r.info, entry)
	return entry
}

func (r *runState) setStatus(node graph.Node, status graph.Status) {
	r.engine.model.SetNodeStatus(node.ID, status)
	r.obs.OnNodeStatus(r.ctx, r.info, node, status)
}

// process runs node and then, depth-first, every target the branch
// resolver selects. There is no visited set: a node reached by two paths
// runs twice. path holds the ids of the current recursion stack; with
// cycle detection on, an edge back into it is reported and not followed.
func (r *runState) process(node graph.Node, path []string) {
	if r.halted {
		return
	}
	r.visits++
	if r.cfg.MaxNodeVisits > 0 && r.visits > r.cfg.MaxNodeVisits {
		r.halted = true
		r.log(eventlog.System(
			fmt.Sprintf("Execution halted: node visit limit of %d reached.", r.cfg.MaxNodeVisits),
			eventlog.SeverityError))
		return
	}

	e := r.engine
	step := dto.StepResult{
		Step:      len(r.steps) + 1,
		NodeID:    node.ID,
		NodeType:  node.Type,
		Label:     node.Data.Label,
		StartTime: e.now(),
	}
	r.steps = append(r.steps, step)
	idx := len(r.steps) - 1

	r.setStatus(node, graph.StatusRunning)
	res, err := r.execute(e.handlers.Lookup(node.Type), node)

	r.steps[idx].EndTime = e.now()
	r.steps[idx].Duration = r.steps[idx].EndTime.Sub(step.StartTime)

	if err != nil {
		r.steps[idx].Status = graph.StatusError
		r.steps[idx].Error = err.Error()
		r.setStatus(node, graph.StatusError)
		r.log(eventlog.Draft{
			NodeID:    node.ID,
			NodeLabel: node.Data.Label,
			Message:   "Error: " + err.Error(),
			Severity:  eventlog.SeverityError,
		})
		return
	}

	for _, l := range res.Logs {
		r.log(eventlog.Draft{NodeID: node.ID, NodeLabel: node.Data.Label, Message: l.Message, Severity: l.Severity})
	}
	r.steps[idx].Status = graph.StatusSuccess
	r.steps[idx].Output = res.Output
	e.model.SetNodeResult(node.ID, res.Output)
	r.setStatus(node, graph.StatusSuccess)

	path = append(path[:len(path):len(path)], node.ID)
	for _, edge := range e.branches.Select(node, res.Output, graph.Outgoing(r.edges, node.ID)) {
		target, ok := r.nodes[edge.Target]
		if !ok {
			continue
		}
		if r.cfg.DetectCycles {
			if i := slices.Index(path, target.ID); i >= 0 {
				r.enteredCycle(append(slices.Clone(path[i:]), target.ID))
				continue
			}
		}
		r.process(target, path)
	}
}

func (r *runState) enteredCycle(loop []string) {
	if r.cycle == nil {
		r.cycle = loop
	}
	r.log(eventlog.System(
		fmt.Sprintf("Cycle detected: %s. Branch stopped.", strings.Join(loop, " -> ")),
		eventlog.SeverityError))
}

func (r *runState) execute(h handlers.Handler, node graph.Node) (res handlers.Result, err error) {
	if h == nil {
		return handlers.Result{}, fmt.Errorf("%w: %s", ErrNoHandler, node.Type)
	}
	defer func() {
		if p := recover(); p != nil {
			r.engine.logger.Error("engine: handler panic",
				slog.String("node_id", node.ID), slog.Any("panic", p))
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h.Execute(r.ctx, node.Clone())
}
