package flowcanvas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowcanvas/flowcanvas/internal/adapters/llm"
	"github.com/flowcanvas/flowcanvas/internal/adapters/repository/memory"
	"github.com/flowcanvas/flowcanvas/internal/adapters/repository/postgres"
	"github.com/flowcanvas/flowcanvas/internal/adapters/repository/sqlite"
	"github.com/flowcanvas/flowcanvas/internal/app/dto"
	"github.com/flowcanvas/flowcanvas/internal/app/handlers"
	"github.com/flowcanvas/flowcanvas/internal/app/services"
	"github.com/flowcanvas/flowcanvas/internal/app/usecases"
	"github.com/flowcanvas/flowcanvas/internal/app/workspace"
	"github.com/flowcanvas/flowcanvas/internal/config"
	"github.com/flowcanvas/flowcanvas/internal/core/eventlog"
	coregraph "github.com/flowcanvas/flowcanvas/internal/core/graph"
	"github.com/flowcanvas/flowcanvas/internal/core/history"
	"github.com/flowcanvas/flowcanvas/internal/core/run"
	"github.com/flowcanvas/flowcanvas/pkg/serialization"
)

// Re-export core types for convenience
type (
	Graph       = coregraph.Graph
	Node        = coregraph.Node
	NodeData    = coregraph.NodeData
	Edge        = coregraph.Edge
	NodeType    = coregraph.NodeType
	Position    = coregraph.Position
	BranchLabel = coregraph.BranchLabel
	Entry       = eventlog.Entry
	RunSummary  = dto.RunSummary
	RunRecord   = run.Record
	Event       = usecases.Event
	Config      = config.Config
)

// Runtime owns one workspace and the stores behind it.
// PRINCIPLES:
// - One live canvas per Runtime; documents move in and out through the store
// - Every collaborator is built here, packages below never construct peers
type Runtime struct {
	cfg       *config.Config
	logger    *slog.Logger
	ws        *workspace.Workspace
	text      *llm.Client
	workflows usecases.WorkflowRepository
	archive   *services.RunArchive
	closers   []func()
}

type options struct {
	logger  *slog.Logger
	sleeper handlers.Sleeper
	rand    handlers.Rand
	text    handlers.TextGenerator
	ids     coregraph.IDGenerator
}

// Option customises a Runtime.
type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithSleeper replaces the delay source of the built-in handlers.
func WithSleeper(s handlers.Sleeper) Option { return func(o *options) { o.sleeper = s } }

// WithRand replaces the random source used by switch and random-mode if nodes.
func WithRand(r handlers.Rand) Option { return func(o *options) { o.rand = r } }

// WithTextGenerator replaces the Gemini client.
func WithTextGenerator(g handlers.TextGenerator) Option { return func(o *options) { o.text = g } }

// WithIDGenerator sets the id source for dropped nodes and new edges.
func WithIDGenerator(g coregraph.IDGenerator) Option { return func(o *options) { o.ids = g } }

// NewRuntime constructs a runtime with in-memory stores, default settings
// and no simulated delays. Suitable for local usage and tests.
func NewRuntime(opts ...Option) *Runtime {
	cfg := config.Default()
	cfg.Engine.DelayScale = 0
	rt, err := New(context.Background(), cfg, opts...)
	if err != nil {
		// the memory store cannot fail to open
		panic(err)
	}
	return rt
}

// New builds a runtime from cfg, opening the configured store.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.sleeper == nil {
		o.sleeper = handlers.ScaledSleeper{Factor: cfg.Engine.DelayScale}
	}
	if o.ids == nil {
		o.ids = coregraph.UUIDs{}
	}

	rt := &Runtime{cfg: cfg, logger: o.logger}
	recorder, err := rt.openStores(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	if o.text == nil {
		rt.text = llm.NewClient(llm.Config{
			APIKey:       cfg.Gemini.APIKey,
			Model:        cfg.Gemini.Model,
			BaseURL:      cfg.Gemini.BaseURL,
			Timeout:      cfg.Gemini.Timeout,
			OfflineDelay: time.Second,
			MaxTokens:    cfg.Gemini.MaxTokens,
			Temperature:  float32(cfg.Gemini.Temperature),
		}, llm.WithLogger(o.logger), llm.WithSleep(o.sleeper.Sleep))
		o.text = rt.text
	}
	registry := handlers.NewDefaultRegistry(handlers.Deps{
		Sleeper: o.sleeper,
		Rand:    o.rand,
		Text:    o.text,
		Logger:  o.logger,
	})

	rt.archive = services.NewRunArchive(recorder,
		services.WithRetention(cfg.Store.RunRetention),
		services.WithArchiveLogger(o.logger))

	model := coregraph.NewModel(nil, nil, coregraph.WithLogger(o.logger))
	events := eventlog.New()
	engineOpts := []usecases.EngineOption{
		usecases.WithEngineConfig(usecases.EngineConfig{
			WorkflowID:    usecases.DefaultWorkflowID,
			DetectCycles:  cfg.Engine.DetectCycles,
			MaxNodeVisits: cfg.Engine.MaxNodeVisits,
		}),
		usecases.WithObservers(usecases.NewLoggingObserver(o.logger), usecases.MetricsObserver{}),
		usecases.WithArchiver(rt.archive),
		usecases.WithEngineLogger(o.logger),
	}
	if o.rand != nil {
		engineOpts = append(engineOpts, usecases.WithEdgeSelector(usecases.NewBranchResolver(o.rand, o.logger)))
	}
	engine := usecases.NewEngine(model, events, registry, engineOpts...)
	hist := history.NewManager(model,
		history.WithMaxDepth(cfg.Engine.HistoryDepth),
		history.WithLogger(o.logger))
	rt.ws = workspace.New(model, hist, engine, events,
		workspace.WithIDGenerator(o.ids),
		workspace.WithLogger(o.logger))

	o.logger.Info("flowcanvas: runtime ready",
		slog.String("store", cfg.Store.Driver),
		slog.Bool("gemini_online", rt.text != nil && rt.text.Online()),
		slog.Bool("detect_cycles", cfg.Engine.DetectCycles))
	return rt, nil
}

func (rt *Runtime) openStores(ctx context.Context) (run.Recorder, error) {
	cfg := rt.cfg.Store
	docs := serialization.DocumentSerializer(cfg.DocumentKey)
	runs := serialization.DefaultSerializer()

	switch cfg.Driver {
	case config.StoreSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		wf := sqlite.NewWorkflowStore(db, docs)
		rs := sqlite.NewRunStore(db, runs)
		if err := wf.CreateTables(ctx); err != nil {
			return nil, err
		}
		if err := rs.CreateTables(ctx); err != nil {
			return nil, err
		}
		rt.workflows = wf
		return rs, nil

	case config.StorePostgres:
		pool, err := postgres.Open(ctx, cfg.PostgresURL, postgres.PoolConfig{MaxConns: int32(cfg.PostgresMaxConns)})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		wf := postgres.NewWorkflowStore(pool, docs)
		rs := postgres.NewRunStore(pool, runs)
		if err := wf.CreateTables(ctx); err != nil {
			return nil, err
		}
		if err := rs.CreateTables(ctx); err != nil {
			return nil, err
		}
		rt.workflows = wf
		return rs, nil

	case config.StoreMemory:
		rt.workflows = memory.NewWorkflowStore(docs)
		return memory.NewRunStore(memory.RunStoreConfig{Serializer: runs}), nil
	}
	return nil, fmt.Errorf("%w: unknown store %q", config.ErrInvalidConfig, cfg.Driver)
}

// Close releases the store connections.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// Config returns the settings the runtime was built with.
func (rt *Runtime) Config() *config.Config { return rt.cfg }

// Workspace returns the live editing surface.
func (rt *Runtime) Workspace() *workspace.Workspace { return rt.ws }

// Load replaces the canvas with g.
func (rt *Runtime) Load(g *Graph) error { return rt.ws.LoadDocument(g) }

// Run executes the canvas and waits for it to finish.
func (rt *Runtime) Run(ctx context.Context) (*RunSummary, error) { return rt.ws.Run(ctx) }

// RunGraph loads g and executes it.
func (rt *Runtime) RunGraph(ctx context.Context, g *Graph) (*RunSummary, error) {
	if err := rt.Load(g); err != nil {
		return nil, err
	}
	return rt.Run(ctx)
}

// SaveWorkflow stores g without touching the canvas.
func (rt *Runtime) SaveWorkflow(ctx context.Context, g *Graph) error {
	return rt.workflows.Save(ctx, g)
}

// SaveCurrent stores the canvas under its document id and returns what was
// stored.
func (rt *Runtime) SaveCurrent(ctx context.Context) (*Graph, error) {
	doc := rt.ws.Document()
	if err := rt.workflows.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetWorkflow reads a stored document.
func (rt *Runtime) GetWorkflow(ctx context.Context, id string) (*Graph, error) {
	return rt.workflows.Get(ctx, id)
}

// OpenWorkflow reads a stored document and loads it onto the canvas.
func (rt *Runtime) OpenWorkflow(ctx context.Context, id string) (*Graph, error) {
	g, err := rt.workflows.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := rt.ws.LoadDocument(g); err != nil {
		return nil, err
	}
	return g, nil
}

// ListWorkflows returns every stored document.
func (rt *Runtime) ListWorkflows(ctx context.Context) ([]*Graph, error) {
	return rt.workflows.List(ctx)
}

// DeleteWorkflow removes a stored document.
func (rt *Runtime) DeleteWorkflow(ctx context.Context, id string) error {
	return rt.workflows.Delete(ctx, id)
}

// Runs returns archived runs of workflowID, newest first. An empty id lists
// every workflow.
func (rt *Runtime) Runs(ctx context.Context, workflowID string, limit, offset int) ([]*RunRecord, error) {
	return rt.archive.History(ctx, workflowID, limit, offset)
}

// LoadRun loads one archived run.
func (rt *Runtime) LoadRun(ctx context.Context, id string) (*RunRecord, error) {
	return rt.archive.Load(ctx, id)
}

// LatestRun returns the newest archived run of workflowID.
func (rt *Runtime) LatestRun(ctx context.Context, workflowID string) (*RunRecord, error) {
	return rt.archive.Latest(ctx, workflowID)
}

// IsNotFound reports whether err means a missing document or run.
func IsNotFound(err error) bool {
	return errors.Is(err, coregraph.ErrGraphNotFound) || errors.Is(err, run.ErrRunNotFound)
}
