package usecases

import (
	"context"
	"log/slog"
	"time"

	"github.com/flowcanvas/flowcanvas/internal/app/dto"
	"github.com/flowcanvas/flowcanvas/internal/core/eventlog"
	"github.com/flowcanvas/flowcanvas/internal/core/graph"
	"github.com/flowcanvas/flowcanvas/internal/infrastructure/metrics"
)

// RunInfo identifies the run an observer callback belongs to.
type RunInfo struct {
	RunID      string
	WorkflowID string
	StartedAt  time.Time
}

// Observer receives callbacks from the engine. Callbacks run on the
// engine's goroutine, in order, so implementations should return quickly.
type Observer interface {
	OnRunStart(ctx context.Context, info RunInfo)
	OnNodeStatus(ctx context.Context, info RunInfo, node graph.Node, status graph.Status)
	OnLog(ctx context.Context, info RunInfo, entry eventlog.Entry)
	OnRunFinished(ctx context.Context, summary *dto.RunSummary)
}

// NoopObserver is an Observer that does nothing.
type NoopObserver struct{}

func (NoopObserver) OnRunStart(context.Context, RunInfo)                             {}
func (NoopObserver) OnNodeStatus(context.Context, RunInfo, graph.Node, graph.Status) {}
func (NoopObserver) OnLog(context.Context, RunInfo, eventlog.Entry)                  {}
func (NoopObserver) OnRunFinished(context.Context, *dto.RunSummary)                  {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver forwards events to each non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	switch len(filtered) {
	case 0:
		return NoopObserver{}
	case 1:
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnRunStart(ctx context.Context, info RunInfo) {
	for _, o := range c.observers {
		o.OnRunStart(ctx, info)
	}
}

func (c *CompositeObserver) OnNodeStatus(ctx context.Context, info RunInfo, node graph.Node, status graph.Status) {
	for _, o := range c.observers {
		o.OnNodeStatus(ctx, info, node, status)
	}
}

func (c *CompositeObserver) OnLog(ctx context.Context, info RunInfo, entry eventlog.Entry) {
	for _, o := range c.observers {
		o.OnLog(ctx, info, entry)
	}
}

func (c *CompositeObserver) OnRunFinished(ctx context.Context, summary *dto.RunSummary) {
	for _, o := range c.observers {
		o.OnRunFinished(ctx, summary)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs run lifecycle events.
// A nil logger means slog.Default().
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnRunStart(ctx context.Context, info RunInfo) {
	o.Logger.InfoContext(ctx, "run_start",
		slog.String("run_id", info.RunID),
		slog.String("workflow_id", info.WorkflowID),
	)
}

func (o *LoggingObserver) OnNodeStatus(ctx context.Context, info RunInfo, node graph.Node, status graph.Status) {
	level := slog.LevelDebug
	if status == graph.StatusError {
		level = slog.LevelWarn
	}
	o.Logger.Log(ctx, level, "node_status",
		slog.String("run_id", info.RunID),
		slog.String("node_id", node.ID),
		slog.String("node_type", string(node.Type)),
		slog.String("status", string(status)),
	)
}

func (o *LoggingObserver) OnLog(ctx context.Context, info RunInfo, entry eventlog.Entry) {
	o.Logger.DebugContext(ctx, "run_log",
		slog.String("run_id", info.RunID),
		slog.String("node_id", entry.NodeID),
		slog.String("severity", string(entry.Severity)),
		slog.String("message", entry.Message),
	)
}

func (o *LoggingObserver) OnRunFinished(ctx context.Context, summary *dto.RunSummary) {
	o.Logger.InfoContext(ctx, "run_finished",
		slog.String("run_id", summary.RunID),
		slog.String("workflow_id", summary.WorkflowID),
		slog.String("status", string(summary.Status)),
		slog.Int("executed", summary.Executed()),
		slog.Int("failed", summary.Failed()),
		slog.Duration("duration", summary.Duration),
	)
}

// MetricsObserver feeds the expvar counters in internal/infrastructure/metrics.
type MetricsObserver struct{}

func (MetricsObserver) OnRunStart(context.Context, RunInfo) { metrics.RunStarted() }

func (MetricsObserver) OnNodeStatus(_ context.Context, _ RunInfo, node graph.Node, status graph.Status) {
	if status == graph.StatusRunning {
		metrics.NodeExecuted(string(node.Type))
		return
	}
	metrics.NodeSettled(string(status))
}

func (MetricsObserver) OnLog(_ context.Context, _ RunInfo, entry eventlog.Entry) {
	metrics.LogEntry(string(entry.Severity))
}

func (MetricsObserver) OnRunFinished(_ context.Context, summary *dto.RunSummary) {
	if summary.Status == dto.RunStatusCycle {
		metrics.CycleDetected()
	}
	metrics.RunFinished(summary.Duration)
}
