package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flowcanvas/flowcanvas/internal/core/run"
	"github.com/flowcanvas/flowcanvas/internal/infrastructure/metrics"
)

// DefaultListLimit caps History when the caller passes no limit.
const DefaultListLimit = 100

// RunArchive stores finished runs and answers history queries
// PRINCIPLES:
// - SRP: Manages run record persistence for the engine
// - DIP: Depends on run.Recorder abstraction
type RunArchive struct {
	recorder  run.Recorder
	retention int
	logger    *slog.Logger
}

// ArchiveOption configures a RunArchive.
type ArchiveOption func(*RunArchive)

// WithRetention keeps at most n records per workflow; older ones are
// deleted after each Archive. Zero keeps everything.
func WithRetention(n int) ArchiveOption {
	return func(a *RunArchive) {
		if n >= 0 {
			a.retention = n
		}
	}
}

// WithArchiveLogger sets the logger.
func WithArchiveLogger(l *slog.Logger) ArchiveOption {
	return func(a *RunArchive) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewRunArchive creates an archive over recorder
func NewRunArchive(recorder run.Recorder, opts ...ArchiveOption) *RunArchive {
	a := &RunArchive{
		recorder: recorder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Archive validates and saves record, then applies retention.
func (a *RunArchive) Archive(ctx context.Context, record *run.Record) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("archive run: %w", err)
	}
	if err := a.recorder.Save(ctx, record); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	metrics.StoreOperation("run_save")

	if a.retention > 0 {
		if err := a.prune(ctx, record.WorkflowID); err != nil {
			a.logger.Warn("archive: prune failed",
				slog.String("workflow_id", record.WorkflowID), slog.Any("error", err))
		}
	}
	return nil
}

// Load returns one run record.
func (a *RunArchive) Load(ctx context.Context, runID string) (*run.Record, error) {
	rec, err := a.recorder.Load(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	metrics.StoreOperation("run_load")
	return rec, nil
}

// History returns the newest runs of a workflow. An empty workflowID
// lists every workflow.
func (a *RunArchive) History(ctx context.Context, workflowID string, limit, offset int) ([]*run.Record, error) {
	if limit == 0 {
		limit = DefaultListLimit
	}
	filter := run.Filter{WorkflowID: workflowID, Limit: limit, Offset: offset}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	records, err := a.recorder.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	metrics.StoreOperation("run_list")
	return records, nil
}

// Latest returns the most recent run of a workflow.
func (a *RunArchive) Latest(ctx context.Context, workflowID string) (*run.Record, error) {
	records, err := a.History(ctx, workflowID, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, run.ErrRunNotFound
	}
	return records[0], nil
}

func (a *RunArchive) prune(ctx context.Context, workflowID string) error {
	stale, err := a.recorder.List(ctx, run.Filter{WorkflowID: workflowID, Offset: a.retention})
	if err != nil {
		return err
	}
	for _, rec := range stale {
		if err := a.recorder.Delete(ctx, rec.ID); err != nil {
			return err
		}
		metrics.StoreOperation("run_prune")
	}
	return nil
}
