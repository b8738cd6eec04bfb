package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/flowcanvas/flowcanvas/internal/app/dto"
	"github.com/flowcanvas/flowcanvas/internal/app/usecases"
)

// workloadManager re-runs the canvas on a ticker to generate metrics load.
type workloadManager struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	run    func(ctx context.Context) (*dto.RunSummary, error)
	logger *slog.Logger
}

func (m *workloadManager) start(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		http.Error(w, "run workload already running", http.StatusConflict)
		return
	}
	rate := 500 * time.Millisecond
	if v := r.URL.Query().Get("rate_ms"); v != "" {
		if d, err := time.ParseDuration(v + "ms"); err == nil && d > 0 {
			rate = d
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(ctx, rate, m.done)
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, "run workload started at %v\n", rate)
}

func (m *workloadManager) stopHandler(w http.ResponseWriter, _ *http.Request) {
	if m.stop() {
		fmt.Fprintln(w, "run workload stopped")
		return
	}
	fmt.Fprintln(w, "run workload not running")
}

// stop cancels the loop and waits for the current run to return.
func (m *workloadManager) stop() bool {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

func (m *workloadManager) loop(ctx context.Context, rate time.Duration, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(rate)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			summary, err := m.run(ctx)
			switch {
			case errors.Is(err, usecases.ErrRunInProgress):
				// a user run is active; try again next tick
			case err != nil:
				m.logger.Warn("workload: run failed", slog.String("error", err.Error()))
			default:
				m.logger.Debug("workload: run finished",
					slog.String("run_id", summary.RunID), slog.String("status", string(summary.Status)))
			}
		}
	}
}
