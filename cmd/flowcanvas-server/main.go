// Package main provides the flowcanvas HTTP server: the canvas API over one
// workspace, plus health, metrics and profiling endpoints.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // register /debug/pprof
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowcanvas/flowcanvas/internal/config"
	"github.com/flowcanvas/flowcanvas/pkg/flowcanvas"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("flowcanvas-server: config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := flowcanvas.New(ctx, cfg, flowcanvas.WithLogger(logger))
	if err != nil {
		logger.Error("flowcanvas-server: runtime", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rt.Close()

	srv := newServer(rt, logger)
	defer srv.workload.stop()

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("flowcanvas-server: listening", slog.String("addr", cfg.Server.Addr))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("flowcanvas-server: serve", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
