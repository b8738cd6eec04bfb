// Package handlers provides the per-node-type action table consulted by the
// execution engine. Every built-in simulates its integration: it waits a
// fixed delay and returns canned output. The ai_gemini handler is the one
// real call, through a TextGenerator.
package handlers

import (
	"context"
	"errors"

	"github.com/flowcanvas/flowcanvas/internal/core/eventlog"
	"github.com/flowcanvas/flowcanvas/internal/core/graph"
)

var (
	// ErrSimulatedFailure is returned for nodes configured with "fail".
	ErrSimulatedFailure = errors.New("simulated failure")
	// ErrInvalidConfig wraps config decode and validation failures.
	ErrInvalidConfig = errors.New("invalid node config")
)

// Handler performs the action for one node type
// PRINCIPLES:
// - OCP: New node types register a Handler; the engine never changes
// - SRP: A handler produces output and log lines, nothing else
type Handler interface {
	Execute(ctx context.Context, node graph.Node) (Result, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, node graph.Node) (Result, error)

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context, node graph.Node) (Result, error) {
	return f(ctx, node)
}

// Result is what a successful handler hands back to the engine.
type Result struct {
	Output string
	Logs   []LogDraft
}

// LogDraft is a log line attributed to the executing node.
type LogDraft struct {
	Message  string
	Severity eventlog.Severity
}

func success(output string, messages ...string) Result {
	r := Result{Output: output}
	for _, m := range messages {
		r.Logs = append(r.Logs, LogDraft{Message: m, Severity: eventlog.SeveritySuccess})
	}
	return r
}
