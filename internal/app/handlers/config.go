package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flowcanvas/flowcanvas/internal/core/graph"
	"github.com/flowcanvas/flowcanvas/pkg/validation"
)

// decodeConfig copies node config into dst through JSON and validates the
// result. A nil config decodes to dst's zero value.
func decodeConfig(node graph.Node, dst interface{}) error {
	if len(node.Data.Config) > 0 {
		raw, err := json.Marshal(node.Data.Config)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if err := validation.ValidateStruct(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// InjectFailures wraps h so that config "fail" short-circuits execution.
// true fails with ErrSimulatedFailure; a non-empty string fails with that
// message.
func InjectFailures(h Handler) Handler {
	if h == nil {
		return nil
	}
	return HandlerFunc(func(ctx context.Context, node graph.Node) (Result, error) {
		switch v := node.Data.Config["fail"].(type) {
		case bool:
			if v {
				return Result{}, ErrSimulatedFailure
			}
		case string:
			if v != "" {
				return Result{}, errors.New(v)
			}
		}
		return h.Execute(ctx, node)
	})
}
