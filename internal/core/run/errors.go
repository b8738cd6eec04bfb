package run

import "errors"

// Domain errors - defined once, used by every store
var (
	// Record validation errors
	ErrInvalidRunID      = errors.New("invalid run ID")
	ErrInvalidWorkflowID = errors.New("invalid workflow ID")
	ErrRunNotFound       = errors.New("run not found")

	// Filter validation errors
	ErrInvalidLimit     = errors.New("limit cannot be negative")
	ErrInvalidOffset    = errors.New("offset cannot be negative")
	ErrInvalidTimeRange = errors.New("invalid time range: start is after end")

	// Persistence errors
	ErrSaveFailed   = errors.New("failed to save run")
	ErrLoadFailed   = errors.New("failed to load run")
	ErrDeleteFailed = errors.New("failed to delete run")
)
