package service

import (
	"context"
	"errors"
	"fmt"
)

// Failure kinds. Callers branch with errors.Is; ErrorKind gives the stable label.
var (
	// ErrInvalidInput wraps the specific validation error. No port has been called.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound means neither storage nor the weather source had data.
	ErrNotFound = errors.New("not found")
	// ErrTransport wraps an unexpected storage or source failure.
	ErrTransport = errors.New("transport failure")
	// ErrCancelled wraps the context error of an aborted operation.
	ErrCancelled = errors.New("cancelled")
)

// Labels returned by ErrorKind.
const (
	KindInvalidInput = "invalid_input"
	KindNotFound     = "not_found"
	KindTransport    = "transport"
	KindCancelled    = "cancelled"
	KindUnknown      = "unknown"
)

// ErrorKind maps an error from this package to a label for metrics and status mapping.
// Returns "" for nil.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrTransport):
		return KindTransport
	default:
		return KindUnknown
	}
}

func invalidInput(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

// portError classifies a failed port call. Anything caused by the caller's context
// ending is a cancellation; everything else is a transport failure.
func portError(ctx context.Context, what string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", what, ErrCancelled, err)
	}
	return fmt.Errorf("%s: %w: %w", what, ErrTransport, err)
}
