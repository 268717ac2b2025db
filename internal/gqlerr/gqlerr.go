// Package gqlerr defines the error kinds shared by resolvers, the value store
// and the executor, and maps them to the `extensions.code` values clients see.
package gqlerr

import (
	"context"
	"errors"
	"fmt"
)

const (
	CodeResolution = "RESOLUTION_ERROR"
	CodeBatchShape = "BATCH_SHAPE_ERROR"
	CodeTimeout    = "TIMEOUT"
	CodeNotFound   = "NOT_FOUND"
	CodeBadRequest = "BAD_REQUEST"
)

var (
	// ErrNotFound marks a missing entity key. The executor resolves the field
	// to null without recording an error.
	ErrNotFound = errors.New("not found")

	// ErrTimeout aborts the whole query; partial results are discarded.
	ErrTimeout = errors.New("query exceeded its execution budget")
)

// ResolutionError is a single field's failed computation.
type ResolutionError struct {
	ObjectType string
	Field      string
	Err        error
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resolving %s.%s failed", e.ObjectType, e.Field)
	}
	return e.Err.Error()
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// BatchShapeError reports a batch resolver whose output length differs from
// the number of parents it was given.
type BatchShapeError struct {
	ObjectType string
	Field      string
	Want       int
	Got        int
}

func (e *BatchShapeError) Error() string {
	return fmt.Sprintf("batch resolver %s.%s returned %d results for %d parents", e.ObjectType, e.Field, e.Got, e.Want)
}

// NotFound wraps ErrNotFound with the kind and key that were looked up.
func NotFound(kind, key string) error {
	return fmt.Errorf("%s %q: %w", kind, key, ErrNotFound)
}

// IsTimeout reports whether err is ErrTimeout or a context deadline/cancel.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// Code classifies err for the response `extensions.code` entry.
func Code(err error) string {
	var shape *BatchShapeError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &shape):
		return CodeBatchShape
	case IsTimeout(err):
		return CodeTimeout
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	default:
		return CodeResolution
	}
}
