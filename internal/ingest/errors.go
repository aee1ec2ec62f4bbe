package ingest

import (
	"context"
	"errors"

	"docpipe/internal/ai"
	"docpipe/internal/parse"
	"docpipe/internal/store"
)

// StageError wraps a stage failure with an explicit retry decision,
// overriding the default classification.
type StageError struct {
	Err       error
	Retryable bool
}

func (e *StageError) Error() string { return e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// Transient marks an error as worth retrying (external-service
// timeouts, rate limits).
func Transient(err error) *StageError {
	return &StageError{Err: err, Retryable: true}
}

// Permanent marks an error as hopeless (malformed input); the job
// fails without retry.
func Permanent(err error) *StageError {
	return &StageError{Err: err, Retryable: false}
}

// retryable classifies a stage failure. Unparseable content, embedding
// dimension mismatches, and chunk-id collisions cannot be fixed by
// retrying; everything else is assumed to be an external-service or
// infrastructure hiccup.
func retryable(err error) bool {
	var se *StageError
	if errors.As(err, &se) {
		return se.Retryable
	}
	var statusErr *ai.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	var dimErr *ai.DimensionError
	if errors.As(err, &dimErr) {
		return false
	}
	switch {
	case errors.Is(err, parse.ErrUnsupportedFormat),
		errors.Is(err, parse.ErrNoText),
		errors.Is(err, store.ErrDuplicateChunk):
		return false
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return true
	}
	return true
}
