package analytics

import (
	"errors"
	"fmt"
)

// ErrModelNotTrained is returned by forecast operations before a model
// has been trained or loaded.
var ErrModelNotTrained = errors.New("model not trained: call Train or load a saved model first")

// InsufficientDataError reports that an operation needs more expense
// records than the caller supplied.
type InsufficientDataError struct {
	Current  int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need at least %d records, got %d", e.Required, e.Current)
}

// ModelLoadError wraps a failure to read or decode a saved model artifact.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// ValidationError reports an invalid input record or parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ComputationError reports a numeric failure inside an analytics routine.
// The computation that produced it is named so callers can tell which
// report section degraded.
type ComputationError struct {
	Op  string
	Err error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }
