package domain

import (
	"errors"
	"fmt"
)

// ErrMissingInput is returned when a referenced input table does not exist.
// It is fatal: the run stops before any artifact is written.
var ErrMissingInput = errors.New("missing input")

// ErrBatchExists is returned when a run is started with the batch id of an
// earlier run, e.g. two runs started within the same second.
var ErrBatchExists = errors.New("batch already exists")

// PersistenceError reports a failed write to a snapshot file, the relational
// store or a mirror. It is fatal for the run and never retried.
type PersistenceError struct {
	Target string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Target, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError wraps err with the name of the target being written.
func NewPersistenceError(target string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Target: target, Err: err}
}
