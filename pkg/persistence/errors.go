// Package persistence provides standardized error types for graph store
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard store error types that all implementations should use.
var (
	// ErrGraphNotFound indicates no graph exists for the given workflow id.
	ErrGraphNotFound = errors.New("workflow graph not found")

	// ErrCorruptGraph indicates stored graph data that no longer satisfies
	// the structural invariants.
	ErrCorruptGraph = errors.New("stored workflow graph is corrupt")
)

// StoreError wraps graph store errors with operation context.
type StoreError struct {
	Op         string // Operation being performed (e.g. "Load", "Save")
	WorkflowID string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a store error with context.
func NewStoreError(op, workflowID string, err error) *StoreError {
	return &StoreError{Op: op, WorkflowID: workflowID, Err: err}
}

// IsGraphNotFound checks if an error indicates a missing graph.
func IsGraphNotFound(err error) bool {
	return errors.Is(err, ErrGraphNotFound)
}
