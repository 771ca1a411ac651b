// Package flow applies CarbonFlow actions to workflow graphs and aggregates
// footprints.
package flow

import (
	"errors"
	"fmt"

	"github.com/carbonlens/carbonflow/pkg/models"
)

// Structural errors abort the single action with the graph left unchanged.
var (
	// Validation errors: the caller's bug, not retried.
	ErrUnknownNodeType    = errors.New("unrecognized node type")
	ErrUnknownLayout      = errors.New("unrecognized layout type")
	ErrUnknownAggregation = errors.New("unrecognized aggregation mode")
	ErrSelfConnection     = errors.New("source and target must differ")
	ErrNegativeQuantity   = errors.New("quantity must not be negative")

	// Not-found errors: the caller should refresh its view of the graph.
	ErrNodeNotFound = errors.New("node not found")
)

// ActionError wraps a failed action with its operation and target ids.
type ActionError struct {
	Op         models.Operation
	WorkflowID string
	NodeID     string
	Err        error
}

func (e *ActionError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s failed for node %s in workflow %s: %v", e.Op, e.NodeID, e.WorkflowID, e.Err)
	}

	return fmt.Sprintf("%s failed in workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

func (e *ActionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidation checks if an error is a validation error (malformed or
// out-of-range action input).
func IsValidation(err error) bool {
	return errors.Is(err, models.ErrMalformedAction) ||
		errors.Is(err, ErrUnknownNodeType) ||
		errors.Is(err, ErrUnknownLayout) ||
		errors.Is(err, ErrUnknownAggregation) ||
		errors.Is(err, ErrSelfConnection) ||
		errors.Is(err, ErrNegativeQuantity)
}

// IsNotFound checks if an error indicates a referenced node was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}
