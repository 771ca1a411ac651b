// Package services implements the application services over the CarbonFlow
// core: per-workflow action serialization, persistence, and notification.
package services

import (
	"errors"

	"github.com/carbonlens/carbonflow/pkg/flow"
	"github.com/carbonlens/carbonflow/pkg/matcher"
	"github.com/carbonlens/carbonflow/pkg/persistence"
)

var (
	// ErrWorkflowNotFound is returned when no graph exists for a workflow id.
	ErrWorkflowNotFound = persistence.ErrGraphNotFound
)

// IsValidationError checks if an error is caused by malformed or
// out-of-range action input (HTTP 400).
func IsValidationError(err error) bool {
	return flow.IsValidation(err)
}

// IsNotFoundError checks if an error refers to an absent workflow or node
// (HTTP 404).
func IsNotFoundError(err error) bool {
	return flow.IsNotFound(err) || persistence.IsGraphNotFound(err)
}

// IsMatcherUnavailable checks if an error came from the factor-match API
// being unreachable. Recoverable: the caller may retry the whole action.
func IsMatcherUnavailable(err error) bool {
	return errors.Is(err, matcher.ErrMatcherUnavailable)
}
