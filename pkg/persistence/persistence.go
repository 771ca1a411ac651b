// Package persistence defines the graph store contract consumed by the
// CarbonFlow core. The core never assumes a particular storage technology.
package persistence

import (
	"context"

	"github.com/carbonlens/carbonflow/pkg/models"
)

// GraphStore loads and saves workflow graphs by workflow id. Node ids are
// stable across edits and used as join keys by implementations.
type GraphStore interface {
	Load(ctx context.Context, workflowID string) (*models.WorkflowGraph, error)
	Save(ctx context.Context, workflowID string, graph *models.WorkflowGraph) error
	Delete(ctx context.Context, workflowID string) error
	List(ctx context.Context) ([]string, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
