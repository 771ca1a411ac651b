// Package web provides the HTTP API over the CarbonFlow engine.
package web

import (
	"github.com/carbonlens/carbonflow/pkg/flow"
	"github.com/carbonlens/carbonflow/pkg/models"
)

// ApplyActionResponse is returned after an action was applied.
type ApplyActionResponse struct {
	WorkflowID string           `json:"workflow_id"`
	Operation  models.Operation `json:"operation"`
	Result     *flow.Result     `json:"result"`
}

// GraphResponse is the read representation of a workflow graph.
type GraphResponse struct {
	WorkflowID string         `json:"workflow_id"`
	Nodes      []*models.Node `json:"nodes"`
	Edges      []models.Edge  `json:"edges"`
}

// WorkflowListResponse lists the known workflow ids.
type WorkflowListResponse struct {
	Workflows []string `json:"workflows"`
	Count     int      `json:"count"`
}
