// Package testutil provides test data builders for workflow graphs.
package testutil

import (
	"github.com/google/uuid"

	"github.com/carbonlens/carbonflow/pkg/models"
)

// CreateTestNode creates a production node with a matched factor; overrides
// adjust individual fields.
func CreateTestNode(overrides ...func(*models.Node)) *models.Node {
	quantity := 10.0

	node := &models.Node{
		ID:          uuid.NewString(),
		WorkflowID:  "wf-test",
		Type:        models.NodeTypeProduction,
		Stage:       models.LifecycleStage(models.NodeTypeProduction),
		Label:       "Test Production",
		MatchStatus: models.MatchStatusMatched,
		Activity: models.ActivityData{
			Description: "steel sheet stamping",
			Quantity:    &quantity,
			Unit:        "kg",
		},
		Factor: &models.FactorMatch{
			Value:  2.5,
			Name:   "steel, sheet",
			Unit:   "kg",
			Source: "test-catalog",
		},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithType sets the node type and aligns the stage with it.
func WithType(nodeType models.NodeType) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = nodeType
		n.Stage = models.LifecycleStage(nodeType)
	}
}

// WithUnmatched clears the factor and marks the node unmatched.
func WithUnmatched() func(*models.Node) {
	return func(n *models.Node) {
		n.Factor = nil
		n.MatchStatus = models.MatchStatusUnmatched
	}
}

// WithQuantity sets the activity quantity and unit.
func WithQuantity(quantity float64, unit string) func(*models.Node) {
	return func(n *models.Node) {
		q := quantity
		n.Activity.Quantity = &q
		n.Activity.Unit = unit
	}
}

// WithFactor sets the matched factor value and unit.
func WithFactor(value float64, unit string) func(*models.Node) {
	return func(n *models.Node) {
		n.Factor = &models.FactorMatch{Value: value, Name: "test factor", Unit: unit}
		n.MatchStatus = models.MatchStatusMatched
	}
}

// WithAIGenerated flags the quantity as AI-inferred.
func WithAIGenerated() func(*models.Node) {
	return func(n *models.Node) {
		n.Activity.QuantityAIGenerated = true
	}
}

// BuildGraph creates a graph holding the given nodes.
func BuildGraph(workflowID string, nodes ...*models.Node) *models.WorkflowGraph {
	graph := models.NewWorkflowGraph(workflowID)

	for _, node := range nodes {
		if err := graph.AddNode(node); err != nil {
			panic(err)
		}
	}

	return graph
}
