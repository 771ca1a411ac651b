// Package events defines event types for graph lifecycle notifications
// consumed by UI and reporting collaborators.
package events

import (
	"time"

	"github.com/carbonlens/carbonflow/pkg/flow"
	"github.com/carbonlens/carbonflow/pkg/models"
)

type EventType string

// Topic carries all graph lifecycle events.
const Topic = "carbonflow.graph.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ActionAppliedEvent        EventType = "graph.action.applied"
	GraphDeletedEvent         EventType = "graph.deleted"
	FootprintCalculatedEvent  EventType = "graph.footprint.calculated"
	NodeMatchDegradedEvent    EventType = "graph.node.match.degraded"
	FactorRefreshFinishedType EventType = "graph.factors.refreshed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ActionApplied is published after an action transitioned the graph.
type ActionApplied struct {
	BaseEvent

	Operation   models.Operation `json:"operation"`
	NodeID      string           `json:"node_id,omitempty"`
	NodeCount   int              `json:"node_count"`
	EdgeCount   int              `json:"edge_count"`
	Diagnostics []string         `json:"diagnostics,omitempty"`
}

func (e ActionApplied) GetType() EventType {
	return ActionAppliedEvent
}

// GraphDeleted is published when a workflow graph is removed from the store.
type GraphDeleted struct {
	BaseEvent
}

func (e GraphDeleted) GetType() EventType {
	return GraphDeletedEvent
}

// FootprintCalculated carries the aggregate summary after a calculate action
// or a scheduled refresh.
type FootprintCalculated struct {
	BaseEvent

	Summary flow.Summary `json:"summary"`
}

func (e FootprintCalculated) GetType() EventType {
	return FootprintCalculatedEvent
}

// NodeMatchDegraded is published when factor matching failed for a node and
// the action degraded instead of failing.
type NodeMatchDegraded struct {
	BaseEvent

	NodeID     string `json:"node_id"`
	Diagnostic string `json:"diagnostic"`
}

func (e NodeMatchDegraded) GetType() EventType {
	return NodeMatchDegradedEvent
}

// FactorRefreshFinished is published after a periodic factor freshness sweep.
type FactorRefreshFinished struct {
	BaseEvent

	NodesRefreshed int `json:"nodes_refreshed"`
	NodesDegraded  int `json:"nodes_degraded"`
}

func (e FactorRefreshFinished) GetType() EventType {
	return FactorRefreshFinishedType
}
