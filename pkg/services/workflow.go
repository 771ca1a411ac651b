package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carbonlens/carbonflow/pkg/config"
	"github.com/carbonlens/carbonflow/pkg/eventbus"
	"github.com/carbonlens/carbonflow/pkg/events"
	"github.com/carbonlens/carbonflow/pkg/flow"
	"github.com/carbonlens/carbonflow/pkg/matcher"
	"github.com/carbonlens/carbonflow/pkg/models"
	"github.com/carbonlens/carbonflow/pkg/persistence"
)

// Workflow owns the single-writer contract of the engine: actions against
// one workflow id are applied strictly one at a time, serialized by a
// per-workflow lock held across load, apply and save. Callers may invoke the
// service concurrently; the service itself guarantees at most one in-flight
// action per workflow.
//
// The graph is loaded fresh per action and never shared mutable state:
// components receive it explicitly and the processor returns a new value.
type Workflow struct {
	store      persistence.GraphStore
	processor  *flow.Processor
	dispatcher *matcher.Dispatcher
	bus        eventbus.EventBus
	cfg        config.Config
	logger     *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWorkflow creates the workflow service. The event bus may be nil, in
// which case notifications are skipped.
func NewWorkflow(
	store persistence.GraphStore,
	processor *flow.Processor,
	dispatcher *matcher.Dispatcher,
	bus eventbus.EventBus,
	cfg config.Config,
	logger *slog.Logger,
) *Workflow {
	return &Workflow{
		store:      store,
		processor:  processor,
		dispatcher: dispatcher,
		bus:        bus,
		cfg:        cfg,
		logger:     logger.With("module", "workflow_service"),
		locks:      make(map[string]*sync.Mutex),
	}
}

func (w *Workflow) lock(workflowID string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()

	l, ok := w.locks[workflowID]
	if !ok {
		l = &sync.Mutex{}
		w.locks[workflowID] = l
	}

	return l
}

// ApplyAction applies a single action to the workflow's graph and persists
// the result. A missing graph is created empty for add actions; every other
// operation on an unknown workflow reports not-found.
//
// A new action supersedes pending match tasks for the workflow: their
// results, if still in flight, are discarded.
func (w *Workflow) ApplyAction(ctx context.Context, workflowID string, action models.Action) (*flow.Result, error) {
	l := w.lock(workflowID)
	l.Lock()
	defer l.Unlock()

	if w.dispatcher != nil {
		w.dispatcher.CancelWorkflow(workflowID)
	}

	graph, err := w.store.Load(ctx, workflowID)
	if err != nil {
		if !persistence.IsGraphNotFound(err) {
			return nil, fmt.Errorf("failed to load graph for workflow %s: %w", workflowID, err)
		}

		if action.Operation() != models.OperationAdd {
			return nil, err
		}

		graph = models.NewWorkflowGraph(workflowID)
	}

	next, result, err := w.processor.Apply(ctx, graph, action)
	if err != nil {
		return nil, err
	}

	if mutates(action.Operation()) {
		if err := w.store.Save(ctx, workflowID, next); err != nil {
			return nil, fmt.Errorf("failed to save graph for workflow %s: %w", workflowID, err)
		}
	}

	w.publishApplied(ctx, workflowID, action, next, &result)

	return &result, nil
}

func mutates(op models.Operation) bool {
	return op != models.OperationQuery
}

// Graph returns the current graph for a workflow id.
func (w *Workflow) Graph(ctx context.Context, workflowID string) (*models.WorkflowGraph, error) {
	return w.store.Load(ctx, workflowID)
}

// List returns the known workflow ids.
func (w *Workflow) List(ctx context.Context) ([]string, error) {
	return w.store.List(ctx)
}

// Footprint recomputes and returns the aggregate footprint under the given
// mode, persisting refreshed per-node annotations.
func (w *Workflow) Footprint(ctx context.Context, workflowID string, mode models.AggregationMode) (*flow.Summary, error) {
	result, err := w.ApplyAction(ctx, workflowID, models.CalculateAction{Mode: mode})
	if err != nil {
		return nil, err
	}

	return result.Summary, nil
}

// Delete removes the workflow's graph and cancels any pending match tasks.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	l := w.lock(workflowID)
	l.Lock()
	defer l.Unlock()

	if w.dispatcher != nil {
		w.dispatcher.CancelWorkflow(workflowID)
	}

	if err := w.store.Delete(ctx, workflowID); err != nil {
		return err
	}

	w.publish(ctx, workflowID, events.GraphDeleted{
		BaseEvent: w.baseEvent(events.GraphDeletedEvent, workflowID),
	})

	return nil
}

// RefreshFactors re-matches the factor of every node that carries an
// activity description. Matcher calls for distinct nodes run concurrently;
// results are applied back under the workflow lock in one serialized write.
// Degraded nodes keep their prior factor and are counted, not failed.
func (w *Workflow) RefreshFactors(ctx context.Context, workflowID string) (refreshed, degraded int, err error) {
	if w.dispatcher == nil {
		w.logger.WarnContext(ctx, "Factor refresh skipped, no dispatcher configured", "workflow_id", workflowID)

		return 0, 0, nil
	}

	l := w.lock(workflowID)
	l.Lock()
	defer l.Unlock()

	graph, err := w.store.Load(ctx, workflowID)
	if err != nil {
		return 0, 0, err
	}

	next := graph.Clone()

	pending := make([]<-chan matcher.Result, 0, next.Len())

	for _, node := range next.Nodes() {
		if node.Activity.Description == "" || node.MatchStatus == models.MatchStatusManualOverride {
			continue
		}

		query := matcher.Query{
			Description: node.Activity.Description,
			Unit:        node.Activity.Unit,
		}

		if node.Activity.Quantity != nil {
			query.Quantity = *node.Activity.Quantity
		}

		pending = append(pending, w.dispatcher.Submit(ctx, workflowID, node.ID, query))
	}

	for _, ch := range pending {
		result, ok := <-ch
		if !ok {
			// Superseded mid-refresh; drop the whole batch.
			return 0, 0, ctx.Err()
		}

		node := next.Node(result.NodeID)
		if node == nil {
			continue
		}

		if result.Err != nil {
			node.Diagnostic = result.Err.Error()
			degraded++

			continue
		}

		models.ApplyFactorMatch(node, result.Candidates[0], w.cfg.Matcher.MinMatchScore)
		node.Normalize(w.cfg.Thresholds)
		refreshed++
	}

	if err := w.store.Save(ctx, workflowID, next); err != nil {
		return 0, 0, fmt.Errorf("failed to save refreshed graph for workflow %s: %w", workflowID, err)
	}

	w.publish(ctx, workflowID, events.FactorRefreshFinished{
		BaseEvent:      w.baseEvent(events.FactorRefreshFinishedType, workflowID),
		NodesRefreshed: refreshed,
		NodesDegraded:  degraded,
	})

	return refreshed, degraded, nil
}

// HealthCheck checks graph store health and factor matcher reachability.
// A matcher outage does not fail actions, but it does surface here so
// operators see degraded matching before users do.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.store == nil {
		return "Graph store not initialized", false
	}

	if err := w.store.HealthCheck(ctx); err != nil {
		return "Graph store is unhealthy: " + err.Error(), false
	}

	if w.dispatcher != nil {
		if err := w.dispatcher.Client().HealthCheck(ctx); err != nil {
			return "Factor matcher is unreachable: " + err.Error(), false
		}
	}

	return "Graph store and factor matcher are healthy", true
}

func (w *Workflow) publishApplied(ctx context.Context, workflowID string, action models.Action, graph *models.WorkflowGraph, result *flow.Result) {
	if w.bus == nil {
		return
	}

	w.publish(ctx, workflowID, events.ActionApplied{
		BaseEvent:   w.baseEvent(events.ActionAppliedEvent, workflowID),
		Operation:   action.Operation(),
		NodeID:      result.NodeID,
		NodeCount:   graph.Len(),
		EdgeCount:   len(graph.Edges()),
		Diagnostics: result.Diagnostics,
	})

	if result.Summary != nil {
		w.publish(ctx, workflowID, events.FootprintCalculated{
			BaseEvent: w.baseEvent(events.FootprintCalculatedEvent, workflowID),
			Summary:   *result.Summary,
		})
	}

	for _, diagnostic := range result.Diagnostics {
		w.publish(ctx, workflowID, events.NodeMatchDegraded{
			BaseEvent:  w.baseEvent(events.NodeMatchDegradedEvent, workflowID),
			NodeID:     result.NodeID,
			Diagnostic: diagnostic,
		})
	}
}

func (w *Workflow) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

func (w *Workflow) publish(ctx context.Context, workflowID string, event eventbus.Event) {
	if w.bus == nil {
		return
	}

	if err := w.bus.Publish(ctx, workflowID, event); err != nil {
		w.logger.WarnContext(ctx, "Failed to publish event",
			"workflow_id", workflowID, "event_type", event.GetType(), "error", err)
	}
}
