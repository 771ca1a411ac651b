package matcher

import (
	"context"
	"log/slog"
	"sync"

	"github.com/carbonlens/carbonflow/pkg/models"
)

// Result is the outcome of one match task.
type Result struct {
	NodeID     string
	Candidates []models.MatchCandidate
	Err        error
}

// Dispatcher runs match queries as cancellable tasks keyed by workflow and
// node. Tasks for different nodes of the same workflow run concurrently (the
// bulk-refresh case); submitting a new task for the same workflow+node
// supersedes the one in flight, and CancelWorkflow aborts everything for a
// workflow when a newer action makes pending results irrelevant. A superseded
// task's result, should it still arrive, is discarded — stale results are
// never applied to a graph that has moved on.
//
// Applying results back to a graph remains the caller's serialized
// responsibility.
type Dispatcher struct {
	client *Client
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[string]map[string]*task // workflow id -> node id -> task
}

type task struct {
	cancel     context.CancelFunc
	generation uint64
}

// NewDispatcher creates a dispatcher over the given matcher client.
func NewDispatcher(client *Client, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client:   client,
		logger:   logger.With("module", "match_dispatcher"),
		inflight: make(map[string]map[string]*task),
	}
}

// Client returns the matcher client the dispatcher submits tasks to.
func (d *Dispatcher) Client() *Client {
	return d.client
}

// Submit starts a match task, superseding any in-flight task for the same
// workflow+node, and returns a channel that yields exactly one Result —
// unless the task itself is superseded or cancelled, in which case the
// channel is closed without a value.
func (d *Dispatcher) Submit(ctx context.Context, workflowID, nodeID string, q Query) <-chan Result {
	taskCtx, cancel := context.WithCancel(ctx)

	d.mu.Lock()

	nodes, ok := d.inflight[workflowID]
	if !ok {
		nodes = make(map[string]*task)
		d.inflight[workflowID] = nodes
	}

	current := &task{cancel: cancel}

	if prev, ok := nodes[nodeID]; ok {
		prev.cancel()

		current.generation = prev.generation + 1
	}

	nodes[nodeID] = current
	generation := current.generation

	d.mu.Unlock()

	results := make(chan Result, 1)

	go func() {
		defer close(results)
		defer cancel()

		candidates, err := d.client.Match(taskCtx, q)

		d.mu.Lock()

		entry := d.inflight[workflowID][nodeID]
		stale := entry == nil || entry.generation != generation

		if !stale {
			delete(d.inflight[workflowID], nodeID)

			if len(d.inflight[workflowID]) == 0 {
				delete(d.inflight, workflowID)
			}
		}

		d.mu.Unlock()

		if stale {
			d.logger.DebugContext(ctx, "Discarding superseded match result",
				"workflow_id", workflowID, "node_id", nodeID)

			return
		}

		results <- Result{NodeID: nodeID, Candidates: candidates, Err: err}
	}()

	return results
}

// CancelWorkflow aborts every in-flight task for a workflow. Called when a
// newer action supersedes a pending batch.
func (d *Dispatcher) CancelWorkflow(workflowID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, t := range d.inflight[workflowID] {
		t.cancel()
	}

	delete(d.inflight, workflowID)
}
