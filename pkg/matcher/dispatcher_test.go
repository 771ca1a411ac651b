package matcher_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carbonlens/carbonflow/pkg/matcher"
	"github.com/carbonlens/carbonflow/pkg/models"
)

// slowMatcherServer delays every response until release is closed.
func slowMatcherServer(t *testing.T, release <-chan struct{}, calls *atomic.Int64) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		select {
		case <-release:
		case <-r.Context().Done():
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []models.MatchCandidate{{FactorID: "f-1", Score: 0.9, Value: 1.0}},
		})
	}))
	t.Cleanup(server.Close)

	return server
}

func TestDispatcher_DeliversResult(t *testing.T) {
	t.Parallel()

	server := serveCandidates(t, []models.MatchCandidate{{FactorID: "f-1", Score: 0.9}})
	client := testClient(t, server.URL, 2*time.Second)
	dispatcher := matcher.NewDispatcher(client, slog.Default())

	results := dispatcher.Submit(context.Background(), "wf-1", "node-1", matcher.Query{Description: "steel"})

	result, ok := <-results
	require.True(t, ok)
	require.NoError(t, result.Err)
	assert.Equal(t, "node-1", result.NodeID)
	require.NotEmpty(t, result.Candidates)
	assert.Equal(t, "f-1", result.Candidates[0].FactorID)

	_, open := <-results
	assert.False(t, open, "the channel yields exactly one result")
}

func TestDispatcher_NewSubmitSupersedesSameNode(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})

	var calls atomic.Int64

	server := slowMatcherServer(t, release, &calls)
	client := testClient(t, server.URL, 5*time.Second)
	dispatcher := matcher.NewDispatcher(client, slog.Default())

	first := dispatcher.Submit(context.Background(), "wf-1", "node-1", matcher.Query{Description: "old"})

	// Wait for the first request to be in flight before superseding it.
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	second := dispatcher.Submit(context.Background(), "wf-1", "node-1", matcher.Query{Description: "new"})
	close(release)

	_, open := <-first
	assert.False(t, open, "the superseded task's channel closes without a value")

	result, ok := <-second
	require.True(t, ok)
	require.NoError(t, result.Err)
	assert.Equal(t, "node-1", result.NodeID)
}

func TestDispatcher_DistinctNodesRunIndependently(t *testing.T) {
	t.Parallel()

	server := serveCandidates(t, []models.MatchCandidate{{FactorID: "f-1", Score: 0.9}})
	client := testClient(t, server.URL, 2*time.Second)
	dispatcher := matcher.NewDispatcher(client, slog.Default())

	first := dispatcher.Submit(context.Background(), "wf-1", "node-1", matcher.Query{Description: "a"})
	second := dispatcher.Submit(context.Background(), "wf-1", "node-2", matcher.Query{Description: "b"})

	r1, ok := <-first
	require.True(t, ok, "a submit for a different node must not supersede this task")
	require.NoError(t, r1.Err)

	r2, ok := <-second
	require.True(t, ok)
	require.NoError(t, r2.Err)

	assert.Equal(t, "node-1", r1.NodeID)
	assert.Equal(t, "node-2", r2.NodeID)
}

func TestDispatcher_CancelWorkflowDiscardsPendingResults(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})

	var calls atomic.Int64

	server := slowMatcherServer(t, release, &calls)
	client := testClient(t, server.URL, 5*time.Second)
	dispatcher := matcher.NewDispatcher(client, slog.Default())

	first := dispatcher.Submit(context.Background(), "wf-1", "node-1", matcher.Query{Description: "a"})
	second := dispatcher.Submit(context.Background(), "wf-1", "node-2", matcher.Query{Description: "b"})
	other := dispatcher.Submit(context.Background(), "wf-2", "node-1", matcher.Query{Description: "c"})

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)

	dispatcher.CancelWorkflow("wf-1")
	close(release)

	_, open := <-first
	assert.False(t, open)

	_, open = <-second
	assert.False(t, open)

	// The other workflow's task is unaffected and still completes.
	result, ok := <-other
	require.True(t, ok)
	require.NoError(t, result.Err)
	assert.Equal(t, "node-1", result.NodeID)
}
