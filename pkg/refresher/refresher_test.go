package refresher_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carbonlens/carbonflow/pkg/config"
	"github.com/carbonlens/carbonflow/pkg/flow"
	"github.com/carbonlens/carbonflow/pkg/matcher"
	"github.com/carbonlens/carbonflow/pkg/models"
	"github.com/carbonlens/carbonflow/pkg/persistence/file"
	"github.com/carbonlens/carbonflow/pkg/refresher"
	"github.com/carbonlens/carbonflow/pkg/services"
)

func strPtr(s string) *string { return &s }

func setupService(t *testing.T, matcherURL string) *services.Workflow {
	t.Helper()

	cfg := config.Default()
	cfg.Matcher.APIURL = matcherURL
	cfg.Matcher.Timeout = 2 * time.Second

	logger := slog.Default()
	matcherClient := matcher.NewClient(cfg.Matcher, logger)
	dispatcher := matcher.NewDispatcher(matcherClient, logger)

	store, err := file.NewStore(t.TempDir())
	require.NoError(t, err)

	processor := flow.NewProcessor(cfg, matcherClient, logger)

	return services.NewWorkflow(store, processor, dispatcher, nil, cfg, logger)
}

func TestRefresher_RunOnceSweepsAllWorkflows(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []models.MatchCandidate{
				{FactorID: "f-new", Name: "updated factor", Unit: "kg", Value: 4.0, Score: 0.95},
			},
		})
	}))
	t.Cleanup(server.Close)

	service := setupService(t, server.URL)
	ctx := context.Background()

	first, err := service.ApplyAction(ctx, "wf-a", models.AddAction{
		Type:  models.NodeTypeProduction,
		Patch: models.NodePatch{Description: strPtr("steel stamping")},
	})
	require.NoError(t, err)

	second, err := service.ApplyAction(ctx, "wf-b", models.AddAction{
		Type:  models.NodeTypeUsage,
		Patch: models.NodePatch{Description: strPtr("electricity use")},
	})
	require.NoError(t, err)

	sweeper := refresher.New(service, "", slog.Default())
	sweeper.RunOnce(ctx)

	graphA, err := service.Graph(ctx, "wf-a")
	require.NoError(t, err)
	require.NotNil(t, graphA.Node(first.NodeID).Factor)
	assert.Equal(t, 4.0, graphA.Node(first.NodeID).Factor.Value)

	graphB, err := service.Graph(ctx, "wf-b")
	require.NoError(t, err)
	require.NotNil(t, graphB.Node(second.NodeID).Factor)
	assert.Equal(t, 4.0, graphB.Node(second.NodeID).Factor.Value)
}

func TestRefresher_StartRejectsInvalidSchedule(t *testing.T) {
	t.Parallel()

	service := setupService(t, "http://127.0.0.1:1")

	sweeper := refresher.New(service, "not a schedule", slog.Default())
	assert.Error(t, sweeper.Start(context.Background()))
}
