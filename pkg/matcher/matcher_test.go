package matcher_test

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
	"github.com/carbonlens/carbonflow/pkg/matcher"
	"github.com/carbonlens/carbonflow/pkg/models"
)

func testClient(t *testing.T, serverURL string, timeout time.Duration) *matcher.Client {
	t.Helper()

	cfg := config.Default().Matcher
	cfg.APIURL = serverURL
	cfg.Timeout = timeout

	return matcher.NewClient(cfg, slog.Default())
}

func serveCandidates(t *testing.T, candidates []models.MatchCandidate) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/factors/match", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": candidates})
	}))
	t.Cleanup(server.Close)

	return server
}

func TestClient_MatchRanksByScoreThenFactorID(t *testing.T) {
	t.Parallel()

	server := serveCandidates(t, []models.MatchCandidate{
		{FactorID: "f-b", Score: 0.8, Value: 1},
		{FactorID: "f-c", Score: 0.9, Value: 2},
		{FactorID: "f-a", Score: 0.8, Value: 3},
	})

	client := testClient(t, server.URL, 2*time.Second)

	candidates, err := client.Match(context.Background(), matcher.Query{Description: "steel"})
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	assert.Equal(t, "f-c", candidates[0].FactorID)
	assert.Equal(t, "f-a", candidates[1].FactorID, "equal scores break ties by factor id")
	assert.Equal(t, "f-b", candidates[2].FactorID)
}

func TestClient_MatchCapsAtTopK(t *testing.T) {
	t.Parallel()

	server := serveCandidates(t, []models.MatchCandidate{
		{FactorID: "f-1", Score: 0.9},
		{FactorID: "f-2", Score: 0.8},
		{FactorID: "f-3", Score: 0.7},
		{FactorID: "f-4", Score: 0.6},
		{FactorID: "f-5", Score: 0.5},
	})

	client := testClient(t, server.URL, 2*time.Second)

	candidates, err := client.Match(context.Background(), matcher.Query{Description: "steel"})
	require.NoError(t, err)
	assert.Len(t, candidates, config.DefaultTopK)
	assert.Equal(t, "f-1", candidates[0].FactorID)
}

func TestClient_MatchSynthesizesFallbackOnEmptyResult(t *testing.T) {
	t.Parallel()

	server := serveCandidates(t, nil)
	client := testClient(t, server.URL, 2*time.Second)

	candidates, err := client.Match(context.Background(), matcher.Query{Description: "unobtainium"})
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	fallback := candidates[0]
	assert.True(t, fallback.Fallback)
	assert.Equal(t, 0.0, fallback.Score)
	assert.Equal(t, config.DefaultCarbonFactor, fallback.Value)
	assert.Equal(t, config.DefaultUnit, fallback.Unit)
}

func TestClient_MatchSendsQueryParameters(t *testing.T) {
	t.Parallel()

	var got map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = map[string]string{
			"description": r.URL.Query().Get("description"),
			"unit":        r.URL.Query().Get("unit"),
			"quantity":    r.URL.Query().Get("quantity"),
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []models.MatchCandidate{{FactorID: "f", Score: 1}}})
	}))
	t.Cleanup(server.Close)

	client := testClient(t, server.URL, 2*time.Second)

	_, err := client.Match(context.Background(), matcher.Query{Description: "aluminium ingot", Unit: "t", Quantity: 1.5})
	require.NoError(t, err)

	assert.Equal(t, "aluminium ingot", got["description"])
	assert.Equal(t, "t", got["unit"])
	assert.Equal(t, "1.5", got["quantity"])
}

func TestClient_MatchTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	client := testClient(t, server.URL, 50*time.Millisecond)

	start := time.Now()
	_, err := client.Match(context.Background(), matcher.Query{Description: "steel"})

	assert.ErrorIs(t, err, matcher.ErrMatcherUnavailable)
	assert.Less(t, time.Since(start), 250*time.Millisecond, "the call must respect the configured timeout")
}

func TestClient_MatchNonOKStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := testClient(t, server.URL, 2*time.Second)

	_, err := client.Match(context.Background(), matcher.Query{Description: "steel"})
	assert.ErrorIs(t, err, matcher.ErrMatcherUnavailable)
}

func TestClient_MatchInvalidBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	t.Cleanup(server.Close)

	client := testClient(t, server.URL, 2*time.Second)

	_, err := client.Match(context.Background(), matcher.Query{Description: "steel"})
	assert.ErrorIs(t, err, matcher.ErrMatcherUnavailable)
}

func TestClient_MatchUnreachableHost(t *testing.T) {
	t.Parallel()

	client := testClient(t, "http://127.0.0.1:1", 500*time.Millisecond)

	_, err := client.Match(context.Background(), matcher.Query{Description: "steel"})
	assert.ErrorIs(t, err, matcher.ErrMatcherUnavailable)
}

func TestClient_HealthCheck(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	client := testClient(t, server.URL, 2*time.Second)

	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestClient_HealthCheckNonOKStillReachable(t *testing.T) {
	t.Parallel()

	// Reachability is the only question asked here; a 404 on the base URL
	// still proves the API is up.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	client := testClient(t, server.URL, 2*time.Second)

	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestClient_HealthCheckUnreachableHost(t *testing.T) {
	t.Parallel()

	client := testClient(t, "http://127.0.0.1:1", 500*time.Millisecond)

	err := client.HealthCheck(context.Background())
	assert.ErrorIs(t, err, matcher.ErrMatcherUnavailable)
}
