// Package matcher queries the external carbon-factor database and returns
// ranked emission-factor candidates for activity descriptions.
package matcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/carbonlens/carbonflow/pkg/config"
	"github.com/carbonlens/carbonflow/pkg/models"
)

// ErrMatcherUnavailable indicates a transport failure or timeout talking to
// the factor-match API. Recoverable: the caller may re-issue the action.
var ErrMatcherUnavailable = errors.New("factor matcher unavailable")

// Query describes one activity to match a factor for.
type Query struct {
	Description string
	Unit        string
	Quantity    float64
}

// Client talks to the factor-match HTTP API with a bounded timeout.
type Client struct {
	baseURL       string
	topK          int
	defaultFactor float64
	defaultUnit   string
	httpClient    *http.Client
	logger        *slog.Logger
}

// NewClient builds a matcher client from configuration.
func NewClient(cfg config.Matcher, logger *slog.Logger) *Client {
	return &Client{
		baseURL:       cfg.APIURL,
		topK:          cfg.TopK,
		defaultFactor: cfg.DefaultFactor,
		defaultUnit:   cfg.DefaultUnit,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With("module", "factor_matcher"),
	}
}

// healthProbeTimeout bounds the reachability probe independently of the
// match timeout, which may be configured much higher.
const healthProbeTimeout = 2 * time.Second

// HealthCheck probes the factor API base URL. Any HTTP response counts as
// reachable; only transport failures and timeouts report unhealthy.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMatcherUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMatcherUnavailable, err)
	}

	_ = resp.Body.Close()

	return nil
}

// matchResponse is the factor-match API response body.
type matchResponse struct {
	Candidates []models.MatchCandidate `json:"candidates"`
}

// Match queries the factor database and returns at most TopK candidates
// ordered by descending score (equal scores order by factor id). When the
// API returns no candidates at all, one fallback candidate carrying the
// configured defaults is synthesized with score 0 so downstream code always
// has a well-typed candidate to reason about. Scoring against the minimum
// threshold is the consumer's decision, not the transport's.
//
// Transport failures and timeouts return an empty list together with
// ErrMatcherUnavailable. Match never panics and never blocks past the
// configured timeout.
func (c *Client) Match(ctx context.Context, q Query) ([]models.MatchCandidate, error) {
	req, err := c.buildRequest(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMatcherUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Factor match request failed", "error", err, "description", q.Description)

		return nil, fmt.Errorf("%w: %v", ErrMatcherUnavailable, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		c.logger.WarnContext(ctx, "Factor match API returned non-OK status", "status", resp.StatusCode)

		return nil, fmt.Errorf("%w: unexpected status %d", ErrMatcherUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMatcherUnavailable, err)
	}

	var parsed matchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: invalid response body: %v", ErrMatcherUnavailable, err)
	}

	return c.rank(parsed.Candidates), nil
}

func (c *Client) buildRequest(ctx context.Context, q Query) (*http.Request, error) {
	endpoint, err := url.Parse(c.baseURL + "/factors/match")
	if err != nil {
		return nil, err
	}

	params := endpoint.Query()
	params.Set("description", q.Description)
	params.Set("unit", q.Unit)
	params.Set("quantity", strconv.FormatFloat(q.Quantity, 'f', -1, 64))
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")

	return req, nil
}

// rank sorts and caps the candidate list, synthesizing the fallback when the
// API returned nothing.
func (c *Client) rank(candidates []models.MatchCandidate) []models.MatchCandidate {
	if len(candidates) == 0 {
		return []models.MatchCandidate{c.fallbackCandidate()}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}

		// Equal scores order by factor id to keep results stable.
		return candidates[i].FactorID < candidates[j].FactorID
	})

	if len(candidates) > c.topK {
		candidates = candidates[:c.topK]
	}

	return candidates
}

func (c *Client) fallbackCandidate() models.MatchCandidate {
	return models.MatchCandidate{
		FactorID: "fallback",
		Name:     "default emission factor",
		Unit:     c.defaultUnit,
		Value:    c.defaultFactor,
		Score:    0,
		Source:   "carbonflow-default",
		Fallback: true,
	}
}
