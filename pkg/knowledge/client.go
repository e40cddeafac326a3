// Package knowledge provides a client for the external knowledge base, the
// second opinion the merge engine waterfalls behind document extraction.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/reconcile-cli/internal/resilience"
)

// Client defines the knowledge-base lookup operations.
type Client interface {
	// Record fetches the knowledge base's field map for an entity.
	Record(ctx context.Context, entityID string) (*RecordResponse, error)
}

// RecordResponse is the parsed knowledge-base response.
type RecordResponse struct {
	EntityID string         `json:"entity_id"`
	Provider string         `json:"provider"`
	Fields   map[string]any `json:"fields"`
	AsOf     *time.Time     `json:"as_of,omitempty"`
}

// Option configures the knowledge client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new knowledge-base client.
func NewClient(apiKey, baseURL string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(5), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Record(ctx context.Context, entityID string) (*RecordResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "knowledge: rate limit wait")
	}

	url := fmt.Sprintf("%s/records/%s", c.baseURL, entityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "knowledge: build request")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "knowledge: request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "knowledge: read response body")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("knowledge: status %d: %s", resp.StatusCode, string(body)),
			resp.StatusCode,
		)
	}
	if resp.StatusCode == http.StatusNotFound {
		return &RecordResponse{EntityID: entityID, Fields: map[string]any{}}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("knowledge: status %d: %s", resp.StatusCode, string(body))
	}

	var out RecordResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "knowledge: unmarshal response")
	}
	if out.Fields == nil {
		out.Fields = map[string]any{}
	}
	return &out, nil
}
