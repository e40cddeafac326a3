// Package extractor provides a client for the document-extraction service,
// which turns uploaded deal documents into flat field maps.
package extractor

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

// Client defines the document-extraction operations.
type Client interface {
	// Fields fetches the latest extracted field map for an entity. The
	// service may omit fields it has no opinion on.
	Fields(ctx context.Context, entityID string) (*FieldsResponse, error)
}

// FieldsResponse is the parsed extraction-service response.
type FieldsResponse struct {
	EntityID string `json:"entity_id"`
	// Document is the source document filename, recorded into provenance.
	Document string         `json:"document"`
	Fields   map[string]any `json:"fields"`
}

// Option configures the extractor client.
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

// NewClient creates a new extraction-service client.
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
		limiter: rate.NewLimiter(rate.Limit(10), 2),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Fields(ctx context.Context, entityID string) (*FieldsResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "extractor: rate limit wait")
	}

	url := fmt.Sprintf("%s/entities/%s/fields", c.baseURL, entityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "extractor: build request")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "extractor: request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "extractor: read response body")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("extractor: status %d: %s", resp.StatusCode, string(body)),
			resp.StatusCode,
		)
	}
	if resp.StatusCode == http.StatusNotFound {
		// No documents processed yet; the source has no opinion.
		return &FieldsResponse{EntityID: entityID, Fields: map[string]any{}}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("extractor: status %d: %s", resp.StatusCode, string(body))
	}

	var out FieldsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "extractor: unmarshal response")
	}
	if out.Fields == nil {
		out.Fields = map[string]any{}
	}
	return &out, nil
}
