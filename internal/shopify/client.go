// Package shopify is the single typed entry point to a tenant's admin
// GraphQL API. Every other component issues its queries and mutations through
// a Client, which owns the retry/backoff policy, cost observation, and
// cursor pagination.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	log "charm.land/log/v2"
)

const (
	// DefaultTimeout is the platform's per-request ceiling.
	DefaultTimeout = 60 * time.Second

	// MaxRetries is the number of retry attempts after the first try for
	// throttled or transport-failed requests.
	MaxRetries = 8

	retryBaseDelay = 400 * time.Millisecond
	retryMaxDelay  = 10 * time.Second

	// costFloor is the credit level below which the client voluntarily
	// sleeps before the next request, regardless of response status.
	costFloor = 200.0
)

// Client talks to one tenant's admin GraphQL endpoint.
type Client struct {
	Domain  string
	Token   string
	Version string

	// Endpoint overrides the URL derived from Domain/Version. Used by tests
	// to point the client at a local server.
	Endpoint string

	HTTPClient *http.Client

	logger *log.Logger
}

// NewClient creates a client for the given tenant. The version string pins
// the admin API version (e.g. "2025-10").
func NewClient(domain, token, version string) *Client {
	return &Client{
		Domain:   domain,
		Token:    token,
		Version:  version,
		Endpoint: fmt.Sprintf("https://%s/admin/api/%s/graphql.json", domain, version),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: log.New(io.Discard),
	}
}

// WithEndpoint returns a new client configured to use the specified endpoint.
// This is useful for testing with mock servers.
func (c *Client) WithEndpoint(endpoint string) *Client {
	d := *c
	d.Endpoint = endpoint
	return &d
}

// WithHTTPClient returns a new client configured to use the specified HTTP
// client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	d := *c
	d.HTTPClient = httpClient
	return &d
}

// WithLogger returns a new client that logs through the given logger.
func (c *Client) WithLogger(logger *log.Logger) *Client {
	d := *c
	d.logger = logger.With("shop", c.Domain)
	return &d
}

// Logger returns the client's logger.
func (c *Client) Logger() *log.Logger {
	return c.logger
}

// GraphQLRequest is the JSON body posted to the admin endpoint.
type GraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data       json.RawMessage `json:"data"`
	Errors     []GraphQLError  `json:"errors,omitempty"`
	Extensions *extensions     `json:"extensions,omitempty"`
}

type extensions struct {
	Cost *Cost `json:"cost,omitempty"`
}

// Cost is the query-cost extension attached to admin API responses.
type Cost struct {
	RequestedQueryCost float64 `json:"requestedQueryCost"`
	ActualQueryCost    float64 `json:"actualQueryCost"`
	ThrottleStatus     struct {
		MaximumAvailable   float64 `json:"maximumAvailable"`
		CurrentlyAvailable float64 `json:"currentlyAvailable"`
		RestoreRate        float64 `json:"restoreRate"`
	} `json:"throttleStatus"`
}

// Execute sends a GraphQL document with variables and returns the raw data
// payload. Throttling (HTTP 429/5xx or an in-band THROTTLED error) is
// retried with exponential backoff and jitter up to MaxRetries attempts.
// Semantic userErrors live inside the data payload and are the caller's to
// inspect; they are never retried here.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(GraphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, backoffDelay(attempt)); err != nil {
				return nil, err
			}
		}

		data, retryable, err := c.post(ctx, body)
		if err == nil {
			return data, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
		c.logger.Debug("retrying request", "attempt", attempt+1, "max", MaxRetries+1, "err", err)
	}

	return nil, &ThrottleError{Attempts: MaxRetries + 1, Last: lastErr}
}

// post performs a single HTTP round trip. The second return value reports
// whether the error is transient (throttle or transport) and worth retrying.
func (c *Client) post(ctx context.Context, body []byte) (json.RawMessage, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Shopify-Access-Token", c.Token)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("request failed: %w", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		// The platform may name its own delay; honor it on top of backoff.
		if after := retryAfter(resp); after > 0 {
			if err := sleepCtx(ctx, after); err != nil {
				return nil, false, err
			}
		}
		return nil, true, fmt.Errorf("throttled (HTTP 429)")
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error (status %d)", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, false, fmt.Errorf("API error: %s (status %d)", truncate(string(respBody), 300), resp.StatusCode)
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		return nil, true, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		if throttledErrors(gqlResp.Errors) {
			return nil, true, fmt.Errorf("throttled: %s", gqlResp.Errors[0].Message)
		}
		return nil, false, GraphQLErrors(gqlResp.Errors)
	}

	c.observeCost(ctx, gqlResp.Extensions)

	return gqlResp.Data, false, nil
}

// observeCost sleeps proportionally when the tenant's available query credit
// dips under the floor, so sustained runs stay ahead of the throttle instead
// of slamming into it.
func (c *Client) observeCost(ctx context.Context, ext *extensions) {
	if ext == nil || ext.Cost == nil {
		return
	}
	d := costDelay(ext.Cost.ThrottleStatus.CurrentlyAvailable, ext.Cost.ThrottleStatus.RestoreRate)
	if d <= 0 {
		return
	}
	c.logger.Debug("cost throttling",
		"available", ext.Cost.ThrottleStatus.CurrentlyAvailable,
		"restoreRate", ext.Cost.ThrottleStatus.RestoreRate,
		"sleep", d)
	_ = sleepCtx(ctx, d)
}

// costDelay computes the voluntary sleep for a given credit level: the time
// the restore rate needs to refill back to the floor.
func costDelay(available, restoreRate float64) time.Duration {
	if available >= costFloor {
		return 0
	}
	if restoreRate <= 0 {
		restoreRate = 50
	}
	return time.Duration((costFloor - available) / restoreRate * float64(time.Second))
}

// backoffDelay returns the sleep before the given retry attempt (1-based):
// exponential doubling from the base, capped, with uniform jitter added.
func backoffDelay(attempt int) time.Duration {
	d := retryBaseDelay << (attempt - 1)
	if d > retryMaxDelay || d <= 0 {
		d = retryMaxDelay
	}
	return d + rand.N(d/4)
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
