// Package httputil provides the shared HTTP client used by the outbound
// data-fetch and generation backends.
//
// The client wraps net/http with the behaviors every backend needs:
// request timeouts, a stable User-Agent, retry with exponential backoff
// for transient failures, and observability hook emission for every
// request. Backends (market data, image generation) build their API
// clients on top of this instead of using http.DefaultClient directly.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mhartmeier/chartmorph/pkg/observability"
)

// DefaultUserAgent identifies outbound requests. Some public endpoints
// reject requests without one.
const DefaultUserAgent = "chartmorph/1.0"

// Client is an instrumented HTTP client with retry support.
type Client struct {
	http      *http.Client
	userAgent string
	attempts  int
	delay     time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Default is 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRetry sets the retry policy. attempts is the total number of tries
// and delay the initial backoff, doubling after each failure.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.delay = delay
	}
}

// WithHTTPClient replaces the underlying http.Client, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates an instrumented client with 30s timeout and
// 3 attempts of 1s initial backoff.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: 30 * time.Second},
		userAgent: DefaultUserAgent,
		attempts:  3,
		delay:     time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Get fetches url and returns the response body. Transient failures
// (network errors, 5xx, 429) are retried per the client's policy.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, "", nil)
}

// GetJSON fetches url and unmarshals the JSON response into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// PostJSON marshals payload as JSON, POSTs it to url, and unmarshals
// the JSON response into v. Pass nil v to discard the response body.
func (c *Client) PostJSON(ctx context.Context, url string, payload, v any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	body, err := c.do(ctx, http.MethodPost, url, "application/json", data)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	return json.Unmarshal(body, v)
}

func (c *Client) do(ctx context.Context, method, url, contentType string, payload []byte) ([]byte, error) {
	var body []byte
	err := Retry(ctx, c.attempts, c.delay, func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.userAgent)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		observability.HTTP().OnRequest(ctx, method, req.URL.Host, req.URL.Path)
		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			observability.HTTP().OnError(ctx, method, req.URL.Host, req.URL.Path, err)
			return &RetryableError{Err: err}
		}
		defer resp.Body.Close()
		observability.HTTP().OnResponse(ctx, method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &RetryableError{Err: err}
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			body = data
			return nil
		}

		serr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(data, 256)}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return &RetryableError{Err: serr}
		}
		return serr
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
