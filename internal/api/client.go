// Package api is the client for the remote catalog API. The client is an
// explicit constructed value with a middleware pipeline; there is no package
// level singleton and no ambient interceptor state.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RoundTripFunc executes a single HTTP request.
type RoundTripFunc func(*http.Request) (*http.Response, error)

// Middleware wraps a RoundTripFunc with extra behavior (auth headers,
// logging, request IDs). Middlewares run in the order given to New, the
// first being outermost.
type Middleware func(next RoundTripFunc) RoundTripFunc

// Client talks to the remote catalog API.
type Client struct {
	baseURL string
	httpc   *http.Client
	run     RoundTripFunc
}

// Option configures a Client.
type Option func(*options)

type options struct {
	httpc       *http.Client
	middlewares []Middleware
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpc = c }
}

// WithMiddleware appends pipeline middlewares.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mw...) }
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	o := options{
		httpc: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(&o)
	}

	run := o.httpc.Do
	for i := len(o.middlewares) - 1; i >= 0; i-- {
		run = o.middlewares[i](run)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   o.httpc,
		run:     run,
	}
}

// do sends a request through the pipeline and returns the raw response.
// Non-2xx statuses are converted into *Error; the caller still owns the body
// for 2xx responses.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.run(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

// doJSON sends a request and decodes a JSON response into target (which may
// be nil when the response body is irrelevant).
func (c *Client) doJSON(ctx context.Context, method, path string, body, target any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if target == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}
