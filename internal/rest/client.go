// Package rest is the HTTP wrapper every store talks through. It attaches the
// bearer token and JSON headers, decodes success bodies into the caller's
// value, and turns error responses into *APIError values carrying the
// server-provided message.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TokenSource supplies the current bearer token, or "" when unauthenticated.
type TokenSource interface {
	Token() string
}

// MetricsRecorder is an optional interface for recording client-level metrics.
type MetricsRecorder interface {
	IncRequest(method, resource string, statusCode int)
	ObserveRequestDuration(method, resource string, seconds float64)
	IncTransportError(errorType string)
}

// Client performs authenticated JSON requests against the backend API.
type Client struct {
	baseURL         string
	client          *http.Client
	tokens          TokenSource
	maxResponseSize int64
	metrics         MetricsRecorder
}

// NewClient creates a Client rooted at baseURL (e.g. "https://host/api").
func NewClient(baseURL string, timeout time.Duration, maxResponseSize int64, tokens TokenSource) *Client {
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		client:          &http.Client{Timeout: timeout},
		tokens:          tokens,
		maxResponseSize: maxResponseSize,
	}
}

// SetMetrics sets the optional metrics recorder.
func (c *Client) SetMetrics(m MetricsRecorder) {
	c.metrics = m
}

// Get performs a GET request and decodes the response body into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post performs a POST request with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Put performs a PUT request with a JSON body and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

// Delete performs a DELETE request. out may be nil when the response body is
// not needed.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if c.metrics != nil {
		c.metrics.ObserveRequestDuration(method, resourceLabel(path), time.Since(start).Seconds())
	}
	if err != nil {
		if c.metrics != nil {
			c.metrics.IncTransportError(classifyTransportError(err))
		}
		return fmt.Errorf("%s: %w", fallbackMessage(method), err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.IncRequest(method, resourceLabel(path), resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, data, fallbackMessage(method))
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// resourceLabel reduces a request path to its first segment so metric labels
// stay low-cardinality (no embedded ids).
func resourceLabel(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	if trimmed == "" {
		return "root"
	}
	return trimmed
}

// fallbackMessage maps the HTTP method to the generic message used when the
// server does not provide one.
func fallbackMessage(method string) string {
	switch method {
	case http.MethodGet:
		return "failed to fetch data"
	case http.MethodPost:
		return "failed to save data"
	case http.MethodPut:
		return "failed to update data"
	case http.MethodDelete:
		return "failed to delete data"
	default:
		return "request failed"
	}
}

// classifyTransportError categorizes a client transport error.
func classifyTransportError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		if netErr.Op == "dial" {
			return "connection_refused"
		}
		return "network"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}
	return "other"
}
