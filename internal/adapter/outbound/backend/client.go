// Package backend provides the HTTP client for the Fortemi knowledge API.
package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fortemi/matric-mcp/internal/domain/tool"
)

// MemoryHeader carries the session's selected knowledge namespace.
// Matches the API's archive-routing middleware.
const MemoryHeader = "X-Fortemi-Memory"

// maxResponseBodySize is the maximum response body size accepted from the
// knowledge API. Prevents OOM from an unbounded response.
const maxResponseBodySize = 10 * 1024 * 1024 // 10MB

// DefaultTimeout is the fallback request timeout when the caller's context
// carries no deadline.
const DefaultTimeout = 30 * time.Second

// Client issues authenticated calls against the knowledge API and
// normalizes failures into the gateway's error taxonomy. A Client is
// immutable; WithBearer and WithMemory return derived copies, so one base
// client per process fans out to per-session clients without locking.
type Client struct {
	baseURL    string
	token      string
	memory     string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option is a functional option for configuring Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the overall request timeout of the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if c.httpClient != nil {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithAPIKey sets the process-wide credential used on the stdio path.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.token = key
	}
}

// NewClient creates a client for the knowledge API at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithBearer returns a copy of the client carrying the given credential.
// Used to derive a per-session client from the authenticated principal's
// token on the HTTP transports.
func (c *Client) WithBearer(token string) *Client {
	derived := *c
	derived.token = token
	return &derived
}

// WithMemory returns a copy of the client bound to the given knowledge
// namespace. Empty memory selects the backend's default namespace.
func (c *Client) WithMemory(memory string) *Client {
	derived := *c
	derived.memory = memory
	return &derived
}

// Call performs one HTTP call against the knowledge API. body is JSON
// encoded when non-nil; a 2xx response body is decoded into out when
// non-nil. Failures come back as *Error with a sanitized message.
func (c *Client) Call(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.memory != "" {
		req.Header.Set(MemoryHeader, c.memory)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.unavailable(method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return c.unavailable(method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.httpError(method, path, resp.StatusCode, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response body: %w", err)
		}
	}

	return nil
}

// unavailable classifies a transport-level failure. Deadline expiry is
// reported distinctly so callers can tell a timed-out call from a refused
// connection, but both land in KindUnavailable.
func (c *Client) unavailable(method, path string, err error) *Error {
	message := "Knowledge API unavailable"
	var urlErr *url.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &urlErr) && urlErr.Timeout()) {
		message = "Knowledge API timed out"
	}

	c.logger.Warn("backend call failed",
		"method", method, "path", path, "error", err)

	return &Error{Kind: KindUnavailable, Message: message}
}

// httpError classifies a non-2xx response. The machine-readable error body
// (when present) is logged for operators but never echoed to the client.
func (c *Client) httpError(method, path string, status int, body []byte) *Error {
	var apiErr struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)

	c.logger.Warn("backend returned error",
		"method", method, "path", path, "status", status, "error", apiErr.Error)

	kind := KindClient
	if status >= 500 {
		kind = KindServer
	}

	return &Error{
		Kind:    kind,
		Status:  status,
		Message: sanitizeStatus(status),
	}
}

// Compile-time check that Client satisfies the tool handler port.
var _ tool.Invoker = (*Client)(nil)
