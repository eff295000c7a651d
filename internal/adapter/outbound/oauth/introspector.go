// Package oauth provides the RFC 7662 token introspection adapter used to
// authenticate callers on the remote transports.
package oauth

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fortemi/matric-mcp/internal/domain/auth"
)

// DefaultNegativeTTL bounds how long a rejection is cached. Kept short so
// a client retrying with a freshly issued token recovers quickly.
const DefaultNegativeTTL = 30 * time.Second

// maxIntrospectionBody caps the introspection response size.
const maxIntrospectionBody = 64 * 1024

// introspectionResponse is the RFC 7662 wire shape, as produced by the
// knowledge API's authorization server.
type introspectionResponse struct {
	Active   bool   `json:"active"`
	Scope    string `json:"scope"`
	ClientID string `json:"client_id"`
	Exp      int64  `json:"exp"`
}

// Introspector validates bearer tokens against the authorization server's
// introspection endpoint, caching positive results until token expiry.
type Introspector struct {
	endpoint     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	cache        *tokenCache
	negativeTTL  time.Duration
	logger       *slog.Logger
}

// Option is a functional option for configuring Introspector.
type Option func(*Introspector)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(i *Introspector) {
		i.httpClient = hc
	}
}

// WithNegativeTTL overrides how long rejections are cached.
func WithNegativeTTL(ttl time.Duration) Option {
	return func(i *Introspector) {
		i.negativeTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Introspector) {
		i.logger = logger
	}
}

// NewIntrospector creates an introspector for the given endpoint,
// authenticating to it with the gateway's own client credentials.
func NewIntrospector(endpoint, clientID, clientSecret string, opts ...Option) *Introspector {
	i := &Introspector{
		endpoint:     endpoint,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
		cache:       newTokenCache(),
		negativeTTL: DefaultNegativeTTL,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Authenticate validates a bearer token and returns the caller's principal.
// Positive results are served from cache until the token's expiry; negative
// results for at most the negative TTL.
func (i *Introspector) Authenticate(ctx context.Context, token string) (*auth.Principal, error) {
	if token == "" {
		return nil, auth.ErrMissingToken
	}

	if principal, ok, negative := i.cache.get(token); ok {
		if negative {
			return nil, auth.ErrInvalidToken
		}
		if !principal.Sufficient() {
			return nil, auth.ErrInsufficientScope
		}
		return principal, nil
	}

	result, err := i.introspect(ctx, token)
	if err != nil {
		// Introspection endpoint failures are not cached; the next call
		// retries immediately.
		i.logger.Warn("token introspection failed", "error", err)
		return nil, auth.ErrInvalidToken
	}

	if !result.Active {
		i.cache.put(token, nil, time.Now().Add(i.negativeTTL))
		return nil, auth.ErrInvalidToken
	}

	principal := &auth.Principal{
		ClientID: result.ClientID,
		Scopes:   result.Scopes,
		Token:    token,
	}

	expiresAt := result.ExpiresAt
	if expiresAt.IsZero() {
		// No exp claim: cache briefly rather than forever.
		expiresAt = time.Now().Add(i.negativeTTL)
	}
	i.cache.put(token, principal, expiresAt)

	if !principal.Sufficient() {
		return nil, auth.ErrInsufficientScope
	}

	return principal, nil
}

// Invalidate drops the cached result for a token. Called when a backend
// call using the token came back 401 before its cached expiry.
func (i *Introspector) Invalidate(token string) {
	i.cache.invalidate(token)
}

// CacheSize returns the number of cached introspection entries.
func (i *Introspector) CacheSize() int {
	return i.cache.size()
}

// introspect performs the RFC 7662 POST, authenticating with the gateway's
// client credentials in the form body.
func (i *Introspector) introspect(ctx context.Context, token string) (*auth.Introspection, error) {
	form := url.Values{}
	form.Set("token", token)
	form.Set("client_id", i.clientID)
	form.Set("client_secret", i.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("introspection call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("introspection returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIntrospectionBody))
	if err != nil {
		return nil, fmt.Errorf("reading introspection response: %w", err)
	}

	var wire introspectionResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decoding introspection response: %w", err)
	}

	result := &auth.Introspection{
		Active:   wire.Active,
		ClientID: wire.ClientID,
	}
	if wire.Scope != "" {
		result.Scopes = strings.Fields(wire.Scope)
	}
	if wire.Exp > 0 {
		result.ExpiresAt = time.Unix(wire.Exp, 0)
	}

	return result, nil
}

// Compile-time check that Introspector implements the domain port.
var _ auth.Introspector = (*Introspector)(nil)
