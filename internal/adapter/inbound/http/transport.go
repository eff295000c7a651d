// Package http provides the HTTP transport adapter for the gateway,
// serving the StreamableHTTP binding on "/" and the legacy SSE binding on
// /sse + /messages, plus the health, metrics, and OAuth metadata
// endpoints.
package http

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/fortemi/matric-mcp/internal/domain/auth"
	"github.com/fortemi/matric-mcp/internal/domain/session"
	"github.com/fortemi/matric-mcp/internal/port/inbound"
	"github.com/fortemi/matric-mcp/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// rateLimiterCleanupInterval is how often idle rate-limit keys are pruned.
const rateLimiterCleanupInterval = 10 * time.Minute

// HTTPTransport is the inbound adapter serving remote MCP clients.
type HTTPTransport struct {
	dispatcher   *service.Dispatcher
	sessions     *session.Service
	introspector auth.Introspector
	server       *http.Server
	addr         string
	issuer       string
	allowedOrigins []string
	certFile     string
	keyFile      string
	streams      *streamRegistry
	limiter      *RateLimiter
	metrics      *Metrics
	cacheSize    func() int
	logger       *slog.Logger
	version      string
	stopCleanup  chan struct{}
}

// Option is a functional option for configuring HTTPTransport.
type Option func(*HTTPTransport)

// WithAddr sets the listen address. Default is "127.0.0.1:8080".
func WithAddr(addr string) Option {
	return func(t *HTTPTransport) {
		t.addr = addr
	}
}

// WithTLS enables TLS with the provided certificate and key files.
func WithTLS(certFile, keyFile string) Option {
	return func(t *HTTPTransport) {
		t.certFile = certFile
		t.keyFile = keyFile
	}
}

// WithAllowedOrigins sets the allowed origins for DNS rebinding
// protection. If empty, all requests with an Origin header are blocked.
func WithAllowedOrigins(origins []string) Option {
	return func(t *HTTPTransport) {
		t.allowedOrigins = origins
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(version string) Option {
	return func(t *HTTPTransport) {
		t.version = version
	}
}

// WithRateLimit enables per-principal rate limiting.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(t *HTTPTransport) {
		t.limiter = NewRateLimiter(requestsPerSecond, burst)
	}
}

// WithIntrospectionCacheSize registers a gauge reading the introspection
// cache's entry count.
func WithIntrospectionCacheSize(size func() int) Option {
	return func(t *HTTPTransport) {
		t.cacheSize = size
	}
}

// NewHTTPTransport creates the HTTP transport over the given dispatcher
// and introspector. issuer is the externally reachable base URL used to
// derive the OAuth metadata documents and WWW-Authenticate challenges.
func NewHTTPTransport(dispatcher *service.Dispatcher, introspector auth.Introspector, issuer string, opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		dispatcher:   dispatcher,
		sessions:     dispatcher.Sessions(),
		introspector: introspector,
		addr:         "127.0.0.1:8080",
		issuer:       issuer,
		streams:      newStreamRegistry(),
		logger:       slog.Default(),
		version:      "dev",
		stopCleanup:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// CloseStreams closes every open stream for a session. Wired as the
// session store's reap hook so an idled-out session's streams end with it.
func (t *HTTPTransport) CloseStreams(sessionID string) {
	t.streams.closeSession(sessionID)
}

// Handler builds the full routing and middleware stack. Exposed for
// in-process testing with httptest.
func (t *HTTPTransport) Handler(reg *prometheus.Registry) http.Handler {
	t.metrics = NewMetrics(reg)
	registerGauges(reg,
		func() int { return t.sessions.Count(context.Background(), "") },
		t.streams.count,
		t.cacheSize,
	)

	// Middleware for the MCP surface, outermost first: metrics, request
	// ID, real IP, origin allowlist, bearer auth, rate limit.
	protect := func(h http.Handler) http.Handler {
		if t.limiter != nil {
			h = RateLimitMiddleware(t.limiter, t.metrics)(h)
		}
		h = BearerAuthMiddleware(t.introspector, resourceMetadataURL(t.issuer))(h)
		h = OriginAllowlist(t.allowedOrigins)(h)
		h = RealIPMiddleware(h)
		h = RequestIDMiddleware(t.logger)(h)
		h = MetricsMiddleware(t.metrics)(h)
		return h
	}

	health := NewHealthChecker(t.sessions, t.streams, t.version)

	mux := http.NewServeMux()
	mux.Handle("/health", health.Handler())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		Registry: reg,
	}))
	mux.Handle(AuthorizationServerMetadataPath, wellKnownHandler(t.issuer))
	mux.Handle(ProtectedResourceMetadataPath, wellKnownHandler(t.issuer))
	mux.Handle("/favicon.ico", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.Handle("/sse", protect(t.sseHandler()))
	mux.Handle(messagesPath, protect(t.messagesHandler()))
	mux.Handle("/", protect(t.streamableHandler()))

	return mux
}

// Start begins accepting HTTP connections. It blocks until the context is
// cancelled or the server fails.
func (t *HTTPTransport) Start(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	t.server = &http.Server{
		Addr:    t.addr,
		Handler: t.Handler(reg),
	}

	if t.certFile != "" && t.keyFile != "" {
		t.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	if t.limiter != nil {
		go t.rateLimiterCleanupLoop()
	}

	errCh := make(chan error, 1)

	go func() {
		var err error
		if t.certFile != "" && t.keyFile != "" {
			t.logger.Info("starting HTTPS server", "addr", t.addr)
			err = t.server.ListenAndServeTLS(t.certFile, t.keyFile)
		} else {
			t.logger.Info("starting HTTP server", "addr", t.addr)
			err = t.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

// rateLimiterCleanupLoop prunes idle rate-limit keys until shutdown.
func (t *HTTPTransport) rateLimiterCleanupLoop() {
	ticker := time.NewTicker(rateLimiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCleanup:
			return
		case <-ticker.C:
			t.limiter.Cleanup(rateLimiterCleanupInterval)
		}
	}
}

// shutdown performs graceful shutdown of the HTTP server.
func (t *HTTPTransport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	select {
	case <-t.stopCleanup:
	default:
		close(t.stopCleanup)
	}

	// Close the SSE streams first so handlers unblock.
	t.streams.closeAll()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}

	t.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *HTTPTransport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}

// Compile-time check that HTTPTransport implements the inbound port.
var _ inbound.Transport = (*HTTPTransport)(nil)
