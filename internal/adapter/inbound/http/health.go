package http

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"

	"github.com/fortemi/matric-mcp/internal/domain/session"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// HealthChecker reports session and stream liveness for /health.
type HealthChecker struct {
	sessions *session.Service
	streams  *streamRegistry
	version  string
}

// NewHealthChecker creates a HealthChecker over the session service.
func NewHealthChecker(sessions *session.Service, streams *streamRegistry, version string) *HealthChecker {
	return &HealthChecker{
		sessions: sessions,
		streams:  streams,
		version:  version,
	}
}

// Check gathers current counts.
func (h *HealthChecker) Check(r *http.Request) HealthResponse {
	checks := make(map[string]string)

	ctx := r.Context()
	checks["sessions_total"] = strconv.Itoa(h.sessions.Count(ctx, ""))
	checks["sessions_streamable_http"] = strconv.Itoa(h.sessions.Count(ctx, session.TransportStreamableHTTP))
	checks["sessions_sse"] = strconv.Itoa(h.sessions.Count(ctx, session.TransportSSE))
	if h.streams != nil {
		checks["open_streams"] = strconv.Itoa(h.streams.count())
	}
	checks["goroutines"] = strconv.Itoa(runtime.NumGoroutine())

	return HealthResponse{
		Status:  "healthy",
		Checks:  checks,
		Version: h.version,
	}
}

// Handler returns the HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(h.Check(r))
	})
}
