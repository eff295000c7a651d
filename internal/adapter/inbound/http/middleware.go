package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/fortemi/matric-mcp/internal/ctxkey"
	"github.com/fortemi/matric-mcp/internal/domain/auth"
	"github.com/google/uuid"
)

// RequestIDMiddleware extracts or generates a request ID and enriches the
// logger. The request ID is stored in context using ctxkey.RequestIDKey;
// an enriched logger carrying the request_id field is stored using
// ctxkey.LoggerKey.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			enriched := logger.With("request_id", requestID)

			ctx := context.WithValue(r.Context(), ctxkey.RequestIDKey{}, requestID)
			ctx = context.WithValue(ctx, ctxkey.LoggerKey{}, enriched)

			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFromContext retrieves the enriched logger from context.
// Returns slog.Default() if no logger is in context.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// PrincipalFromContext retrieves the authenticated principal set by
// BearerAuthMiddleware. Returns nil when the request was not authenticated.
func PrincipalFromContext(ctx context.Context) *auth.Principal {
	if p, ok := ctx.Value(ctxkey.PrincipalKey{}).(*auth.Principal); ok {
		return p
	}
	return nil
}

// OriginAllowlist validates the Origin header against an allowlist,
// protecting against DNS rebinding. Requests without an Origin header are
// allowed (same-origin or non-browser). If allowedOrigins is empty, every
// request carrying an Origin header is blocked.
func OriginAllowlist(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if _, ok := allowed[origin]; !ok {
				http.Error(w, "Forbidden: origin not allowed", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// BearerAuthMiddleware authenticates every request via RFC 7662 token
// introspection. On success the principal is stored in context under
// ctxkey.PrincipalKey. On rejection it answers 401 (missing or invalid
// token) or 403 (insufficient scope) with a WWW-Authenticate challenge
// referencing the protected-resource metadata URL, per RFC 9728.
func BearerAuthMiddleware(introspector auth.Introspector, resourceMetadataURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)

			principal, err := introspector.Authenticate(r.Context(), token)
			if err != nil {
				logger := LoggerFromContext(r.Context())
				switch {
				case errors.Is(err, auth.ErrMissingToken):
					writeChallenge(w, http.StatusUnauthorized, resourceMetadataURL, "")
				case errors.Is(err, auth.ErrInsufficientScope):
					logger.Debug("token rejected", "reason", "insufficient_scope")
					writeChallenge(w, http.StatusForbidden, resourceMetadataURL, "insufficient_scope")
				case errors.Is(err, auth.ErrInvalidToken):
					logger.Debug("token rejected", "reason", "invalid_token")
					writeChallenge(w, http.StatusUnauthorized, resourceMetadataURL, "invalid_token")
				default:
					logger.Error("introspection failed", "error", err)
					writeChallenge(w, http.StatusUnauthorized, resourceMetadataURL, "invalid_token")
				}
				return
			}

			ctx := context.WithValue(r.Context(), ctxkey.PrincipalKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the bearer credential from the Authorization
// header. Returns "" when the header is absent or not a Bearer scheme.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// writeChallenge answers an authentication failure with a WWW-Authenticate
// challenge pointing compliant clients at the protected-resource metadata.
func writeChallenge(w http.ResponseWriter, status int, resourceMetadataURL, errCode string) {
	challenge := fmt.Sprintf(`Bearer resource_metadata=%q`, resourceMetadataURL)
	if errCode != "" {
		challenge += fmt.Sprintf(`, error=%q`, errCode)
	}
	w.Header().Set("WWW-Authenticate", challenge)
	http.Error(w, http.StatusText(status), status)
}

// RealIPMiddleware extracts the client's real IP address. It checks
// X-Forwarded-For and X-Real-IP headers for reverse proxy support, falling
// back to r.RemoteAddr. Only the first X-Forwarded-For entry is trusted.
// The IP is stored in context using ctxkey.RealIPKey.
func RealIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := extractRealIP(r)
		ctx := context.WithValue(r.Context(), ctxkey.RealIPKey{}, ip)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractRealIP extracts the client's real IP address from the request.
func extractRealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			if ip := strings.TrimSpace(ips[0]); ip != "" {
				return ip
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
