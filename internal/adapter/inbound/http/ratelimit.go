package http

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter provides per-principal token-bucket rate limiting.
// Keys are OAuth client IDs; unauthenticated requests fall back to the
// client IP.
type RateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter allowing requestsPerSecond with
// the given burst size.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// getLimiter returns the limiter for a key, creating it on first use.
func (r *RateLimiter) getLimiter(key string) *rate.Limiter {
	now := time.Now()

	r.mu.RLock()
	entry, exists := r.limiters[key]
	r.mu.RUnlock()

	if exists {
		r.mu.Lock()
		entry.lastSeen = now
		r.mu.Unlock()
		return entry.limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock.
	if entry, exists = r.limiters[key]; exists {
		entry.lastSeen = now
		return entry.limiter
	}

	entry = &limiterEntry{
		limiter:  rate.NewLimiter(r.rate, r.burst),
		lastSeen: now,
	}
	r.limiters[key] = entry
	return entry.limiter
}

// Allow reports whether a request for the given key may proceed.
func (r *RateLimiter) Allow(key string) bool {
	return r.getLimiter(key).Allow()
}

// Cleanup removes limiters idle longer than maxAge. Call periodically to
// bound memory growth.
func (r *RateLimiter) Cleanup(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(r.limiters, key)
		}
	}
}

// Size returns the number of tracked keys.
func (r *RateLimiter) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.limiters)
}

// RateLimitMiddleware enforces the limiter, keyed by the authenticated
// principal's client ID. Must run after BearerAuthMiddleware. Exceeding
// requests are answered 429 with a Retry-After hint.
func RateLimitMiddleware(limiter *RateLimiter, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ""
			if principal := PrincipalFromContext(r.Context()); principal != nil {
				key = principal.ClientID
			}
			if key == "" {
				key = extractRealIP(r)
			}

			if !limiter.Allow(key) {
				if metrics != nil {
					metrics.RateLimitRejections.Inc()
				}
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
