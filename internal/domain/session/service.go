package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fortemi/matric-mcp/internal/domain/auth"
)

// DefaultIdleTimeout is the default idle timeout before a session is reaped.
// One policy applies to every transport; the stdio session is exempt because
// its lifetime is the process.
const DefaultIdleTimeout = 30 * time.Minute

// Config holds session service configuration.
type Config struct {
	// IdleTimeout is how long a session may sit idle before it is reaped.
	// Default: 30 minutes.
	IdleTimeout time.Duration
}

// Service manages session lifecycle on top of a Store.
type Service struct {
	store   Store
	timeout time.Duration
}

// NewService creates a Service with the given store and config.
func NewService(store Store, cfg Config) *Service {
	timeout := cfg.IdleTimeout
	if timeout == 0 {
		timeout = DefaultIdleTimeout
	}
	return &Service{
		store:   store,
		timeout: timeout,
	}
}

// Create generates a new session for the given transport. principal must be
// non-nil for remote transports and nil for stdio.
func (s *Service) Create(ctx context.Context, transport Transport, principal *auth.Principal) (*Session, error) {
	if transport.Remote() && principal == nil {
		return nil, fmt.Errorf("transport %s requires an authenticated principal", transport)
	}

	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:         id,
		Transport:  transport,
		Principal:  principal,
		CreatedAt:  now,
		LastActive: now,
	}

	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return sess, nil
}

// Get retrieves a session by ID. Returns ErrSessionNotFound for unknown or
// idled-out sessions; an expired session found here is removed eagerly so
// a reuse of its ID cannot resurrect it before the sweep runs.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if sess.Transport != TransportStdio && sess.Expired(s.timeout) {
		_ = s.store.Terminate(ctx, id)
		return nil, ErrSessionNotFound
	}

	return sess, nil
}

// Touch marks the session active now.
func (s *Service) Touch(ctx context.Context, id string) error {
	return s.store.Touch(ctx, id)
}

// SelectMemory changes the session's active knowledge namespace.
func (s *Service) SelectMemory(ctx context.Context, id, memory string) error {
	return s.store.SetActiveMemory(ctx, id, memory)
}

// Terminate removes a session. Idempotent.
func (s *Service) Terminate(ctx context.Context, id string) error {
	return s.store.Terminate(ctx, id)
}

// Count returns the number of live sessions for a transport
// (empty transport counts all).
func (s *Service) Count(ctx context.Context, transport Transport) int {
	return s.store.Count(ctx, transport)
}

// IdleTimeout returns the configured idle timeout.
func (s *Service) IdleTimeout() time.Duration {
	return s.timeout
}

// GenerateID creates a cryptographically random session ID.
// Returns 64 hex characters (32 bytes).
func GenerateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}
