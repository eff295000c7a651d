// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fortemi/matric-mcp/internal/domain/session"
)

// DefaultSweepInterval is how often the background sweep reaps idle sessions.
const DefaultSweepInterval = 1 * time.Minute

// SessionStore implements session.Store with an in-memory map. The gateway
// owns no persistent storage, so this is the production store, not a stub.
// A background sweep reaps sessions that idle past the timeout; stdio
// sessions are exempt since their lifetime is the process.
type SessionStore struct {
	sessions      map[string]*session.Session
	mu            sync.RWMutex
	idleTimeout   time.Duration
	sweepInterval time.Duration
	stopChan      chan struct{}
	wg            sync.WaitGroup
	once          sync.Once // Prevent double-close panic on Stop()
	logger        *slog.Logger

	// OnReap, when set, is called with each reaped session ID after
	// eviction. The HTTP transport uses it to close any open streams.
	OnReap func(id string)
}

// NewSessionStore creates a store with the given idle timeout and the
// default sweep interval.
func NewSessionStore(idleTimeout time.Duration) *SessionStore {
	return NewSessionStoreWithConfig(idleTimeout, DefaultSweepInterval, slog.Default())
}

// NewSessionStoreWithConfig creates a store with explicit sweep settings.
func NewSessionStoreWithConfig(idleTimeout, sweepInterval time.Duration, logger *slog.Logger) *SessionStore {
	if idleTimeout == 0 {
		idleTimeout = session.DefaultIdleTimeout
	}
	if sweepInterval == 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &SessionStore{
		sessions:      make(map[string]*session.Session),
		idleTimeout:   idleTimeout,
		sweepInterval: sweepInterval,
		stopChan:      make(chan struct{}),
		logger:        logger,
	}
}

// StartSweep starts the background goroutine that reaps idle sessions.
// Call Stop() to stop it gracefully.
func (s *SessionStore) StartSweep(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

// sweep removes every non-stdio session idle past the timeout. Removal
// happens under the store lock, so it cannot interleave with a concurrent
// Touch on the same session: a request that got its Touch in first resets
// the idle clock and survives.
func (s *SessionStore) sweep() {
	now := time.Now().UTC()

	s.mu.Lock()
	var reaped []string
	for id, sess := range s.sessions {
		if sess.Transport == session.TransportStdio {
			continue
		}
		if sess.IdleSince(now) > s.idleTimeout {
			delete(s.sessions, id)
			reaped = append(reaped, id)
		}
	}
	s.mu.Unlock()

	if len(reaped) > 0 {
		s.logger.Debug("reaped idle sessions", "count", len(reaped))
		if s.OnReap != nil {
			for _, id := range reaped {
				s.OnReap(id)
			}
		}
	}
}

// Stop stops the background sweep and waits for it to exit.
// Safe to call multiple times.
func (s *SessionStore) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

// Create stores a new session.
func (s *SessionStore) Create(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external mutation.
	s.sessions[sess.ID] = copySession(sess)
	return nil
}

// Get retrieves a copy of a session by ID.
// Returns session.ErrSessionNotFound if the session doesn't exist.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return copySession(sess), nil
}

// Touch updates the session's LastActive to now.
func (s *SessionStore) Touch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return session.ErrSessionNotFound
	}
	sess.LastActive = time.Now().UTC()
	return nil
}

// SetActiveMemory changes the session's selected knowledge namespace.
// The mutation is visible only through this session's ID.
func (s *SessionStore) SetActiveMemory(ctx context.Context, id, memory string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return session.ErrSessionNotFound
	}
	sess.ActiveMemory = memory
	sess.LastActive = time.Now().UTC()
	return nil
}

// Terminate removes a session. Idempotent: removing an unknown ID is a no-op.
func (s *SessionStore) Terminate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Count returns the number of sessions for a transport (empty counts all).
func (s *SessionStore) Count(ctx context.Context, transport session.Transport) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if transport == "" {
		return len(s.sessions)
	}
	n := 0
	for _, sess := range s.sessions {
		if sess.Transport == transport {
			n++
		}
	}
	return n
}

// copySession creates a copy of a session. The principal is shared: it is
// immutable after authentication.
func copySession(sess *session.Session) *session.Session {
	sessCopy := *sess
	return &sessCopy
}

// Compile-time interface verification.
var _ session.Store = (*SessionStore)(nil)
