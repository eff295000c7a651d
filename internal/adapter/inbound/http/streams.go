package http

import (
	"errors"
	"sync"
)

// streamChannelBuffer bounds each SSE stream's outbound queue. A full
// channel means the client is not draining; messages are dropped rather
// than blocking the dispatching goroutine.
const streamChannelBuffer = 16

// ErrNoStream is returned by publish when the session has no open SSE
// stream to deliver to.
var ErrNoStream = errors.New("no open event stream for session")

// ErrStreamFull is returned by publish when every open stream's buffer
// is full.
var ErrStreamFull = errors.New("event stream buffer full")

// streamRegistry tracks the open SSE streams per session. Both the
// StreamableHTTP GET stream and the legacy GET /sse stream register here;
// the legacy POST /messages handler publishes through it.
type streamRegistry struct {
	mu      sync.RWMutex
	streams map[string][]chan []byte
}

func newStreamRegistry() *streamRegistry {
	return &streamRegistry{
		streams: make(map[string][]chan []byte),
	}
}

// register adds a stream channel for a session.
func (r *streamRegistry) register(sessionID string, ch chan []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[sessionID] = append(r.streams[sessionID], ch)
}

// unregister removes a stream channel for a session.
func (r *streamRegistry) unregister(sessionID string, ch chan []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	channels := r.streams[sessionID]
	for i, c := range channels {
		if c == ch {
			r.streams[sessionID] = append(channels[:i], channels[i+1:]...)
			break
		}
	}
	if len(r.streams[sessionID]) == 0 {
		delete(r.streams, sessionID)
	}
}

// publish delivers a message to every open stream for the session.
// Returns ErrNoStream when none is open, ErrStreamFull when every open
// stream's buffer is full. The read lock is held across the sends so a
// concurrent closeSession cannot close a channel mid-send.
func (r *streamRegistry) publish(sessionID string, msg []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channels := r.streams[sessionID]
	if len(channels) == 0 {
		return ErrNoStream
	}

	delivered := false
	for _, ch := range channels {
		select {
		case ch <- msg:
			delivered = true
		default:
		}
	}
	if !delivered {
		return ErrStreamFull
	}
	return nil
}

// hasStream reports whether the session has at least one open stream.
func (r *streamRegistry) hasStream(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.streams[sessionID]) > 0
}

// closeSession closes and removes all streams for a session.
func (r *streamRegistry) closeSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.streams[sessionID] {
		close(ch)
	}
	delete(r.streams, sessionID)
}

// closeAll closes every stream for every session. Used on shutdown.
func (r *streamRegistry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, channels := range r.streams {
		for _, ch := range channels {
			close(ch)
		}
	}
	r.streams = make(map[string][]chan []byte)
}

// count returns the number of open streams across all sessions.
func (r *streamRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, channels := range r.streams {
		n += len(channels)
	}
	return n
}
