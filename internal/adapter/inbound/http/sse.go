package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fortemi/matric-mcp/internal/domain/session"
	"github.com/fortemi/matric-mcp/pkg/mcp"
)

// messagesPath is where legacy SSE clients POST their JSON-RPC requests.
const messagesPath = "/messages"

// sseHandler serves GET /sse, the legacy SSE binding's read side. Each
// connection gets its own session; the first event tells the client where
// to POST requests for it. Responses arrive as later events on this
// stream, never in a POST body.
func (t *HTTPTransport) sseHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}

		logger := LoggerFromContext(r.Context())
		principal := PrincipalFromContext(r.Context())

		sess, err := t.sessions.Create(r.Context(), session.TransportSSE, principal)
		if err != nil {
			logger.Error("failed to create session", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		ch := make(chan []byte, streamChannelBuffer)
		t.streams.register(sess.ID, ch)
		defer func() {
			t.streams.unregister(sess.ID, ch)
			// The stream is this session's only delivery path; without it
			// the session cannot be used again.
			_ = t.sessions.Terminate(context.WithoutCancel(r.Context()), sess.ID)
		}()

		logger.Info("session created",
			"session_id", sess.ID,
			"transport", sess.Transport,
			"client_id", principal.ClientID)

		_, _ = fmt.Fprintf(w, "event: endpoint\ndata: %s?sessionId=%s\n\n", messagesPath, sess.ID)
		flusher.Flush()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, open := <-ch:
				if !open {
					return
				}
				_, _ = fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
				flusher.Flush()
			}
		}
	})
}

// messagesHandler serves POST /messages?sessionId=<id>, the legacy SSE
// binding's write side. The request is acknowledged with 202 and the
// JSON-RPC response is pushed over the session's open stream.
func (t *HTTPTransport) messagesHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		logger := LoggerFromContext(r.Context())

		sessionID := r.URL.Query().Get("sessionId")
		if sessionID == "" {
			writeJSONRPC(w, http.StatusBadRequest,
				mcp.NewError(nil, mcp.CodeSessionNotFound, "Missing sessionId query parameter"))
			return
		}

		sess, err := t.sessions.Get(r.Context(), sessionID)
		if err != nil {
			status := http.StatusNotFound
			if !errors.Is(err, session.ErrSessionNotFound) {
				logger.Error("session lookup failed", "error", err)
				status = http.StatusInternalServerError
			}
			writeJSONRPC(w, status,
				mcp.NewError(nil, mcp.CodeSessionNotFound, "Session not found"))
			return
		}

		// Without an open stream the response would have nowhere to go;
		// that is a distinct client error, not a silent drop.
		if !t.streams.hasStream(sess.ID) {
			writeJSONRPC(w, http.StatusConflict,
				mcp.NewError(nil, mcp.CodeInvalidRequest, "No open event stream for session"))
			return
		}

		body, ok := readJSONRPCBody(w, r)
		if !ok {
			return
		}

		// Dispatch decoupled from this request's lifetime: the POST is
		// acknowledged now, the response travels over the GET /sse stream.
		ctx := context.WithoutCancel(r.Context())
		go func() {
			resp := t.dispatcher.Dispatch(ctx, sess, body)
			if resp == nil {
				return
			}
			if err := t.streams.publish(sess.ID, resp); err != nil {
				if t.metrics != nil {
					t.metrics.StreamDropsTotal.Inc()
				}
				logger.Warn("failed to deliver response over event stream",
					"session_id", sess.ID, "error", err)
			}
		}()

		w.WriteHeader(http.StatusAccepted)
	})
}
