package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/fortemi/matric-mcp/internal/domain/session"
	"github.com/fortemi/matric-mcp/pkg/mcp"
)

// maxRequestBodySize is the maximum allowed request body size (1 MB).
const maxRequestBodySize = 1 << 20

// MCPSessionIDHeader carries the session identifier on the StreamableHTTP
// binding.
const MCPSessionIDHeader = "Mcp-Session-Id"

// MCPProtocolVersionHeader advertises the protocol version.
const MCPProtocolVersionHeader = "MCP-Protocol-Version"

// streamableHandler serves the StreamableHTTP binding on "/": POST carries
// JSON-RPC, GET opens the session's SSE stream, DELETE terminates the
// session.
func (t *HTTPTransport) streamableHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodPost:
			t.handleStreamablePost(w, r)
		case http.MethodGet:
			t.handleStreamableGet(w, r)
		case http.MethodDelete:
			t.handleStreamableDelete(w, r)
		case http.MethodOptions:
			handleOptions(w)
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	})
}

// handleStreamablePost processes one JSON-RPC message. An initialize
// request allocates the session and returns its id in the Mcp-Session-Id
// header, with the result formatted as a single SSE event; every other
// request must present an existing session id and gets a plain JSON body.
func (t *HTTPTransport) handleStreamablePost(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context())

	body, ok := readJSONRPCBody(w, r)
	if !ok {
		return
	}

	var probe struct {
		JSONRPC string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		ID      json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		writeJSONRPC(w, http.StatusBadRequest,
			mcp.NewError(nil, mcp.CodeInvalidRequest, "Invalid Request: request must be a JSON object"))
		return
	}
	if probe.JSONRPC != "2.0" {
		writeJSONRPC(w, http.StatusBadRequest,
			mcp.NewError(nil, mcp.CodeInvalidRequest, `Invalid Request: jsonrpc must be "2.0"`))
		return
	}
	if probe.Method == "" {
		writeJSONRPC(w, http.StatusBadRequest,
			mcp.NewError(nil, mcp.CodeInvalidRequest, "Invalid Request: missing method field"))
		return
	}

	w.Header().Set(MCPProtocolVersionHeader, mcp.ProtocolVersion)

	if probe.Method == "initialize" {
		principal := PrincipalFromContext(r.Context())
		sess, err := t.sessions.Create(r.Context(), session.TransportStreamableHTTP, principal)
		if err != nil {
			logger.Error("failed to create session", "error", err)
			writeJSONRPC(w, http.StatusInternalServerError,
				mcp.NewError(probe.ID, mcp.CodeInternal, "Internal error"))
			return
		}

		resp := t.dispatcher.Dispatch(r.Context(), sess, body)

		logger.Info("session created",
			"session_id", sess.ID,
			"transport", sess.Transport,
			"client_id", principal.ClientID)

		w.Header().Set(MCPSessionIDHeader, sess.ID)
		writeSingleSSEEvent(w, resp)
		return
	}

	sessionID := r.Header.Get(MCPSessionIDHeader)
	if sessionID == "" {
		writeJSONRPC(w, http.StatusBadRequest,
			mcp.NewError(probe.ID, mcp.CodeSessionNotFound, "Missing Mcp-Session-Id header"))
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
			mcp.NewError(probe.ID, mcp.CodeSessionNotFound, "Session not found"))
		return
	}

	w.Header().Set(MCPSessionIDHeader, sess.ID)

	resp := t.dispatcher.Dispatch(r.Context(), sess, body)
	if resp == nil {
		// Notification: acknowledged without a body.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	writeJSONRPC(w, http.StatusOK, resp)
}

// handleStreamableGet opens the session's long-lived SSE stream for
// server-initiated messages.
func (t *HTTPTransport) handleStreamableGet(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	sessionID := r.Header.Get(MCPSessionIDHeader)
	if sessionID == "" {
		http.Error(w, "Mcp-Session-Id header required", http.StatusBadRequest)
		return
	}

	sess, err := t.sessions.Get(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(MCPProtocolVersionHeader, mcp.ProtocolVersion)
	w.Header().Set(MCPSessionIDHeader, sess.ID)

	ch := make(chan []byte, streamChannelBuffer)
	t.streams.register(sess.ID, ch)
	defer t.streams.unregister(sess.ID, ch)

	_, _ = fmt.Fprint(w, ": connected\n\n")
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
			_, _ = fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// handleStreamableDelete terminates the session. Deleting an unknown or
// already-terminated session succeeds; only a missing header is an error.
func (t *HTTPTransport) handleStreamableDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(MCPSessionIDHeader)
	if sessionID == "" {
		http.Error(w, "Mcp-Session-Id header required", http.StatusBadRequest)
		return
	}

	t.streams.closeSession(sessionID)
	if err := t.sessions.Terminate(r.Context(), sessionID); err != nil {
		LoggerFromContext(r.Context()).Error("failed to terminate session",
			"session_id", sessionID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleOptions answers CORS preflight requests.
func handleOptions(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Mcp-Session-Id, MCP-Protocol-Version")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

// readJSONRPCBody reads and syntax-checks a JSON-RPC request body,
// answering the protocol error itself when the body is unusable.
func readJSONRPCBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if ct := r.Header.Get("Content-Type"); ct != "" && ct != "application/json" {
		writeJSONRPC(w, http.StatusUnsupportedMediaType,
			mcp.NewError(nil, mcp.CodeParseError, "Parse error: content type must be application/json"))
		return nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeJSONRPC(w, http.StatusRequestEntityTooLarge,
				mcp.NewError(nil, mcp.CodeParseError, "Parse error: request body too large (max 1MB)"))
			return nil, false
		}
		writeJSONRPC(w, http.StatusBadRequest,
			mcp.NewError(nil, mcp.CodeParseError, "Parse error: failed to read request body"))
		return nil, false
	}

	if len(body) == 0 {
		writeJSONRPC(w, http.StatusBadRequest,
			mcp.NewError(nil, mcp.CodeParseError, "Parse error: empty request body"))
		return nil, false
	}

	if !json.Valid(body) {
		writeJSONRPC(w, http.StatusBadRequest,
			mcp.NewError(nil, mcp.CodeParseError, "Parse error: invalid JSON"))
		return nil, false
	}

	return body, true
}

// writeJSONRPC writes a serialized JSON-RPC message with the given HTTP
// status.
func writeJSONRPC(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// writeSingleSSEEvent writes one JSON-RPC message as a single SSE data
// event and closes the response. Streaming and non-streaming clients read
// initialize results through one code path this way.
func writeSingleSSEEvent(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
