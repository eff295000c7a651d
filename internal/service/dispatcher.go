// Package service contains the JSON-RPC method dispatcher shared by all
// transport adapters.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fortemi/matric-mcp/internal/adapter/outbound/backend"
	"github.com/fortemi/matric-mcp/internal/ctxkey"
	"github.com/fortemi/matric-mcp/internal/domain/session"
	"github.com/fortemi/matric-mcp/internal/domain/tool"
	"github.com/fortemi/matric-mcp/pkg/mcp"
)

// BackendFactory derives the credential-bound knowledge API client for a
// session. On stdio this returns the process-wide API-key client; on the
// HTTP transports it binds the principal's bearer token.
type BackendFactory func(sess *session.Session) *backend.Client

// Dispatcher routes JSON-RPC methods. The protocol method set is closed
// (initialize, notifications/initialized, ping, tools/list, tools/call);
// the tool name set is open, resolved through the registry.
type Dispatcher struct {
	registry   *tool.Registry
	sessions   *session.Service
	backendFor BackendFactory
	logger     *slog.Logger

	serverName    string
	serverVersion string

	// onCredentialRejected, when set, is called with the session's bearer
	// token after the backend answered 401, so the introspection cache can
	// drop the stale entry before its recorded expiry.
	onCredentialRejected func(token string)
}

// DispatcherOption is a functional option for configuring Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithServerInfo overrides the identity advertised in initialize.
func WithServerInfo(name, version string) DispatcherOption {
	return func(d *Dispatcher) {
		d.serverName = name
		d.serverVersion = version
	}
}

// WithCredentialRejectedHook registers the callback invoked when the
// backend rejects a session's bearer token.
func WithCredentialRejectedHook(hook func(token string)) DispatcherOption {
	return func(d *Dispatcher) {
		d.onCredentialRejected = hook
	}
}

// NewDispatcher creates a dispatcher over the given registry and sessions.
func NewDispatcher(registry *tool.Registry, sessions *session.Service, backendFor BackendFactory, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry:      registry,
		sessions:      sessions,
		backendFor:    backendFor,
		logger:        slog.Default(),
		serverName:    "matric-mcp",
		serverVersion: "dev",
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Sessions exposes the session service for transport adapters.
func (d *Dispatcher) Sessions() *session.Service {
	return d.sessions
}

// Dispatch processes one raw JSON-RPC message for a session and returns the
// serialized response, or nil when the message is a notification. Every
// request with an id yields exactly one response; Dispatch never panics a
// transport loop — all failures become JSON-RPC error envelopes.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *session.Session, raw []byte) []byte {
	logger := d.loggerFrom(ctx)

	msg, err := mcp.Wrap(raw)
	if err != nil {
		logger.Debug("unparseable message", "error", err)
		return mcp.NewError(nil, mcp.CodeParseError, "Parse error")
	}

	// Clients only send requests and notifications; stray responses are
	// dropped without an answer.
	if !msg.IsRequest() {
		return nil
	}

	id := msg.RawID()

	if sess != nil {
		if err := d.sessions.Touch(ctx, sess.ID); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
			logger.Warn("failed to touch session", "session_id", sess.ID, "error", err)
		}
	}

	switch msg.Method() {
	case "initialize":
		return d.handleInitialize(id)
	case "notifications/initialized", "initialized":
		// Client acknowledgement; consumed without a response.
		return nil
	case "ping":
		return d.result(id, struct{}{})
	case "tools/list":
		return d.result(id, mcp.ToolsListResult{Tools: d.registry.List()})
	case "tools/call":
		return d.handleToolsCall(ctx, logger, sess, id, msg.Params())
	default:
		if msg.IsNotification() {
			return nil
		}
		return mcp.NewError(id, mcp.CodeMethodNotFound,
			fmt.Sprintf("Method not found: %s", msg.Method()))
	}
}

// handleInitialize returns the gateway's capabilities. Session allocation
// is the transport adapter's job; by the time a message reaches the
// dispatcher its session (if any) already exists.
func (d *Dispatcher) handleInitialize(id json.RawMessage) []byte {
	return d.result(id, mcp.InitializeResult{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities: map[string]any{
			"tools": map[string]any{},
		},
		ServerInfo: mcp.ServerInfo{
			Name:    d.serverName,
			Version: d.serverVersion,
		},
	})
}

// handleToolsCall resolves the tool, validates arguments, and invokes the
// handler with the session-bound backend client.
func (d *Dispatcher) handleToolsCall(ctx context.Context, logger *slog.Logger, sess *session.Session, id json.RawMessage, params json.RawMessage) []byte {
	if sess == nil {
		return mcp.NewError(id, mcp.CodeNotInitialized, "Server not initialized")
	}

	var callParams mcp.CallToolParams
	if len(params) == 0 {
		return mcp.NewError(id, mcp.CodeInvalidParams, "tools/call requires params")
	}
	if err := json.Unmarshal(params, &callParams); err != nil || callParams.Name == "" {
		return mcp.NewError(id, mcp.CodeInvalidParams, "tools/call params must name a tool")
	}

	desc, ok := d.registry.Lookup(callParams.Name)
	if !ok {
		return mcp.NewError(id, mcp.CodeToolNotFound,
			fmt.Sprintf("Tool not found: %s", callParams.Name))
	}

	args := map[string]any{}
	if len(callParams.Arguments) > 0 && string(callParams.Arguments) != "null" {
		if err := json.Unmarshal(callParams.Arguments, &args); err != nil {
			return mcp.NewError(id, mcp.CodeInvalidParams, "tool arguments must be a JSON object")
		}
	}

	call := &tool.Call{
		Args:    args,
		Backend: d.backendFor(sess).WithMemory(sess.ActiveMemory),
		Session: &sessionState{svc: d.sessions, sess: sess},
	}

	callCtx, cancel := context.WithTimeout(ctx, desc.EffectiveTimeout())
	defer cancel()

	logger.Debug("invoking tool", "tool", desc.Name, "session_id", sess.ID)

	value, err := desc.Handler(callCtx, call)
	if err != nil {
		return d.sanitizeError(logger, sess, id, desc.Name, err)
	}

	result, err := mcp.TextResult(value)
	if err != nil {
		logger.Error("failed to encode tool result", "tool", desc.Name, "error", err)
		return mcp.NewError(id, mcp.CodeInternal, "Internal error")
	}

	return d.result(id, result)
}

// sanitizeError maps a handler failure onto the gateway's error vocabulary.
// Raw backend or handler text never reaches the client.
func (d *Dispatcher) sanitizeError(logger *slog.Logger, sess *session.Session, id json.RawMessage, toolName string, err error) []byte {
	var backendErr *backend.Error
	switch {
	case errors.As(err, &backendErr):
		if backendErr.Status == 401 && sess.Principal != nil && d.onCredentialRejected != nil {
			d.onCredentialRejected(sess.Principal.Token)
		}
		switch backendErr.Kind {
		case backend.KindUnavailable:
			return mcp.NewError(id, mcp.CodeBackendUnavailable, backendErr.Message)
		case backend.KindClient:
			return mcp.NewError(id, mcp.CodeBackendClient, backendErr.Message)
		default:
			return mcp.NewError(id, mcp.CodeInternal, backendErr.Message)
		}
	case errors.Is(err, tool.ErrInvalidArguments):
		return mcp.NewError(id, mcp.CodeInvalidParams, err.Error())
	case errors.Is(err, session.ErrSessionNotFound):
		return mcp.NewError(id, mcp.CodeSessionNotFound, "Session not found")
	case errors.Is(err, context.DeadlineExceeded):
		return mcp.NewError(id, mcp.CodeBackendUnavailable, "Knowledge API timed out")
	default:
		logger.Error("tool handler failed", "tool", toolName, "error", err)
		return mcp.NewError(id, mcp.CodeInternal, "Internal error")
	}
}

// result wraps a payload into a success envelope, degrading to an internal
// error if the payload cannot be encoded.
func (d *Dispatcher) result(id json.RawMessage, payload any) []byte {
	out, err := mcp.NewResult(id, payload)
	if err != nil {
		d.logger.Error("failed to encode result", "error", err)
		return mcp.NewError(id, mcp.CodeInternal, "Internal error")
	}
	return out
}

// loggerFrom retrieves the request-enriched logger from context, falling
// back to the dispatcher's own.
func (d *Dispatcher) loggerFrom(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return d.logger
}

// sessionState adapts the session service to the tool.SessionState port,
// write-through for namespace selection.
type sessionState struct {
	svc  *session.Service
	sess *session.Session
}

func (s *sessionState) ActiveMemory() string {
	return s.sess.ActiveMemory
}

func (s *sessionState) SelectMemory(ctx context.Context, memory string) error {
	if err := s.svc.SelectMemory(ctx, s.sess.ID, memory); err != nil {
		return err
	}
	s.sess.ActiveMemory = memory
	return nil
}

// Compile-time check that sessionState implements the tool port.
var _ tool.SessionState = (*sessionState)(nil)
