// Package tool defines the gateway's tool descriptors and the contract
// between the dispatcher and tool handlers.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fortemi/matric-mcp/pkg/mcp"
)

// ErrInvalidArguments marks a handler rejection of the supplied arguments.
// The dispatcher maps it to the JSON-RPC invalid-params error; messages
// wrapped around it are gateway-generated and safe to show to clients.
var ErrInvalidArguments = errors.New("invalid arguments")

// Timeout weights for backend calls, mirroring the knowledge API's
// operation costs. Light operations are simple lookups; standard covers
// CRUD and search.
const (
	// TimeoutLight bounds cheap lookups (tags, namespaces, job status).
	TimeoutLight = 10 * time.Second
	// TimeoutStandard bounds note CRUD and search calls.
	TimeoutStandard = 30 * time.Second
)

// Invoker issues calls against the knowledge API on behalf of one session.
// Implementations carry the session's credential and selected namespace;
// handlers only name the operation.
type Invoker interface {
	// Call performs an HTTP call against the knowledge API. body is JSON
	// encoded when non-nil; the response is decoded into out when non-nil.
	Call(ctx context.Context, method, path string, body, out any) error
}

// SessionState is the slice of session state a handler may read or mutate.
// Mutations are write-through: they land in the session store and are
// visible only to the owning session.
type SessionState interface {
	// ActiveMemory returns the session's selected namespace
	// (empty for the backend default).
	ActiveMemory() string
	// SelectMemory changes the session's selected namespace.
	SelectMemory(ctx context.Context, memory string) error
}

// Call carries everything a handler needs for one tools/call invocation.
type Call struct {
	// Args are the decoded tool arguments. Always a non-nil map; the
	// dispatcher rejects non-object arguments before invoking a handler.
	Args map[string]any
	// Backend issues knowledge API calls for this session.
	Backend Invoker
	// Session exposes the owning session's mutable state.
	Session SessionState
}

// Handler executes one tool call. The returned value is JSON-marshalled
// into a single text content block. Errors are sanitized by the dispatcher
// before reaching the client.
type Handler func(ctx context.Context, call *Call) (any, error)

// Descriptor is one entry of the tool registry: the public contract of a
// tool plus its handler. Loaded once at startup, immutable thereafter.
type Descriptor struct {
	// Name is the unique tool name.
	Name string
	// Description is the human-readable description shown to agents.
	Description string
	// InputSchema is the JSON Schema of the tool's arguments object.
	InputSchema json.RawMessage
	// Annotations are advisory side-effect hints, relayed but not enforced.
	Annotations mcp.ToolAnnotations
	// Timeout bounds the handler's backend calls. Zero means TimeoutStandard.
	Timeout time.Duration
	// Handler executes the call.
	Handler Handler
}

// EffectiveTimeout returns the descriptor's timeout, defaulted.
func (d *Descriptor) EffectiveTimeout() time.Duration {
	if d.Timeout == 0 {
		return TimeoutStandard
	}
	return d.Timeout
}

// Info returns the public view of the descriptor for tools/list.
func (d *Descriptor) Info() mcp.ToolInfo {
	info := mcp.ToolInfo{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: d.InputSchema,
	}
	if d.Annotations != (mcp.ToolAnnotations{}) {
		a := d.Annotations
		info.Annotations = &a
	}
	return info
}
