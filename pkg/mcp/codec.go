package mcp

import (
	"encoding/json"
)

// Standard JSON-RPC 2.0 error codes.
const (
	// CodeParseError indicates invalid JSON was received.
	CodeParseError int64 = -32700
	// CodeInvalidRequest indicates the payload is not a valid Request object.
	CodeInvalidRequest int64 = -32600
	// CodeMethodNotFound indicates the JSON-RPC method does not exist.
	CodeMethodNotFound int64 = -32601
	// CodeInvalidParams indicates invalid method parameters.
	CodeInvalidParams int64 = -32602
	// CodeInternal indicates an internal JSON-RPC error.
	CodeInternal int64 = -32603
)

// Gateway-specific error codes, in the JSON-RPC implementation-defined range.
const (
	// CodeSessionNotFound is returned when a call names an unknown or
	// expired session.
	CodeSessionNotFound int64 = -32001
	// CodeNotInitialized is returned for requests before the initialize handshake.
	CodeNotInitialized int64 = -32002
	// CodeToolNotFound is returned when tools/call names an unregistered tool.
	CodeToolNotFound int64 = -32003
	// CodeBackendUnavailable is returned when the knowledge API cannot be reached
	// or does not answer within the call's deadline.
	CodeBackendUnavailable int64 = -32004
	// CodeBackendClient is returned when the knowledge API rejected the
	// call (4xx), re-expressed generically.
	CodeBackendClient int64 = -32005
)

// resultEnvelope is a JSON-RPC 2.0 success response.
// The ID is kept as raw JSON to preserve the caller's ID format
// (number, string, or null) byte for byte.
type resultEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
}

// errorEnvelope is a JSON-RPC 2.0 error response.
type errorEnvelope struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail is the error member of a JSON-RPC error response.
type ErrorDetail struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

// NewResult builds a serialized JSON-RPC success response for the given
// request ID. The result is marshalled as-is.
func NewResult(id json.RawMessage, result any) ([]byte, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	if id == nil {
		id = json.RawMessage("null")
	}
	return json.Marshal(resultEnvelope{
		JSONRPC: "2.0",
		ID:      id,
		Result:  payload,
	})
}

// NewError builds a serialized JSON-RPC error response for the given
// request ID. Marshalling cannot fail for these fixed shapes, so the
// encoded bytes are returned directly.
func NewError(id json.RawMessage, code int64, message string) []byte {
	if id == nil {
		id = json.RawMessage("null")
	}
	out, _ := json.Marshal(errorEnvelope{
		JSONRPC: "2.0",
		ID:      id,
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
	return out
}
