// Package mcp provides MCP message types and JSON-RPC codec utilities
// for the matric-mcp gateway.
package mcp

import (
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// ProtocolVersion is the MCP protocol version this gateway speaks.
const ProtocolVersion = "2025-06-18"

// Message wraps a decoded JSON-RPC message with gateway metadata.
// It stores both the raw bytes (for ID extraction without re-marshalling
// through the SDK's ID type) and the decoded message (for routing).
type Message struct {
	// Raw contains the original bytes of the message.
	Raw []byte

	// Decoded contains the parsed JSON-RPC message.
	// The concrete type is either *jsonrpc.Request or *jsonrpc.Response.
	Decoded jsonrpc.Message

	// Timestamp records when the message was received by the gateway.
	Timestamp time.Time
}

// Wrap decodes raw JSON-RPC bytes into a Message with the current timestamp.
func Wrap(raw []byte) (*Message, error) {
	decoded, err := jsonrpc.DecodeMessage(raw)
	if err != nil {
		return nil, err
	}
	return &Message{
		Raw:       raw,
		Decoded:   decoded,
		Timestamp: time.Now(),
	}, nil
}

// IsRequest returns true if the message is a JSON-RPC request or notification.
func (m *Message) IsRequest() bool {
	if m.Decoded == nil {
		return false
	}
	_, ok := m.Decoded.(*jsonrpc.Request)
	return ok
}

// Request returns the underlying Request if this is a request message.
// Returns nil otherwise.
func (m *Message) Request() *jsonrpc.Request {
	if m.Decoded == nil {
		return nil
	}
	req, _ := m.Decoded.(*jsonrpc.Request)
	return req
}

// Method returns the method name if this is a request, empty string otherwise.
func (m *Message) Method() string {
	req := m.Request()
	if req == nil {
		return ""
	}
	return req.Method
}

// RawID extracts the request ID from the raw message bytes as json.RawMessage.
// The SDK's jsonrpc.ID type doesn't round-trip through interface{} cleanly,
// so the ID is read directly from the raw JSON. Returns nil for notifications
// and for messages that are not requests.
func (m *Message) RawID() json.RawMessage {
	if m.Raw == nil {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(m.Raw, &raw); err != nil {
		return nil
	}
	return raw["id"]
}

// IsNotification returns true if the message is a request without an ID.
// Per JSON-RPC 2.0, notifications never receive a response.
func (m *Message) IsNotification() bool {
	return m.IsRequest() && m.RawID() == nil
}

// Params returns the raw params of the request, or nil.
func (m *Message) Params() json.RawMessage {
	req := m.Request()
	if req == nil {
		return nil
	}
	return req.Params
}
