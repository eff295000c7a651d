package mcp

import (
	"testing"
)

func TestWrap_Request(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	msg, err := Wrap(raw)
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	if !msg.IsRequest() {
		t.Error("IsRequest() = false, want true")
	}
	if msg.IsNotification() {
		t.Error("IsNotification() = true for a request with an id")
	}
	if msg.Method() != "tools/list" {
		t.Errorf("Method() = %q, want tools/list", msg.Method())
	}
	if string(msg.RawID()) != "1" {
		t.Errorf("RawID() = %s, want 1", msg.RawID())
	}
}

func TestWrap_Notification(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	msg, err := Wrap(raw)
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}

	if !msg.IsNotification() {
		t.Error("IsNotification() = false for a request without an id")
	}
	if msg.RawID() != nil {
		t.Errorf("RawID() = %s, want nil", msg.RawID())
	}
}

func TestWrap_StringID(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"jsonrpc":"2.0","id":"req-9","method":"ping"}`)
	msg, err := Wrap(raw)
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}
	if string(msg.RawID()) != `"req-9"` {
		t.Errorf("RawID() = %s, want %q", msg.RawID(), `"req-9"`)
	}
}

func TestWrap_InvalidJSON(t *testing.T) {
	t.Parallel()

	if _, err := Wrap([]byte(`{not json`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestWrap_Response(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)
	msg, err := Wrap(raw)
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}
	if msg.IsRequest() {
		t.Error("IsRequest() = true for a response message")
	}
	if msg.Method() != "" {
		t.Errorf("Method() = %q, want empty for a response", msg.Method())
	}
}

func TestWrap_Params(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"list_notes"}}`)
	msg, err := Wrap(raw)
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}
	if len(msg.Params()) == 0 {
		t.Fatal("Params() empty, want raw params")
	}
}
