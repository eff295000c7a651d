package stdio

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fortemi/matric-mcp/internal/adapter/outbound/backend"
	"github.com/fortemi/matric-mcp/internal/adapter/outbound/memory"
	"github.com/fortemi/matric-mcp/internal/domain/session"
	"github.com/fortemi/matric-mcp/internal/domain/tool"
	"github.com/fortemi/matric-mcp/internal/service"
	"github.com/fortemi/matric-mcp/pkg/mcp"
)

// syncBuffer makes bytes.Buffer safe for the transport's concurrent writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestDispatcher(t *testing.T) *service.Dispatcher {
	t.Helper()

	store := memory.NewSessionStore(30 * time.Minute)
	sessions := session.NewService(store, session.Config{})
	registry, err := tool.NewRegistry([]tool.Descriptor{{
		Name:        "echo",
		Description: "Echo the arguments back",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler: func(_ context.Context, call *tool.Call) (any, error) {
			return call.Args, nil
		},
	}})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	base := backend.NewClient("http://127.0.0.1:0")
	return service.NewDispatcher(registry, sessions, func(_ *session.Session) *backend.Client {
		return base
	})
}

// runTransport feeds input lines through a transport and returns the
// decoded output lines.
func runTransport(t *testing.T, input string) []map[string]json.RawMessage {
	t.Helper()

	out := &syncBuffer{}
	transport := NewStdioTransport(newTestDispatcher(t),
		WithIO(strings.NewReader(input), out))

	if err := transport.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var responses []map[string]json.RawMessage
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var resp map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("output line is not valid JSON: %v\n%s", err, line)
		}
		responses = append(responses, resp)
	}
	return responses
}

func errorCode(t *testing.T, resp map[string]json.RawMessage) int64 {
	t.Helper()
	var detail mcp.ErrorDetail
	if err := json.Unmarshal(resp["error"], &detail); err != nil {
		t.Fatalf("response has no error member: %v", resp)
	}
	return detail.Code
}

func TestStdioTransport_InitializeThenCall(t *testing.T) {
	t.Parallel()

	input := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18"}}
{"jsonrpc":"2.0","method":"notifications/initialized"}
{"jsonrpc":"2.0","id":2,"method":"tools/list"}
{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"echo","arguments":{"q":"hi"}}}
`
	responses := runTransport(t, input)

	// Notification produces nothing: three requests, three responses.
	if len(responses) != 3 {
		t.Fatalf("responses = %d, want 3", len(responses))
	}

	byID := map[string]map[string]json.RawMessage{}
	for _, resp := range responses {
		byID[string(resp["id"])] = resp
	}

	init, ok := byID["1"]
	if !ok {
		t.Fatal("no response for initialize")
	}
	var initResult mcp.InitializeResult
	if err := json.Unmarshal(init["result"], &initResult); err != nil {
		t.Fatalf("decoding initialize result: %v", err)
	}
	if initResult.ProtocolVersion != mcp.ProtocolVersion {
		t.Errorf("protocolVersion = %q", initResult.ProtocolVersion)
	}

	list, ok := byID["2"]
	if !ok {
		t.Fatal("no response for tools/list")
	}
	var listResult mcp.ToolsListResult
	if err := json.Unmarshal(list["result"], &listResult); err != nil {
		t.Fatalf("decoding tools/list result: %v", err)
	}
	if len(listResult.Tools) != 1 || listResult.Tools[0].Name != "echo" {
		t.Errorf("tools = %+v", listResult.Tools)
	}

	call, ok := byID["3"]
	if !ok {
		t.Fatal("no response for tools/call")
	}
	if _, hasErr := call["error"]; hasErr {
		t.Errorf("tools/call failed: %s", call["error"])
	}
}

func TestStdioTransport_RequestBeforeInitialize(t *testing.T) {
	t.Parallel()

	input := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}
{"jsonrpc":"2.0","id":2,"method":"initialize","params":{}}
`
	responses := runTransport(t, input)
	if len(responses) != 2 {
		t.Fatalf("responses = %d, want 2", len(responses))
	}

	if code := errorCode(t, responses[0]); code != mcp.CodeNotInitialized {
		t.Errorf("pre-init error code = %d, want %d", code, mcp.CodeNotInitialized)
	}
	if _, hasErr := responses[1]["error"]; hasErr {
		t.Errorf("initialize failed: %s", responses[1]["error"])
	}
}

func TestStdioTransport_NotificationBeforeInitializeDropped(t *testing.T) {
	t.Parallel()

	input := `{"jsonrpc":"2.0","method":"notifications/initialized"}
`
	responses := runTransport(t, input)
	if len(responses) != 0 {
		t.Fatalf("responses = %d, want 0 (pre-init notification dropped)", len(responses))
	}
}

func TestStdioTransport_ParseError(t *testing.T) {
	t.Parallel()

	responses := runTransport(t, "{not json\n")
	if len(responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(responses))
	}
	if code := errorCode(t, responses[0]); code != mcp.CodeParseError {
		t.Errorf("error code = %d, want %d", code, mcp.CodeParseError)
	}
	if string(responses[0]["id"]) != "null" {
		t.Errorf("id = %s, want null", responses[0]["id"])
	}
}

func TestStdioTransport_BlankLinesIgnored(t *testing.T) {
	t.Parallel()

	input := "\n\n" + `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}` + "\n\n"
	responses := runTransport(t, input)
	if len(responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(responses))
	}
}

func TestStdioTransport_SessionTerminatedOnEOF(t *testing.T) {
	t.Parallel()

	dispatcher := newTestDispatcher(t)
	out := &syncBuffer{}
	input := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}` + "\n"
	transport := NewStdioTransport(dispatcher, WithIO(strings.NewReader(input), out))

	if err := transport.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if n := dispatcher.Sessions().Count(context.Background(), session.TransportStdio); n != 0 {
		t.Errorf("stdio sessions after EOF = %d, want 0", n)
	}
}
