package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/fortemi/matric-mcp/internal/domain/tool"
)

// recordingInvoker captures the backend calls a handler makes and answers
// from a canned response table keyed by "METHOD path".
type recordingInvoker struct {
	calls     []recordedCall
	responses map[string]any
	err       error
}

type recordedCall struct {
	method string
	path   string
	body   any
}

func (r *recordingInvoker) Call(_ context.Context, method, path string, body, out any) error {
	r.calls = append(r.calls, recordedCall{method: method, path: path, body: body})
	if r.err != nil {
		return r.err
	}
	if out == nil {
		return nil
	}
	if resp, ok := r.responses[method+" "+path]; ok {
		data, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, out)
	}
	return nil
}

// fakeSession implements tool.SessionState in memory.
type fakeSession struct {
	memory    string
	selectErr error
}

func (f *fakeSession) ActiveMemory() string { return f.memory }

func (f *fakeSession) SelectMemory(_ context.Context, memory string) error {
	if f.selectErr != nil {
		return f.selectErr
	}
	f.memory = memory
	return nil
}

func handlerFor(t *testing.T, name string) tool.Handler {
	t.Helper()
	for _, d := range Catalog() {
		if d.Name == name {
			return d.Handler
		}
	}
	t.Fatalf("tool %q not in catalog", name)
	return nil
}

func TestCatalog_RegistersCleanly(t *testing.T) {
	t.Parallel()

	reg, err := tool.NewRegistry(Catalog())
	if err != nil {
		t.Fatalf("catalog does not build a registry: %v", err)
	}
	if reg.Len() != 10 {
		t.Errorf("Len() = %d, want 10", reg.Len())
	}

	// Every descriptor's schema must be valid JSON; it goes to clients
	// verbatim in tools/list.
	for _, info := range reg.List() {
		if !json.Valid(info.InputSchema) {
			t.Errorf("tool %s has invalid input schema", info.Name)
		}
	}
}

func TestCreateNote(t *testing.T) {
	t.Parallel()

	invoker := &recordingInvoker{responses: map[string]any{
		"POST /api/v1/notes": map[string]any{"id": "n-1"},
	}}
	call := &tool.Call{
		Args:    map[string]any{"content": "# Standup", "title": "standup", "tags": []any{"work"}},
		Backend: invoker,
		Session: &fakeSession{},
	}

	out, err := handlerFor(t, "create_note")(context.Background(), call)
	if err != nil {
		t.Fatalf("create_note error = %v", err)
	}
	if len(invoker.calls) != 1 || invoker.calls[0].path != "/api/v1/notes" {
		t.Fatalf("calls = %+v", invoker.calls)
	}
	body := invoker.calls[0].body.(map[string]any)
	if body["content"] != "# Standup" || body["title"] != "standup" {
		t.Errorf("body = %+v", body)
	}
	result := out.(map[string]any)
	if result["id"] != "n-1" {
		t.Errorf("result = %+v", result)
	}
}

func TestCreateNote_RequiresContent(t *testing.T) {
	t.Parallel()

	call := &tool.Call{Args: map[string]any{}, Backend: &recordingInvoker{}, Session: &fakeSession{}}
	if _, err := handlerFor(t, "create_note")(context.Background(), call); !errors.Is(err, tool.ErrInvalidArguments) {
		t.Fatalf("error = %v, want ErrInvalidArguments", err)
	}
}

func TestGetNote_EscapesID(t *testing.T) {
	t.Parallel()

	invoker := &recordingInvoker{}
	call := &tool.Call{
		Args:    map[string]any{"id": "a/b c"},
		Backend: invoker,
		Session: &fakeSession{},
	}

	if _, err := handlerFor(t, "get_note")(context.Background(), call); err != nil {
		t.Fatalf("get_note error = %v", err)
	}
	if got := invoker.calls[0].path; got != "/api/v1/notes/a%2Fb%20c" {
		t.Errorf("path = %q, want escaped id", got)
	}
}

func TestDeleteNote(t *testing.T) {
	t.Parallel()

	invoker := &recordingInvoker{}
	call := &tool.Call{
		Args:    map[string]any{"id": "n-1"},
		Backend: invoker,
		Session: &fakeSession{},
	}

	out, err := handlerFor(t, "delete_note")(context.Background(), call)
	if err != nil {
		t.Fatalf("delete_note error = %v", err)
	}
	if invoker.calls[0].method != "DELETE" {
		t.Errorf("method = %q, want DELETE", invoker.calls[0].method)
	}
	if out.(map[string]any)["deleted"] != "n-1" {
		t.Errorf("result = %+v", out)
	}
}

func TestSearchNotes_DefaultLimit(t *testing.T) {
	t.Parallel()

	invoker := &recordingInvoker{}
	call := &tool.Call{
		Args:    map[string]any{"query": "kubernetes"},
		Backend: invoker,
		Session: &fakeSession{},
	}

	if _, err := handlerFor(t, "search_notes")(context.Background(), call); err != nil {
		t.Fatalf("search_notes error = %v", err)
	}
	body := invoker.calls[0].body.(map[string]any)
	if body["limit"] != 10 {
		t.Errorf("limit = %v, want default 10", body["limit"])
	}
	if body["query"] != "kubernetes" {
		t.Errorf("query = %v", body["query"])
	}
}

func TestListMemories_ReportsActive(t *testing.T) {
	t.Parallel()

	invoker := &recordingInvoker{responses: map[string]any{
		"GET /api/v1/archives": []map[string]any{{"name": "research"}},
	}}
	call := &tool.Call{
		Args:    map[string]any{},
		Backend: invoker,
		Session: &fakeSession{memory: "research"},
	}

	out, err := handlerFor(t, "list_memories")(context.Background(), call)
	if err != nil {
		t.Fatalf("list_memories error = %v", err)
	}
	result := out.(map[string]any)
	if result["active_memory"] != "research" {
		t.Errorf("active_memory = %v", result["active_memory"])
	}
}

func TestSelectMemory_ValidatesBeforeCommitting(t *testing.T) {
	t.Parallel()

	invoker := &recordingInvoker{}
	sess := &fakeSession{}
	call := &tool.Call{
		Args:    map[string]any{"name": "research"},
		Backend: invoker,
		Session: sess,
	}

	if _, err := handlerFor(t, "select_memory")(context.Background(), call); err != nil {
		t.Fatalf("select_memory error = %v", err)
	}
	if len(invoker.calls) != 1 || invoker.calls[0].path != "/api/v1/archives/research" {
		t.Fatalf("calls = %+v, want existence check", invoker.calls)
	}
	if sess.memory != "research" {
		t.Errorf("session memory = %q, want research", sess.memory)
	}
}

func TestSelectMemory_UnknownMemoryNotCommitted(t *testing.T) {
	t.Parallel()

	invoker := &recordingInvoker{err: errors.New("not found")}
	sess := &fakeSession{memory: "old"}
	call := &tool.Call{
		Args:    map[string]any{"name": "typo"},
		Backend: invoker,
		Session: sess,
	}

	if _, err := handlerFor(t, "select_memory")(context.Background(), call); err == nil {
		t.Fatal("expected error for unknown memory")
	}
	if sess.memory != "old" {
		t.Errorf("session memory = %q, selection committed despite failure", sess.memory)
	}
}

func TestSelectMemory_EmptySelectsDefault(t *testing.T) {
	t.Parallel()

	invoker := &recordingInvoker{}
	sess := &fakeSession{memory: "research"}
	call := &tool.Call{
		Args:    map[string]any{"name": ""},
		Backend: invoker,
		Session: sess,
	}

	out, err := handlerFor(t, "select_memory")(context.Background(), call)
	if err != nil {
		t.Fatalf("select_memory error = %v", err)
	}
	// No existence check for the default memory.
	if len(invoker.calls) != 0 {
		t.Errorf("calls = %+v, want none", invoker.calls)
	}
	if sess.memory != "" {
		t.Errorf("session memory = %q, want empty", sess.memory)
	}
	if out.(map[string]any)["active_memory"] != "(default)" {
		t.Errorf("result = %+v", out)
	}
}

func TestListRecentJobs_LimitInQuery(t *testing.T) {
	t.Parallel()

	invoker := &recordingInvoker{}
	call := &tool.Call{
		Args:    map[string]any{"limit": 5.0},
		Backend: invoker,
		Session: &fakeSession{},
	}

	if _, err := handlerFor(t, "list_recent_jobs")(context.Background(), call); err != nil {
		t.Fatalf("list_recent_jobs error = %v", err)
	}
	if got := invoker.calls[0].path; got != "/api/v1/jobs/recent?limit=5" {
		t.Errorf("path = %q", got)
	}
}
