// Package tools defines the gateway's tool catalog: the static descriptors
// and handlers that forward to the Fortemi knowledge API. The catalog is
// loaded once at startup and registered as an immutable registry.
package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fortemi/matric-mcp/internal/domain/tool"
	"github.com/fortemi/matric-mcp/pkg/mcp"
)

// Catalog returns the gateway's tool descriptors.
func Catalog() []tool.Descriptor {
	return []tool.Descriptor{
		{
			Name:        "create_note",
			Description: "Create a new note in the active memory. Content is markdown; tags are optional.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"content": {"type": "string", "description": "Markdown body of the note"},
					"title": {"type": "string", "description": "Optional note title"},
					"tags": {"type": "array", "items": {"type": "string"}, "description": "Tags to attach"}
				},
				"required": ["content"]
			}`),
			Timeout: tool.TimeoutStandard,
			Handler: createNote,
		},
		{
			Name:        "get_note",
			Description: "Fetch a note by its identifier, including content and metadata.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"id": {"type": "string", "description": "Note identifier"}
				},
				"required": ["id"]
			}`),
			Annotations: mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true},
			Timeout:     tool.TimeoutStandard,
			Handler:     getNote,
		},
		{
			Name:        "update_note",
			Description: "Replace a note's content and/or title.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"id": {"type": "string", "description": "Note identifier"},
					"content": {"type": "string", "description": "New markdown body"},
					"title": {"type": "string", "description": "New title"}
				},
				"required": ["id"]
			}`),
			Annotations: mcp.ToolAnnotations{IdempotentHint: true},
			Timeout:     tool.TimeoutStandard,
			Handler:     updateNote,
		},
		{
			Name:        "delete_note",
			Description: "Delete a note permanently.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"id": {"type": "string", "description": "Note identifier"}
				},
				"required": ["id"]
			}`),
			Annotations: mcp.ToolAnnotations{DestructiveHint: true, IdempotentHint: true},
			Timeout:     tool.TimeoutStandard,
			Handler:     deleteNote,
		},
		{
			Name:        "search_notes",
			Description: "Hybrid full-text and semantic search over the active memory.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Search query"},
					"limit": {"type": "integer", "description": "Maximum results (default 10)"},
					"tags": {"type": "array", "items": {"type": "string"}, "description": "Restrict to notes carrying all of these tags"}
				},
				"required": ["query"]
			}`),
			Annotations: mcp.ToolAnnotations{ReadOnlyHint: true},
			Timeout:     tool.TimeoutStandard,
			Handler:     searchNotes,
		},
		{
			Name:        "list_tags",
			Description: "List all tags in the active memory with usage counts.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
			Annotations: mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true},
			Timeout:     tool.TimeoutLight,
			Handler:     listTags,
		},
		{
			Name:        "list_memories",
			Description: "List the knowledge memories (archives) available to this caller.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
			Annotations: mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true},
			Timeout:     tool.TimeoutLight,
			Handler:     listMemories,
		},
		{
			Name:        "select_memory",
			Description: "Select the memory used by subsequent tool calls in this session. Other sessions are unaffected.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"name": {"type": "string", "description": "Memory name; empty selects the default memory"}
				},
				"required": ["name"]
			}`),
			Annotations: mcp.ToolAnnotations{IdempotentHint: true},
			Timeout:     tool.TimeoutLight,
			Handler:     selectMemory,
		},
		{
			Name:        "get_job",
			Description: "Fetch the status of a background job (chunking, embedding, backup).",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"id": {"type": "string", "description": "Job identifier"}
				},
				"required": ["id"]
			}`),
			Annotations: mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true},
			Timeout:     tool.TimeoutLight,
			Handler:     getJob,
		},
		{
			Name:        "list_recent_jobs",
			Description: "List recently queued background jobs and their states.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"limit": {"type": "integer", "description": "Maximum jobs to return (default 20)"}
				}
			}`),
			Annotations: mcp.ToolAnnotations{ReadOnlyHint: true},
			Timeout:     tool.TimeoutLight,
			Handler:     listRecentJobs,
		},
	}
}

func createNote(ctx context.Context, call *tool.Call) (any, error) {
	content, err := stringArg(call.Args, "content")
	if err != nil {
		return nil, err
	}
	title, err := optionalStringArg(call.Args, "title")
	if err != nil {
		return nil, err
	}
	tags, err := optionalStringsArg(call.Args, "tags")
	if err != nil {
		return nil, err
	}

	body := map[string]any{"content": content}
	if title != "" {
		body["title"] = title
	}
	if len(tags) > 0 {
		body["tags"] = tags
	}

	var out map[string]any
	if err := call.Backend.Call(ctx, http.MethodPost, "/api/v1/notes", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func getNote(ctx context.Context, call *tool.Call) (any, error) {
	id, err := stringArg(call.Args, "id")
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if err := call.Backend.Call(ctx, http.MethodGet, "/api/v1/notes/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func updateNote(ctx context.Context, call *tool.Call) (any, error) {
	id, err := stringArg(call.Args, "id")
	if err != nil {
		return nil, err
	}
	content, err := optionalStringArg(call.Args, "content")
	if err != nil {
		return nil, err
	}
	title, err := optionalStringArg(call.Args, "title")
	if err != nil {
		return nil, err
	}

	body := map[string]any{}
	if content != "" {
		body["content"] = content
	}
	if title != "" {
		body["title"] = title
	}

	var out map[string]any
	if err := call.Backend.Call(ctx, http.MethodPatch, "/api/v1/notes/"+url.PathEscape(id), body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func deleteNote(ctx context.Context, call *tool.Call) (any, error) {
	id, err := stringArg(call.Args, "id")
	if err != nil {
		return nil, err
	}

	if err := call.Backend.Call(ctx, http.MethodDelete, "/api/v1/notes/"+url.PathEscape(id), nil, nil); err != nil {
		return nil, err
	}
	return map[string]any{"deleted": id}, nil
}

func searchNotes(ctx context.Context, call *tool.Call) (any, error) {
	query, err := stringArg(call.Args, "query")
	if err != nil {
		return nil, err
	}
	limit, err := optionalIntArg(call.Args, "limit", 10)
	if err != nil {
		return nil, err
	}
	tags, err := optionalStringsArg(call.Args, "tags")
	if err != nil {
		return nil, err
	}

	body := map[string]any{"query": query, "limit": limit}
	if len(tags) > 0 {
		body["tags"] = tags
	}

	var out map[string]any
	if err := call.Backend.Call(ctx, http.MethodPost, "/api/v1/search", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func listTags(ctx context.Context, call *tool.Call) (any, error) {
	var out []map[string]any
	if err := call.Backend.Call(ctx, http.MethodGet, "/api/v1/tags", nil, &out); err != nil {
		return nil, err
	}
	return map[string]any{"tags": out}, nil
}

func listMemories(ctx context.Context, call *tool.Call) (any, error) {
	var out []map[string]any
	if err := call.Backend.Call(ctx, http.MethodGet, "/api/v1/archives", nil, &out); err != nil {
		return nil, err
	}
	return map[string]any{
		"memories":      out,
		"active_memory": call.Session.ActiveMemory(),
	}, nil
}

// selectMemory validates the memory against the backend before committing
// it to the session, so a typo fails loudly instead of silently routing
// subsequent calls to a nonexistent namespace.
func selectMemory(ctx context.Context, call *tool.Call) (any, error) {
	name, err := optionalStringArg(call.Args, "name")
	if err != nil {
		return nil, err
	}

	if name != "" {
		if err := call.Backend.Call(ctx, http.MethodGet, "/api/v1/archives/"+url.PathEscape(name), nil, nil); err != nil {
			return nil, err
		}
	}

	if err := call.Session.SelectMemory(ctx, name); err != nil {
		return nil, err
	}

	active := name
	if active == "" {
		active = "(default)"
	}
	return map[string]any{"active_memory": active}, nil
}

func getJob(ctx context.Context, call *tool.Call) (any, error) {
	id, err := stringArg(call.Args, "id")
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if err := call.Backend.Call(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func listRecentJobs(ctx context.Context, call *tool.Call) (any, error) {
	limit, err := optionalIntArg(call.Args, "limit", 20)
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	path := "/api/v1/jobs/recent?limit=" + strconv.Itoa(limit)
	if err := call.Backend.Call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return map[string]any{"jobs": out}, nil
}
