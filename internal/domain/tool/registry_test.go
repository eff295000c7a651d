package tool

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func noopHandler(_ context.Context, _ *Call) (any, error) {
	return nil, nil
}

func TestNewRegistry_RejectsDuplicateNames(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry([]Descriptor{
		{Name: "list_notes", Handler: noopHandler},
		{Name: "list_notes", Handler: noopHandler},
	})
	if err == nil {
		t.Fatal("expected error for duplicate tool name")
	}
}

func TestNewRegistry_RejectsMissingName(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry([]Descriptor{{Handler: noopHandler}})
	if err == nil {
		t.Fatal("expected error for unnamed descriptor")
	}
}

func TestNewRegistry_RejectsMissingHandler(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry([]Descriptor{{Name: "list_notes"}})
	if err == nil {
		t.Fatal("expected error for descriptor without handler")
	}
}

func TestRegistry_Lookup(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry([]Descriptor{
		{Name: "search_notes", Handler: noopHandler},
		{Name: "get_note", Handler: noopHandler},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	if _, ok := reg.Lookup("get_note"); !ok {
		t.Error("Lookup(get_note) = false, want registered")
	}
	if _, ok := reg.Lookup("delete_everything"); ok {
		t.Error("Lookup(delete_everything) = true, want unregistered")
	}
	if reg.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reg.Len())
	}
}

func TestRegistry_ListSortedByName(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry([]Descriptor{
		{Name: "zeta", Handler: noopHandler},
		{Name: "alpha", Handler: noopHandler},
		{Name: "mid", Handler: noopHandler},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	infos := reg.List()
	want := []string{"alpha", "mid", "zeta"}
	if len(infos) != len(want) {
		t.Fatalf("List() length = %d, want %d", len(infos), len(want))
	}
	for i, name := range want {
		if infos[i].Name != name {
			t.Errorf("List()[%d].Name = %q, want %q", i, infos[i].Name, name)
		}
	}
}

func TestDescriptor_EffectiveTimeout(t *testing.T) {
	t.Parallel()

	d := Descriptor{Name: "x", Handler: noopHandler}
	if got := d.EffectiveTimeout(); got != TimeoutStandard {
		t.Errorf("EffectiveTimeout() = %v, want %v", got, TimeoutStandard)
	}

	d.Timeout = 5 * time.Second
	if got := d.EffectiveTimeout(); got != 5*time.Second {
		t.Errorf("EffectiveTimeout() = %v, want 5s", got)
	}
}

func TestDescriptor_Info(t *testing.T) {
	t.Parallel()

	schema := json.RawMessage(`{"type":"object"}`)
	d := Descriptor{
		Name:        "get_note",
		Description: "Fetch a note by ID",
		InputSchema: schema,
		Handler:     noopHandler,
	}

	info := d.Info()
	if info.Name != "get_note" {
		t.Errorf("Name = %q", info.Name)
	}
	if string(info.InputSchema) != string(schema) {
		t.Errorf("InputSchema = %s", info.InputSchema)
	}
	// No annotations set: the public view omits them entirely.
	if info.Annotations != nil {
		t.Error("Annotations non-nil for a descriptor without hints")
	}

	d.Annotations.ReadOnlyHint = true
	info = d.Info()
	if info.Annotations == nil || !info.Annotations.ReadOnlyHint {
		t.Error("ReadOnlyHint lost in Info()")
	}
}
