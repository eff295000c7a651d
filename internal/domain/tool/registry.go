package tool

import (
	"fmt"
	"sort"

	"github.com/fortemi/matric-mcp/pkg/mcp"
)

// Registry is the immutable mapping from tool name to descriptor.
// Built once at startup; safe for unsynchronized concurrent reads.
type Registry struct {
	tools map[string]*Descriptor
	infos []mcp.ToolInfo
}

// NewRegistry builds a registry from descriptors. Names must be unique and
// every descriptor must carry a handler.
func NewRegistry(descriptors []Descriptor) (*Registry, error) {
	tools := make(map[string]*Descriptor, len(descriptors))
	for i := range descriptors {
		d := descriptors[i]
		if d.Name == "" {
			return nil, fmt.Errorf("tool descriptor %d has no name", i)
		}
		if d.Handler == nil {
			return nil, fmt.Errorf("tool %q has no handler", d.Name)
		}
		if _, dup := tools[d.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", d.Name)
		}
		tools[d.Name] = &d
	}

	// Precompute the tools/list payload in deterministic order.
	infos := make([]mcp.ToolInfo, 0, len(tools))
	for _, d := range tools {
		infos = append(infos, d.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	return &Registry{tools: tools, infos: infos}, nil
}

// Lookup returns the descriptor for name, if registered.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	d, ok := r.tools[name]
	return d, ok
}

// List returns the public descriptors of every tool, sorted by name.
// Callers must not modify the returned slice.
func (r *Registry) List() []mcp.ToolInfo {
	return r.infos
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}
