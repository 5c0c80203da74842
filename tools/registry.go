package tools

import (
	"github.com/rabi/kinetic/pkg/registry"
)

// ============================================================================
// TOOL REGISTRY
// ============================================================================

// ToolRegistry is a process-local concurrent name → Tool map.
// Registration is last-wins on duplicate names.
type ToolRegistry struct {
	registry.Registry[Tool]
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		Registry: registry.NewBaseRegistry[Tool](),
	}
}

// RegisterTool registers a tool under its own name.
func (r *ToolRegistry) RegisterTool(tool Tool) error {
	if tool == nil {
		return &ToolError{
			Component: "registry",
			Action:    "register",
			Message:   "tool cannot be nil",
		}
	}
	return r.Register(tool.GetName(), tool)
}

// GetTool retrieves a tool by name.
func (r *ToolRegistry) GetTool(name string) (Tool, bool) {
	return r.Get(name)
}
