// Package tools defines the Tool capability, the concurrent tool
// registry, and the built-in tool factories (web search, GitHub).
package tools

import (
	"context"
	"fmt"
)

// ============================================================================
// TOOL INTERFACE
// ============================================================================

// Tool is an external function the model can invoke. GetSchema returns
// a JSON-schema object describing the argument shape. Execute must not
// panic; failures are returned as errors and converted by the agent
// loop into an error payload the model can read.
type Tool interface {
	GetName() string
	GetDescription() string
	GetSchema() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// ============================================================================
// ERRORS
// ============================================================================

// ToolError represents an error in tool construction or execution.
type ToolError struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Action, e.Message)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// ErrConfigMissing marks a tool factory failure caused by missing
// configuration (typically an unset env var). Callers log a warning and
// omit the tool instead of failing the build.
var ErrConfigMissing = fmt.Errorf("required configuration missing")

// NewConfigMissingError reports an unset env var a tool factory needs.
func NewConfigMissingError(component, envVar string) *ToolError {
	return &ToolError{
		Component: component,
		Action:    "create",
		Message:   fmt.Sprintf("%s must be set", envVar),
		Err:       ErrConfigMissing,
	}
}
