package mcp

import (
	"context"
	"encoding/json"

	mcpproto "github.com/mark3labs/mcp-go/mcp"

	"github.com/rabi/kinetic/tools"
)

// Tool adapts one MCP server tool to the agent tool interface.
type Tool struct {
	service     *Service
	name        string
	description string
	schema      map[string]interface{}
}

// NewTool wraps a server tool. The registered name is namespaced by the
// caller; the wrapped name is what the server knows the tool as.
func NewTool(service *Service, name, description string, schema map[string]interface{}) *Tool {
	return &Tool{
		service:     service,
		name:        name,
		description: description,
		schema:      schema,
	}
}

func (t *Tool) GetName() string {
	return t.name
}

func (t *Tool) GetDescription() string {
	return t.description
}

func (t *Tool) GetSchema() map[string]interface{} {
	return t.schema
}

func (t *Tool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return t.service.CallTool(ctx, t.name, args)
}

// SchemaToMap converts an MCP input schema to the plain map shape the
// tool interface exposes.
func SchemaToMap(schema mcpproto.ToolInputSchema) map[string]interface{} {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

var _ tools.Tool = (*Tool)(nil)
