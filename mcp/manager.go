// Package mcp supervises MCP (Model Context Protocol) tool servers as
// child processes over stdio and exposes their tools to agents.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	mcpproto "github.com/mark3labs/mcp-go/mcp"

	"github.com/rabi/kinetic"
)

// protocolVersion is the MCP protocol revision spoken to servers.
const protocolVersion = "2024-11-05"

// ServerConfig describes how to launch one MCP server.
type ServerConfig struct {
	Name    string
	Command string
	Args    []string
}

// Service is one running MCP server connection.
type Service struct {
	name   string
	client *client.Client
}

// Name returns the configured server name.
func (s *Service) Name() string {
	return s.name
}

// ListTools returns the tools the server advertises.
func (s *Service) ListTools(ctx context.Context) ([]mcpproto.Tool, error) {
	resp, err := s.client.ListTools(ctx, mcpproto.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools from %s: %w", s.name, err)
	}
	return resp.Tools, nil
}

// CallTool invokes a tool on the server and flattens the text content
// of the response into a result map.
func (s *Service) CallTool(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
	req := mcpproto.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	resp, err := s.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("MCP call failed: %w", err)
	}
	return parseToolResult(resp), nil
}

// Close shuts down the server connection and its child process.
func (s *Service) Close() error {
	return s.client.Close()
}

// parseToolResult converts an MCP tool result into the map shape agents
// consume: "result" for one text block, "results" for several, "error"
// when the server flags failure.
func parseToolResult(resp *mcpproto.CallToolResult) map[string]interface{} {
	result := make(map[string]interface{})

	if resp.IsError {
		for _, content := range resp.Content {
			if text, ok := content.(mcpproto.TextContent); ok {
				result["error"] = text.Text
				break
			}
		}
		if result["error"] == nil {
			result["error"] = "unknown error"
		}
		return result
	}

	var texts []string
	for _, content := range resp.Content {
		if text, ok := content.(mcpproto.TextContent); ok {
			texts = append(texts, text.Text)
		}
	}
	switch len(texts) {
	case 0:
	case 1:
		result["result"] = texts[0]
	default:
		result["results"] = texts
	}
	return result
}

// ============================================================================
// SERVICE MANAGER
// ============================================================================

// ServiceManager owns MCP services keyed by server name. Repeated
// requests for the same name share one child process.
type ServiceManager struct {
	mu       sync.Mutex
	services map[string]*Service
}

func NewServiceManager() *ServiceManager {
	return &ServiceManager{
		services: make(map[string]*Service),
	}
}

// GetOrCreateService returns the service for a server, launching and
// initializing the child process on first use.
func (m *ServiceManager) GetOrCreateService(ctx context.Context, config ServerConfig) (*Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if service, ok := m.services[config.Name]; ok {
		return service, nil
	}

	slog.Info("Creating MCP service", "name", config.Name, "command", config.Command, "args", config.Args)

	mcpClient, err := client.NewStdioMCPClient(config.Command, nil, config.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client for %s: %w", config.Name, err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client for %s: %w", config.Name, err)
	}

	initReq := mcpproto.InitializeRequest{}
	initReq.Params.ProtocolVersion = protocolVersion
	initReq.Params.ClientInfo = mcpproto.Implementation{
		Name:    "kinetic",
		Version: kinetic.Version,
	}

	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("failed to initialize MCP server %s: %w", config.Name, err)
	}

	service := &Service{name: config.Name, client: mcpClient}
	m.services[config.Name] = service
	return service, nil
}

// GetService returns an existing service by name.
func (m *ServiceManager) GetService(name string) (*Service, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	service, ok := m.services[name]
	return service, ok
}

// Close shuts down every managed service.
func (m *ServiceManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, service := range m.services {
		if err := service.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.services, name)
	}
	return firstErr
}
