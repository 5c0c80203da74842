package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rabi/kinetic/agent"
	"github.com/rabi/kinetic/mcp"
	"github.com/rabi/kinetic/tools"
)

// ============================================================================
// WORKFLOW BUILDER
// ============================================================================

// ErrCircularDependency marks a graph whose depends_on edges cycle.
var ErrCircularDependency = errors.New("workflow contains a dependency cycle")

// Builder turns workflow YAML into a runnable GraphAgent: it starts MCP
// servers, normalizes the definition, rejects cycles, and compiles each
// node to an agent with a pre-parsed condition.
type Builder struct {
	loader     *Loader
	registry   *tools.ToolRegistry
	mcpManager *mcp.ServiceManager
}

func NewBuilder(registry *tools.ToolRegistry, mcpManager *mcp.ServiceManager) *Builder {
	return &Builder{
		loader:     NewLoader(),
		registry:   registry,
		mcpManager: mcpManager,
	}
}

// BuildAgentFromFile loads a workflow YAML file and builds its agent.
func (b *Builder) BuildAgentFromFile(ctx context.Context, path string) (agent.Agent, error) {
	def, err := b.loader.LoadWorkflow(path)
	if err != nil {
		return nil, err
	}
	return b.BuildFromDefinition(ctx, def)
}

// BuildFromDefinition builds an agent from a parsed definition.
func (b *Builder) BuildFromDefinition(ctx context.Context, def *WorkflowDefinition) (agent.Agent, error) {
	b.initializeMcpServers(ctx, def.McpServers)

	graphDef, err := NormalizeToGraph(def)
	if err != nil {
		return nil, err
	}
	slog.Info("Normalized workflow to graph",
		"kind", def.Kind, "workflow", def.Name, "nodes", len(graphDef.Nodes))

	if err := checkForCycles(graphDef); err != nil {
		return nil, err
	}

	return b.buildGraphAgent(ctx, graphDef)
}

func (b *Builder) buildGraphAgent(ctx context.Context, graphDef *GraphWorkflow) (agent.Agent, error) {
	factory := NewAgentFactory(b.registry)
	compiled := make([]*CompiledNode, 0, len(graphDef.Nodes))

	for _, nodeDef := range graphDef.Nodes {
		var nodeAgent agent.Agent
		var err error
		switch {
		case nodeDef.Agent.Inline != nil:
			nodeAgent, err = factory.Build(nodeDef.Agent.Inline)
		case nodeDef.Agent.Reference != nil:
			nodeAgent, err = b.BuildAgentFromFile(ctx, nodeDef.Agent.Reference.File)
		default:
			err = fmt.Errorf("node %s has no agent definition", nodeDef.ID)
		}
		if err != nil {
			return nil, err
		}

		var when Expression
		if nodeDef.When != "" {
			when, err = ParseCondition(nodeDef.When)
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", nodeDef.ID, err)
			}
		}

		compiled = append(compiled, &CompiledNode{
			ID:        nodeDef.ID,
			Agent:     nodeAgent,
			DependsOn: nodeDef.DependsOn,
			When:      when,
			Outputs:   nodeDef.Outputs,
			WaitMode:  nodeDef.WaitFor,
		})
	}

	slog.Info("Built graph agent", "workflow", graphDef.Name, "nodes", len(compiled))
	graphAgent := NewGraphAgent(graphDef.Name, graphDef.Description, graphDef.State, compiled)
	graphAgent.emptyPassthrough = graphDef.EmptyPassthrough
	return graphAgent, nil
}

// checkForCycles runs Kahn's algorithm over depends_on edges between
// known nodes. Edges to undeclared ids are ignored; they can never be
// satisfied but they cannot cycle either.
func checkForCycles(graphDef *GraphWorkflow) error {
	known := make(map[string]bool, len(graphDef.Nodes))
	for _, node := range graphDef.Nodes {
		known[node.ID] = true
	}

	indegree := make(map[string]int, len(graphDef.Nodes))
	dependents := make(map[string][]string)
	for _, node := range graphDef.Nodes {
		indegree[node.ID] = 0
	}
	for _, node := range graphDef.Nodes {
		for _, dep := range node.DependsOn {
			if !known[dep] {
				continue
			}
			indegree[node.ID]++
			dependents[dep] = append(dependents[dep], node.ID)
		}
	}

	var queue []string
	for _, node := range graphDef.Nodes {
		if indegree[node.ID] == 0 {
			queue = append(queue, node.ID)
		}
	}

	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, dependent := range dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if processed != len(graphDef.Nodes) {
		return fmt.Errorf("%w: workflow %s", ErrCircularDependency, graphDef.Name)
	}
	return nil
}

// initializeMcpServers starts the configured MCP servers and registers
// their tools under "<server>:<tool>". A failing server is logged and
// skipped so the workflow can still run with its remaining tools.
func (b *Builder) initializeMcpServers(ctx context.Context, servers []McpServerConfig) {
	for _, serverConfig := range servers {
		if err := b.initializeMcpServer(ctx, serverConfig); err != nil {
			slog.Error("Failed to initialize MCP server", "server", serverConfig.Name, "error", err)
			continue
		}
		slog.Info("Initialized MCP server", "server", serverConfig.Name)
	}
}

func (b *Builder) initializeMcpServer(ctx context.Context, config McpServerConfig) error {
	service, err := b.mcpManager.GetOrCreateService(ctx, mcp.ServerConfig{
		Name:    config.Name,
		Command: config.Command,
		Args:    config.Args,
	})
	if err != nil {
		return err
	}

	serverTools, err := service.ListTools(ctx)
	if err != nil {
		return err
	}

	for _, serverTool := range serverTools {
		name := fmt.Sprintf("%s:%s", config.Name, serverTool.Name)
		wrapper := mcp.NewTool(service, serverTool.Name, serverTool.Description, mcp.SchemaToMap(serverTool.InputSchema))
		if err := b.registry.Register(name, wrapper); err != nil {
			return err
		}
		slog.Info("Registered MCP tool", "tool", name)
	}
	return nil
}
