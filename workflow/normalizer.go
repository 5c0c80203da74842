package workflow

import (
	"errors"
	"fmt"
)

// ============================================================================
// NORMALIZATION
// ============================================================================
//
// Every workflow kind is lowered to the same node-graph form before
// execution: Direct becomes a single node, Composite becomes a chain or
// a fan-out, Graph maps one to one.

var (
	ErrMissingAgent    = errors.New("Direct workflow missing agent definition")
	ErrMissingWorkflow = errors.New("Composite workflow missing workflow definition")
	ErrMissingGraph    = errors.New("Graph workflow missing graph definition")
)

// WaitMode selects how a node waits on its dependencies.
type WaitMode int

const (
	// WaitAll requires every dependency to complete.
	WaitAll WaitMode = iota
	// WaitAny requires at least one dependency to complete.
	WaitAny
)

// NodeDefinition is a normalized graph node.
type NodeDefinition struct {
	ID           string
	Agent        AgentConfig
	DependsOn    []string
	When         string
	OutputSchema map[string]interface{}
	Outputs      map[string]string
	WaitFor      WaitMode
}

// GraphWorkflow is the normalized form every workflow kind reduces to.
type GraphWorkflow struct {
	Name        string
	Description string
	State       map[string]StateFieldDef
	Nodes       []NodeDefinition
	// EmptyPassthrough makes a zero-node graph echo its input instead
	// of returning "". Set for sequential composites.
	EmptyPassthrough bool
}

// NormalizeToGraph lowers any workflow definition to graph form.
func NormalizeToGraph(def *WorkflowDefinition) (*GraphWorkflow, error) {
	switch def.Kind {
	case KindDirect:
		return normalizeDirect(def)
	case KindComposite:
		return normalizeComposite(def)
	case KindGraph:
		return normalizeGraph(def)
	default:
		return nil, fmt.Errorf("Unknown workflow kind: %s", def.Kind)
	}
}

func normalizeDirect(def *WorkflowDefinition) (*GraphWorkflow, error) {
	if def.Agent == nil {
		return nil, ErrMissingAgent
	}

	return &GraphWorkflow{
		Name:        def.Name,
		Description: def.Description,
		Nodes: []NodeDefinition{{
			ID:    "main",
			Agent: AgentConfig{Inline: def.Agent},
		}},
	}, nil
}

func normalizeComposite(def *WorkflowDefinition) (*GraphWorkflow, error) {
	if def.Workflow == nil {
		return nil, ErrMissingWorkflow
	}

	var nodes []NodeDefinition
	emptyPassthrough := false

	switch def.Workflow.Execution {
	case "sequential":
		emptyPassthrough = true
		// Each step depends on the previous one.
		var prev string
		for i, agentConfig := range def.Workflow.Agents {
			id := fmt.Sprintf("step_%d", i)
			node := NodeDefinition{ID: id, Agent: agentConfig}
			if prev != "" {
				node.DependsOn = []string{prev}
			}
			nodes = append(nodes, node)
			prev = id
		}

	case "parallel":
		for i, agentConfig := range def.Workflow.Agents {
			nodes = append(nodes, NodeDefinition{
				ID:    fmt.Sprintf("parallel_%d", i),
				Agent: agentConfig,
			})
		}

	case "loop":
		// One pass through the chain; iteration is an executor concern.
		for i, agentConfig := range def.Workflow.Agents {
			node := NodeDefinition{ID: fmt.Sprintf("loop_%d", i), Agent: agentConfig}
			if i > 0 {
				node.DependsOn = []string{fmt.Sprintf("loop_%d", i-1)}
			}
			nodes = append(nodes, node)
		}

	default:
		return nil, fmt.Errorf("Unknown execution mode: %s", def.Workflow.Execution)
	}

	return &GraphWorkflow{
		Name:             def.Name,
		Description:      def.Description,
		Nodes:            nodes,
		EmptyPassthrough: emptyPassthrough,
	}, nil
}

func normalizeGraph(def *WorkflowDefinition) (*GraphWorkflow, error) {
	if def.Graph == nil {
		return nil, ErrMissingGraph
	}

	nodes := make([]NodeDefinition, 0, len(def.Graph.Nodes))
	for _, nodeDef := range def.Graph.Nodes {
		waitMode := WaitAll
		if nodeDef.WaitFor == "any" {
			waitMode = WaitAny
		}

		nodes = append(nodes, NodeDefinition{
			ID:           nodeDef.ID,
			Agent:        nodeDef.Agent,
			DependsOn:    []string(nodeDef.DependsOn),
			When:         nodeDef.When,
			OutputSchema: nodeDef.OutputSchema,
			Outputs:      nodeDef.Outputs,
			WaitFor:      waitMode,
		})
	}

	return &GraphWorkflow{
		Name:        def.Name,
		Description: def.Description,
		State:       def.Graph.State,
		Nodes:       nodes,
	}, nil
}
