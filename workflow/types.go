// Package workflow loads YAML workflow definitions, normalizes them to
// a node graph, and executes the graph over shared reducer-backed state.
package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// DEFINITION TYPES
// ============================================================================

// Workflow kinds accepted in YAML.
const (
	KindDirect    = "Direct"
	KindComposite = "Composite"
	KindGraph     = "Graph"
)

// WorkflowDefinition is the top-level YAML document.
type WorkflowDefinition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Kind is "Direct", "Composite", or "Graph".
	Kind string `yaml:"kind"`
	// Agent holds the single agent of a Direct workflow.
	Agent *AgentDefinition `yaml:"agent,omitempty"`
	// Workflow holds the agent list of a Composite workflow.
	Workflow *CompositeDefinition `yaml:"workflow,omitempty"`
	// Graph holds the nodes of a Graph workflow.
	Graph *GraphDefinition `yaml:"graph,omitempty"`
	// McpServers are child tool servers started before the workflow runs.
	McpServers []McpServerConfig `yaml:"mcp_servers,omitempty"`
}

// AgentDefinition configures one agent.
type AgentDefinition struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Instructions string `yaml:"instructions"`
	// Executor is "default" (turn loop), "react", or "cot".
	Executor string          `yaml:"executor,omitempty"`
	Model    ModelDefinition `yaml:"model,omitempty"`
	Tools    []string        `yaml:"tools,omitempty"`
	// MaxIterations caps the ReAct loop (default 10).
	MaxIterations int `yaml:"max_iterations,omitempty"`
}

// ModelDefinition selects the model backing an agent. Provider is
// optional and may be inferred from the model name or environment.
type ModelDefinition struct {
	Provider   string                 `yaml:"provider,omitempty"`
	ModelName  string                 `yaml:"model_name,omitempty"`
	Kind       string                 `yaml:"kind,omitempty"`
	Parameters map[string]interface{} `yaml:"parameters,omitempty"`
}

// CompositeDefinition lists the agents of a Composite workflow.
type CompositeDefinition struct {
	// Execution is "sequential", "parallel", or "loop".
	Execution     string        `yaml:"execution"`
	Agents        []AgentConfig `yaml:"agents,omitempty"`
	MaxIterations int           `yaml:"max_iterations,omitempty"`
}

// WorkflowReference points at another workflow YAML file.
type WorkflowReference struct {
	File string `yaml:"file"`
}

// AgentConfig is either an inline agent definition or a file reference.
// Exactly one of Inline or Reference is set after unmarshaling.
type AgentConfig struct {
	Inline    *AgentDefinition
	Reference *WorkflowReference
}

func (c *AgentConfig) UnmarshalYAML(value *yaml.Node) error {
	var probe struct {
		File string `yaml:"file"`
	}
	if err := value.Decode(&probe); err == nil && probe.File != "" {
		ref := &WorkflowReference{}
		if err := value.Decode(ref); err != nil {
			return err
		}
		c.Reference = ref
		return nil
	}

	def := &AgentDefinition{}
	if err := value.Decode(def); err != nil {
		return err
	}
	c.Inline = def
	return nil
}

func (c AgentConfig) MarshalYAML() (interface{}, error) {
	if c.Reference != nil {
		return c.Reference, nil
	}
	return c.Inline, nil
}

// GraphDefinition declares graph workflow nodes and their shared state.
type GraphDefinition struct {
	State map[string]StateFieldDef `yaml:"state,omitempty"`
	Nodes []GraphNodeDefinition    `yaml:"nodes"`
}

// GraphNodeDefinition is one node in a graph workflow.
type GraphNodeDefinition struct {
	ID    string      `yaml:"id"`
	Agent AgentConfig `yaml:"agent"`
	// DependsOn lists node ids that gate this node.
	DependsOn DependsOn `yaml:"depends_on,omitempty"`
	// When is a condition expression evaluated against state.
	When string `yaml:"when,omitempty"`
	// OutputSchema is a JSON Schema the node output should satisfy.
	OutputSchema map[string]interface{} `yaml:"output_schema,omitempty"`
	// Outputs maps state field names to dotted paths in the node output.
	Outputs map[string]string `yaml:"outputs,omitempty"`
	// WaitFor is "all" (default) or "any".
	WaitFor string `yaml:"wait_for,omitempty"`
}

// DependsOn accepts either a single node id or a list of ids in YAML.
type DependsOn []string

func (d *DependsOn) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*d = DependsOn{single}
		return nil
	case yaml.SequenceNode:
		var multiple []string
		if err := value.Decode(&multiple); err != nil {
			return err
		}
		*d = DependsOn(multiple)
		return nil
	default:
		return fmt.Errorf("depends_on must be a string or list of strings")
	}
}

// StateFieldDef declares one shared state field.
type StateFieldDef struct {
	// Type is string, number, boolean, array, or object.
	Type string `yaml:"type"`
	// Reducer merges updates into the field; empty means overwrite.
	Reducer ReducerType `yaml:"reducer,omitempty"`
	// Default seeds the field before any node runs.
	Default interface{} `yaml:"default,omitempty"`
}

// ReducerType names a state merge strategy.
type ReducerType string

const (
	ReducerOverwrite ReducerType = "overwrite"
	ReducerAppend    ReducerType = "append"
	ReducerMax       ReducerType = "max"
	ReducerMin       ReducerType = "min"
	ReducerMerge     ReducerType = "merge"
)

// McpServerConfig describes a child-process tool server.
type McpServerConfig struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
}
