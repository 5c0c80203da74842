package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirectWorkflow(t *testing.T) {
	yaml := `
kind: Direct
name: TestAgent
description: "A test agent"

agent:
  name: TestAgent
  description: "Test description"
  instructions: "You are a test agent."
  model:
    kind: llm
  tools: []
`
	def, err := ParseYAML([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, "TestAgent", def.Name)
	assert.Equal(t, KindDirect, def.Kind)
	require.NotNil(t, def.Agent)
	assert.Nil(t, def.Workflow)
	assert.Equal(t, "You are a test agent.", def.Agent.Instructions)
	assert.Empty(t, def.Agent.Tools)
}

func TestParseCompositeWorkflow(t *testing.T) {
	yaml := `
kind: Composite
name: TestWorkflow
description: "A test workflow"

workflow:
  execution: sequential
  agents:
    - file: agents/step1.yaml
    - file: agents/step2.yaml
`
	def, err := ParseYAML([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, KindComposite, def.Kind)
	require.NotNil(t, def.Workflow)
	assert.Equal(t, "sequential", def.Workflow.Execution)
	require.Len(t, def.Workflow.Agents, 2)

	require.NotNil(t, def.Workflow.Agents[0].Reference)
	assert.Equal(t, "agents/step1.yaml", def.Workflow.Agents[0].Reference.File)
	assert.Nil(t, def.Workflow.Agents[0].Inline)
}

func TestParseLoopWorkflow(t *testing.T) {
	yaml := `
kind: Composite
name: LoopWorkflow
description: "A loop workflow"

workflow:
  execution: loop
  max_iterations: 5
  agents:
    - file: agents/worker.yaml
`
	def, err := ParseYAML([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, "loop", def.Workflow.Execution)
	assert.Equal(t, 5, def.Workflow.MaxIterations)
}

func TestParseInlineAgentInComposite(t *testing.T) {
	yaml := `
kind: Composite
name: InlineWorkflow
description: "Inline agents"

workflow:
  execution: parallel
  agents:
    - name: Worker
      description: "A worker"
      instructions: "Work."
      model:
        kind: llm
`
	def, err := ParseYAML([]byte(yaml))
	require.NoError(t, err)
	require.Len(t, def.Workflow.Agents, 1)
	require.NotNil(t, def.Workflow.Agents[0].Inline)
	assert.Equal(t, "Worker", def.Workflow.Agents[0].Inline.Name)
}

func TestParseModelWithProvider(t *testing.T) {
	yaml := `
kind: Direct
name: TestAgent
description: "Test"

agent:
  name: TestAgent
  description: "Test"
  instructions: "Test"
  model:
    kind: llm
    provider: OpenAI
    model_name: gpt-4o
    parameters:
      temperature: 0.5
  tools: []
`
	def, err := ParseYAML([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, "OpenAI", def.Agent.Model.Provider)
	assert.Equal(t, "gpt-4o", def.Agent.Model.ModelName)
	assert.Equal(t, 0.5, def.Agent.Model.Parameters["temperature"])
}

func TestParseMcpServers(t *testing.T) {
	yaml := `
kind: Direct
name: MCPTest
description: "Test MCP"

mcp_servers:
  - name: "myserver"
    command: "npx"
    args: ["-y", "some-package"]

agent:
  name: MCPTest
  description: "Test"
  instructions: "Test"
  model:
    kind: llm
  tools:
    - "myserver:tool1"
`
	def, err := ParseYAML([]byte(yaml))
	require.NoError(t, err)
	require.Len(t, def.McpServers, 1)
	assert.Equal(t, "myserver", def.McpServers[0].Name)
	assert.Equal(t, "npx", def.McpServers[0].Command)
	assert.Equal(t, []string{"-y", "some-package"}, def.McpServers[0].Args)
	assert.Equal(t, []string{"myserver:tool1"}, def.Agent.Tools)
}

func TestParseGraphWorkflow(t *testing.T) {
	yaml := `
kind: Graph
name: GraphTest
description: "Graph"

graph:
  state:
    intent:
      type: string
    findings:
      type: array
      reducer: append
    confidence:
      type: number
      default: 0.0
  nodes:
    - id: classify
      agent:
        name: Classifier
        description: "Classifies"
        instructions: "Classify."
        model:
          kind: llm
      outputs:
        intent: intent
    - id: search
      agent:
        file: agents/searcher.yaml
      depends_on: classify
      when: "intent == 'search'"
    - id: join
      agent:
        name: Joiner
        description: "Joins"
        instructions: "Join."
        model:
          kind: llm
      depends_on: [classify, search]
      wait_for: any
`
	def, err := ParseYAML([]byte(yaml))
	require.NoError(t, err)
	require.NotNil(t, def.Graph)

	state := def.Graph.State
	assert.Equal(t, "string", state["intent"].Type)
	assert.Equal(t, ReducerAppend, state["findings"].Reducer)
	assert.Equal(t, 0.0, state["confidence"].Default)

	require.Len(t, def.Graph.Nodes, 3)
	assert.Equal(t, DependsOn{"classify"}, def.Graph.Nodes[1].DependsOn)
	assert.Equal(t, DependsOn{"classify", "search"}, def.Graph.Nodes[2].DependsOn)
	assert.Equal(t, "any", def.Graph.Nodes[2].WaitFor)
	assert.Equal(t, "intent == 'search'", def.Graph.Nodes[1].When)
	assert.Equal(t, map[string]string{"intent": "intent"}, def.Graph.Nodes[0].Outputs)
}

func TestParseExpandsEnvVars(t *testing.T) {
	t.Setenv("WORKFLOW_MODEL", "gpt-4o")

	yaml := `
kind: Direct
name: EnvTest
description: "Env expansion"

agent:
  name: EnvTest
  description: "Test"
  instructions: "Test"
  model:
    kind: llm
    model_name: ${WORKFLOW_MODEL}
  tools: []
`
	def, err := ParseYAML([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", def.Agent.Model.ModelName)
}

func TestParseEnvVarDefault(t *testing.T) {
	os.Unsetenv("WORKFLOW_MISSING_VAR")

	yaml := `
kind: Direct
name: EnvTest
description: "Env default"

agent:
  name: EnvTest
  description: "Test"
  instructions: "Test"
  model:
    kind: llm
    model_name: ${WORKFLOW_MISSING_VAR:-gemini-2.0-flash}
  tools: []
`
	def, err := ParseYAML([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", def.Agent.Model.ModelName)
}

func TestParseInvalidYAMLReturnsError(t *testing.T) {
	yaml := `
kind: Direct
name:
  - invalid structure
`
	_, err := ParseYAML([]byte(yaml))
	assert.Error(t, err)
}

func TestLoadWorkflowFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wf.yaml")
	content := `
kind: Direct
name: FileTest
description: "From file"

agent:
  name: FileTest
  description: "Test"
  instructions: "Test"
  model:
    kind: llm
  tools: []
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	def, err := NewLoader().LoadWorkflow(path)
	require.NoError(t, err)
	assert.Equal(t, "FileTest", def.Name)
}

func TestLoadWorkflowMissingFile(t *testing.T) {
	_, err := NewLoader().LoadWorkflow("/nonexistent/wf.yaml")
	assert.Error(t, err)
}
