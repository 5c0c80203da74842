package workflow

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/rabi/kinetic/agent"
	"github.com/rabi/kinetic/llms"
	"github.com/rabi/kinetic/tools"
)

// ============================================================================
// AGENT FACTORY
// ============================================================================

// defaultModelName is used when neither the definition nor the
// environment names a model.
const defaultModelName = "gemini-2.0-flash"

// AgentFactory builds runnable agents from agent definitions, binding
// models and registry tools.
type AgentFactory struct {
	registry *tools.ToolRegistry
}

func NewAgentFactory(registry *tools.ToolRegistry) *AgentFactory {
	return &AgentFactory{registry: registry}
}

// Build constructs the agent an AgentDefinition describes.
func (f *AgentFactory) Build(def *AgentDefinition) (agent.Agent, error) {
	model, err := f.createModel(def)
	if err != nil {
		return nil, err
	}
	toolList := f.collectTools(def)

	executor := def.Executor
	if executor == "" {
		executor = "default"
	}
	slog.Info("Building agent", "agent", def.Name, "executor", executor)

	switch executor {
	case "react":
		return agent.NewReActAgent(def.Name, def.Description, def.Instructions, model, toolList, def.MaxIterations), nil
	case "cot":
		// Chain-of-Thought rides on the default turn loop; the CoT
		// prompting lives in the instructions.
		slog.Info("Using Chain-of-Thought executor (standard agent with CoT prompting)")
		return f.buildDefaultAgent(def, model, toolList), nil
	default:
		return f.buildDefaultAgent(def, model, toolList), nil
	}
}

func (f *AgentFactory) buildDefaultAgent(def *AgentDefinition, model llms.Model, toolList []tools.Tool) agent.Agent {
	a := agent.NewLLMAgent(def.Name, def.Description, def.Instructions, model, toolList)
	if config := generationConfigFromParameters(def.Model.Parameters); config != nil {
		a.WithGenerationConfig(config)
	}
	return a
}

// createModel resolves model name and provider. The name falls back
// through MODEL_NAME and GEMINI_MODEL to the default; the provider
// through MODEL_PROVIDER to inference from the name prefix.
func (f *AgentFactory) createModel(def *AgentDefinition) (llms.Model, error) {
	modelName := def.Model.ModelName
	if modelName == "" {
		modelName = os.Getenv("MODEL_NAME")
	}
	if modelName == "" {
		modelName = os.Getenv("GEMINI_MODEL")
	}
	if modelName == "" {
		modelName = defaultModelName
	}

	providerName := def.Model.Provider
	if providerName == "" {
		providerName = os.Getenv("MODEL_PROVIDER")
	}

	var provider llms.Provider
	if providerName == "" {
		provider = llms.InferProviderFromModel(modelName)
	} else {
		parsed, ok := llms.ParseProvider(providerName)
		if !ok {
			return nil, fmt.Errorf("Unknown model provider: %s", providerName)
		}
		provider = parsed
	}

	slog.Debug("Using model", "provider", provider, "model", modelName)
	return llms.NewModel(provider, modelName)
}

// collectTools resolves tool names against the registry. Unknown names
// are dropped with a warning rather than failing the build.
func (f *AgentFactory) collectTools(def *AgentDefinition) []tools.Tool {
	var toolList []tools.Tool
	for _, name := range def.Tools {
		tool, ok := f.registry.GetTool(name)
		if !ok {
			slog.Warn("Tool not found", "tool", name)
			continue
		}
		toolList = append(toolList, tool)
	}
	return toolList
}

// generationConfigFromParameters maps model parameters onto sampling
// config. Unknown parameters are ignored.
func generationConfigFromParameters(params map[string]interface{}) *llms.GenerationConfig {
	if len(params) == 0 {
		return nil
	}

	config := &llms.GenerationConfig{}
	set := false

	if v, ok := asNumber(params["temperature"]); ok {
		config.Temperature = &v
		set = true
	}
	if v, ok := asNumber(params["top_p"]); ok {
		config.TopP = &v
		set = true
	}
	if v, ok := asNumber(params["top_k"]); ok {
		k := int(v)
		config.TopK = &k
		set = true
	}
	if v, ok := asNumber(params["max_output_tokens"]); ok {
		n := int(v)
		config.MaxOutputTokens = &n
		set = true
	}

	if !set {
		return nil
	}
	return config
}
