package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rabi/kinetic/llms"
	"github.com/rabi/kinetic/tools"
)

// ============================================================================
// LLM TURN-LOOP AGENT
// ============================================================================

// maxTurns bounds the model calls per run.
const maxTurns = 10

// LLMAgent is the default executor: it drives a model-tool cycle until
// the model produces text.
type LLMAgent struct {
	name        string
	description string
	instruction string
	model       llms.Model
	toolList    []tools.Tool
	config      *llms.GenerationConfig
}

// NewLLMAgent creates a turn-loop agent.
func NewLLMAgent(name, description, instruction string, model llms.Model, toolList []tools.Tool) *LLMAgent {
	return &LLMAgent{
		name:        name,
		description: description,
		instruction: instruction,
		model:       model,
		toolList:    toolList,
	}
}

// WithGenerationConfig sets optional sampling parameters forwarded to the model.
func (a *LLMAgent) WithGenerationConfig(config *llms.GenerationConfig) *LLMAgent {
	a.config = config
	return a
}

func (a *LLMAgent) Name() string {
	return a.name
}

func (a *LLMAgent) Description() string {
	return a.description
}

// Run drives the turn loop to completion. The first non-empty text part
// of a response is returned immediately without appending that response
// to history; a response with neither text nor tool calls returns "".
func (a *LLMAgent) Run(ctx context.Context, input string) (string, error) {
	return a.run(ctx, input, nil)
}

// RunStream is Run with Thought/ToolCall/ToolResult/Answer/Error events
// emitted along the way. When text accompanies tool calls in the same
// turn it is surfaced as a Thought rather than a final answer.
func (a *LLMAgent) RunStream(ctx context.Context, input string, events chan<- Event) (string, error) {
	return a.run(ctx, input, events)
}

func (a *LLMAgent) run(ctx context.Context, input string, events chan<- Event) (string, error) {
	history := []llms.Content{
		{Role: llms.RoleSystem, Parts: []llms.Part{llms.TextPart(a.instruction)}},
		{Role: llms.RoleUser, Parts: []llms.Part{llms.TextPart(input)}},
	}

	for turn := 0; turn < maxTurns; turn++ {
		slog.Debug("Agent turn", "agent", a.name, "turn", turn+1)

		response, err := a.model.GenerateContent(ctx, history, a.config, a.toolList)
		if err != nil {
			Emit(events, ErrorEvent(err.Error()))
			return "", &AgentError{Agent: a.name, Action: "generate", Message: "model call failed", Err: err}
		}

		calls := response.ToolCalls()

		if events == nil {
			if text, ok := response.FirstText(); ok {
				return text, nil
			}
		} else {
			text := ""
			for _, p := range response.Parts {
				if p.Type == llms.PartTypeText {
					text += p.Text
				}
			}
			if len(calls) == 0 && text != "" {
				Emit(events, AnswerEvent(text))
				return text, nil
			}
			if text != "" {
				Emit(events, ThoughtEvent(text))
			}
		}

		if len(calls) == 0 {
			return "", nil
		}

		responses := a.executeCalls(ctx, calls, events)
		history = append(history, response, llms.Content{Role: llms.RoleUser, Parts: responses})
	}

	Emit(events, ErrorEvent("max turns reached"))
	return "", &AgentError{Agent: a.name, Action: "run", Message: "max turns reached", Err: ErrMaxIterations}
}

// executeCalls runs the turn's tool calls sequentially in encountered
// order. Failures become {"error": ...} responses the model can read.
func (a *LLMAgent) executeCalls(ctx context.Context, calls []llms.Part, events chan<- Event) []llms.Part {
	responses := make([]llms.Part, 0, len(calls))
	for _, call := range calls {
		Emit(events, ToolCallEvent(call.Name, call.Args))

		tool := a.findTool(call.Name)
		if tool == nil {
			msg := fmt.Sprintf("Tool %s not found", call.Name)
			slog.Warn("Unknown tool requested", "agent", a.name, "tool", call.Name)
			Emit(events, ErrorEvent(msg))
			responses = append(responses, llms.ToolResponsePart(call.Name, map[string]interface{}{"error": msg}))
			continue
		}

		result, err := tool.Execute(ctx, call.Args)
		if err != nil {
			Emit(events, ErrorEvent(err.Error()))
			responses = append(responses, llms.ToolResponsePart(call.Name, map[string]interface{}{"error": err.Error()}))
			continue
		}

		Emit(events, ToolResultEvent(call.Name, result))
		responses = append(responses, llms.ToolResponsePart(call.Name, result))
	}
	return responses
}

func (a *LLMAgent) findTool(name string) tools.Tool {
	for _, t := range a.toolList {
		if t.GetName() == name {
			return t
		}
	}
	return nil
}
