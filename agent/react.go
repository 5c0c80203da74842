package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rabi/kinetic/llms"
	"github.com/rabi/kinetic/tools"
)

// ============================================================================
// REACT AGENT
// ============================================================================

// DefaultReActIterations is the iteration cap when none is configured.
const DefaultReActIterations = 10

// ReActAgent implements the Reasoning + Acting pattern: an explicit
// Thought → Action → Observation scratchpad loop terminated by a
// "Final Answer:" sentinel or the iteration cap.
type ReActAgent struct {
	name          string
	description   string
	instruction   string
	model         llms.Model
	toolList      []tools.Tool
	maxIterations int
}

// reactStep classifies one model response.
type reactStep struct {
	kind reactStepKind
	text string
	tool string
	args map[string]interface{}
}

type reactStepKind int

const (
	stepThought reactStepKind = iota
	stepAction
	stepFinalAnswer
)

// NewReActAgent creates a ReAct agent. maxIterations <= 0 falls back to
// DefaultReActIterations.
func NewReActAgent(name, description, instruction string, model llms.Model, toolList []tools.Tool, maxIterations int) *ReActAgent {
	if maxIterations <= 0 {
		maxIterations = DefaultReActIterations
	}
	return &ReActAgent{
		name:          name,
		description:   description,
		instruction:   instruction,
		model:         model,
		toolList:      toolList,
		maxIterations: maxIterations,
	}
}

func (a *ReActAgent) Name() string {
	return a.name
}

// buildSystemPrompt embeds the tool catalog into the ReAct instructions.
func (a *ReActAgent) buildSystemPrompt() string {
	toolSection := "No tools are available. You must answer based on your knowledge."
	if len(a.toolList) > 0 {
		descriptions := make([]string, 0, len(a.toolList))
		for _, t := range a.toolList {
			descriptions = append(descriptions, fmt.Sprintf("- %s: %s", t.GetName(), t.GetDescription()))
		}
		toolSection = "Available tools:\n" + strings.Join(descriptions, "\n")
	}

	return fmt.Sprintf(`%s

You are using the ReAct (Reasoning + Acting) pattern. For each step:

1. **Thought**: Reason about what you know and what you need to do next
2. **Action**: Either call a tool OR provide a final answer

%s

Response format:
- To use a tool, respond with a function call (only use tools listed above)
- To provide a final answer, respond with text starting with "Final Answer:" followed by your answer

Always think step by step. After receiving tool results (Observations), continue reasoning until you can provide a final answer.`,
		a.instruction, toolSection)
}

// buildPromptWithScratchpad folds the accumulated steps into the prompt.
func (a *ReActAgent) buildPromptWithScratchpad(input string, scratchpad []string) string {
	if len(scratchpad) == 0 {
		return input
	}
	return fmt.Sprintf("%s\n\n--- Previous Steps ---\n%s\n\nContinue from where you left off.",
		input, strings.Join(scratchpad, "\n"))
}

// parseResponse classifies a model response. Precedence within one
// response: thinking part, then tool call, then text (a "final answer:"
// prefix, case-insensitive, wins over plain text), else empty thought.
func (a *ReActAgent) parseResponse(response llms.Content) reactStep {
	for _, part := range response.Parts {
		switch part.Type {
		case llms.PartTypeThinking:
			return reactStep{kind: stepThought, text: part.Text}
		case llms.PartTypeToolCall:
			return reactStep{kind: stepAction, tool: part.Name, args: part.Args}
		case llms.PartTypeText:
			trimmed := strings.TrimSpace(part.Text)
			if strings.HasPrefix(strings.ToLower(trimmed), "final answer:") {
				answer := trimmed
				for _, prefix := range []string{"Final Answer:", "final answer:", "FINAL ANSWER:"} {
					if strings.HasPrefix(trimmed, prefix) {
						answer = strings.TrimPrefix(trimmed, prefix)
						break
					}
				}
				return reactStep{kind: stepFinalAnswer, text: strings.TrimSpace(answer)}
			}
			if trimmed != "" {
				return reactStep{kind: stepThought, text: trimmed}
			}
		}
	}
	return reactStep{kind: stepThought}
}

// executeTool runs a tool and renders the observation. Errors are data
// for the next iteration, not loop failures.
func (a *ReActAgent) executeTool(ctx context.Context, toolName string, args map[string]interface{}) string {
	for _, t := range a.toolList {
		if t.GetName() == toolName {
			result, err := t.Execute(ctx, args)
			if err != nil {
				return fmt.Sprintf("Error: %v", err)
			}
			pretty, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return ""
			}
			return string(pretty)
		}
	}
	return fmt.Sprintf("Error: Tool '%s' not found", toolName)
}

func (a *ReActAgent) Run(ctx context.Context, input string) (string, error) {
	return a.runLoop(ctx, input, nil)
}

// RunStream runs the loop and emits scratchpad progress as events,
// closing with an Answer or Error event.
func (a *ReActAgent) RunStream(ctx context.Context, input string, events chan<- Event) (string, error) {
	result, err := a.runLoop(ctx, input, events)
	if err != nil {
		Emit(events, ErrorEvent(err.Error()))
		return "", err
	}
	Emit(events, AnswerEvent(result))
	return result, nil
}

func (a *ReActAgent) runLoop(ctx context.Context, input string, events chan<- Event) (string, error) {
	systemPrompt := a.buildSystemPrompt()
	var scratchpad []string

	for iteration := 0; iteration < a.maxIterations; iteration++ {
		slog.Info("ReAct iteration", "agent", a.name, "iteration", iteration+1, "max", a.maxIterations)

		currentPrompt := a.buildPromptWithScratchpad(input, scratchpad)
		history := []llms.Content{
			{Role: llms.RoleSystem, Parts: []llms.Part{llms.TextPart(systemPrompt)}},
			{Role: llms.RoleUser, Parts: []llms.Part{llms.TextPart(currentPrompt)}},
		}

		response, err := a.model.GenerateContent(ctx, history, nil, a.toolList)
		if err != nil {
			return "", &AgentError{Agent: a.name, Action: "generate", Message: "model call failed", Err: err}
		}

		step := a.parseResponse(response)
		switch step.kind {
		case stepThought:
			if step.text != "" {
				scratchpad = append(scratchpad, "Thought: "+step.text)
				Emit(events, ThoughtEvent(step.text))
				slog.Info("Thought", "agent", a.name, "content", step.text)
			}
		case stepAction:
			argsJSON, _ := json.Marshal(step.args)
			scratchpad = append(scratchpad, fmt.Sprintf("Action: %s(%s)", step.tool, string(argsJSON)))
			Emit(events, ToolCallEvent(step.tool, step.args))
			slog.Info("Action", "agent", a.name, "tool", step.tool)

			observation := a.executeTool(ctx, step.tool, step.args)
			scratchpad = append(scratchpad, "Observation: "+observation)
			Emit(events, ToolResultEvent(step.tool, observation))
			slog.Info("Observation", "agent", a.name, "content", observation)
		case stepFinalAnswer:
			slog.Info("Final answer", "agent", a.name, "content", step.text)
			return step.text, nil
		}
	}

	slog.Warn("ReAct agent reached max iterations", "agent", a.name, "max", a.maxIterations)
	return "Reached maximum iterations. Here's what I found:\n\n" + strings.Join(scratchpad, "\n"), nil
}
