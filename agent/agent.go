// Package agent implements the executors that drive a model through
// tool-call cycles: the default turn-loop agent and the ReAct
// scratchpad agent, plus the event stream they emit.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ============================================================================
// EVENTS
// ============================================================================

// EventType discriminates the agent event stream.
type EventType string

const (
	EventThought    EventType = "thought"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventAnswer     EventType = "answer"
	EventError      EventType = "error"
	EventLog        EventType = "log"
)

// Event is one entry in an agent's stream.
type Event struct {
	Type    EventType              `json:"type"`
	Content string                 `json:"content,omitempty"`
	Name    string                 `json:"name,omitempty"`
	Args    map[string]interface{} `json:"args,omitempty"`
	Result  interface{}            `json:"result,omitempty"`
}

func ThoughtEvent(content string) Event { return Event{Type: EventThought, Content: content} }
func AnswerEvent(content string) Event  { return Event{Type: EventAnswer, Content: content} }
func ErrorEvent(content string) Event   { return Event{Type: EventError, Content: content} }
func LogEvent(content string) Event     { return Event{Type: EventLog, Content: content} }

func ToolCallEvent(name string, args map[string]interface{}) Event {
	return Event{Type: EventToolCall, Name: name, Args: args}
}

func ToolResultEvent(name string, result interface{}) Event {
	return Event{Type: EventToolResult, Name: name, Result: result}
}

// Emit sends an event without ever blocking the agent loop: a send that
// cannot complete is dropped and logged.
func Emit(events chan<- Event, ev Event) {
	if events == nil {
		return
	}
	select {
	case events <- ev:
	default:
		slog.Warn("Event channel full, dropping event", "type", ev.Type)
	}
}

// ============================================================================
// AGENT CAPABILITY
// ============================================================================

// Agent transforms an input string into an output string by calling a
// model and optionally tools. RunStream has identical semantics to Run
// but additionally emits events into the caller-supplied channel.
type Agent interface {
	Name() string
	Run(ctx context.Context, input string) (string, error)
	RunStream(ctx context.Context, input string, events chan<- Event) (string, error)
}

// ============================================================================
// ERRORS
// ============================================================================

// ErrMaxIterations marks a turn loop that exhausted its turn cap
// without producing text.
var ErrMaxIterations = errors.New("max iterations reached")

// AgentError represents an error raised by an agent run.
type AgentError struct {
	Agent   string
	Action  string
	Message string
	Err     error
}

func (e *AgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Agent, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Agent, e.Action, e.Message)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}
