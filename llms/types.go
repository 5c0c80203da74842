// Package llms defines the message model shared by every provider and
// agent (roles, content parts, generation parameters) and the Model
// capability, plus HTTP implementations for Gemini, OpenAI/DeepSeek and
// Anthropic.
package llms

import (
	"context"

	"github.com/rabi/kinetic/tools"
)

// ============================================================================
// ROLES AND PART TYPES
// ============================================================================

const (
	RoleSystem = "system"
	RoleUser   = "user"
	RoleModel  = "model"
)

// PartType discriminates the Part union.
type PartType string

const (
	PartTypeText         PartType = "text"
	PartTypeThinking     PartType = "thinking"
	PartTypeToolCall     PartType = "tool_call"
	PartTypeToolResponse PartType = "tool_response"
)

// ============================================================================
// CONTENT MODEL
// ============================================================================

// Part is one atomic element of a Content payload, discriminated by Type.
//
// Text carries the payload for both text and thinking parts. Thinking
// parts are internal: they are kept in history but never sent to a
// provider. ThoughtSignature is an opaque provider token attached to a
// tool call; it must round-trip verbatim when the call is serialized
// back out.
type Part struct {
	Type             PartType               `json:"type"`
	Text             string                 `json:"text,omitempty"`
	Name             string                 `json:"name,omitempty"`
	Args             map[string]interface{} `json:"args,omitempty"`
	Response         interface{}            `json:"response,omitempty"`
	ThoughtSignature string                 `json:"thought_signature,omitempty"`
}

// TextPart creates a user-visible text part.
func TextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// ThinkingPart creates an internal reasoning part.
func ThinkingPart(text string) Part {
	return Part{Type: PartTypeThinking, Text: text}
}

// ToolCallPart creates a model request to invoke a tool.
func ToolCallPart(name string, args map[string]interface{}) Part {
	return Part{Type: PartTypeToolCall, Name: name, Args: args}
}

// ToolResponsePart creates a tool result addressed back to the model.
func ToolResponsePart(name string, response interface{}) Part {
	return Part{Type: PartTypeToolResponse, Name: name, Response: response}
}

// Content is a role-tagged message record.
// Roles are "system", "user" and "model"; a tool response travels in a
// "user"-role Content whose parts are all tool responses.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// FirstText returns the first non-empty text part, if any.
func (c Content) FirstText() (string, bool) {
	for _, p := range c.Parts {
		if p.Type == PartTypeText && p.Text != "" {
			return p.Text, true
		}
	}
	return "", false
}

// ToolCalls returns all tool-call parts in order.
func (c Content) ToolCalls() []Part {
	var calls []Part
	for _, p := range c.Parts {
		if p.Type == PartTypeToolCall {
			calls = append(calls, p)
		}
	}
	return calls
}

// ============================================================================
// GENERATION CONFIG AND MODEL CAPABILITY
// ============================================================================

// GenerationConfig holds optional sampling parameters; the engine only
// forwards them to the provider.
type GenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"max_output_tokens,omitempty" yaml:"max_output_tokens,omitempty"`
	TopP            *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	TopK            *int     `json:"top_k,omitempty" yaml:"top_k,omitempty"`
}

// Model is the single capability the engine needs from a provider:
// given a conversation history, optional config and an optional tool
// list, produce one Content. Implementations must be safe for
// concurrent calls.
type Model interface {
	Name() string
	GenerateContent(ctx context.Context, history []Content, config *GenerationConfig, toolList []tools.Tool) (Content, error)
}
