package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rabi/kinetic/tools"
)

// ============================================================================
// ANTHROPIC PROVIDER
// ============================================================================

const (
	anthropicAPIBase         = "https://api.anthropic.com/v1"
	anthropicVersion         = "2023-06-01"
	anthropicDefaultMaxToken = 4096
)

// AnthropicModel implements Model for the Anthropic messages API.
type AnthropicModel struct {
	client    *http.Client
	apiKey    string
	modelName string
}

// NewAnthropicModel creates an Anthropic model; requires ANTHROPIC_API_KEY.
func NewAnthropicModel(modelName string) (*AnthropicModel, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY must be set")
	}
	return &AnthropicModel{
		client:    &http.Client{Timeout: 120 * time.Second},
		apiKey:    apiKey,
		modelName: modelName,
	}, nil
}

func (m *AnthropicModel) Name() string {
	return m.modelName
}

// contentToAnthropicMessage converts a Content into an Anthropic
// message. Tool calls become tool_use blocks (the tool name doubles as
// the block id), tool responses become user-role tool_result blocks.
func contentToAnthropicMessage(c Content) map[string]interface{} {
	role := c.Role
	if role == RoleModel {
		role = "assistant"
	}

	var blocks []map[string]interface{}
	for _, p := range c.Parts {
		switch p.Type {
		case PartTypeText:
			blocks = append(blocks, map[string]interface{}{
				"type": "text",
				"text": p.Text,
			})
		case PartTypeToolCall:
			input := p.Args
			if input == nil {
				input = map[string]interface{}{}
			}
			blocks = append(blocks, map[string]interface{}{
				"type":  "tool_use",
				"id":    p.Name,
				"name":  p.Name,
				"input": input,
			})
		case PartTypeToolResponse:
			responseJSON, _ := json.Marshal(p.Response)
			blocks = append(blocks, map[string]interface{}{
				"type":        "tool_result",
				"tool_use_id": p.Name,
				"content":     string(responseJSON),
			})
		}
	}

	return map[string]interface{}{
		"role":    role,
		"content": blocks,
	}
}

func parseAnthropicResponse(respJSON map[string]interface{}) (Content, error) {
	rawBlocks, ok := respJSON["content"].([]interface{})
	if !ok {
		return Content{}, fmt.Errorf("no content in Anthropic response")
	}

	var parts []Part
	for _, raw := range rawBlocks {
		block, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		switch block["type"] {
		case "text":
			if text, ok := block["text"].(string); ok {
				parts = append(parts, TextPart(text))
			}
		case "thinking":
			if thinking, ok := block["thinking"].(string); ok && thinking != "" {
				parts = append(parts, ThinkingPart(thinking))
			}
		case "tool_use":
			name, _ := block["name"].(string)
			input, _ := block["input"].(map[string]interface{})
			parts = append(parts, ToolCallPart(name, input))
		}
	}

	return Content{Role: RoleModel, Parts: parts}, nil
}

func (m *AnthropicModel) GenerateContent(ctx context.Context, history []Content, config *GenerationConfig, toolList []tools.Tool) (Content, error) {
	// Anthropic takes the system prompt as a top-level field, not a message.
	system := ""
	messages := make([]map[string]interface{}, 0, len(history))
	for _, c := range history {
		if c.Role == RoleSystem {
			if text, ok := c.FirstText(); ok {
				system = text
			}
			continue
		}
		messages = append(messages, contentToAnthropicMessage(c))
	}

	maxTokens := anthropicDefaultMaxToken
	body := map[string]interface{}{
		"model":    m.modelName,
		"messages": messages,
	}
	if system != "" {
		body["system"] = system
	}

	if config != nil {
		if config.Temperature != nil {
			body["temperature"] = *config.Temperature
		}
		if config.MaxOutputTokens != nil {
			maxTokens = *config.MaxOutputTokens
		}
		if config.TopP != nil {
			body["top_p"] = *config.TopP
		}
		if config.TopK != nil {
			body["top_k"] = *config.TopK
		}
	}
	body["max_tokens"] = maxTokens

	if len(toolList) > 0 {
		declarations := make([]map[string]interface{}, 0, len(toolList))
		for _, t := range toolList {
			declarations = append(declarations, map[string]interface{}{
				"name":         t.GetName(),
				"description":  t.GetDescription(),
				"input_schema": t.GetSchema(),
			})
		}
		body["tools"] = declarations
	}

	data, err := json.Marshal(body)
	if err != nil {
		return Content{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicAPIBase+"/messages", bytes.NewBuffer(data))
	if err != nil {
		return Content{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", m.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := m.client.Do(req)
	if err != nil {
		return Content{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(resp.Body)
		return Content{}, fmt.Errorf("Anthropic API error: %s", string(text))
	}

	var respJSON map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&respJSON); err != nil {
		return Content{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return parseAnthropicResponse(respJSON)
}
