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
// OPENAI PROVIDER
// ============================================================================

const openAIDefaultBase = "https://api.openai.com/v1"

// OpenAIModel implements Model for the OpenAI chat completions API.
// DeepSeek exposes the same API and is served by the same client with a
// different base URL.
type OpenAIModel struct {
	client    *http.Client
	apiKey    string
	modelName string
	baseURL   string
}

// NewOpenAIModel creates an OpenAI model; requires OPENAI_API_KEY and
// honors OPENAI_BASE_URL for custom endpoints.
func NewOpenAIModel(modelName string) (*OpenAIModel, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY must be set")
	}
	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = openAIDefaultBase
	}
	return &OpenAIModel{
		client:    &http.Client{Timeout: 120 * time.Second},
		apiKey:    apiKey,
		modelName: modelName,
		baseURL:   baseURL,
	}, nil
}

// NewDeepSeekModel creates a DeepSeek model; requires DEEPSEEK_API_KEY.
func NewDeepSeekModel(modelName string) (*OpenAIModel, error) {
	apiKey := os.Getenv("DEEPSEEK_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("DEEPSEEK_API_KEY must be set")
	}
	return &OpenAIModel{
		client:    &http.Client{Timeout: 120 * time.Second},
		apiKey:    apiKey,
		modelName: modelName,
		baseURL:   "https://api.deepseek.com/v1",
	}, nil
}

func (m *OpenAIModel) Name() string {
	return m.modelName
}

// contentToOpenAIMessage converts a Content into an OpenAI chat message.
// A Content whose parts include a tool response becomes a "tool"-role
// message; tool calls become assistant tool_calls with the tool name
// doubling as the call id.
func contentToOpenAIMessage(c Content) map[string]interface{} {
	role := c.Role
	if role == RoleModel {
		role = "assistant"
	}

	for _, p := range c.Parts {
		if p.Type == PartTypeToolResponse {
			responseJSON, _ := json.Marshal(p.Response)
			return map[string]interface{}{
				"role":         "tool",
				"tool_call_id": p.Name,
				"content":      string(responseJSON),
			}
		}
	}

	var toolCalls []map[string]interface{}
	textContent := ""
	for _, p := range c.Parts {
		switch p.Type {
		case PartTypeText:
			textContent += p.Text
		case PartTypeToolCall:
			argsJSON, _ := json.Marshal(p.Args)
			toolCalls = append(toolCalls, map[string]interface{}{
				"id":   p.Name,
				"type": "function",
				"function": map[string]interface{}{
					"name":      p.Name,
					"arguments": string(argsJSON),
				},
			})
		}
	}

	if len(toolCalls) > 0 {
		msg := map[string]interface{}{
			"role":       role,
			"tool_calls": toolCalls,
		}
		if textContent != "" {
			msg["content"] = textContent
		} else {
			msg["content"] = nil
		}
		return msg
	}

	return map[string]interface{}{
		"role":    role,
		"content": textContent,
	}
}

func toolsToOpenAIFormat(toolList []tools.Tool) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(toolList))
	for _, t := range toolList {
		out = append(out, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        t.GetName(),
				"description": t.GetDescription(),
				"parameters":  t.GetSchema(),
			},
		})
	}
	return out
}

func parseOpenAIResponse(respJSON map[string]interface{}) (Content, error) {
	choices, ok := respJSON["choices"].([]interface{})
	if !ok || len(choices) == 0 {
		return Content{}, fmt.Errorf("no choices in OpenAI response")
	}
	choice, ok := choices[0].(map[string]interface{})
	if !ok {
		return Content{}, fmt.Errorf("malformed choice in OpenAI response")
	}
	message, _ := choice["message"].(map[string]interface{})

	var parts []Part
	if content, ok := message["content"].(string); ok && content != "" {
		parts = append(parts, TextPart(content))
	}

	if toolCalls, ok := message["tool_calls"].([]interface{}); ok {
		for _, raw := range toolCalls {
			tc, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			fn, _ := tc["function"].(map[string]interface{})
			name, _ := fn["name"].(string)
			argsStr, _ := fn["arguments"].(string)

			args := map[string]interface{}{}
			if argsStr != "" {
				if err := json.Unmarshal([]byte(argsStr), &args); err != nil {
					args = map[string]interface{}{}
				}
			}
			parts = append(parts, ToolCallPart(name, args))
		}
	}

	return Content{Role: RoleModel, Parts: parts}, nil
}

func (m *OpenAIModel) GenerateContent(ctx context.Context, history []Content, config *GenerationConfig, toolList []tools.Tool) (Content, error) {
	messages := make([]map[string]interface{}, 0, len(history))
	for _, c := range history {
		messages = append(messages, contentToOpenAIMessage(c))
	}

	body := map[string]interface{}{
		"model":    m.modelName,
		"messages": messages,
	}

	if config != nil {
		if config.Temperature != nil {
			body["temperature"] = *config.Temperature
		}
		if config.MaxOutputTokens != nil {
			body["max_tokens"] = *config.MaxOutputTokens
		}
		if config.TopP != nil {
			body["top_p"] = *config.TopP
		}
	}

	if len(toolList) > 0 {
		body["tools"] = toolsToOpenAIFormat(toolList)
		body["tool_choice"] = "auto"
	}

	data, err := json.Marshal(body)
	if err != nil {
		return Content{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/chat/completions", bytes.NewBuffer(data))
	if err != nil {
		return Content{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return Content{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(resp.Body)
		return Content{}, fmt.Errorf("OpenAI API error: %s", string(text))
	}

	var respJSON map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&respJSON); err != nil {
		return Content{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return parseOpenAIResponse(respJSON)
}
