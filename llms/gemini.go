package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/rabi/kinetic/tools"
)

// ============================================================================
// GEMINI PROVIDER
// ============================================================================

const geminiAPIBase = "https://generativelanguage.googleapis.com/v1beta"

// GeminiModel implements Model for Google's Gemini API.
type GeminiModel struct {
	client    *http.Client
	apiKey    string
	modelName string
}

// NewGeminiModel creates a Gemini model; requires GOOGLE_API_KEY.
func NewGeminiModel(modelName string) (*GeminiModel, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY must be set")
	}
	return &GeminiModel{
		client:    &http.Client{Timeout: 120 * time.Second},
		apiKey:    apiKey,
		modelName: modelName,
	}, nil
}

func (m *GeminiModel) Name() string {
	return m.modelName
}

// PartToGeminiJSON serializes a Part into the Gemini wire shape.
// Thinking parts are internal and return false; a tool call carries its
// thoughtSignature alongside the functionCall payload when present.
func PartToGeminiJSON(p Part) (map[string]interface{}, bool) {
	switch p.Type {
	case PartTypeText:
		return map[string]interface{}{"text": p.Text}, true
	case PartTypeThinking:
		return nil, false
	case PartTypeToolCall:
		out := map[string]interface{}{
			"functionCall": map[string]interface{}{
				"name": p.Name,
				"args": p.Args,
			},
		}
		if p.ThoughtSignature != "" {
			out["thoughtSignature"] = p.ThoughtSignature
		}
		return out, true
	case PartTypeToolResponse:
		return map[string]interface{}{
			"functionResponse": map[string]interface{}{
				"name":     p.Name,
				"response": p.Response,
			},
		}, true
	}
	return nil, false
}

// ParseGeminiPart translates one Gemini response part into Parts. A
// part carrying both a thought and text/functionCall yields two Parts
// in encountered order.
func ParseGeminiPart(raw map[string]interface{}) []Part {
	var parts []Part

	if thought, ok := raw["thought"].(string); ok && thought != "" {
		parts = append(parts, ThinkingPart(thought))
	}

	if text, ok := raw["text"].(string); ok {
		parts = append(parts, TextPart(text))
	} else if fc, ok := raw["functionCall"].(map[string]interface{}); ok {
		name, _ := fc["name"].(string)
		args, _ := fc["args"].(map[string]interface{})
		call := ToolCallPart(name, args)
		if sig, ok := raw["thoughtSignature"].(string); ok {
			call.ThoughtSignature = sig
		}
		parts = append(parts, call)
	}

	return parts
}

func (m *GeminiModel) GenerateContent(ctx context.Context, history []Content, config *GenerationConfig, toolList []tools.Tool) (Content, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", geminiAPIBase, m.modelName, m.apiKey)

	contents := make([]map[string]interface{}, 0, len(history))
	for _, c := range history {
		parts := make([]map[string]interface{}, 0, len(c.Parts))
		for _, p := range c.Parts {
			if encoded, ok := PartToGeminiJSON(p); ok {
				parts = append(parts, encoded)
			}
		}
		contents = append(contents, map[string]interface{}{
			"role":  c.Role,
			"parts": parts,
		})
	}

	body := map[string]interface{}{"contents": contents}

	if config != nil {
		genConfig := map[string]interface{}{}
		if config.Temperature != nil {
			genConfig["temperature"] = *config.Temperature
		}
		if config.MaxOutputTokens != nil {
			genConfig["maxOutputTokens"] = *config.MaxOutputTokens
		}
		if config.TopP != nil {
			genConfig["topP"] = *config.TopP
		}
		if config.TopK != nil {
			genConfig["topK"] = *config.TopK
		}
		if len(genConfig) > 0 {
			body["generationConfig"] = genConfig
		}
	}

	if len(toolList) > 0 {
		declarations := make([]map[string]interface{}, 0, len(toolList))
		for _, t := range toolList {
			declarations = append(declarations, map[string]interface{}{
				"name":        t.GetName(),
				"description": t.GetDescription(),
				"parameters":  t.GetSchema(),
			})
		}
		body["tools"] = []map[string]interface{}{
			{"function_declarations": declarations},
		}
	}

	respJSON, err := m.post(ctx, url, body)
	if err != nil {
		return Content{}, err
	}

	return parseGeminiResponse(respJSON)
}

func (m *GeminiModel) post(ctx context.Context, url string, body map[string]interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Gemini API error: %s", string(text))
	}

	var respJSON map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&respJSON); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return respJSON, nil
}

func parseGeminiResponse(respJSON map[string]interface{}) (Content, error) {
	candidates, ok := respJSON["candidates"].([]interface{})
	if !ok || len(candidates) == 0 {
		return Content{}, fmt.Errorf("no candidates in Gemini response")
	}
	candidate, ok := candidates[0].(map[string]interface{})
	if !ok {
		return Content{}, fmt.Errorf("malformed candidate in Gemini response")
	}

	if finishReason, ok := candidate["finishReason"].(string); ok {
		switch finishReason {
		case "UNEXPECTED_TOOL_CALL":
			return Content{}, fmt.Errorf("Gemini returned UNEXPECTED_TOOL_CALL; the tool schema may be incompatible")
		case "SAFETY":
			return Content{}, fmt.Errorf("Gemini blocked response due to safety filters")
		case "MALFORMED_FUNCTION_CALL":
			// Model tried a nonexistent tool; downgrade to a text reply.
			if msg, ok := candidate["finishMessage"].(string); ok {
				slog.Warn("Gemini malformed function call", "message", msg)
				return Content{
					Role:  RoleModel,
					Parts: []Part{TextPart(fmt.Sprintf("I tried to use a tool that isn't available. %s", msg))},
				}, nil
			}
		}
	}

	content, ok := candidate["content"].(map[string]interface{})
	if !ok {
		return Content{}, fmt.Errorf("no content in Gemini response")
	}
	rawParts, ok := content["parts"].([]interface{})
	if !ok {
		return Content{}, fmt.Errorf("no parts in Gemini content")
	}

	var parts []Part
	for _, rp := range rawParts {
		if rawPart, ok := rp.(map[string]interface{}); ok {
			parts = append(parts, ParseGeminiPart(rawPart)...)
		}
	}

	return Content{Role: RoleModel, Parts: parts}, nil
}
