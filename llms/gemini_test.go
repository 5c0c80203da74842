package llms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartToGeminiJSONText(t *testing.T) {
	out, ok := PartToGeminiJSON(TextPart("Hello world"))
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"text": "Hello world"}, out)
}

func TestPartToGeminiJSONThinkingDropped(t *testing.T) {
	_, ok := PartToGeminiJSON(ThinkingPart("Internal reasoning"))
	assert.False(t, ok)
}

func TestPartToGeminiJSONToolCall(t *testing.T) {
	out, ok := PartToGeminiJSON(ToolCallPart("search", map[string]interface{}{"query": "rust"}))
	require.True(t, ok)

	fc := out["functionCall"].(map[string]interface{})
	assert.Equal(t, "search", fc["name"])
	assert.Equal(t, "rust", fc["args"].(map[string]interface{})["query"])
	assert.NotContains(t, out, "thoughtSignature")
}

func TestPartToGeminiJSONToolCallWithSignature(t *testing.T) {
	call := ToolCallPart("search", map[string]interface{}{"query": "rust"})
	call.ThoughtSignature = "sig123abc"

	out, ok := PartToGeminiJSON(call)
	require.True(t, ok)
	assert.Equal(t, "sig123abc", out["thoughtSignature"])
}

func TestPartToGeminiJSONToolResponse(t *testing.T) {
	out, ok := PartToGeminiJSON(ToolResponsePart("search", map[string]interface{}{"results": []string{"a", "b"}}))
	require.True(t, ok)

	fr := out["functionResponse"].(map[string]interface{})
	assert.Equal(t, "search", fr["name"])
}

func TestParseGeminiPartText(t *testing.T) {
	parts := ParseGeminiPart(map[string]interface{}{"text": "Hello world"})
	require.Len(t, parts, 1)
	assert.Equal(t, PartTypeText, parts[0].Type)
	assert.Equal(t, "Hello world", parts[0].Text)
}

func TestParseGeminiPartThinking(t *testing.T) {
	parts := ParseGeminiPart(map[string]interface{}{"thought": "Let me think about this..."})
	require.Len(t, parts, 1)
	assert.Equal(t, PartTypeThinking, parts[0].Type)
}

func TestParseGeminiPartToolCall(t *testing.T) {
	parts := ParseGeminiPart(map[string]interface{}{
		"functionCall": map[string]interface{}{
			"name": "get_weather",
			"args": map[string]interface{}{"city": "London"},
		},
	})

	require.Len(t, parts, 1)
	assert.Equal(t, PartTypeToolCall, parts[0].Type)
	assert.Equal(t, "get_weather", parts[0].Name)
	assert.Equal(t, "London", parts[0].Args["city"])
	assert.Empty(t, parts[0].ThoughtSignature)
}

func TestParseGeminiPartToolCallWithSignature(t *testing.T) {
	parts := ParseGeminiPart(map[string]interface{}{
		"functionCall": map[string]interface{}{
			"name": "search",
			"args": map[string]interface{}{"q": "rust programming"},
		},
		"thoughtSignature": "EvoRCvcRAXLI2nw7...",
	})

	require.Len(t, parts, 1)
	assert.Equal(t, "EvoRCvcRAXLI2nw7...", parts[0].ThoughtSignature)
}

func TestParseGeminiPartEmptyThoughtIgnored(t *testing.T) {
	parts := ParseGeminiPart(map[string]interface{}{"thought": "", "text": "Hello"})
	require.Len(t, parts, 1)
	assert.Equal(t, PartTypeText, parts[0].Type)
}

func TestParseGeminiPartThoughtAndCall(t *testing.T) {
	parts := ParseGeminiPart(map[string]interface{}{
		"thought": "I should search",
		"functionCall": map[string]interface{}{
			"name": "search",
			"args": map[string]interface{}{"q": "go"},
		},
	})

	require.Len(t, parts, 2)
	assert.Equal(t, PartTypeThinking, parts[0].Type)
	assert.Equal(t, PartTypeToolCall, parts[1].Type)
}

func TestToolCallRoundTripPreservesSignature(t *testing.T) {
	received := map[string]interface{}{
		"functionCall": map[string]interface{}{
			"name": "fetch_data",
			"args": map[string]interface{}{"id": float64(123)},
		},
		"thoughtSignature": "original_signature_xyz",
	}

	parts := ParseGeminiPart(received)
	require.Len(t, parts, 1)

	serialized, ok := PartToGeminiJSON(parts[0])
	require.True(t, ok)
	assert.Equal(t, "original_signature_xyz", serialized["thoughtSignature"])
	assert.Equal(t, "fetch_data", serialized["functionCall"].(map[string]interface{})["name"])
}
