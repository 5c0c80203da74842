package llms

import (
	"fmt"
	"strings"
)

// ============================================================================
// PROVIDER SELECTION
// ============================================================================

// Provider identifies a model backend.
type Provider string

const (
	ProviderGemini    Provider = "Gemini"
	ProviderOpenAI    Provider = "OpenAI"
	ProviderAnthropic Provider = "Anthropic"
	ProviderDeepSeek  Provider = "DeepSeek"
)

// ParseProvider matches a provider name case-insensitively.
func ParseProvider(name string) (Provider, bool) {
	switch strings.ToLower(name) {
	case "gemini", "google":
		return ProviderGemini, true
	case "openai":
		return ProviderOpenAI, true
	case "anthropic", "claude":
		return ProviderAnthropic, true
	case "deepseek":
		return ProviderDeepSeek, true
	}
	return "", false
}

// InferProviderFromModel guesses the provider from the model name
// prefix; unknown names default to Gemini.
func InferProviderFromModel(modelName string) Provider {
	name := strings.ToLower(modelName)
	switch {
	case strings.HasPrefix(name, "gemini") || strings.HasPrefix(name, "models/gemini"):
		return ProviderGemini
	case strings.HasPrefix(name, "gpt") || strings.HasPrefix(name, "o1"):
		return ProviderOpenAI
	case strings.HasPrefix(name, "claude"):
		return ProviderAnthropic
	case strings.HasPrefix(name, "deepseek"):
		return ProviderDeepSeek
	default:
		return ProviderGemini
	}
}

// NewModel constructs the provider-specific Model implementation.
func NewModel(provider Provider, modelName string) (Model, error) {
	switch provider {
	case ProviderGemini:
		return NewGeminiModel(modelName)
	case ProviderOpenAI:
		return NewOpenAIModel(modelName)
	case ProviderAnthropic:
		return NewAnthropicModel(modelName)
	case ProviderDeepSeek:
		return NewDeepSeekModel(modelName)
	default:
		return nil, fmt.Errorf("unknown model provider: %s", provider)
	}
}
