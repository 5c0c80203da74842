package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rabi/kinetic/config"
)

// ============================================================================
// YAML LOADING
// ============================================================================

// Loader reads workflow definitions from YAML files.
type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

// LoadWorkflow reads and parses a workflow definition from a file.
func (l *Loader) LoadWorkflow(path string) (*WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file %s: %w", path, err)
	}
	return ParseYAML(data)
}

// ParseYAML parses a workflow definition, expanding ${VAR:-default},
// ${VAR} and $VAR environment references in every string value before
// decoding into the typed definition.
func ParseYAML(data []byte) (*WorkflowDefinition, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse workflow YAML: %w", err)
	}

	expanded := config.ExpandEnvVarsInData(normalizeYAMLKeys(raw))

	rendered, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to process workflow YAML: %w", err)
	}

	def := &WorkflowDefinition{}
	if err := yaml.Unmarshal(rendered, def); err != nil {
		return nil, fmt.Errorf("failed to parse workflow YAML: %w", err)
	}
	return def, nil
}

// normalizeYAMLKeys converts map[interface{}]interface{} trees into
// map[string]interface{} so the expansion pass can walk them.
func normalizeYAMLKeys(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, value := range v {
			result[key] = normalizeYAMLKeys(value)
		}
		return result
	case map[interface{}]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, value := range v {
			result[fmt.Sprintf("%v", key)] = normalizeYAMLKeys(value)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = normalizeYAMLKeys(item)
		}
		return result
	default:
		return v
	}
}
