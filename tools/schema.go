package tools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ReflectSchema derives a plain JSON-schema object from an args struct.
// Built-in tools declare their argument shapes as Go structs with
// jsonschema tags instead of hand-written schema literals.
func ReflectSchema(v interface{}) map[string]interface{} {
	reflector := &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(v)

	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]interface{}{"type": "object"}
	}

	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]interface{}{"type": "object"}
	}

	// Strip the document-level keys; providers only want the object shape.
	delete(out, "$schema")
	delete(out, "$id")
	return out
}

// decodeArgs maps loosely-typed tool args onto a typed args struct.
func decodeArgs(args map[string]interface{}, target interface{}) error {
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
