package ai

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildInterpretationSchema returns the JSON-Schema (draft 2020-12 subset)
// every model response must satisfy. It is sent to the model as the output
// contract and used locally to validate what comes back.
func BuildInterpretationSchema() map[string]any {
	examRow := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":      map[string]any{"type": "string", "minLength": 1},
			"value":     map[string]any{"type": "string", "minLength": 1},
			"unit":      map[string]any{"type": "string"},
			"reference": map[string]any{"type": "string"},
		},
		"required": []string{"name", "value"},
	}

	patient := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
			"age":  map[string]any{"type": "string"},
			"sex":  map[string]any{"type": "string"},
		},
	}

	stringList := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"patient":       patient,
			"exams":         map[string]any{"type": "array", "items": examRow},
			"summary":       map[string]any{"type": "string"},
			"prescriptions": stringList,
			"orientations":  stringList,
		},
		"required": []string{"patient", "exams", "summary"},
	}
}

// ValidateJSONAgainstSchema validates raw JSON against a schema map.
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
