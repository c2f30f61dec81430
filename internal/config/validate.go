package config

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Validate checks a raw YAML document against Config's reflected JSON
// Schema before Load decodes it, catching unknown/malformed fields with a
// field-level error rather than a generic decode failure.
func Validate(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("config: parsing for validation: %w", err)
	}
	normalized, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config: normalizing for validation: %w", err)
	}

	schemaJSON, err := JSONSchema()
	if err != nil {
		return fmt.Errorf("config: building schema: %w", err)
	}
	schema, err := jsonschema.CompileString("config://schema.json", string(schemaJSON))
	if err != nil {
		return fmt.Errorf("config: compiling schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(normalized, &v); err != nil {
		return fmt.Errorf("config: decoding for validation: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
