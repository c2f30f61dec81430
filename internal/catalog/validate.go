package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

// ValidationError is the `schema`-kind error payload (spec §7): it
// enumerates every missing/invalid field found by the compiled schema,
// rather than failing on the first violation.
type ValidationError struct {
	Tool   string
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema: tool %q failed validation: %v", e.Tool, e.Fields)
}

// schemaCache lazily compiles and memoizes a jsonschema.Schema per tool
// name; ToolDefinitions are immutable after Load so a compiled schema never
// needs to be invalidated.
type schemaCache struct {
	mu    sync.Mutex
	byTool map[string]*jsonschema.Schema
}

var compiled = &schemaCache{byTool: make(map[string]*jsonschema.Schema)}

func compileSchema(name string, p models.ParameterSchema) (*jsonschema.Schema, error) {
	compiled.mu.Lock()
	defer compiled.mu.Unlock()
	if s, ok := compiled.byTool[name]; ok {
		return s, nil
	}

	node := toJSONSchemaNode(p)
	raw, err := json.Marshal(node)
	if err != nil {
		return nil, err
	}

	resource := "tool://" + name + "/parameters.json"
	schema, err := jsonschema.CompileString(resource, string(raw))
	if err != nil {
		return nil, err
	}
	compiled.byTool[name] = schema
	return schema, nil
}

// Validate checks args against the named tool's compiled parameter schema.
// On failure it returns a *ValidationError naming every missing/invalid
// field, per the `schema` error kind (spec §7).
func (c *Catalog) Validate(name string, args json.RawMessage) error {
	def, ok := c.GetByName(name)
	if !ok {
		return fmt.Errorf("configuration: unknown tool %q", name)
	}

	schema, err := compileSchema(name, def.Parameters)
	if err != nil {
		return fmt.Errorf("configuration: compiling schema for %q: %w", name, err)
	}

	var v any
	if len(args) == 0 {
		v = map[string]any{}
	} else if err := json.Unmarshal(args, &v); err != nil {
		return &ValidationError{Tool: name, Fields: []string{"<invalid json: " + err.Error() + ">"}}
	}

	if err := schema.Validate(v); err != nil {
		return &ValidationError{Tool: name, Fields: collectFields(err)}
	}
	return nil
}

// collectFields flattens a jsonschema.ValidationError tree into a
// deduplicated, sorted list of offending field paths.
func collectFields(err error) []string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}
	seen := make(map[string]bool)
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if e == nil {
			return
		}
		field := e.InstanceLocation
		if field == "" {
			field = "<root>"
		}
		seen[field] = true
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(ve)
	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
