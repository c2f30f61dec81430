package catalog

import (
	"encoding/json"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

// jsonSchemaNode is the strict, LLM-facing shape a ParameterSchema compiles
// down to: no Optional flag, Required computed from the properties that are
// not individually marked optional plus any explicit Required entries.
type jsonSchemaNode struct {
	Type        string                     `json:"type"`
	Description string                     `json:"description,omitempty"`
	Enum        []string                   `json:"enum,omitempty"`
	Items       *jsonSchemaNode            `json:"items,omitempty"`
	Properties  map[string]*jsonSchemaNode `json:"properties,omitempty"`
	Required    []string                   `json:"required,omitempty"`
}

func toJSONSchemaNode(p models.ParameterSchema) *jsonSchemaNode {
	n := &jsonSchemaNode{
		Type:        p.Type,
		Description: p.Description,
		Enum:        p.Enum,
	}
	if p.Items != nil {
		n.Items = toJSONSchemaNode(*p.Items)
	}
	if len(p.Properties) > 0 {
		n.Properties = make(map[string]*jsonSchemaNode, len(p.Properties))
		required := make([]string, 0, len(p.Properties))
		explicit := make(map[string]bool, len(p.Required))
		for _, r := range p.Required {
			explicit[r] = true
		}
		for name, child := range p.Properties {
			n.Properties[name] = toJSONSchemaNode(*child)
			if explicit[name] || !child.Optional {
				required = append(required, name)
			}
		}
		if len(required) > 0 {
			n.Required = required
		}
	}
	return n
}

// FormatForLLM renders the given subset of tool definitions into the
// strict JSON-Schema-compatible function definitions the LLM collaborator
// contract (§6.2) expects: non-standard flags like Optional are stripped,
// leaving only `type`/`description`/`enum`/`items`/`properties`/`required`.
func FormatForLLM(subset []*models.ToolDefinition) ([]models.LLMFunctionDef, error) {
	defs := make([]models.LLMFunctionDef, 0, len(subset))
	for _, d := range subset {
		node := toJSONSchemaNode(d.Parameters)
		raw, err := json.Marshal(node)
		if err != nil {
			return nil, err
		}
		defs = append(defs, models.LLMFunctionDef{
			Name:        d.Name,
			Description: d.DisplayName,
			Parameters:  raw,
		})
	}
	return defs, nil
}
