package models

import "encoding/json"

// ToolSource classifies a tool as a read-only bulk-synced fetch or a
// mutating remote action. The Orchestrator dispatches on this value.
type ToolSource string

const (
	// SourceCache tools read from a provider's synced data through the
	// gateway's cache-backed fetch path.
	SourceCache ToolSource = "cache"
	// SourceAction tools mutate remote state via the gateway's action
	// dispatch path.
	SourceAction ToolSource = "action"
)

// ToolCategory groups tools for keyword-based filtering (see ToolFilter).
type ToolCategory string

const (
	CategoryEmail    ToolCategory = "email"
	CategoryCalendar ToolCategory = "calendar"
	CategoryCRM      ToolCategory = "crm"
	CategoryGeneric  ToolCategory = "generic"
)

// ParameterSchema is a nested type/required/enum/description tree describing
// a tool's arguments. It is intentionally a plain struct rather than a raw
// JSON Schema document so the catalog can strip non-standard flags (like
// Optional) when formatting for the LLM while still compiling a strict
// JSON Schema for validation.
type ParameterSchema struct {
	Type        string                      `json:"type" yaml:"type"`
	Description string                      `json:"description,omitempty" yaml:"description,omitempty"`
	Enum        []string                    `json:"enum,omitempty" yaml:"enum,omitempty"`
	Optional    bool                        `json:"-" yaml:"optional,omitempty"`
	Items       *ParameterSchema            `json:"items,omitempty" yaml:"items,omitempty"`
	Properties  map[string]*ParameterSchema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required    []string                    `json:"required,omitempty" yaml:"required,omitempty"`
}

// ToolDefinition is immutable after the catalog loads it from declarative
// configuration at startup.
type ToolDefinition struct {
	Name          string          `yaml:"name" json:"name"`
	Category      ToolCategory    `yaml:"category" json:"category"`
	DisplayName   string          `yaml:"display_name" json:"display_name"`
	ProviderKey   string          `yaml:"provider_key,omitempty" json:"provider_key,omitempty"`
	Source        ToolSource      `yaml:"source" json:"source"`
	CacheModel    string          `yaml:"cache_model,omitempty" json:"cache_model,omitempty"`
	ActionName    string          `yaml:"action_name,omitempty" json:"action_name,omitempty"`
	Parameters    ParameterSchema `yaml:"parameters" json:"parameters"`
}

// ToolCall is an (unresolved) request to invoke a tool, produced by either
// the conversation coordinator's preliminary LLM turn or the Planner.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id"`
}

// LLMFunctionDef is the strict JSON-Schema-compatible shape handed to the
// LLM collaborator's tool-use API. Catalog.FormatForLLM produces these.
type LLMFunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}
