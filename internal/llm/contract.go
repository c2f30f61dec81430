// Package llm defines the LLM Collaborator Contract (spec §6.2) and its
// concrete Anthropic/OpenAI implementations. The core treats the LLM as an
// opaque collaborator behind this interface; no other capability is
// assumed.
package llm

import (
	"context"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

// Message is one turn in the conversation handed to the LLM.
type Message struct {
	Role        string                `json:"role"` // "system" | "user" | "assistant" | "tool"
	Content     string                `json:"content,omitempty"`
	ToolCallID  string                `json:"tool_call_id,omitempty"` // set on role="tool"
	ToolCalls   []models.ToolCall     `json:"tool_calls,omitempty"`
	Name        string                `json:"name,omitempty"`
}

// ToolChoice constrains whether/which tool the model must call.
type ToolChoice struct {
	Mode string `json:"mode,omitempty"` // "auto" | "none" | "required"
	Name string `json:"name,omitempty"` // set with Mode="required" to force one tool
}

// Request bundles the parameters of a single completion (spec §6.2's chat
// and streaming variants share this request shape).
type Request struct {
	Model       string // empty selects the provider's configured default
	Messages    []Message
	Tools       []models.LLMFunctionDef
	ToolChoice  ToolChoice
	Temperature float64
	MaxTokens   int
}

// Usage reports token accounting for a completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// FinishReason enumerates why a completion stopped.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
	FinishError     FinishReason = "error"
)

// Response is the non-streaming chat() result (spec §6.2a).
type Response struct {
	Content      string
	ToolCalls    []models.ToolCall
	Usage        Usage
	FinishReason FinishReason
}

// ToolCallDelta is a piecewise fragment of one in-progress tool call,
// identified by a stable Index across the stream (spec §6.2b). ID and Name
// arrive once, early; ArgumentsFragment accumulates across deltas and must
// be concatenated by the caller before the call is treated as complete.
type ToolCallDelta struct {
	Index             int
	ID                string
	Name              string
	ArgumentsFragment string
}

// StreamDelta is one event of the streaming chat variant (spec §6.2b).
type StreamDelta struct {
	ContentChunk   string
	ReasoningChunk string
	ToolCallDelta  *ToolCallDelta
	FinishReason   FinishReason
	Usage          *Usage
	Err            error
}

// Provider is the LLM Collaborator Contract (spec §6.2): a non-streaming
// Chat and a streaming ChatStream, both accepting the same Request shape.
// Implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	Chat(ctx context.Context, req Request) (*Response, error)
	ChatStream(ctx context.Context, req Request) (<-chan StreamDelta, error)
}
