package models

import "time"

// HistoryRole is the author type of a ConversationHistory entry.
type HistoryRole string

const (
	HistoryUser      HistoryRole = "user"
	HistoryAssistant HistoryRole = "assistant"
	HistoryTool      HistoryRole = "tool"
	HistorySystem    HistoryRole = "system"
)

// MaxHistoryEntries bounds the non-system entries retained per session
// (spec §3: N=20). Older entries are dropped oldest-first once exceeded.
const MaxHistoryEntries = 20

// MaxToolResultBytes is the size above which a tool result is dropped from
// history rather than inserted, to preserve prompt budget (spec §3).
const MaxToolResultBytes = 50 * 1024

// HistoryEntry is one turn in a session's conversation history.
type HistoryEntry struct {
	Role       HistoryRole `json:"role"`
	Content    string      `json:"content"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// SizeBytes approximates the entry's contribution to prompt budget.
func (e HistoryEntry) SizeBytes() int {
	return len(e.Content)
}
