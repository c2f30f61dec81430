package models

// StreamEventType enumerates the client stream vocabulary (spec §6.1).
type StreamEventType string

const (
	EventConnectionAck           StreamEventType = "connection_ack"
	EventAuthSuccess             StreamEventType = "auth_success"
	EventSessionInit             StreamEventType = "session_init"
	EventToolsUpdated            StreamEventType = "tools_updated"
	EventConversationalText      StreamEventType = "conversational_text_segment"
	EventPlanGenerated           StreamEventType = "plan_generated"
	EventPlannerStatus           StreamEventType = "planner_status"
	EventToolStatusUpdate        StreamEventType = "tool_status_update"
	EventToolResult              StreamEventType = "tool_result"
	EventActionConfirmRequired   StreamEventType = "action_confirmation_required"
	EventParamCollectionRequired StreamEventType = "parameter_collection_required"
	EventRunUpdated              StreamEventType = "run_updated"
	EventError                   StreamEventType = "error"
	EventStreamEnd               StreamEventType = "stream_end"
)

// TextSegmentTag tags a conversational_text_segment's position within the
// streamed parser output.
type TextSegmentTag string

const (
	TextStart     TextSegmentTag = "START_STREAM"
	TextStreaming TextSegmentTag = "STREAMING"
	TextEnd       TextSegmentTag = "END_STREAM"
)

// StreamEvent is one ordered, session-bound event. The set of fields
// populated depends on Type; see spec §6.1 for the vocabulary.
type StreamEvent struct {
	Type       StreamEventType `json:"type"`
	SessionID  string          `json:"session_id"`
	Content    string          `json:"content,omitempty"`
	MessageID  string          `json:"message_id,omitempty"`
	IsFinal    bool            `json:"is_final,omitempty"`
	StreamTag  TextSegmentTag  `json:"stream_tag,omitempty"`
	Run        *Run            `json:"run,omitempty"`
	Step       *Step           `json:"step,omitempty"`
	Error      *StepError      `json:"error,omitempty"`
	Payload    any             `json:"payload,omitempty"`
}
