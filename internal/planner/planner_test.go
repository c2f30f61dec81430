package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lutendolukhele/intentorch/internal/llm"
	"github.com/lutendolukhele/intentorch/internal/stream"
	"github.com/lutendolukhele/intentorch/pkg/models"
)

type stubProvider struct {
	content string
	err     error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.content, FinishReason: llm.FinishStop}, nil
}

func (s *stubProvider) ChatStream(ctx context.Context, req llm.Request) (<-chan llm.StreamDelta, error) {
	ch := make(chan llm.StreamDelta, 1)
	ch <- llm.StreamDelta{ContentChunk: s.content, FinishReason: llm.FinishStop}
	close(ch)
	return ch, nil
}

var candidateTools = []models.LLMFunctionDef{{Name: "list_emails"}, {Name: "send_email"}}

func TestGeneratePlanAssignsOrderedStepIDs(t *testing.T) {
	provider := &stubProvider{content: `{"steps": [
		{"intent": "find the thread", "tool": "list_emails", "arguments": {"limit": 5}},
		{"intent": "reply to it", "tool": "send_email", "arguments": {"to": "{{step_1.0.from}}"}}
	]}`}
	p := New(provider, stream.New())

	steps, err := p.GeneratePlan(context.Background(), "reply to the latest email", candidateTools, "sess-1", "msg-1", "user-1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "step_1", steps[0].StepID)
	assert.Equal(t, "step_2", steps[1].StepID)
	assert.Equal(t, models.StepReady, steps[0].Status)
	assert.Equal(t, "sess-1", steps[0].ToolCall.SessionID)
}

func TestGeneratePlanRejectsUnknownTool(t *testing.T) {
	provider := &stubProvider{content: `{"steps": [{"intent": "x", "tool": "delete_everything", "arguments": {}}]}`}
	p := New(provider, stream.New())

	_, err := p.GeneratePlan(context.Background(), "do something", candidateTools, "sess-1", "msg-1", "user-1")
	require.Error(t, err)
	var rejected *RejectedPlanError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, []string{"delete_everything"}, rejected.UnknownTools)
}

func TestGeneratePlanRejectsEmptySteps(t *testing.T) {
	provider := &stubProvider{content: `{"steps": []}`}
	p := New(provider, stream.New())

	_, err := p.GeneratePlan(context.Background(), "hello", candidateTools, "sess-1", "msg-1", "user-1")
	require.Error(t, err)
}

func TestGeneratePlanStripsCodeFence(t *testing.T) {
	provider := &stubProvider{content: "```json\n{\"steps\": [{\"intent\": \"a\", \"tool\": \"list_emails\", \"arguments\": {}}]}\n```"}
	p := New(provider, stream.New())

	steps, err := p.GeneratePlan(context.Background(), "list my emails", candidateTools, "sess-1", "msg-1", "user-1")
	require.NoError(t, err)
	require.Len(t, steps, 1)
}
