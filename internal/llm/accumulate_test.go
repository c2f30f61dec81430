package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chanOf(deltas ...StreamDelta) <-chan StreamDelta {
	ch := make(chan StreamDelta, len(deltas))
	for _, d := range deltas {
		ch <- d
	}
	close(ch)
	return ch
}

func TestAccumulateJoinsToolCallDeltasByIndex(t *testing.T) {
	deltas := chanOf(
		StreamDelta{ContentChunk: "thinking about it"},
		StreamDelta{ToolCallDelta: &ToolCallDelta{Index: 0, ID: "call_1", Name: "list_emails"}},
		StreamDelta{ToolCallDelta: &ToolCallDelta{Index: 0, ArgumentsFragment: `{"lim`}},
		StreamDelta{ToolCallDelta: &ToolCallDelta{Index: 0, ArgumentsFragment: `it": 5}`}},
		StreamDelta{FinishReason: FinishToolCalls, Usage: &Usage{InputTokens: 10, OutputTokens: 4}},
	)

	resp, err := accumulate(deltas)
	require.NoError(t, err)
	assert.Equal(t, "thinking about it", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "list_emails", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"limit": 5}`, string(resp.ToolCalls[0].Arguments))
	assert.Equal(t, FinishToolCalls, resp.FinishReason)
	assert.Equal(t, 10, resp.Usage.InputTokens)
}

func TestAccumulatePropagatesStreamError(t *testing.T) {
	deltas := chanOf(StreamDelta{ContentChunk: "partial"}, StreamDelta{Err: assert.AnError})
	_, err := accumulate(deltas)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestAccumulateOrdersToolCallsByIndexNotArrival(t *testing.T) {
	deltas := chanOf(
		StreamDelta{ToolCallDelta: &ToolCallDelta{Index: 1, ID: "call_b", Name: "send_email"}},
		StreamDelta{ToolCallDelta: &ToolCallDelta{Index: 0, ID: "call_a", Name: "list_emails"}},
	)
	resp, err := accumulate(deltas)
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "call_a", resp.ToolCalls[0].ID)
	assert.Equal(t, "call_b", resp.ToolCalls[1].ID)
}
