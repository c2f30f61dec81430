package llm

import (
	"encoding/json"
	"sort"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

// accumulate drains a StreamDelta channel into a single Response,
// reassembling tool-call deltas by Index (spec §6.2b) the same way the
// Conversation Coordinator does for its own streaming turn.
func accumulate(deltas <-chan StreamDelta) (*Response, error) {
	var content string
	var finish FinishReason = FinishStop
	var usage Usage
	calls := map[int]*models.ToolCall{}
	args := map[int]string{}
	var order []int

	for d := range deltas {
		if d.Err != nil {
			return nil, d.Err
		}
		content += d.ContentChunk
		if d.ToolCallDelta != nil {
			td := d.ToolCallDelta
			if _, seen := calls[td.Index]; !seen {
				calls[td.Index] = &models.ToolCall{ID: td.ID, Name: td.Name}
				order = append(order, td.Index)
			}
			if td.ID != "" {
				calls[td.Index].ID = td.ID
			}
			if td.Name != "" {
				calls[td.Index].Name = td.Name
			}
			args[td.Index] += td.ArgumentsFragment
		}
		if d.FinishReason != "" {
			finish = d.FinishReason
		}
		if d.Usage != nil {
			usage = *d.Usage
		}
	}

	sort.Ints(order)
	toolCalls := make([]models.ToolCall, 0, len(order))
	for _, idx := range order {
		c := calls[idx]
		raw := args[idx]
		if raw == "" {
			raw = "{}"
		}
		c.Arguments = json.RawMessage(raw)
		toolCalls = append(toolCalls, *c)
	}

	return &Response{Content: content, ToolCalls: toolCalls, Usage: usage, FinishReason: finish}, nil
}
