package coordinator

import (
	"github.com/lutendolukhele/intentorch/internal/llm"
	"github.com/lutendolukhele/intentorch/pkg/models"
)

// systemPreamble is prepended fresh to every LLM call; history never
// carries its own system entries into the prompt (spec §4.11).
const systemPreamble = `You are an assistant that can invoke tools to act on the user's email, ` +
	`calendar, and CRM data. Prefer calling a tool over guessing when the user's request needs ` +
	`live data or an action. For requests needing multiple coordinated steps, call the ` + metaPlannerTool + ` tool instead of the individual tools yourself.`

// prepareMessages converts bounded history into the LLM message list: a
// fresh system message is prepended, stored system entries are stripped,
// empty assistant entries are dropped (they break the next turn), and tool
// entries are passed through verbatim (spec §4.11).
func prepareMessages(history []models.HistoryEntry) []llm.Message {
	out := make([]llm.Message, 0, len(history)+1)
	out = append(out, llm.Message{Role: "system", Content: systemPreamble})

	for _, e := range history {
		switch e.Role {
		case models.HistorySystem:
			continue
		case models.HistoryAssistant:
			if e.Content == "" && len(e.ToolCalls) == 0 {
				continue
			}
			out = append(out, llm.Message{Role: "assistant", Content: e.Content, ToolCalls: e.ToolCalls})
		case models.HistoryTool:
			out = append(out, llm.Message{Role: "tool", Content: e.Content, ToolCallID: e.ToolCallID})
		default:
			out = append(out, llm.Message{Role: string(e.Role), Content: e.Content})
		}
	}
	return out
}
