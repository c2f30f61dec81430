package orchestrator

import (
	"github.com/lutendolukhele/intentorch/internal/entitycache"
	"github.com/lutendolukhele/intentorch/pkg/models"
)

// emailBodyCap is tighter than the general entity cap: normalized results
// destined straight for the LLM's tool-result message get a smaller budget
// than the session cache's cleaned body (spec §4.6 step 7: 3 KiB).
const emailBodyCap = 3 * 1024

// crmFieldCap bounds long CRM description/notes fields (spec §4.6 step 7).
const crmFieldCap = 500

// NormalizeForLLM cleans and caps verbose fields per tool category so a
// tool result stays within prompt budget (spec §4.6 step 7): emails drop
// the raw HTML body and cap the cleaned text body to 3 KiB; CRM caps long
// description/notes fields to ~500 chars with a truncation note.
func NormalizeForLLM(category models.ToolCategory, data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}

	switch category {
	case models.CategoryEmail:
		delete(out, "html_body")
		delete(out, "htmlBody")
		if body, ok := out["body"].(string); ok {
			out["body"] = capWithMarker(entitycache.CleanBody(body), emailBodyCap)
		}
	case models.CategoryCRM:
		for _, field := range []string{"description", "notes", "deal_notes"} {
			if s, ok := out[field].(string); ok {
				out[field] = capWithMarker(s, crmFieldCap)
			}
		}
	}
	return out
}

func capWithMarker(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + models.TruncationMarker
}
