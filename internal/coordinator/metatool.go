package coordinator

import (
	"encoding/json"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

// metaPlannerTool is the pseudo-tool the LLM may elect to invoke for
// complex, multi-step requests instead of naming individual tools itself
// (spec §4.8, §4.11 step 2).
const metaPlannerTool = "plan_multi_step_request"

var metaPlannerDef = models.LLMFunctionDef{
	Name:        metaPlannerTool,
	Description: "Hand off a complex, multi-step, or ambiguous request to the planning stage instead of calling tools directly.",
	Parameters: json.RawMessage(`{
		"type": "object",
		"properties": {
			"summary": {"type": "string", "description": "A short restatement of what the user wants done."}
		},
		"required": ["summary"]
	}`),
}

func isPlannerMetaCall(name string) bool { return name == metaPlannerTool }
