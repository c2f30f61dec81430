// Package decision implements the Execution Decision (spec §4.9): a pure
// policy function over an already-planned Run, with no I/O and no
// collaborators.
package decision

import (
	"regexp"

	"github.com/lutendolukhele/intentorch/internal/catalog"
	"github.com/lutendolukhele/intentorch/pkg/models"
)

// destructiveKeywords matches tool names implying irreversible mutation
// (spec §4.9 rule 1).
var destructiveKeywords = regexp.MustCompile(`(?i)delete|remove|drop|destroy|purge|wipe`)

// Decision is the outcome of decide(plan).
type Decision struct {
	AutoExecute       bool
	Reason            string
	NeedsUserInput    bool
	NeedsConfirmation bool
}

// Decide applies the spec §4.9 rule order against a plan's steps. cat
// resolves each step's ToolDefinition so rule 3's read-only allow-list
// (the cache/fetch family) can be checked; a step whose tool is unknown to
// the catalog is treated as not read-only, falling through to rule 4/5.
func Decide(plan []*models.Step, cat *catalog.Catalog) Decision {
	for _, step := range plan {
		if destructiveKeywords.MatchString(step.ToolCall.Name) {
			return Decision{NeedsConfirmation: true, Reason: "destructive_tool"}
		}
	}

	for _, step := range plan {
		if step.Status == models.StepCollectingParameters {
			return Decision{NeedsUserInput: true, Reason: "collecting_parameters"}
		}
	}

	if len(plan) == 1 {
		if def, ok := cat.GetByName(plan[0].ToolCall.Name); ok && def.Source == models.SourceCache {
			return Decision{AutoExecute: true, Reason: "single_read_only_step"}
		}
	}

	if len(plan) > 1 {
		return Decision{NeedsConfirmation: true, Reason: "multi_step_plan"}
	}

	return Decision{NeedsConfirmation: true, Reason: "default_confirmation"}
}
