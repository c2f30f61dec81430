package planner

import "strings"

// stripCodeFence removes a leading/trailing ```json ... ``` or ``` ... ```
// fence some LLMs wrap structured output in regardless of instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
