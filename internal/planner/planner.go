// Package planner implements the Planner (spec §4.8): an LLM-mediated
// translation of one user turn and a candidate tool list into an ordered
// plan of Steps.
package planner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/lutendolukhele/intentorch/internal/llm"
	"github.com/lutendolukhele/intentorch/internal/stream"
	"github.com/lutendolukhele/intentorch/pkg/models"
)

// systemPrompt instructs the LLM to emit a strict JSON plan rather than
// prose, so the Planner can parse it deterministically.
const systemPrompt = `You are the planning stage of a tool-use agent. Given a user request and a ` +
	`list of available tools, decide which tools to call and in what order. Respond with a JSON ` +
	`object of the shape {"steps": [{"intent": "<prose reason>", "tool": "<tool name>", "arguments": {...}}]}. ` +
	`Use only tool names from the provided list. A later step may reference an earlier step's output via ` +
	`{{stepId.path}} placeholders, where stepId is assigned in the order you list steps ("step_1", "step_2", ...). ` +
	`If the request needs no tool, respond with {"steps": []}.`

type planStep struct {
	Intent    string          `json:"intent"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

type planDoc struct {
	Steps []planStep `json:"steps"`
}

// RejectedPlanError reports that the LLM named a tool outside the
// candidate set (spec §4.8 rule 3): the whole plan is rejected.
type RejectedPlanError struct {
	UnknownTools []string
}

func (e *RejectedPlanError) Error() string {
	return fmt.Sprintf("planner: plan referenced unknown tools %v", e.UnknownTools)
}

// Planner turns one user turn into an ordered Step list.
type Planner struct {
	provider llm.Provider
	mux      *stream.Multiplexer
}

// New builds a Planner over an LLM collaborator and the stream multiplexer
// used to announce planner_status events as steps are determined.
func New(provider llm.Provider, mux *stream.Multiplexer) *Planner {
	return &Planner{provider: provider, mux: mux}
}

// GeneratePlan invokes the LLM with userInput and candidateTools, assigns
// fresh stepIds in order, and announces each step via planner_status as it
// is determined. An empty LLM plan, a parse failure, or any step naming a
// tool outside candidateTools rejects the whole plan (spec §4.8 rule 3).
func (p *Planner) GeneratePlan(ctx context.Context, userInput string, candidateTools []models.LLMFunctionDef, sessionID, messageID, userID string) ([]*models.Step, error) {
	known := make(map[string]bool, len(candidateTools))
	for _, t := range candidateTools {
		known[t.Name] = true
	}

	resp, err := p.provider.Chat(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userInput},
		},
		Tools:       candidateTools,
		Temperature: 0,
		MaxTokens:   2048,
	})
	if err != nil {
		return nil, fmt.Errorf("planner: llm chat failed: %w", err)
	}

	doc, err := parsePlanDoc(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	if len(doc.Steps) == 0 {
		return nil, fmt.Errorf("planner: llm produced no steps")
	}

	var unknown []string
	for _, s := range doc.Steps {
		if !known[s.Tool] {
			unknown = append(unknown, s.Tool)
		}
	}
	if len(unknown) > 0 {
		return nil, &RejectedPlanError{UnknownTools: unknown}
	}

	steps := make([]*models.Step, 0, len(doc.Steps))
	for i, s := range doc.Steps {
		stepID := fmt.Sprintf("step_%d", i+1)
		args := s.Arguments
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		step := &models.Step{
			StepID: stepID,
			ToolCall: models.ToolCall{
				ID:        uuid.NewString(),
				Name:      s.Tool,
				Arguments: args,
				SessionID: sessionID,
				UserID:    userID,
			},
			Status: models.StepReady,
		}
		steps = append(steps, step)

		p.mux.SendChunk(sessionID, models.StreamEvent{
			Type:      models.EventPlannerStatus,
			MessageID: messageID,
			Payload: map[string]any{
				"step_id": stepID,
				"intent":  s.Intent,
				"tool":    s.Tool,
			},
		})
	}

	return steps, nil
}

// parsePlanDoc decodes the LLM's structured plan. Some models wrap JSON in
// a fenced code block despite instructions; strip that before decoding.
func parsePlanDoc(content string) (*planDoc, error) {
	trimmed := stripCodeFence(content)
	var doc planDoc
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return nil, fmt.Errorf("llm response was not a valid plan document: %w", err)
	}
	return &doc, nil
}
