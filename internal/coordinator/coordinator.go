// Package coordinator implements the Conversation Coordinator (spec §4.11):
// the per-turn entry point that owns session history, decides whether a
// user turn needs tool use at all, and hands off to the Planner, Execution
// Decision, and Plan Executor when it does.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lutendolukhele/intentorch/internal/catalog"
	"github.com/lutendolukhele/intentorch/internal/decision"
	"github.com/lutendolukhele/intentorch/internal/executor"
	"github.com/lutendolukhele/intentorch/internal/llm"
	"github.com/lutendolukhele/intentorch/internal/planner"
	"github.com/lutendolukhele/intentorch/internal/sessionstore"
	"github.com/lutendolukhele/intentorch/internal/stream"
	"github.com/lutendolukhele/intentorch/internal/toolfilter"
	"github.com/lutendolukhele/intentorch/pkg/models"
)

// fallbackSummary is emitted when the post-execution summary turn comes back
// empty even after one retry (spec §4.11 step 6).
const fallbackSummary = "The actions have been completed successfully."

// Coordinator owns one session's turn-taking loop.
type Coordinator struct {
	store    sessionstore.Store
	filter   *toolfilter.Filter
	cat      *catalog.Catalog
	provider llm.Provider
	planner  *planner.Planner
	exec     *executor.Executor
	mux      *stream.Multiplexer

	// busy tracks sessions with a turn currently in flight, so a concurrent
	// user_message on the same session is rejected rather than interleaved
	// (spec §5 "Ordering guarantees" / §9 design note).
	busy sync.Map // sessionID -> struct{}

	// waiting holds Runs parked in models.RunWaiting by decideAndRun, keyed
	// by Run.ID, until the client's confirmation/parameter-collection
	// response arrives and Confirm resumes them (spec §4.11 step 5, §6.1
	// action_confirmation_required / parameter_collection_required).
	waiting sync.Map // runID -> *models.Run
}

// New builds a Coordinator from its collaborators. None may be nil.
func New(store sessionstore.Store, filter *toolfilter.Filter, cat *catalog.Catalog, provider llm.Provider, pl *planner.Planner, exec *executor.Executor, mux *stream.Multiplexer) *Coordinator {
	return &Coordinator{store: store, filter: filter, cat: cat, provider: provider, planner: pl, exec: exec, mux: mux}
}

// HandleTurn processes one user message end to end (spec §4.11 steps 1-6):
// it appends the turn to history, asks the LLM whether any tool is needed,
// and either streams a conversational reply or produces and runs a Run. A
// second call for a session whose turn is still in flight is rejected with
// an error event rather than interleaved.
func (c *Coordinator) HandleTurn(ctx context.Context, sessionID, userID, userInput string) error {
	if _, already := c.busy.LoadOrStore(sessionID, struct{}{}); already {
		c.mux.SendChunk(sessionID, models.StreamEvent{
			Type:  models.EventError,
			Error: &models.StepError{Code: models.ErrInternal, Message: "a turn is already in progress for this session"},
		})
		c.endStream(sessionID)
		return fmt.Errorf("coordinator: session %s has a turn in progress", sessionID)
	}
	defer c.busy.Delete(sessionID)

	messageID := uuid.NewString()
	now := time.Now()

	if err := c.store.AppendHistory(ctx, sessionID, models.HistoryEntry{
		Role: models.HistoryUser, Content: userInput, CreatedAt: now,
	}); err != nil {
		c.endStream(sessionID)
		return fmt.Errorf("coordinator: append user turn: %w", err)
	}

	tools, err := c.candidateTools(userID, userInput)
	if err != nil {
		c.endStream(sessionID)
		return fmt.Errorf("coordinator: candidate tools: %w", err)
	}

	history, err := c.store.GetHistory(ctx, sessionID)
	if err != nil {
		c.endStream(sessionID)
		return fmt.Errorf("coordinator: load history: %w", err)
	}
	messages := prepareMessages(history)

	req := llm.Request{
		Messages:    messages,
		Tools:       append(tools, metaPlannerDef),
		Temperature: 0.2,
		MaxTokens:   2048,
	}

	resp, err := c.streamAssistantTurn(ctx, sessionID, messageID, req)
	if err != nil {
		c.endStream(sessionID)
		return fmt.Errorf("coordinator: llm turn: %w", err)
	}

	wantsPlanner := false
	var directCalls []models.ToolCall
	for _, tc := range resp.ToolCalls {
		if isPlannerMetaCall(tc.Name) {
			wantsPlanner = true
			continue
		}
		tc.SessionID = sessionID
		tc.UserID = userID
		directCalls = append(directCalls, tc)
	}

	switch {
	case wantsPlanner || len(directCalls) >= 2:
		err = c.runPlannedTurn(ctx, sessionID, userID, userInput, messageID, tools)
	case len(directCalls) == 1:
		err = c.runDirectTurn(ctx, sessionID, userID, directCalls[0])
	default:
		err = c.store.AppendHistory(ctx, sessionID, models.HistoryEntry{
			Role: models.HistoryAssistant, Content: resp.Content, CreatedAt: time.Now(),
		})
	}
	c.endStream(sessionID)
	return err
}

// endStream emits the single isFinal stream_end event closing out this
// turn's message (spec §6.1, testable property 3). A waiting run (pending
// confirmation or parameter collection) still closes the stream here; its
// eventual Resume emits its own closing stream_end.
func (c *Coordinator) endStream(sessionID string) {
	c.mux.SendChunk(sessionID, models.StreamEvent{Type: models.EventStreamEnd, IsFinal: true})
}

// candidateTools narrows the catalog to the categories implied by userInput
// for this user's connected providers (spec §4.3, §4.11 step 2).
func (c *Coordinator) candidateTools(userID, userInput string) ([]models.LLMFunctionDef, error) {
	categories := toolfilter.DetectCategories(userInput)
	defs, err := c.filter.GetToolsByCategoriesForUser(userID, categories)
	if err != nil {
		return nil, err
	}
	return catalog.FormatForLLM(defs)
}

// streamAssistantTurn drives one streaming completion, forwarding text
// chunks as conversational_text_segment events and accumulating tool-call
// deltas by index into complete ToolCalls (spec §4.11 step 3).
func (c *Coordinator) streamAssistantTurn(ctx context.Context, sessionID, messageID string, req llm.Request) (*llm.Response, error) {
	deltas, err := c.provider.ChatStream(ctx, req)
	if err != nil {
		return nil, err
	}

	var content string
	calls := make(map[int]*models.ToolCall)
	args := make(map[int]string)
	var order []int
	finish := llm.FinishStop
	var usage llm.Usage
	first := true

	for d := range deltas {
		if d.Err != nil {
			return nil, d.Err
		}
		if d.ContentChunk != "" {
			tag := models.TextStreaming
			if first {
				tag = models.TextStart
				first = false
			}
			content += d.ContentChunk
			c.mux.SendChunk(sessionID, models.StreamEvent{
				Type: models.EventConversationalText, MessageID: messageID,
				Content: d.ContentChunk, StreamTag: tag,
			})
		}
		if d.ToolCallDelta != nil {
			td := d.ToolCallDelta
			if _, ok := calls[td.Index]; !ok {
				calls[td.Index] = &models.ToolCall{ID: td.ID, Name: td.Name}
				order = append(order, td.Index)
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

	// END_STREAM closes this text segment, not the turn: the turn's own
	// isFinal event is the stream_end emitted once by HandleTurn/Resume, so
	// this segment boundary does not set IsFinal itself (testable property
	// 3: exactly one final event per turn).
	if !first && content != "" {
		c.mux.SendChunk(sessionID, models.StreamEvent{
			Type: models.EventConversationalText, MessageID: messageID,
			StreamTag: models.TextEnd,
		})
	}

	sort.Ints(order)
	toolCalls := make([]models.ToolCall, 0, len(order))
	for _, idx := range order {
		call := calls[idx]
		raw := args[idx]
		if raw == "" {
			raw = "{}"
		}
		call.Arguments = []byte(raw)
		toolCalls = append(toolCalls, *call)
	}

	return &llm.Response{Content: content, ToolCalls: toolCalls, Usage: usage, FinishReason: finish}, nil
}

// runDirectTurn handles the single-tool-call shortcut: a one-step Run built
// directly from the coordinator's own completion, bypassing the Planner
// (spec §4.11 step 4).
func (c *Coordinator) runDirectTurn(ctx context.Context, sessionID, userID string, call models.ToolCall) error {
	run := &models.Run{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		ToolExecutionPlan: []*models.Step{
			{StepID: "step_1", ToolCall: call, Status: models.StepReady},
		},
		Status:    models.RunPending,
		CreatedAt: time.Now(),
	}
	return c.decideAndRun(ctx, sessionID, userID, run)
}

// runPlannedTurn hands the turn to the Planner for a multi-step or
// explicitly requested plan (spec §4.11 step 4).
func (c *Coordinator) runPlannedTurn(ctx context.Context, sessionID, userID, userInput, messageID string, tools []models.LLMFunctionDef) error {
	steps, err := c.planner.GeneratePlan(ctx, userInput, tools, sessionID, messageID, userID)
	if err != nil {
		c.mux.SendChunk(sessionID, models.StreamEvent{
			Type:  models.EventError,
			Error: &models.StepError{Code: models.ErrInternal, Message: err.Error()},
		})
		return fmt.Errorf("coordinator: generate plan: %w", err)
	}

	run := &models.Run{
		ID:                uuid.NewString(),
		SessionID:         sessionID,
		UserID:            userID,
		UserInput:         userInput,
		ToolExecutionPlan: steps,
		Status:            models.RunPending,
		CreatedAt:         time.Now(),
	}
	c.mux.SendChunk(sessionID, models.StreamEvent{Type: models.EventPlanGenerated, Run: run})
	return c.decideAndRun(ctx, sessionID, userID, run)
}

// decideAndRun applies the Execution Decision to run and either executes it
// immediately or asks the user for confirmation/parameters first (spec §4.9,
// §4.11 step 5).
func (c *Coordinator) decideAndRun(ctx context.Context, sessionID, userID string, run *models.Run) error {
	d := decision.Decide(run.ToolExecutionPlan, c.cat)

	switch {
	case d.NeedsUserInput:
		run.Status = models.RunWaiting
		c.waiting.Store(run.ID, run)
		c.mux.SendChunk(sessionID, models.StreamEvent{Type: models.EventParamCollectionRequired, Run: run})
		return nil
	case d.NeedsConfirmation:
		run.Status = models.RunWaiting
		c.waiting.Store(run.ID, run)
		c.mux.SendChunk(sessionID, models.StreamEvent{Type: models.EventActionConfirmRequired, Run: run})
		return nil
	}

	c.exec.Run(ctx, run)
	return c.finishRun(ctx, sessionID, userID, run)
}

// Resume continues a Run that was left waiting for user confirmation or
// parameters, executing it and producing the closing summary turn. Like
// HandleTurn, it rejects a concurrent call on the same session rather than
// interleaving it with an in-flight turn.
func (c *Coordinator) Resume(ctx context.Context, sessionID, userID string, run *models.Run) error {
	if _, already := c.busy.LoadOrStore(sessionID, struct{}{}); already {
		c.mux.SendChunk(sessionID, models.StreamEvent{
			Type:  models.EventError,
			Error: &models.StepError{Code: models.ErrInternal, Message: "a turn is already in progress for this session"},
		})
		c.endStream(sessionID)
		return fmt.Errorf("coordinator: session %s has a turn in progress", sessionID)
	}
	defer c.busy.Delete(sessionID)

	c.exec.Run(ctx, run)
	err := c.finishRun(ctx, sessionID, userID, run)
	c.endStream(sessionID)
	return err
}

// Confirm looks up a Run parked by decideAndRun under runID and resumes it,
// merging any user-supplied argument edits into the plan's steps first (for
// the parameter_collection_required case) before executing. Returns an
// error if no waiting run exists with that ID for that session.
func (c *Coordinator) Confirm(ctx context.Context, sessionID, userID, runID string, argumentEdits map[string]map[string]any) error {
	v, ok := c.waiting.LoadAndDelete(runID)
	if !ok {
		c.mux.SendChunk(sessionID, models.StreamEvent{
			Type:  models.EventError,
			Error: &models.StepError{Code: models.ErrConfiguration, Message: "no waiting run with that id for this session"},
		})
		return fmt.Errorf("coordinator: no waiting run %q", runID)
	}
	run := v.(*models.Run)
	if run.SessionID != sessionID {
		c.waiting.Store(runID, run)
		return fmt.Errorf("coordinator: run %q does not belong to session %q", runID, sessionID)
	}

	for _, step := range run.ToolExecutionPlan {
		edits, ok := argumentEdits[step.StepID]
		if !ok {
			continue
		}
		merged := map[string]any{}
		if len(step.ToolCall.Arguments) > 0 {
			_ = json.Unmarshal(step.ToolCall.Arguments, &merged)
		}
		for k, val := range edits {
			merged[k] = val
		}
		if raw, err := json.Marshal(merged); err == nil {
			step.ToolCall.Arguments = raw
		}
	}

	return c.Resume(ctx, sessionID, userID, run)
}

// finishRun records each step's result into history and requests a closing
// summary turn from the LLM (spec §4.11 step 6).
func (c *Coordinator) finishRun(ctx context.Context, sessionID, userID string, run *models.Run) error {
	now := time.Now()
	for _, step := range run.ToolExecutionPlan {
		if step.Result == nil {
			continue
		}
		content, err := resultToHistoryContent(step.Result)
		if err != nil {
			content = fmt.Sprintf(`{"status":"error","error":%q}`, err.Error())
		}
		_ = c.store.AppendHistory(ctx, sessionID, models.HistoryEntry{
			Role:       models.HistoryTool,
			Content:    content,
			ToolCallID: step.ToolCall.ID,
			CreatedAt:  now,
		})
	}

	summary, err := c.summarize(ctx, sessionID, userID)
	if err != nil {
		return fmt.Errorf("coordinator: summarize run: %w", err)
	}
	run.AssistantResponse = &summary

	return c.store.AppendHistory(ctx, sessionID, models.HistoryEntry{
		Role: models.HistoryAssistant, Content: summary, CreatedAt: time.Now(),
	})
}

// summarizeRetryInstruction is the explicit corrective prompt appended on
// the second attempt when the model returns an empty summary (spec §4.11
// step 6 / scenario S6): a plain repeat of the same request tends to
// reproduce the same empty response, so the retry asks for something
// narrower and harder to answer with nothing.
const summarizeRetryInstruction = "Your previous response was empty. Summarize, in one or two sentences, what you just did in this conversation."

// summarize requests a tool-free closing turn and retries once with
// summarizeRetryInstruction appended if the LLM returns empty text, before
// falling back to a fixed message (spec §4.11 step 6).
func (c *Coordinator) summarize(ctx context.Context, sessionID, userID string) (string, error) {
	messageID := uuid.NewString()
	history, err := c.store.GetHistory(ctx, sessionID)
	if err != nil {
		return "", err
	}
	messages := prepareMessages(history)

	for attempt := 0; attempt < 2; attempt++ {
		req := llm.Request{
			Messages:    messages,
			Temperature: 0.4,
			MaxTokens:   1024,
		}
		if attempt > 0 {
			req.Messages = append(append([]llm.Message{}, messages...), llm.Message{
				Role:    "user",
				Content: summarizeRetryInstruction,
			})
		}
		resp, err := c.streamAssistantTurn(ctx, sessionID, messageID, req)
		if err != nil {
			return "", err
		}
		if resp.Content != "" {
			return resp.Content, nil
		}
	}
	return fallbackSummary, nil
}

func resultToHistoryContent(result *models.StepResult) (string, error) {
	if result.Status != "success" {
		if result.Error != nil {
			return fmt.Sprintf(`{"status":"error","code":%q,"message":%q}`, result.Error.Code, result.Error.Message), nil
		}
		return `{"status":"error"}`, nil
	}
	raw, err := json.Marshal(result.Data)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
