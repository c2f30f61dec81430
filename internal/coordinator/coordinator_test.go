package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lutendolukhele/intentorch/internal/catalog"
	"github.com/lutendolukhele/intentorch/internal/executor"
	"github.com/lutendolukhele/intentorch/internal/llm"
	"github.com/lutendolukhele/intentorch/internal/planner"
	"github.com/lutendolukhele/intentorch/internal/sessionstore"
	"github.com/lutendolukhele/intentorch/internal/stream"
	"github.com/lutendolukhele/intentorch/internal/toolfilter"
	"github.com/lutendolukhele/intentorch/pkg/models"
)

// recordingSink captures every event sent to it, in order, for assertions
// about stream ordering (spec testable property 3).
type recordingSink struct {
	mu     sync.Mutex
	events []models.StreamEvent
}

func (r *recordingSink) Send(event models.StreamEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) snapshot() []models.StreamEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.StreamEvent, len(r.events))
	copy(out, r.events)
	return out
}

type allConnected struct{ keys []string }

func (a allConnected) ConnectedProviderKeys(userID string) ([]string, error) { return a.keys, nil }

// scriptedProvider serves one []StreamDelta batch per ChatStream call, in
// order; each batch models everything a single streamed completion emits.
type scriptedProvider struct {
	calls      [][]llm.StreamDelta
	idx        int
	streamReqs []llm.Request
}

func (s *scriptedProvider) Name() string { return "scripted" }

// Chat serves the Planner's non-streaming call with a canned two-step plan
// naming tools already present in testCatalog, so tests routed through
// runPlannedTurn exercise the real Planner rather than stubbing it out.
func (s *scriptedProvider) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return &llm.Response{
		Content:      `{"steps": [{"intent": "find it", "tool": "list_emails", "arguments": {}}, {"intent": "reply", "tool": "send_email", "arguments": {}}]}`,
		FinishReason: llm.FinishStop,
	}, nil
}

// ChatStream serves one canned set of deltas per call, advancing through
// s.calls so HandleTurn's first-completion call and any follow-up summary
// call each get their own scripted response.
func (s *scriptedProvider) ChatStream(ctx context.Context, req llm.Request) (<-chan llm.StreamDelta, error) {
	s.streamReqs = append(s.streamReqs, req)
	var batch []llm.StreamDelta
	if s.idx < len(s.calls) {
		batch = s.calls[s.idx]
		s.idx++
	} else {
		batch = []llm.StreamDelta{{ContentChunk: fallbackSummary, FinishReason: llm.FinishStop}}
	}
	ch := make(chan llm.StreamDelta, len(batch))
	for _, d := range batch {
		ch <- d
	}
	close(ch)
	return ch, nil
}

func textDelta(content string) llm.StreamDelta {
	return llm.StreamDelta{ContentChunk: content, FinishReason: llm.FinishStop}
}

func toolCallDelta(index int, id, name, args string) llm.StreamDelta {
	return llm.StreamDelta{ToolCallDelta: &llm.ToolCallDelta{Index: index, ID: id, Name: name, ArgumentsFragment: args}}
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]models.ToolDefinition{
		{Name: "list_emails", Category: models.CategoryEmail, ProviderKey: "gmail", Source: models.SourceCache,
			Parameters: models.ParameterSchema{Type: "object"}},
		{Name: "send_email", Category: models.CategoryEmail, ProviderKey: "gmail", Source: models.SourceAction,
			Parameters: models.ParameterSchema{Type: "object"}},
	})
	require.NoError(t, err)
	return cat
}

func newHarness(t *testing.T, provider llm.Provider) (*Coordinator, sessionstore.Store) {
	t.Helper()
	c, store, _ := newHarnessWithMux(t, provider)
	return c, store
}

func newHarnessWithMux(t *testing.T, provider llm.Provider) (*Coordinator, sessionstore.Store, *stream.Multiplexer) {
	t.Helper()
	cat := testCatalog(t)
	filter := toolfilter.New(cat, allConnected{keys: []string{"gmail"}}, nil)
	mux := stream.New()
	store := sessionstore.NewMemoryStore()
	pl := planner.New(provider, mux)
	exec := executor.New(fakeDispatcher{}, mux, nil)
	return New(store, filter, cat, provider, pl, exec, mux), store, mux
}

type fakeDispatcher struct{}

func (fakeDispatcher) Execute(ctx context.Context, sessionID string, call models.ToolCall, userID string) *models.StepResult {
	return &models.StepResult{Status: "success", Data: map[string]any{"ok": true}}
}

func TestHandleTurnWithNoToolCallsAppendsAssistantReply(t *testing.T) {
	provider := &scriptedProvider{calls: [][]llm.StreamDelta{{textDelta("hi there")}}}
	c, store := newHarness(t, provider)

	require.NoError(t, c.HandleTurn(context.Background(), "sess-1", "user-1", "hello"))

	history, err := store.GetHistory(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.HistoryUser, history[0].Role)
	assert.Equal(t, models.HistoryAssistant, history[1].Role)
	assert.Equal(t, "hi there", history[1].Content)
}

func TestHandleTurnWithSingleReadOnlyToolAutoExecutes(t *testing.T) {
	provider := &scriptedProvider{calls: [][]llm.StreamDelta{
		{toolCallDelta(0, "call-1", "list_emails", `{"limit":`), toolCallDelta(0, "", "", `5}`)},
		{textDelta(fallbackSummary)},
	}}
	c, store := newHarness(t, provider)

	require.NoError(t, c.HandleTurn(context.Background(), "sess-1", "user-1", "list my emails"))

	history, err := store.GetHistory(context.Background(), "sess-1")
	require.NoError(t, err)

	var sawToolResult, sawAssistantSummary bool
	for _, e := range history {
		if e.Role == models.HistoryTool {
			sawToolResult = true
		}
		if e.Role == models.HistoryAssistant && e.Content != "" {
			sawAssistantSummary = true
		}
	}
	assert.True(t, sawToolResult, "executed tool result should be recorded in history")
	assert.True(t, sawAssistantSummary, "closing summary should be recorded in history")
}

func TestHandleTurnWithMultipleToolCallsRequestsPlanAndWaitsForConfirmation(t *testing.T) {
	provider := &scriptedProvider{calls: [][]llm.StreamDelta{
		{toolCallDelta(0, "call-1", "list_emails", `{}`), toolCallDelta(1, "call-2", "send_email", `{}`)},
	}}
	c, store := newHarness(t, provider)

	require.NoError(t, c.HandleTurn(context.Background(), "sess-1", "user-1", "find my latest email and reply"))

	history, err := store.GetHistory(context.Background(), "sess-1")
	require.NoError(t, err)
	for _, e := range history {
		assert.NotEqual(t, models.HistoryTool, e.Role, "multi-step plan should wait for confirmation before executing")
	}
}

func TestSummarizeFallsBackWhenLLMReturnsEmptyTwice(t *testing.T) {
	provider := &scriptedProvider{calls: [][]llm.StreamDelta{{textDelta("")}, {textDelta("")}}}
	c, _ := newHarness(t, provider)

	summary, err := c.summarize(context.Background(), "sess-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, fallbackSummary, summary)

	require.Len(t, provider.streamReqs, 2, "summarize should attempt exactly twice")
	first, second := provider.streamReqs[0], provider.streamReqs[1]
	require.Len(t, second.Messages, len(first.Messages)+1, "retry should append one corrective instruction")
	retryMsg := second.Messages[len(second.Messages)-1]
	assert.Equal(t, "user", retryMsg.Role)
	assert.Contains(t, retryMsg.Content, "Summarize")
	assert.NotEqual(t, first.Messages, second.Messages, "retry must not repeat the exact same request")
}

// TestSummarizeSucceedsOnRetryWithCorrectivePrompt checks that when the
// first attempt is empty but the second (carrying the corrective prompt)
// returns content, that content is returned rather than the fallback.
func TestSummarizeSucceedsOnRetryWithCorrectivePrompt(t *testing.T) {
	provider := &scriptedProvider{calls: [][]llm.StreamDelta{{textDelta("")}, {textDelta("sent the email")}}}
	c, _ := newHarness(t, provider)

	summary, err := c.summarize(context.Background(), "sess-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "sent the email", summary)
}

// TestHandleTurnEndsWithExactlyOneFinalStreamEnd checks testable property 3:
// the sequence of StreamEvents for one turn ends with exactly one isFinal
// event, and that event is stream_end.
func TestHandleTurnEndsWithExactlyOneFinalStreamEnd(t *testing.T) {
	provider := &scriptedProvider{calls: [][]llm.StreamDelta{{textDelta("hi there")}}}
	c, _, mux := newHarnessWithMux(t, provider)
	sink := &recordingSink{}
	mux.Attach("sess-1", sink)

	require.NoError(t, c.HandleTurn(context.Background(), "sess-1", "user-1", "hello"))
	waitForEventCount(t, sink, models.EventStreamEnd, 1)

	events := sink.snapshot()
	require.NotEmpty(t, events)

	finalCount := 0
	for _, e := range events {
		if e.IsFinal {
			finalCount++
		}
	}
	assert.Equal(t, 1, finalCount, "exactly one event should be marked final")
	last := events[len(events)-1]
	assert.Equal(t, models.EventStreamEnd, last.Type)
	assert.True(t, last.IsFinal)
}

// TestConfirmResumesWaitingRunAndClosesStream exercises the confirmation
// round trip (spec §4.9, S3): a two-tool-call turn parks its Run awaiting
// confirmation without executing any step, and Confirm then drives it to
// completion and closes the stream with stream_end.
func TestConfirmResumesWaitingRunAndClosesStream(t *testing.T) {
	provider := &scriptedProvider{calls: [][]llm.StreamDelta{
		{toolCallDelta(0, "call-1", "list_emails", `{}`), toolCallDelta(1, "call-2", "send_email", `{}`)},
		{textDelta(fallbackSummary)},
	}}
	c, store, mux := newHarnessWithMux(t, provider)
	sink := &recordingSink{}
	mux.Attach("sess-1", sink)

	require.NoError(t, c.HandleTurn(context.Background(), "sess-1", "user-1", "find my latest email and reply"))
	waitForEventCount(t, sink, models.EventStreamEnd, 1)

	var runID string
	for _, e := range sink.snapshot() {
		if e.Type == models.EventActionConfirmRequired {
			runID = e.Run.ID
		}
	}
	require.NotEmpty(t, runID, "expected an action_confirmation_required event carrying the run")

	require.NoError(t, c.Confirm(context.Background(), "sess-1", "user-1", runID, nil))
	waitForEventCount(t, sink, models.EventStreamEnd, 2)

	history, err := store.GetHistory(context.Background(), "sess-1")
	require.NoError(t, err)
	var sawToolResult bool
	for _, e := range history {
		if e.Role == models.HistoryTool {
			sawToolResult = true
		}
	}
	assert.True(t, sawToolResult, "confirmed run should execute and record tool results in history")

	events := sink.snapshot()
	finalCount := 0
	for _, e := range events {
		if e.IsFinal {
			finalCount++
		}
	}
	assert.Equal(t, 2, finalCount, "each turn (initial + confirm) closes with its own final stream_end")
}

// waitForEventCount polls sink until at least wantCount events of type want
// have been recorded, since Multiplexer delivery runs on its own goroutine.
func waitForEventCount(t *testing.T, sink *recordingSink, want models.StreamEventType, wantCount int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		count := 0
		for _, e := range sink.snapshot() {
			if e.Type == want {
				count++
			}
		}
		if count >= wantCount {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events of type %q", wantCount, want)
}
