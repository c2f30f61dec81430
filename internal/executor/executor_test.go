package executor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lutendolukhele/intentorch/internal/stream"
	"github.com/lutendolukhele/intentorch/pkg/models"
)

type fakeDispatcher struct {
	results map[string]*models.StepResult
}

func (f *fakeDispatcher) Execute(ctx context.Context, sessionID string, call models.ToolCall, userID string) *models.StepResult {
	if r, ok := f.results[call.Name]; ok {
		return r
	}
	return &models.StepResult{Status: "success", Data: map[string]any{}}
}

func newStep(id, tool string, args string) *models.Step {
	return &models.Step{StepID: id, ToolCall: models.ToolCall{Name: tool, Arguments: json.RawMessage(args)}, Status: models.StepReady}
}

// testMetrics is shared because NewMetrics registers its collectors with the
// default Prometheus registry, which rejects a second registration.
var testMetrics = NewMetrics()

func TestExecutorRunsAllStepsOnSuccess(t *testing.T) {
	dispatcher := &fakeDispatcher{results: map[string]*models.StepResult{
		"list_emails": {Status: "success", Data: map[string]any{"from": "a@example.com"}},
		"send_email":  {Status: "success", Data: map[string]any{"sent": true}},
	}}
	run := &models.Run{
		ID:        "run-1",
		SessionID: "sess-1",
		UserID:    "user-1",
		ToolExecutionPlan: []*models.Step{
			newStep("step_1", "list_emails", `{"limit": 1}`),
			newStep("step_2", "send_email", `{"to": "{{step_1.from}}"}`),
		},
	}

	e := New(dispatcher, stream.New(), testMetrics)
	e.Run(context.Background(), run)

	assert.Equal(t, models.RunCompleted, run.Status)
	assert.Equal(t, models.StepCompleted, run.ToolExecutionPlan[0].Status)
	assert.Equal(t, models.StepCompleted, run.ToolExecutionPlan[1].Status)

	var resolvedArgs map[string]any
	require.NoError(t, json.Unmarshal(run.ToolExecutionPlan[1].ToolCall.Arguments, &resolvedArgs))
	assert.Equal(t, "a@example.com", resolvedArgs["to"])
}

func TestExecutorSkipsRemainingStepsAfterFailure(t *testing.T) {
	dispatcher := &fakeDispatcher{results: map[string]*models.StepResult{
		"list_emails": {Status: "error", Error: &models.StepError{Code: models.ErrTransport, Message: "boom"}},
	}}
	run := &models.Run{
		ID:        "run-1",
		SessionID: "sess-1",
		UserID:    "user-1",
		ToolExecutionPlan: []*models.Step{
			newStep("step_1", "list_emails", `{}`),
			newStep("step_2", "send_email", `{}`),
		},
	}

	e := New(dispatcher, stream.New(), testMetrics)
	e.Run(context.Background(), run)

	assert.Equal(t, models.RunFailed, run.Status)
	assert.Equal(t, models.StepFailed, run.ToolExecutionPlan[0].Status)
	assert.Equal(t, models.StepSkipped, run.ToolExecutionPlan[1].Status)
	assert.Equal(t, "step_1", run.ToolExecutionPlan[1].SkippedDueTo)
}

func TestExecutorWorksWithNilMetrics(t *testing.T) {
	dispatcher := &fakeDispatcher{results: map[string]*models.StepResult{}}
	run := &models.Run{SessionID: "sess-1", ToolExecutionPlan: []*models.Step{newStep("step_1", "list_emails", `{}`)}}

	e := New(dispatcher, stream.New(), nil)
	assert.NotPanics(t, func() { e.Run(context.Background(), run) })
	assert.Equal(t, models.RunCompleted, run.Status)
}
