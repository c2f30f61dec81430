// Package executor implements the Plan Executor (spec §4.10): it drives a
// Run's step list through pending -> running -> {waiting, completed,
// failed}, resolving placeholders, dispatching to the Tool Orchestrator,
// and emitting per-step stream events.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/lutendolukhele/intentorch/internal/placeholder"
	"github.com/lutendolukhele/intentorch/internal/stream"
	"github.com/lutendolukhele/intentorch/pkg/models"
)

// Dispatcher executes one resolved tool call (implemented by
// *orchestrator.Orchestrator; kept as an interface so the executor can be
// tested without the full provider-gateway stack).
type Dispatcher interface {
	Execute(ctx context.Context, sessionID string, call models.ToolCall, userID string) *models.StepResult
}

// Executor drives Runs to completion.
type Executor struct {
	dispatcher Dispatcher
	mux        *stream.Multiplexer
	metrics    *Metrics
}

// New builds an Executor. metrics may be nil to disable instrumentation.
func New(dispatcher Dispatcher, mux *stream.Multiplexer, metrics *Metrics) *Executor {
	return &Executor{dispatcher: dispatcher, mux: mux, metrics: metrics}
}

// Run drives run's step list in order per spec §4.10's algorithm: resolve
// placeholders, execute, record status, and on a failing step under the
// fail-fast policy mark every remaining step skipped and stop.
func (e *Executor) Run(ctx context.Context, run *models.Run) {
	run.Status = models.RunRunning
	lookup := placeholder.LookupFromRun(run)

	failedAt := -1
	for i, step := range run.ToolExecutionPlan {
		if step.Status.Terminal() {
			continue
		}
		if failedAt >= 0 {
			step.Status = models.StepSkipped
			step.SkippedDueTo = run.ToolExecutionPlan[failedAt].StepID
			e.metrics.recordSkip()
			continue
		}

		resolvedArgs, hadWarning, err := placeholder.ResolveArguments(step.ToolCall.Arguments, lookup)
		if err == nil {
			step.ToolCall.Arguments = resolvedArgs
		}
		if hadWarning {
			step.ResolutionWarning = "one or more placeholders could not be resolved"
		}

		started := time.Now()
		step.StartedAt = &started
		step.Status = models.StepExecuting
		e.emitStatus(run.SessionID, step)

		result := e.dispatcher.Execute(ctx, run.SessionID, step.ToolCall, run.UserID)

		finished := time.Now()
		step.FinishedAt = &finished
		step.Result = result
		if result != nil && result.Status == "success" {
			step.Status = models.StepCompleted
		} else {
			step.Status = models.StepFailed
		}
		e.metrics.recordStep(step.ToolCall.Name, string(step.Status), finished.Sub(started).Seconds())
		e.emitStatus(run.SessionID, step)
		e.emitResult(run.SessionID, step)

		if step.Status == models.StepFailed {
			failedAt = i
		}
	}

	if failedAt >= 0 {
		run.Status = models.RunFailed
		run.FailureReason = fmt.Sprintf("step %q failed", run.ToolExecutionPlan[failedAt].StepID)
	} else {
		run.Status = models.RunCompleted
	}
	e.metrics.recordRun(string(run.Status))

	e.mux.SendChunk(run.SessionID, models.StreamEvent{Type: models.EventRunUpdated, Run: run})
}

func (e *Executor) emitStatus(sessionID string, step *models.Step) {
	e.mux.SendChunk(sessionID, models.StreamEvent{Type: models.EventToolStatusUpdate, Step: step})
}

func (e *Executor) emitResult(sessionID string, step *models.Step) {
	e.mux.SendChunk(sessionID, models.StreamEvent{Type: models.EventToolResult, Step: step})
}
