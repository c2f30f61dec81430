package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lutendolukhele/intentorch/internal/catalog"
	"github.com/lutendolukhele/intentorch/pkg/models"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]models.ToolDefinition{
		{Name: "list_emails", Category: models.CategoryEmail, Source: models.SourceCache, CacheModel: "email"},
		{Name: "send_email", Category: models.CategoryEmail, Source: models.SourceAction, ActionName: "send_email"},
		{Name: "delete_event", Category: models.CategoryCalendar, Source: models.SourceAction, ActionName: "delete_event"},
	})
	require.NoError(t, err)
	return cat
}

func step(name string, status models.StepStatus) *models.Step {
	return &models.Step{StepID: "s1", ToolCall: models.ToolCall{Name: name}, Status: status}
}

func TestDecideDestructiveOverridesEverything(t *testing.T) {
	cat := testCatalog(t)
	plan := []*models.Step{step("delete_event", models.StepReady)}
	got := Decide(plan, cat)
	assert.True(t, got.NeedsConfirmation)
	assert.False(t, got.AutoExecute)
	assert.Equal(t, "destructive_tool", got.Reason)
}

func TestDecideCollectingParametersNeedsInput(t *testing.T) {
	cat := testCatalog(t)
	plan := []*models.Step{step("send_email", models.StepCollectingParameters)}
	got := Decide(plan, cat)
	assert.True(t, got.NeedsUserInput)
	assert.Equal(t, "collecting_parameters", got.Reason)
}

func TestDecideSingleReadOnlyAutoExecutes(t *testing.T) {
	cat := testCatalog(t)
	plan := []*models.Step{step("list_emails", models.StepReady)}
	got := Decide(plan, cat)
	assert.True(t, got.AutoExecute)
	assert.Equal(t, "single_read_only_step", got.Reason)
}

func TestDecideSingleActionRequiresConfirmation(t *testing.T) {
	cat := testCatalog(t)
	plan := []*models.Step{step("send_email", models.StepReady)}
	got := Decide(plan, cat)
	assert.False(t, got.AutoExecute)
	assert.True(t, got.NeedsConfirmation)
	assert.Equal(t, "default_confirmation", got.Reason)
}

func TestDecideMultiStepRequiresConfirmation(t *testing.T) {
	cat := testCatalog(t)
	plan := []*models.Step{step("list_emails", models.StepReady), step("send_email", models.StepReady)}
	got := Decide(plan, cat)
	assert.True(t, got.NeedsConfirmation)
	assert.Equal(t, "multi_step_plan", got.Reason)
}
