package orchestrator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lutendolukhele/intentorch/internal/catalog"
	"github.com/lutendolukhele/intentorch/internal/entitycache"
	"github.com/lutendolukhele/intentorch/internal/providergw"
	"github.com/lutendolukhele/intentorch/internal/retry"
	"github.com/lutendolukhele/intentorch/pkg/models"
)

type fakeAdapter struct {
	fetched   []providergw.FetchedEntity
	fetchErr  error
	actionRes map[string]any
	actionErr error
	calls     int
}

func (a *fakeAdapter) Warm(ctx context.Context, connectionID string) error { return nil }
func (a *fakeAdapter) FetchFromCache(ctx context.Context, connectionID, model string, query providergw.FetchQuery) ([]providergw.FetchedEntity, error) {
	a.calls++
	return a.fetched, a.fetchErr
}
func (a *fakeAdapter) TriggerAction(ctx context.Context, connectionID, actionName string, payload map[string]any) (map[string]any, error) {
	a.calls++
	return a.actionRes, a.actionErr
}
func (a *fakeAdapter) TriggerSync(ctx context.Context, connectionID, syncName string) error {
	return nil
}

type fakeConnections struct{ connected bool }

func (f fakeConnections) ResolveConnection(userID, providerKey string) (string, bool) {
	if !f.connected {
		return "", false
	}
	return "conn1", true
}

func testDefs() []models.ToolDefinition {
	return []models.ToolDefinition{
		{
			Name: "list_emails", Category: models.CategoryEmail, ProviderKey: "gmail",
			Source: models.SourceCache, CacheModel: "email",
			Parameters: models.ParameterSchema{Type: "object"},
		},
		{
			Name: "send_email", Category: models.CategoryEmail, ProviderKey: "gmail",
			Source: models.SourceAction, ActionName: "send_email",
			Parameters: models.ParameterSchema{
				Type: "object",
				Properties: map[string]*models.ParameterSchema{
					"to": {Type: "string"},
				},
				Required: []string{"to"},
			},
		},
	}
}

func newOrchestrator(t *testing.T, adapter providergw.Adapter, connected bool) *Orchestrator {
	t.Helper()
	cat, err := catalog.New(testDefs())
	require.NoError(t, err)
	gw := providergw.New(nil)
	gw.Register("gmail", adapter)
	cache := entitycache.New(entitycache.NewMemoryStore())
	return New(cat, gw, cache, fakeConnections{connected: connected})
}

func TestExecuteUnknownToolReturnsConfigurationError(t *testing.T) {
	o := newOrchestrator(t, &fakeAdapter{}, true)
	result := o.Execute(context.Background(), "s1", models.ToolCall{Name: "does_not_exist"}, "u1")
	require.Equal(t, "error", result.Status)
	assert.Equal(t, models.ErrConfiguration, result.Error.Code)
}

func TestExecuteSchemaValidationFailureReturnsSchemaError(t *testing.T) {
	o := newOrchestrator(t, &fakeAdapter{}, true)
	call := models.ToolCall{Name: "send_email", Arguments: json.RawMessage(`{}`)}
	result := o.Execute(context.Background(), "s1", call, "u1")
	require.Equal(t, "error", result.Status)
	assert.Equal(t, models.ErrSchema, result.Error.Code)
}

func TestExecuteWithNoConnectionReturnsAuthError(t *testing.T) {
	o := newOrchestrator(t, &fakeAdapter{}, false)
	call := models.ToolCall{Name: "list_emails"}
	result := o.Execute(context.Background(), "s1", call, "u1")
	require.Equal(t, "error", result.Status)
	assert.Equal(t, models.ErrAuth, result.Error.Code)
}

func TestExecuteCachePathReturnsFetchedEntities(t *testing.T) {
	adapter := &fakeAdapter{fetched: []providergw.FetchedEntity{
		{ID: "e1", Type: "email", Body: map[string]any{"subject": "hi", "body": "hello"}},
	}}
	o := newOrchestrator(t, adapter, true)

	call := models.ToolCall{Name: "list_emails"}
	result := o.Execute(context.Background(), "s1", call, "u1")
	require.Equal(t, "success", result.Status)

	rows, ok := result.Data.([]map[string]any)
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.Equal(t, "e1", rows[0]["id"])
}

func TestExecuteCachePathDedupsOnSecondIdenticalFetch(t *testing.T) {
	adapter := &fakeAdapter{fetched: []providergw.FetchedEntity{
		{ID: "e1", Type: "email", Body: map[string]any{"subject": "hi", "body": "hello"}},
	}}
	o := newOrchestrator(t, adapter, true)

	call := models.ToolCall{Name: "list_emails"}
	first := o.Execute(context.Background(), "s1", call, "u1")
	require.Equal(t, "success", first.Status)

	second := o.Execute(context.Background(), "s1", call, "u1")
	require.Equal(t, "success", second.Status)
	assert.Equal(t, 1, adapter.calls)
}

func TestExecuteActionPathDispatchesAndNormalizes(t *testing.T) {
	adapter := &fakeAdapter{actionRes: map[string]any{"to": "sam@example.com", "status": "sent"}}
	o := newOrchestrator(t, adapter, true)

	call := models.ToolCall{Name: "send_email", Arguments: json.RawMessage(`{"to":"sam@example.com"}`)}
	result := o.Execute(context.Background(), "s1", call, "u1")
	require.Equal(t, "success", result.Status)
	assert.Equal(t, 1, adapter.calls)
}

func TestExecuteActionPathValidationErrorIsNotRetried(t *testing.T) {
	adapter := &fakeAdapter{actionErr: &providergw.ProviderError{ProviderKey: "gmail", StatusCode: 422}}
	o := newOrchestrator(t, adapter, true)

	call := models.ToolCall{Name: "send_email", Arguments: json.RawMessage(`{"to":"sam@example.com"}`)}
	result := o.Execute(context.Background(), "s1", call, "u1")
	require.Equal(t, "error", result.Status)
	assert.Equal(t, models.ErrSchema, result.Error.Code)
	assert.Equal(t, 1, adapter.calls)
}

func TestExecuteActionPathTransportErrorRetriesUpToMaxAttempts(t *testing.T) {
	adapter := &fakeAdapter{actionErr: &providergw.ProviderError{ProviderKey: "gmail", StatusCode: 503}}
	o := newOrchestrator(t, adapter, true)

	call := models.ToolCall{Name: "send_email", Arguments: json.RawMessage(`{"to":"sam@example.com"}`)}
	result := o.Execute(context.Background(), "s1", call, "u1")
	require.Equal(t, "error", result.Status)
	assert.Equal(t, models.ErrTransport, result.Error.Code)
	assert.Equal(t, retry.DispatchConfig().MaxAttempts, adapter.calls)
}
