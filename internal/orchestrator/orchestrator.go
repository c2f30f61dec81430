package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lutendolukhele/intentorch/internal/catalog"
	"github.com/lutendolukhele/intentorch/internal/entitycache"
	"github.com/lutendolukhele/intentorch/internal/providergw"
	"github.com/lutendolukhele/intentorch/internal/retry"
	"github.com/lutendolukhele/intentorch/pkg/models"
)

// ConnectionResolver resolves the user's active connection for a provider
// key (spec §4.6 step 3); absent is an `auth`-kind failure.
type ConnectionResolver interface {
	ResolveConnection(userID, providerKey string) (connectionID string, ok bool)
}

// Orchestrator is the Tool Orchestrator (spec §4.6): it dispatches one
// resolved tool call to the cache-read or action-dispatch path.
type Orchestrator struct {
	catalog     *catalog.Catalog
	gateway     *providergw.Gateway
	cache       *entitycache.Cache
	connections ConnectionResolver
}

// New builds an Orchestrator over its collaborators.
func New(cat *catalog.Catalog, gw *providergw.Gateway, cache *entitycache.Cache, connections ConnectionResolver) *Orchestrator {
	return &Orchestrator{catalog: cat, gateway: gw, cache: cache, connections: connections}
}

func errResult(code models.ErrorKind, msg string, details map[string]any) *models.StepResult {
	return &models.StepResult{
		Status: "error",
		Error:  &models.StepError{Code: code, Message: msg, Details: details},
	}
}

// Execute runs the full dispatch pipeline for one tool call (spec §4.6
// steps 1-7).
func (o *Orchestrator) Execute(ctx context.Context, sessionID string, call models.ToolCall, userID string) *models.StepResult {
	def, ok := o.catalog.GetByName(call.Name)
	if !ok {
		return errResult(models.ErrConfiguration, fmt.Sprintf("unknown tool %q", call.Name), nil)
	}

	if err := o.catalog.Validate(call.Name, call.Arguments); err != nil {
		if ve, ok := err.(*catalog.ValidationError); ok {
			return errResult(models.ErrSchema, err.Error(), map[string]any{"fields": ve.Fields})
		}
		return errResult(models.ErrConfiguration, err.Error(), nil)
	}

	connectionID, ok := o.connections.ResolveConnection(userID, def.ProviderKey)
	if !ok {
		return errResult(models.ErrAuth, fmt.Sprintf("no active connection for provider %q", def.ProviderKey), nil)
	}

	o.warmConnection(ctx, sessionID, def.ProviderKey, connectionID)

	switch def.Source {
	case models.SourceCache:
		return o.executeCache(ctx, sessionID, def, call, connectionID)
	case models.SourceAction:
		return o.executeAction(ctx, def, call, connectionID)
	default:
		return errResult(models.ErrConfiguration, fmt.Sprintf("tool %q has unknown source %q", call.Name, def.Source), nil)
	}
}

// warmConnection pre-opens connectionID for this session, consulting the
// session-scoped entitycache.WarmupStore before asking the Gateway to make
// a remote call: a session that already warmed this provider recently skips
// straight to dispatch, while the Gateway's own process-wide cooldown
// (spec §4.1) still applies underneath for the first caller in any session.
// Failure is non-fatal — dispatch proceeds and surfaces its own error if the
// connection really is unreachable.
func (o *Orchestrator) warmConnection(ctx context.Context, sessionID, providerKey, connectionID string) {
	if warm, err := o.cache.IsWarm(ctx, sessionID, providerKey, connectionID); err == nil && warm {
		return
	}
	if o.gateway.WarmConnection(ctx, providerKey, connectionID, false) {
		_ = o.cache.RecordWarm(ctx, sessionID, providerKey, connectionID)
	}
}

func (o *Orchestrator) executeCache(ctx context.Context, sessionID string, def *models.ToolDefinition, call models.ToolCall, connectionID string) *models.StepResult {
	var args map[string]any
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return errResult(models.ErrSchema, "arguments are not a JSON object", nil)
		}
	}

	query := providergw.FetchQuery{}
	if limit, ok := args["limit"].(float64); ok {
		query.Limit = int(limit)
	}
	if cursor, ok := args["cursor"].(string); ok {
		query.Cursor = cursor
	}

	fingerprintFilters := make(map[string]any, len(args))
	for k, v := range args {
		if k == "conditions" || k == "logic" || k == "orderBy" || k == "limit" || k == "offset" || k == "includeFields" || k == "excludeFields" {
			fingerprintFilters[k] = v
		}
	}
	fingerprint := entitycache.Fingerprint(call.Name, def.ProviderKey, fingerprintFilters)

	if ids, found, err := o.cache.CheckFetchDedup(ctx, sessionID, fingerprint); err == nil && found {
		entities, err := o.cache.GetEntities(ctx, sessionID, ids)
		if err == nil {
			return &models.StepResult{Status: "success", Data: cachedEntitiesToData(entities)}
		}
	}

	fetched, err := dispatchWithRetry(ctx, func() ([]providergw.FetchedEntity, error) {
		return o.gateway.FetchFromCache(ctx, def.ProviderKey, connectionID, def.CacheModel, query)
	})
	if err != nil {
		return providerErrResult(err)
	}

	rows := make([]map[string]any, len(fetched))
	for i, e := range fetched {
		rows[i] = e.Body
	}
	spec, err := parseFilterSpec(args)
	if err != nil {
		return errResult(models.ErrSchema, err.Error(), nil)
	}
	filtered, err := Apply(rows, spec)
	if err != nil {
		return errResult(models.ErrSchema, err.Error(), nil)
	}

	ids := make([]string, 0, len(filtered))
	entities := make([]models.CachedEntity, 0, len(filtered))
	for i, row := range filtered {
		id := fetched[i].ID
		clean := NormalizeForLLM(def.Category, row)
		entity := models.CachedEntity{
			ID:        id,
			Type:      def.CacheModel,
			Provider:  def.ProviderKey,
			CleanBody: bodyText(clean),
			BodyHash:  bodyHash(clean),
			Metadata:  clean,
			Timestamp: time.Now(),
		}
		if err := o.cache.CacheEntity(ctx, sessionID, entity); err == nil {
			ids = append(ids, id)
			entities = append(entities, entity)
		}
	}
	_ = o.cache.RecordFetchResult(ctx, sessionID, fingerprint, ids)

	return &models.StepResult{Status: "success", Data: cachedEntitiesToData(entities)}
}

func (o *Orchestrator) executeAction(ctx context.Context, def *models.ToolDefinition, call models.ToolCall, connectionID string) *models.StepResult {
	var payload map[string]any
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &payload); err != nil {
			return errResult(models.ErrSchema, "arguments are not a JSON object", nil)
		}
	}

	data, err := dispatchWithRetry(ctx, func() (map[string]any, error) {
		return o.gateway.TriggerAction(ctx, def.ProviderKey, connectionID, def.ActionName, payload)
	})
	if err != nil {
		return providerErrResult(err)
	}
	return &models.StepResult{Status: "success", Data: NormalizeForLLM(def.Category, data)}
}

// dispatchWithRetry retries fn under retry.DispatchConfig, but only for
// transport/5xx-classified ProviderErrors: a non-retryable ProviderError
// (validation/4xx) is marked retry.Permanent so the first failure is final,
// matching the cache/action retry policy of spec §4.6.
func dispatchWithRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	return retry.DoValue(ctx, retry.DispatchConfig(), func() (T, error) {
		value, err := fn()
		if pe, ok := err.(*providergw.ProviderError); ok && !pe.IsRetryable() {
			return value, retry.Permanent(err)
		}
		return value, err
	})
}

func providerErrResult(err error) *models.StepResult {
	if pe, ok := err.(*providergw.ProviderError); ok {
		if pe.Class() == "validation" {
			return errResult(models.ErrSchema, pe.Error(), map[string]any{"status_code": pe.StatusCode})
		}
		return &models.StepResult{
			Status: "error",
			Error: &models.StepError{
				Code:       models.ErrTransport,
				Message:    pe.Error(),
				StatusCode: pe.StatusCode,
			},
		}
	}
	return errResult(models.ErrInternal, err.Error(), nil)
}

func parseFilterSpec(args map[string]any) (FilterSpec, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return FilterSpec{}, err
	}
	var spec FilterSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return FilterSpec{}, err
	}
	return spec, nil
}

func cachedEntitiesToData(entities []models.CachedEntity) []map[string]any {
	out := make([]map[string]any, len(entities))
	for i, e := range entities {
		m := make(map[string]any, len(e.Metadata)+1)
		for k, v := range e.Metadata {
			m[k] = v
		}
		m["id"] = e.ID
		out[i] = m
	}
	return out
}

func bodyText(m map[string]any) string {
	if b, ok := m["body"].(string); ok {
		return b
	}
	raw, _ := json.Marshal(m)
	return string(raw)
}

func bodyHash(m map[string]any) string {
	return entitycache.HashBody(bodyText(m))
}
