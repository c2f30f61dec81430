// Package providergw implements the Provider Gateway (spec §4.1): uniform
// dispatch to third-party provider adapters, connection warming, and
// structured error wrapping. The Gateway does not retry dispatches — the
// Tool Orchestrator decides whether a transport/5xx failure is worth
// retrying (spec §4.6); the only retry in this package is the Mail
// Adapter's IMAP dial+login.
package providergw

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// WarmCooldown is the minimum interval between non-forced warms of the same
// (providerKey, connectionId) pair (spec §4.1: 5 minutes).
const WarmCooldown = 5 * time.Minute

type warmKey struct {
	providerKey  string
	connectionID string
}

// Gateway routes calls to registered provider adapters and maintains the
// per-process "last warmed at" map the warming policy is defined over.
type Gateway struct {
	logger   *slog.Logger
	mu       sync.Mutex
	adapters map[string]Adapter
	lastWarm map[warmKey]time.Time
}

// New creates a Gateway with no adapters registered; call Register for each
// provider key before dispatching.
func New(logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		logger:   logger,
		adapters: make(map[string]Adapter),
		lastWarm: make(map[warmKey]time.Time),
	}
}

// Register wires an adapter for a provider key.
func (g *Gateway) Register(providerKey string, adapter Adapter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.adapters[providerKey] = adapter
}

func (g *Gateway) adapterFor(providerKey string) (Adapter, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.adapters[providerKey]
	return a, ok
}

// WarmConnection performs the lightweight identity call unless a warm
// within WarmCooldown already succeeded and force is false. Failure is
// logged and returns false but never propagates as an error (spec §4.1).
func (g *Gateway) WarmConnection(ctx context.Context, providerKey, connectionID string, force bool) bool {
	key := warmKey{providerKey: providerKey, connectionID: connectionID}

	g.mu.Lock()
	last, seen := g.lastWarm[key]
	g.mu.Unlock()

	if !force && seen && time.Since(last) < WarmCooldown {
		return true
	}

	adapter, ok := g.adapterFor(providerKey)
	if !ok {
		g.logger.Warn("warm: no adapter registered", "provider_key", providerKey)
		return false
	}

	if err := adapter.Warm(ctx, connectionID); err != nil {
		g.logger.Warn("warm failed", "provider_key", providerKey, "connection_id", connectionID, "error", err)
		return false
	}

	g.mu.Lock()
	g.lastWarm[key] = time.Now()
	g.mu.Unlock()
	return true
}

// FetchFromCache dispatches a cache-path read. 5xx/transport failures are
// surfaced unchanged as *ProviderError for the caller's retry policy; 4xx
// failures are classified "validation" via ProviderError.Class().
func (g *Gateway) FetchFromCache(ctx context.Context, providerKey, connectionID, model string, query FetchQuery) ([]FetchedEntity, error) {
	adapter, ok := g.adapterFor(providerKey)
	if !ok {
		return nil, fmt.Errorf("configuration: no adapter registered for provider %q", providerKey)
	}
	entities, err := adapter.FetchFromCache(ctx, connectionID, model, query)
	if err != nil {
		return nil, wrapProviderError(providerKey, "fetch:"+model, err)
	}
	return entities, nil
}

// TriggerAction dispatches a mutating action call.
func (g *Gateway) TriggerAction(ctx context.Context, providerKey, connectionID, actionName string, payload map[string]any) (map[string]any, error) {
	adapter, ok := g.adapterFor(providerKey)
	if !ok {
		return nil, fmt.Errorf("configuration: no adapter registered for provider %q", providerKey)
	}
	result, err := adapter.TriggerAction(ctx, connectionID, actionName, payload)
	if err != nil {
		return nil, wrapProviderError(providerKey, actionName, err)
	}
	return result, nil
}

// TriggerSync dispatches a provider resync request.
func (g *Gateway) TriggerSync(ctx context.Context, providerKey, connectionID, syncName string) error {
	adapter, ok := g.adapterFor(providerKey)
	if !ok {
		return fmt.Errorf("configuration: no adapter registered for provider %q", providerKey)
	}
	if err := adapter.TriggerSync(ctx, connectionID, syncName); err != nil {
		return wrapProviderError(providerKey, "sync:"+syncName, err)
	}
	return nil
}

// wrapProviderError normalizes an adapter error into a *ProviderError
// unless it already is one (an adapter may choose to construct its own
// with a precise status code).
func wrapProviderError(providerKey, actionName string, err error) error {
	if pe, ok := err.(*ProviderError); ok {
		return pe
	}
	return &ProviderError{
		ProviderKey: providerKey,
		ActionName:  actionName,
		StatusCode:  0,
		Timestamp:   time.Now(),
		Cause:       err,
	}
}
