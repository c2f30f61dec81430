package entitycache

import (
	"context"
	"fmt"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

// WarmupStore tracks the last successful warm per (sessionId, providerKey,
// connectionId) for models.WarmupTTL (spec §3). This is session-scoped and
// distinct from providergw.Gateway's own process-wide, non-session-keyed
// 5-minute warm cooldown (spec §4.1): the Gateway decides whether a given
// (providerKey, connectionId) pair needs a remote warm call *at all*;
// WarmupStore is consulted first, by the Tool Orchestrator, to avoid asking
// the Gateway to warm a connection this session has already warmed
// recently, even across tool calls for different tools on the same
// provider.
type WarmupStore struct {
	store KVStore
}

// NewWarmupStore wraps a KVStore with the warmup key scheme.
func NewWarmupStore(store KVStore) *WarmupStore {
	return &WarmupStore{store: store}
}

func warmupKey(sessionID, providerKey, connectionID string) string {
	return fmt.Sprintf("warmup:%s:%s:%s", sessionID, providerKey, connectionID)
}

// RecordWarm marks (sessionID, providerKey, connectionID) as warmed now,
// valid for models.WarmupTTL.
func (w *WarmupStore) RecordWarm(ctx context.Context, sessionID, providerKey, connectionID string) error {
	return w.store.Set(ctx, warmupKey(sessionID, providerKey, connectionID), []byte("1"), models.WarmupTTL)
}

// IsWarm reports whether a successful warm is still valid.
func (w *WarmupStore) IsWarm(ctx context.Context, sessionID, providerKey, connectionID string) (bool, error) {
	_, found, err := w.store.Get(ctx, warmupKey(sessionID, providerKey, connectionID))
	return found, err
}
