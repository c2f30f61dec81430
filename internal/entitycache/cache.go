// Package entitycache implements the Entity & Dedup Cache (spec §4.4): a
// session-scoped store of cleaned provider entity bodies and fetch-request
// fingerprints, plus the warmup state table (spec §3's WarmupState)
// consulted by the Tool Orchestrator before it asks the Provider Gateway to
// warm a connection.
package entitycache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

// Cache is session-scoped: every key is prefixed by sessionId so
// ClearSessionCache can enumerate and drop exactly one session's state
// without touching others, even though the underlying store is shared.
type Cache struct {
	store  KVStore
	warmup *WarmupStore
}

// New wraps a KVStore with the entity/dedup/warmup key scheme.
func New(store KVStore) *Cache {
	return &Cache{store: store, warmup: NewWarmupStore(store)}
}

// IsWarm reports whether this session has already warmed providerKey's
// connectionID within models.WarmupTTL (spec §3).
func (c *Cache) IsWarm(ctx context.Context, sessionID, providerKey, connectionID string) (bool, error) {
	return c.warmup.IsWarm(ctx, sessionID, providerKey, connectionID)
}

// RecordWarm marks providerKey's connectionID as warmed for this session,
// following a successful providergw.Gateway.WarmConnection call.
func (c *Cache) RecordWarm(ctx context.Context, sessionID, providerKey, connectionID string) error {
	return c.warmup.RecordWarm(ctx, sessionID, providerKey, connectionID)
}

func entityKey(sessionID, id string) string {
	return fmt.Sprintf("entity:%s:%s", sessionID, id)
}

func entityIndexKey(sessionID, entityType string) string {
	return fmt.Sprintf("entityindex:%s:%s", sessionID, entityType)
}

func dedupKey(sessionID, fingerprint string) string {
	return fmt.Sprintf("dedup:%s:%s", sessionID, fingerprint)
}

func sessionPrefix(sessionID string) string {
	return fmt.Sprintf(":%s:", sessionID)
}

// CacheEntity stores a CachedEntity, replacing any existing entry with the
// same id (spec §4.4). The cleaned body is not re-derived here: callers
// clean and hash via CleanBody/HashBody before constructing the entity.
func (c *Cache) CacheEntity(ctx context.Context, sessionID string, entity models.CachedEntity) error {
	entity.SessionID = sessionID
	raw, err := json.Marshal(entity)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, entityKey(sessionID, entity.ID), raw, models.EntityCacheTTL); err != nil {
		return err
	}
	return c.addToTypeIndex(ctx, sessionID, entity)
}

// addToTypeIndex maintains a small per-(session,type) ordered index of
// entity ids so GetRecentCachedEntities need not scan the whole store.
func (c *Cache) addToTypeIndex(ctx context.Context, sessionID string, entity models.CachedEntity) error {
	key := entityIndexKey(sessionID, entity.Type)
	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		return err
	}
	var idx []indexEntry
	if found {
		if err := json.Unmarshal(raw, &idx); err != nil {
			idx = nil
		}
	}
	// Remove any existing record for this id, then prepend (most recent first).
	filtered := idx[:0]
	for _, e := range idx {
		if e.ID != entity.ID {
			filtered = append(filtered, e)
		}
	}
	idx = append([]indexEntry{{ID: entity.ID, Timestamp: entity.Timestamp}}, filtered...)

	sort.SliceStable(idx, func(i, j int) bool { return idx[i].Timestamp.After(idx[j].Timestamp) })

	out, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, key, out, models.EntityCacheTTL)
}

type indexEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// GetEntity returns one cached entity, or false if absent/expired.
func (c *Cache) GetEntity(ctx context.Context, sessionID, id string) (*models.CachedEntity, bool, error) {
	raw, found, err := c.store.Get(ctx, entityKey(sessionID, id))
	if err != nil || !found {
		return nil, false, err
	}
	var e models.CachedEntity
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, err
	}
	return &e, true, nil
}

// GetEntities returns the subset of the requested ids that are present and
// unexpired, in request order; absent or expired ids are skipped.
func (c *Cache) GetEntities(ctx context.Context, sessionID string, ids []string) ([]models.CachedEntity, error) {
	out := make([]models.CachedEntity, 0, len(ids))
	for _, id := range ids {
		e, found, err := c.GetEntity(ctx, sessionID, id)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, *e)
		}
	}
	return out, nil
}

// GetRecentCachedEntities returns up to limit entities of the given type,
// most recent first (spec §4.4, default limit=5).
func (c *Cache) GetRecentCachedEntities(ctx context.Context, sessionID, entityType string, limit int) ([]models.CachedEntity, error) {
	if limit <= 0 {
		limit = 5
	}
	raw, found, err := c.store.Get(ctx, entityIndexKey(sessionID, entityType))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	var idx []indexEntry
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, err
	}

	out := make([]models.CachedEntity, 0, limit)
	for _, e := range idx {
		if len(out) >= limit {
			break
		}
		entity, found, err := c.GetEntity(ctx, sessionID, e.ID)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, *entity)
		}
	}
	return out, nil
}

// CheckFetchDedup returns the cached entity-id list for a fingerprint, or
// (nil, false) if there is none within TTL (spec §4.4 step 4).
func (c *Cache) CheckFetchDedup(ctx context.Context, sessionID, fingerprint string) ([]string, bool, error) {
	raw, found, err := c.store.Get(ctx, dedupKey(sessionID, fingerprint))
	if err != nil || !found {
		return nil, false, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, false, err
	}
	return ids, true, nil
}

// RecordFetchResult stores the entity-id list produced by a fetch under its
// fingerprint for FetchDedupTTL (spec §3: 1h).
func (c *Cache) RecordFetchResult(ctx context.Context, sessionID, fingerprint string, ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, dedupKey(sessionID, fingerprint), raw, models.FetchDedupTTL)
}

// ClearSessionCache removes every key scoped to sessionID: entities, the
// type index, and dedup fingerprints.
func (c *Cache) ClearSessionCache(ctx context.Context, sessionID string) error {
	prefix := sessionPrefix(sessionID)
	for _, base := range []string{"entity", "entityindex", "dedup", "warmup"} {
		keys, err := c.store.Keys(ctx, base+prefix)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if !strings.HasPrefix(k, base+prefix) {
				continue
			}
			if err := c.store.Delete(ctx, k); err != nil {
				return err
			}
		}
	}
	return nil
}
