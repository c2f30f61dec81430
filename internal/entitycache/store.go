package entitycache

import (
	"context"
	"time"
)

// KVStore is the TTL key-value persistence collaborator contract (spec
// §6.4) backing warmup state, the entity cache, and dedup fingerprints. The
// user→session reverse index is not stored here; stream.Multiplexer keeps
// it in process memory. Implementations: MemoryStore for tests and local
// runs, RedisStore for production.
type KVStore interface {
	// Set stores value under key with the given TTL. ttl<=0 means no
	// expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the stored value and true, or false if absent/expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Delete removes key if present; a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys returns all non-expired keys with the given prefix, used for
	// session-scoped bulk operations like ClearSessionCache.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
