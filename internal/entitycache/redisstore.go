package entitycache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the production KVStore, backed by real `SET ... EX` TTL
// semantics rather than a hand-rolled in-process map (SPEC_FULL §2: TTL
// key-value store).
type RedisStore struct {
	client *redis.Client
	// ScanCount is the COUNT hint passed to each SCAN cursor call.
	ScanCount int64
}

// NewRedisStore wraps an already-configured redis.Client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, ScanCount: 200}
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	var cursor uint64
	match := prefix + "*"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, s.ScanCount).Result()
		if err != nil {
			return nil, err
		}
		out = append(out, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}
