package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/resource-rental/internal/model"
)

// DefaultTTL is used when NewRedisCache receives a non-positive TTL.
const DefaultTTL = 15 * time.Minute

// RedisCache is the Redis-backed CheckoutCache.
type RedisCache struct {
	client  *redis.Client
	prefix  string
	baseTTL time.Duration
}

// NewRedisCache stores entries under "<prefix>checkout:<token>".
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, prefix: prefix, baseTTL: ttl}
}

// setIfNewer writes the entry as a hash {v: version, d: json} and refuses
// to go backwards.  KEYS[1] key; ARGV version, payload, ttl in ms.
var setIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'd', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

func (r *RedisCache) Get(ctx context.Context, token string) (*model.CheckoutStaging, error) {
	data, err := r.client.HGet(ctx, r.key(token), "d").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	var s model.CheckoutStaging
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal checkout failed: %w", err)
	}
	return &s, nil
}

// Set caches s, active or completed, unless the cached version is at least
// s.Version.  A stale write is not an error.
func (r *RedisCache) Set(ctx context.Context, s *model.CheckoutStaging) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal checkout failed: %w", err)
	}
	jitter := time.Duration(rand.Int63n(int64(r.baseTTL/5) + 1))
	ttl := r.baseTTL + jitter
	if err := setIfNewer.Run(ctx, r.client, []string{r.key(s.Token)}, s.Version, data, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, r.key(token)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisCache) key(token string) string {
	return fmt.Sprintf("%scheckout:%s", r.prefix, token)
}
