package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	dashboarddomain "github.com/smallbiznis/subsight/internal/dashboard/domain"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisCache keeps snapshots as JSON strings. Refresh locks are SETNX keys
// holding a random token, released only by their owner.
type RedisCache struct {
	client *redis.Client
	script *redis.Script
}

func NewRedisCache(client *redis.Client) *RedisCache {
	if client == nil {
		return nil
	}
	return &RedisCache{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (dashboarddomain.Snapshot, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return dashboarddomain.Snapshot{}, false, nil
	}
	if err != nil {
		return dashboarddomain.Snapshot{}, false, err
	}

	var snapshot dashboarddomain.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return dashboarddomain.Snapshot{}, false, fmt.Errorf("decode cached snapshot: %w", err)
	}
	return snapshot, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, snapshot dashboarddomain.Snapshot, ttl time.Duration) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return c.client.Set(ctx, key, raw, ttl).Err()
}

func (c *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (c *RedisCache) Release(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}
	return c.script.Run(ctx, c.client, []string{lockKey(key)}, token).Err()
}

func lockKey(key string) string {
	return key + ":lock"
}
