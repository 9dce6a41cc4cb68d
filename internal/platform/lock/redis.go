package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Processing-state markers stored under an idempotency key.
const (
	StateProcessing = "processing"
	StateProcessed  = "processed"
)

// RedisClient is a thin wrapper over the key-value store's atomic
// conditional-set, set and delete.
type RedisClient struct {
	client redis.Cmdable
	// lease is the expiry attached to conditional sets. Zero means no expiry.
	lease time.Duration
	// retention is the expiry of unconditional sets. Zero keeps the key forever.
	retention time.Duration
}

// NewRedisClient wraps client. lease bounds how long an in-flight marker lives
// before another delivery may take it over.
func NewRedisClient(client redis.Cmdable, lease, retention time.Duration) *RedisClient {
	return &RedisClient{client: client, lease: lease, retention: retention}
}

// SetIfAbsent stores value under key only if key does not exist and reports
// whether it did so.
func (r *RedisClient) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	return r.client.SetNX(ctx, key, value, r.lease).Result()
}

// Set overwrites key with value, replacing any lease.
func (r *RedisClient) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, r.retention).Err()
}

// Delete removes key and returns the number of keys removed.
func (r *RedisClient) Delete(ctx context.Context, key string) (int64, error) {
	return r.client.Del(ctx, key).Result()
}
