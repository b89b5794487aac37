package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

func incrWithTTL(ctx context.Context, client redisRateCounter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}

// cachedJSON 以固定 TTL 缓存一段 JSON。compute 失败时不会写缓存。
// Redis 不可用时直接回源，缓存只是加速，不是正确性依赖。
func cachedJSON(ctx context.Context, client redis.UniversalClient, key string, ttl time.Duration, compute func() ([]byte, error)) ([]byte, error) {
	if client != nil {
		if cached, err := client.Get(ctx, key).Bytes(); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	data, err := compute()
	if err != nil {
		return nil, err
	}

	if client != nil {
		_ = client.Set(ctx, key, data, ttl).Err()
	}
	return data, nil
}
