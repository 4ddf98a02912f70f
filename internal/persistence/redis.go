// Package persistence holds the runtime's two storage connections: Postgres
// for the metrics history table (internal/metricsrecorder) and Redis for the
// rate-limited demo service's token buckets (internal/services/ratelimited).
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient backs the "tokens:timestamp" buckets ratelimited.Service reads
// and writes directly through the embedded *redis.Client, one key per
// service name.
type RedisClient struct {
	*redis.Client
}

func NewRedis(ctx context.Context, redisURL string) (*RedisClient, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 5
	opts.ConnMaxLifetime = 1 * time.Hour

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisClient{Client: client}, nil
}

func (r *RedisClient) Close() error {
	return r.Client.Close()
}

// HealthCheck reports whether the token-bucket store is reachable; polled by
// internal/statusapi's /healthz route alongside the scheduler's own status.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	return r.Ping(ctx).Err()
}
