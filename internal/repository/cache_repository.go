package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CacheRepository keeps the shared snapshot epoch in Redis. Every process
// compares it with the epoch it last saw and drops its snapshots when
// another process has invalidated.
type CacheRepository struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client, key string, logger *zap.Logger) *CacheRepository {
	if key == "" {
		key = "occurrences:cache:epoch"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, key: key, logger: logger}
}

// Epoch returns the shared epoch, 0 when it was never bumped.
func (r *CacheRepository) Epoch(ctx context.Context) (int64, error) {
	if r.client == nil {
		return 0, nil
	}
	epoch, err := r.client.Get(ctx, r.key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return epoch, nil
}

// Bump increments the shared epoch and returns the new value.
func (r *CacheRepository) Bump(ctx context.Context) (int64, error) {
	if r.client == nil {
		return 0, nil
	}
	epoch, err := r.client.Incr(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", r.key, err)
	}
	r.logger.Debug("cache epoch bumped", zap.String("key", r.key), zap.Int64("epoch", epoch))
	return epoch, nil
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
