package repository

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "", nil)
	assert.Equal(t, "occurrences:cache:epoch", repo.key)

	epoch, err := repo.Epoch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, epoch)

	epoch, err = repo.Bump(context.Background())
	require.NoError(t, err)
	assert.Zero(t, epoch)
	assert.NoError(t, repo.Close())
}

func TestCacheRepositoryUnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	repo := NewCacheRepository(client, "test:epoch", nil)
	defer repo.Close() //nolint:errcheck

	_, err := repo.Epoch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get test:epoch")

	_, err = repo.Bump(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis incr test:epoch")
}
