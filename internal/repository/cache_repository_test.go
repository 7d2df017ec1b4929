package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "substitution:", nil)
	ctx := context.Background()

	var dest []string
	err := repo.Get(ctx, "timetable:teacher:T:MON", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Set(ctx, "timetable:teacher:T:MON", []string{"x"}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "timetable:*"))
	assert.NoError(t, repo.Close())
}

func TestCacheRepositoryPrefixesKeys(t *testing.T) {
	repo := NewCacheRepository(nil, "substitution:", nil)
	assert.Equal(t, "substitution:timetable:*", repo.key("timetable:*"))
}

func TestCacheRepositoryWrapsTransportErrors(t *testing.T) {
	// Nothing listens on port 1, so every command fails fast.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	repo := NewCacheRepository(client, "substitution:", nil)
	defer repo.Close()

	var dest []string
	err := repo.Get(context.Background(), "timetable:teacher:T:MON", &dest)
	require.Error(t, err)
	assert.False(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.Contains(t, err.Error(), "redis get timetable:teacher:T:MON")
}
