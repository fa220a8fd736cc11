package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
)

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client, zap.NewNop()), mr
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	var miss map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "analytics:form:t1", &miss), appErrors.ErrCacheMiss)

	require.NoError(t, repo.Set(ctx, "analytics:form:t1", map[string]int{"entries": 4}, time.Minute))
	var got map[string]int
	require.NoError(t, repo.Get(ctx, "analytics:form:t1", &got))
	assert.Equal(t, 4, got["entries"])
	assert.Equal(t, time.Minute, mr.TTL("analytics:form:t1"))

	require.NoError(t, repo.Set(ctx, "analytics:form:t2", 1, time.Minute))
	require.NoError(t, repo.Set(ctx, "other", 1, time.Minute))
	require.NoError(t, repo.DeleteByPattern(ctx, "analytics:form:*"))
	assert.False(t, mr.Exists("analytics:form:t1"))
	assert.False(t, mr.Exists("analytics:form:t2"))
	assert.True(t, mr.Exists("other"))
}

func TestCacheRepositorySetIfAbsent(t *testing.T) {
	repo, _ := newCacheRepo(t)
	ctx := context.Background()

	ok, err := repo.SetIfAbsent(ctx, "idem:k", "pending", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetIfAbsent(ctx, "idem:k", "pending", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheRepositoryIncrementStartsWindow(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	count, ttl, err := repo.Increment(ctx, "rl:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, time.Minute, ttl)

	count, _, err = repo.Increment(ctx, "rl:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	mr.FastForward(time.Minute + time.Second)
	count, _, err = repo.Increment(ctx, "rl:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestCacheRepositoryCountDoesNotIncrement(t *testing.T) {
	repo, _ := newCacheRepo(t)
	ctx := context.Background()

	count, ttl, err := repo.Count(ctx, "rl:5.6.7.8")
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
	assert.Zero(t, ttl)

	_, _, err = repo.Increment(ctx, "rl:5.6.7.8", time.Minute)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		count, ttl, err = repo.Count(ctx, "rl:5.6.7.8")
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
		assert.Equal(t, time.Minute, ttl)
	}
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest string
	assert.ErrorIs(t, repo.Get(ctx, "k", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "k", "v", time.Second))
	_, err := repo.SetIfAbsent(ctx, "k", "v", time.Second)
	assert.ErrorIs(t, err, ErrCacheUnavailable)
	_, _, err = repo.Increment(ctx, "k", time.Second)
	assert.ErrorIs(t, err, ErrCacheUnavailable)
	_, _, err = repo.Count(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheUnavailable)
}
