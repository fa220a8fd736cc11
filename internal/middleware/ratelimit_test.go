package middleware

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sportlearn-api/internal/models"
	"github.com/noah-isme/sportlearn-api/internal/repository"
	"github.com/noah-isme/sportlearn-api/internal/service"
	"github.com/noah-isme/sportlearn-api/pkg/config"
	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
	"github.com/noah-isme/sportlearn-api/pkg/response"
)

func newRedisCache(t *testing.T) (*repository.CacheRepository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return repository.NewCacheRepository(client, zap.NewNop()), mr
}

func newLimitedEngine(store counterStore, metrics *service.MetricsService, identity *models.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(withIdentity(identity))
	router.Use(RateLimit(store, config.RateLimitConfig{Enabled: true, Requests: 2, Window: time.Minute}, metrics, zap.NewNop()))
	router.GET("/api/v1/forms", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return router
}

func TestRateLimitPerIdentity(t *testing.T) {
	cache, mr := newRedisCache(t)
	metrics := service.NewMetricsService()
	router := newLimitedEngine(cache, metrics, &models.Identity{ID: "s1", Role: models.RoleStudent})

	first := doRequest(router, http.MethodGet, "/api/v1/forms", nil)
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusNoContent, doRequest(router, http.MethodGet, "/api/v1/forms", nil).Code)

	rec := doRequest(router, http.MethodGet, "/api/v1/forms", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, appErrors.ErrRateLimited.Code, decodeEnvelope(t, rec).Error.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, uint64(1), metrics.Snapshot().RateLimited)
	assert.True(t, mr.Exists("ratelimit:user:s1"))

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusNoContent, doRequest(router, http.MethodGet, "/api/v1/forms", nil).Code)
}

func TestRateLimitAnonymousKeyedByIP(t *testing.T) {
	cache, mr := newRedisCache(t)
	router := newLimitedEngine(cache, nil, nil)

	doRequest(router, http.MethodGet, "/api/v1/forms", nil)
	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "ratelimit:ip:")
}

type failingCounter struct{}

func (failingCounter) Increment(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("connection refused")
}

func (failingCounter) Count(context.Context, string) (int64, time.Duration, error) {
	return 0, 0, errors.New("connection refused")
}

func TestRateLimitFailsOpen(t *testing.T) {
	router := newLimitedEngine(failingCounter{}, nil, nil)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusNoContent, doRequest(router, http.MethodGet, "/api/v1/forms", nil).Code)
	}
}

func newDeniedLimitedEngine(store counterStore, metrics *service.MetricsService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(DeniedRateLimit(store, config.RateLimitConfig{Enabled: true, Requests: 2, Window: time.Minute}, metrics, zap.NewNop()))
	router.Use(func(c *gin.Context) {
		if c.Request.URL.Path != "/health" && c.GetHeader("Authorization") != "Bearer good" {
			response.Abort(c, appErrors.ErrUnauthenticated)
			return
		}
		c.Next()
	})
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/api/v1/forms", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return router
}

func TestDeniedRateLimitBlocksRepeatedUnauthorized(t *testing.T) {
	cache, mr := newRedisCache(t)
	metrics := service.NewMetricsService()
	router := newDeniedLimitedEngine(cache, metrics)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusUnauthorized, doRequest(router, http.MethodGet, "/api/v1/forms", nil).Code)
	}

	rec := doRequest(router, http.MethodGet, "/api/v1/forms", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, appErrors.ErrRateLimited.Code, decodeEnvelope(t, rec).Error.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, uint64(1), metrics.Snapshot().RateLimited)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "ratelimit:denied:")
	count, err := mr.Get(keys[0])
	require.NoError(t, err)
	assert.Equal(t, "2", count)

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusUnauthorized, doRequest(router, http.MethodGet, "/api/v1/forms", nil).Code)
}

func TestDeniedRateLimitIgnoresAllowedRequests(t *testing.T) {
	cache, mr := newRedisCache(t)
	router := newDeniedLimitedEngine(cache, nil)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusNoContent, doRequest(router, http.MethodGet, "/health", nil).Code)
		assert.Equal(t, http.StatusNoContent, doRequest(router, http.MethodGet, "/api/v1/forms", map[string]string{"Authorization": "Bearer good"}).Code)
	}
	assert.Empty(t, mr.Keys())
}

func TestDeniedRateLimitFailsOpen(t *testing.T) {
	router := newDeniedLimitedEngine(failingCounter{}, nil)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusUnauthorized, doRequest(router, http.MethodGet, "/api/v1/forms", nil).Code)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 30, retryAfterSeconds(30*time.Second))
}
