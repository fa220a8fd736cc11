package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sportlearn-api/internal/service"
	"github.com/noah-isme/sportlearn-api/pkg/config"
	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
	"github.com/noah-isme/sportlearn-api/pkg/response"
)

type counterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Count(ctx context.Context, key string) (int64, time.Duration, error)
}

// RateLimit applies a fixed-window limit per identity, or per client IP for anonymous
// callers. A failing counter store lets the request through.
func RateLimit(store counterStore, cfg config.RateLimitConfig, metrics *service.MetricsService, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if !cfg.Enabled || cfg.Requests <= 0 || store == nil {
			c.Next()
			return
		}

		key := "ratelimit:ip:" + c.ClientIP()
		if identity, ok := CurrentIdentity(c); ok {
			key = "ratelimit:user:" + identity.ID
		}

		count, ttl, err := store.Increment(c.Request.Context(), key, cfg.Window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		remaining := int64(cfg.Requests) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(cfg.Requests) {
			abortRateLimited(c, ttl, metrics)
			return
		}
		c.Next()
	}
}

// DeniedRateLimit counts unauthenticated rejections per client IP and blocks the IP once
// the budget is spent. It must run before EdgeAuthorization, whose 401s never reach RateLimit.
func DeniedRateLimit(store counterStore, cfg config.RateLimitConfig, metrics *service.MetricsService, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if !cfg.Enabled || cfg.Requests <= 0 || store == nil {
			c.Next()
			return
		}

		key := "ratelimit:denied:" + c.ClientIP()
		count, ttl, err := store.Count(c.Request.Context(), key)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if count >= int64(cfg.Requests) {
			abortRateLimited(c, ttl, metrics)
			return
		}

		c.Next()

		if c.Writer.Status() != http.StatusUnauthorized {
			return
		}
		if _, _, err := store.Increment(c.Request.Context(), key, cfg.Window); err != nil {
			logger.Warn("failed to count denied request", zap.String("key", key), zap.Error(err))
		}
	}
}

func abortRateLimited(c *gin.Context, ttl time.Duration, metrics *service.MetricsService) {
	metrics.RecordRateLimited()
	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(ttl)))
	response.Abort(c, appErrors.ErrRateLimited)
}

func retryAfterSeconds(ttl time.Duration) int {
	seconds := int((ttl + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}
