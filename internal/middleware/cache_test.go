package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sportlearn-api/internal/service"
	"github.com/noah-isme/sportlearn-api/pkg/response"
)

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(WithResponseMeta())
	router.GET("/analytics", func(c *gin.Context) {
		SetCacheHit(c, true)
		SetWarnings(c, 2)
		SetWarnings(c, 0)
		response.JSON(c, http.StatusOK, nil, nil, ExtractMeta(c))
	})

	rec := doRequest(router, http.MethodGet, "/analytics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env.Meta[cacheHitKey])
	assert.Equal(t, float64(2), env.Meta[warningsKey])
}

func TestMetricsMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/api/v1/forms/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	doRequest(router, http.MethodGet, "/api/v1/forms/tpl-1", nil)
	doRequest(router, http.MethodGet, "/missing", nil)
	assert.Equal(t, uint64(2), metrics.Snapshot().RequestsTotal)
}
