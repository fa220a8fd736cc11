package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sportlearn-api/internal/middleware"
	"github.com/noah-isme/sportlearn-api/internal/models"
	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
)

// identityFromContext returns the identity validated by the edge middleware.
func identityFromContext(c *gin.Context) (*models.Identity, error) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return nil, appErrors.ErrUnauthenticated
	}
	return identity, nil
}

// bindJSON decodes the request body, mapping decode failures to MalformedRequestBody.
func bindJSON(c *gin.Context, dest interface{}) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrMalformedRequest.Code, appErrors.ErrMalformedRequest.Status, "malformed request body")
	}
	return nil
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}
