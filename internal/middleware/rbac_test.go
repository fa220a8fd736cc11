package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sportlearn-api/internal/models"
	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
)

func withIdentity(identity *models.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		if identity != nil {
			c.Set(ContextUserKey, identity)
		}
		c.Next()
	}
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name     string
		identity *models.Identity
		status   int
	}{
		{"coach allowed", &models.Identity{ID: "c1", Role: models.RoleCoach}, http.StatusNoContent},
		{"admin allowed", &models.Identity{ID: "a1", Role: models.RoleAdmin}, http.StatusNoContent},
		{"student forbidden", &models.Identity{ID: "s1", Role: models.RoleStudent}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.Use(withIdentity(tc.identity))
			router.GET("/forms", RequireRoles(models.RoleCoach, models.RoleAdmin), func(c *gin.Context) {
				c.Status(http.StatusNoContent)
			})

			rec := doRequest(router, http.MethodGet, "/forms", nil)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRBACSelf(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(withIdentity(&models.Identity{ID: "p1", Role: models.RoleParent}))
	router.GET("/users/:id", RBAC(string(models.RoleAdmin), SelfRole), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusNoContent, doRequest(router, http.MethodGet, "/users/p1", nil).Code)

	rec := doRequest(router, http.MethodGet, "/users/p2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, appErrors.ErrForbidden.Code, decodeEnvelope(t, rec).Error.Code)
}
