package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultRoutes(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "/api/v1/admin", cfg.Routes.AdminPrefix)
	assert.Contains(t, cfg.Routes.PublicExact, "/api/v1/auth/login")
	assert.Contains(t, cfg.Routes.PublicExact, "/api/v1/session")
	assert.Contains(t, cfg.Routes.PublicPrefixes, "/api/v1/public/")
}

func TestLoadPublicRoutesFollowAPIPrefix(t *testing.T) {
	t.Setenv("API_PREFIX", "/api/v2/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v2", cfg.Routes.ProtectedPrefix)
	assert.Contains(t, cfg.Routes.PublicExact, "/api/v2/auth/login")
	assert.Contains(t, cfg.Routes.PublicExact, "/api/v2/session")
	assert.NotContains(t, cfg.Routes.PublicExact, "/api/v1/session")
	assert.Contains(t, cfg.Routes.PublicPrefixes, "/api/v2/public/")
}

func TestLoadKeepsCustomPublicRoutesWithoutDuplicates(t *testing.T) {
	t.Setenv("ROUTES_PUBLIC_EXACT", "/,/api/v1/session,/about")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"/", "/api/v1/session", "/about", "/api/v1/auth/login"}, cfg.Routes.PublicExact)
}
