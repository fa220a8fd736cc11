package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sportlearn-api/internal/models"
	"github.com/noah-isme/sportlearn-api/internal/service"
	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
	"github.com/noah-isme/sportlearn-api/pkg/response"
)

// ContextGuardOutcomeKey stores the GuardOutcome for page handlers.
const ContextGuardOutcomeKey = "guardOutcome"

// PageGuard applies the client route guard to server-routed pages. The credential comes
// from the session cookie, falling back to the bearer header. It is a UX convenience; the
// API namespaces stay protected by EdgeAuthorization regardless of what this decides.
func PageGuard(kind service.GuardKind, validator credentialValidator, paths service.GuardPaths, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, identity := pageState(c, validator, cookieName)
		outcome := service.EvaluateGuard(kind, state, identity, paths)

		switch outcome.Action {
		case service.GuardRedirect:
			c.Redirect(http.StatusFound, outcome.Target)
			c.Abort()
		case service.GuardShowLoading:
			c.Header("Retry-After", providerRetryAfter)
			response.Abort(c, appErrors.ErrProviderUnavailable)
		default:
			if identity != nil {
				attachIdentity(c, identity)
			}
			c.Set(ContextGuardOutcomeKey, outcome)
			c.Next()
		}
	}
}

// pageState stays in the loading state only while the provider cannot answer.
func pageState(c *gin.Context, validator credentialValidator, cookieName string) (service.AuthState, *models.Identity) {
	token := ""
	if cookieName != "" {
		if value, err := c.Cookie(cookieName); err == nil {
			token = value
		}
	}
	if token == "" {
		token, _ = service.ExtractBearer(c.GetHeader("Authorization"))
	}
	if token == "" {
		return service.AuthUnauthenticated, nil
	}

	identity, err := validator.Validate(c.Request.Context(), token)
	switch {
	case err == nil && identity != nil:
		return service.AuthAuthenticated, identity
	case err != nil && appErrors.FromError(err).Code == appErrors.ErrProviderUnavailable.Code:
		return service.AuthLoading, nil
	default:
		return service.AuthUnauthenticated, nil
	}
}
