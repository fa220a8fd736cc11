package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sportlearn-api/internal/models"
	"github.com/noah-isme/sportlearn-api/internal/service"
	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
	"github.com/noah-isme/sportlearn-api/pkg/response"
)

// ContextUserKey is the gin context key storing the validated identity.
const ContextUserKey = "currentUser"

// Identity headers forwarded to handlers. They are trusted only because EdgeAuthorization
// removes whatever the client sent before setting them.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserRole  = "X-User-Role"
	HeaderUserEmail = "X-User-Email"
)

// providerRetryAfter is the Retry-After hint, in seconds, sent with ProviderUnavailable.
const providerRetryAfter = "5"

type credentialValidator interface {
	Validate(ctx context.Context, token string) (*models.Identity, error)
}

// EdgeAuthorization guards the admin and protected namespaces. Paths outside both pass
// through untouched apart from header stripping.
func EdgeAuthorization(authorizer *service.Authorizer, validator credentialValidator, metrics *service.MetricsService, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		stripIdentityHeaders(c.Request)

		path := c.Request.URL.Path
		namespace := authorizer.Namespace(path)
		if namespace == service.NamespaceNone {
			c.Next()
			return
		}

		class := authorizer.Classify(path)
		identity, credErr := resolveIdentity(c, validator)

		if class == service.RoutePublic {
			// Public routes inside a namespace still see a valid identity when one is sent.
			if identity != nil {
				attachIdentity(c, identity)
			}
			recordDecision(metrics, class, true, "")
			c.Next()
			return
		}

		if credErr != nil {
			appErr := appErrors.FromError(credErr)
			recordDecision(metrics, class, false, appErr.Code)
			if appErr.Code == appErrors.ErrProviderUnavailable.Code {
				logger.Warn("identity provider unavailable", zap.String("path", path), zap.Error(credErr))
				c.Header("Retry-After", providerRetryAfter)
			}
			response.Abort(c, appErr)
			return
		}

		decision := authorizer.Authorize(path, identity, namespace == service.NamespaceAdmin)
		if !decision.Allow {
			recordDecision(metrics, decision.Class, false, decision.Reason.Code)
			response.Abort(c, decision.Reason)
			return
		}

		recordDecision(metrics, decision.Class, true, "")
		if identity != nil {
			attachIdentity(c, identity)
		}
		c.Next()
	}
}

// OptionalIdentity attaches a validated identity when a usable bearer credential is sent and
// never blocks. It is meant for routes outside the guarded namespaces.
func OptionalIdentity(validator credentialValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextUserKey); !exists {
			if identity, err := resolveIdentity(c, validator); err == nil && identity != nil {
				attachIdentity(c, identity)
			}
		}
		c.Next()
	}
}

// CurrentIdentity returns the identity placed on the context by EdgeAuthorization.
func CurrentIdentity(c *gin.Context) (*models.Identity, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	identity, ok := value.(*models.Identity)
	return identity, ok && identity != nil
}

// resolveIdentity returns (nil, nil) when no Authorization header was sent at all.
func resolveIdentity(c *gin.Context, validator credentialValidator) (*models.Identity, error) {
	token, present := service.ExtractBearer(c.GetHeader("Authorization"))
	if !present {
		return nil, nil
	}
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "authorization header must carry a bearer token")
	}
	return validator.Validate(c.Request.Context(), token)
}

func attachIdentity(c *gin.Context, identity *models.Identity) {
	c.Request.Header.Set(HeaderUserID, identity.ID)
	c.Request.Header.Set(HeaderUserRole, string(identity.Role))
	c.Request.Header.Set(HeaderUserEmail, identity.Email)
	c.Set(ContextUserKey, identity)
}

func stripIdentityHeaders(r *http.Request) {
	r.Header.Del(HeaderUserID)
	r.Header.Del(HeaderUserRole)
	r.Header.Del(HeaderUserEmail)
}

func recordDecision(metrics *service.MetricsService, class service.RouteClass, allowed bool, code string) {
	if metrics == nil {
		return
	}
	metrics.RecordAuthzDecision(string(class), allowed, code)
}
