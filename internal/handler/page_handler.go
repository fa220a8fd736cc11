package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sportlearn-api/internal/middleware"
	"github.com/noah-isme/sportlearn-api/internal/service"
	"github.com/noah-isme/sportlearn-api/pkg/response"
)

// PageHandler answers server-routed page paths once PageGuard lets them render. Markup
// is produced by the front end; this only confirms the page and who is viewing it.
type PageHandler struct {
	sessions authService
}

// NewPageHandler constructs the handler.
func NewPageHandler(sessions authService) *PageHandler {
	return &PageHandler{sessions: sessions}
}

// Render reports the page, the guard outcome and the session.
func (h *PageHandler) Render(c *gin.Context) {
	outcome := service.GuardOutcome{Action: service.GuardRender}
	if value, ok := c.Get(middleware.ContextGuardOutcomeKey); ok {
		if typed, ok := value.(service.GuardOutcome); ok {
			outcome = typed
		}
	}
	identity, _ := middleware.CurrentIdentity(c)
	response.JSON(c, http.StatusOK, gin.H{
		"page":    c.FullPath(),
		"guard":   outcome,
		"session": h.sessions.Session(identity),
	}, nil)
}
