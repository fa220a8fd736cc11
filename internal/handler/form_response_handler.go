package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sportlearn-api/internal/models"
	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
	"github.com/noah-isme/sportlearn-api/pkg/response"
)

type formResponseService interface {
	Submit(ctx context.Context, actor *models.Identity, templateID string, req models.SubmitResponseRequest) (*models.FormResponseEntry, error)
	ListMine(ctx context.Context, actor *models.Identity, templateID string) ([]models.FormResponseEntry, error)
	ListForTemplate(ctx context.Context, actor *models.Identity, templateID string, filter models.FormResponseFilter) ([]models.FormResponseEntry, error)
}

// FormResponseHandler handles submissions against form templates.
type FormResponseHandler struct {
	service formResponseService
}

// NewFormResponseHandler constructs the handler.
func NewFormResponseHandler(svc formResponseService) *FormResponseHandler {
	return &FormResponseHandler{service: svc}
}

// Submit godoc
// @Summary Submit a form response
// @Description Completion is recomputed from the template. Send Idempotency-Key to make retries safe.
// @Tags Forms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Template ID"
// @Param Idempotency-Key header string false "Client generated key"
// @Param payload body models.SubmitResponseRequest true "Responses keyed by section id"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /forms/{id}/responses [post]
func (h *FormResponseHandler) Submit(c *gin.Context) {
	actor, err := identityFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req models.SubmitResponseRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	entry, err := h.service.Submit(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// ListMine godoc
// @Summary List my responses
// @Tags Forms
// @Produce json
// @Security BearerAuth
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Router /forms/{id}/responses/mine [get]
func (h *FormResponseHandler) ListMine(c *gin.Context) {
	actor, err := identityFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, err := h.service.ListMine(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// List godoc
// @Summary List responses of a template
// @Tags Forms
// @Produce json
// @Security BearerAuth
// @Param id path string true "Template ID"
// @Param student_id query string false "Student filter"
// @Param from query string false "RFC3339 lower bound on submittedAt"
// @Param to query string false "RFC3339 upper bound on submittedAt"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /forms/{id}/responses [get]
func (h *FormResponseHandler) List(c *gin.Context) {
	actor, err := identityFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.FormResponseFilter{StudentID: c.Query("student_id")}
	if filter.From, err = parseTimeQuery(c, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.To, err = parseTimeQuery(c, "to"); err != nil {
		response.Error(c, err)
		return
	}

	entries, err := h.service.ListForTemplate(c.Request.Context(), actor, c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

func parseTimeQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, key+" must be an RFC3339 timestamp")
	}
	return &t, nil
}
