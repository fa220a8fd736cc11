package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sportlearn-api/internal/middleware"
	"github.com/noah-isme/sportlearn-api/internal/models"
	"github.com/noah-isme/sportlearn-api/internal/service"
	appErrors "github.com/noah-isme/sportlearn-api/pkg/errors"
	"github.com/noah-isme/sportlearn-api/pkg/export"
	"github.com/noah-isme/sportlearn-api/pkg/response"
)

type formAnalyticsService interface {
	Analytics(ctx context.Context, actor *models.Identity, query models.FormAnalyticsQuery) (*models.FormAnalytics, bool, error)
	Export(ctx context.Context, actor *models.Identity, query models.FormAnalyticsQuery, format export.Format) (*service.ExportedFile, error)
}

// FormAnalyticsHandler serves dashboard-ready form analytics.
type FormAnalyticsHandler struct {
	analytics formAnalyticsService
}

// NewFormAnalyticsHandler constructs the handler.
func NewFormAnalyticsHandler(analytics formAnalyticsService) *FormAnalyticsHandler {
	return &FormAnalyticsHandler{analytics: analytics}
}

// Analytics godoc
// @Summary Aggregate form analytics
// @Description Per-field and per-category statistics. Absent values mean no data, not zero. meta.warnings counts skipped values.
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Param id path string true "Template ID"
// @Param student_id query string false "Restrict to one student (admins and owning coaches)"
// @Param batching query string false "halves, day, week or month"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /forms/{id}/analytics [get]
func (h *FormAnalyticsHandler) Analytics(c *gin.Context) {
	actor, err := identityFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, cacheHit, err := h.analytics.Analytics(c.Request.Context(), actor, analyticsQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	middleware.SetWarnings(c, result.Warnings)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Export form analytics
// @Tags Analytics
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "Template ID"
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /forms/{id}/analytics/export [get]
func (h *FormAnalyticsHandler) Export(c *gin.Context) {
	actor, err := identityFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	file, err := h.analytics.Export(c.Request.Context(), actor, analyticsQuery(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Payload)
}

func analyticsQuery(c *gin.Context) models.FormAnalyticsQuery {
	return models.FormAnalyticsQuery{
		TemplateID: c.Param("id"),
		StudentID:  c.Query("student_id"),
		Batching:   models.TrendBatching(c.Query("batching")),
	}
}
