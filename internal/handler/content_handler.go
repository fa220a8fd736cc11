package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sportlearn-api/internal/models"
	"github.com/noah-isme/sportlearn-api/pkg/response"
)

type contentService interface {
	Generate(ctx context.Context, req models.ContentRequest) (*models.ContentResult, error)
	Grade(ctx context.Context, req models.GradeRequest) (*models.ContentResult, error)
}

// ContentHandler proxies the content generation and grading service. An unsuccessful
// reply is still a 200: clients inspect success and retryable.
type ContentHandler struct {
	service contentService
}

// NewContentHandler constructs the handler.
func NewContentHandler(svc contentService) *ContentHandler {
	return &ContentHandler{service: svc}
}

// Generate godoc
// @Summary Generate custom content
// @Tags Content
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.ContentRequest true "Content description and constraints"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /content/generate [post]
func (h *ContentHandler) Generate(c *gin.Context) {
	var req models.ContentRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Grade godoc
// @Summary Grade a free-text answer
// @Tags Content
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.GradeRequest true "Question and answer"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /content/grade [post]
func (h *ContentHandler) Grade(c *gin.Context) {
	var req models.GradeRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Grade(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
