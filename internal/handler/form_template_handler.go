package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sportlearn-api/internal/models"
	"github.com/noah-isme/sportlearn-api/pkg/response"
)

type formTemplateService interface {
	Create(ctx context.Context, actor *models.Identity, tpl models.FormTemplate) (*models.FormTemplate, error)
	Get(ctx context.Context, actor *models.Identity, id string) (*models.FormTemplate, error)
	List(ctx context.Context, actor *models.Identity, filter models.FormTemplateFilter) ([]models.FormTemplate, error)
	Update(ctx context.Context, actor *models.Identity, id string, changes models.FormTemplate) (*models.FormTemplate, error)
	Archive(ctx context.Context, actor *models.Identity, id string) (*models.FormTemplate, error)
	Delete(ctx context.Context, actor *models.Identity, id string) error
}

// FormTemplateHandler exposes dynamic form template endpoints.
type FormTemplateHandler struct {
	service formTemplateService
}

// NewFormTemplateHandler constructs the handler.
func NewFormTemplateHandler(svc formTemplateService) *FormTemplateHandler {
	return &FormTemplateHandler{service: svc}
}

// List godoc
// @Summary List form templates
// @Description Students see active templates, coaches their own, admins everything.
// @Tags Forms
// @Produce json
// @Security BearerAuth
// @Param owner query string false "Owner filter"
// @Param active query bool false "Only active templates"
// @Param archived query bool false "Include archived templates"
// @Success 200 {object} response.Envelope
// @Router /forms [get]
func (h *FormTemplateHandler) List(c *gin.Context) {
	actor, err := identityFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.FormTemplateFilter{
		OwnerID:         c.Query("owner"),
		ActiveOnly:      queryBool(c, "active"),
		IncludeArchived: queryBool(c, "archived"),
	}

	templates, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, nil)
}

// Get godoc
// @Summary Get form template
// @Tags Forms
// @Produce json
// @Security BearerAuth
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /forms/{id} [get]
func (h *FormTemplateHandler) Get(c *gin.Context) {
	actor, err := identityFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	tpl, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tpl, nil)
}

// Create godoc
// @Summary Create form template
// @Tags Forms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.FormTemplate true "Template"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /forms [post]
func (h *FormTemplateHandler) Create(c *gin.Context) {
	actor, err := identityFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var tpl models.FormTemplate
	if err := bindJSON(c, &tpl); err != nil {
		response.Error(c, err)
		return
	}

	created, err := h.service.Create(c.Request.Context(), actor, tpl)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update godoc
// @Summary Update form template
// @Description Structural changes bump the template version.
// @Tags Forms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Template ID"
// @Param payload body models.FormTemplate true "Template"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /forms/{id} [put]
func (h *FormTemplateHandler) Update(c *gin.Context) {
	actor, err := identityFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var changes models.FormTemplate
	if err := bindJSON(c, &changes); err != nil {
		response.Error(c, err)
		return
	}

	updated, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), changes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// Archive godoc
// @Summary Archive form template
// @Tags Forms
// @Produce json
// @Security BearerAuth
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Router /forms/{id}/archive [post]
func (h *FormTemplateHandler) Archive(c *gin.Context) {
	actor, err := identityFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	tpl, err := h.service.Archive(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tpl, nil)
}

// Delete godoc
// @Summary Delete form template
// @Description Refused with 409 once submissions exist; archive instead.
// @Tags Forms
// @Security BearerAuth
// @Param id path string true "Template ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /forms/{id} [delete]
func (h *FormTemplateHandler) Delete(c *gin.Context) {
	actor, err := identityFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
