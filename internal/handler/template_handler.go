package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civica-api/internal/dto"
	"github.com/noah-isme/civica-api/internal/models"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
	"github.com/noah-isme/civica-api/pkg/response"
)

const maxTemplateDocument = 1 << 20

type templateService interface {
	List(ctx context.Context, active *bool, officeType models.OfficeType) ([]models.Template, error)
	Get(ctx context.Context, id string) (*models.Template, error)
	Create(ctx context.Context, actor models.Actor, req dto.TemplateRequest) (*models.Template, error)
	Update(ctx context.Context, id string, req dto.TemplateRequest) (*models.Template, error)
	Clone(ctx context.Context, actor models.Actor, id string, req dto.CloneTemplateRequest) (*models.Template, error)
	Deactivate(ctx context.Context, id string) error
	Activate(ctx context.Context, id string) error
	Import(ctx context.Context, actor models.Actor, document []byte) ([]models.Template, []string, error)
}

// TemplateHandler exposes inspection template endpoints.
type TemplateHandler struct {
	service templateService
}

// NewTemplateHandler constructs the handler.
func NewTemplateHandler(service templateService) *TemplateHandler {
	return &TemplateHandler{service: service}
}

// List godoc
// @Summary List inspection templates
// @Tags Templates
// @Produce json
// @Param active query bool false "Active filter"
// @Param office_type query string false "Applicable office type"
// @Success 200 {object} response.Envelope
// @Router /templates [get]
func (h *TemplateHandler) List(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	templates, err := h.service.List(c.Request.Context(), queryBool(c, "active"), models.OfficeType(strings.ToLower(c.Query("office_type"))))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, nil)
}

// Get godoc
// @Summary Get template detail
// @Tags Templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Router /templates/{id} [get]
func (h *TemplateHandler) Get(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	tpl, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tpl, nil)
}

// Create godoc
// @Summary Create a template
// @Tags Templates
// @Accept json
// @Produce json
// @Param payload body dto.TemplateRequest true "Template"
// @Success 201 {object} response.Envelope
// @Router /templates [post]
func (h *TemplateHandler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid template payload"))
		return
	}
	tpl, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tpl)
}

// Update godoc
// @Summary Replace a template that no pending inspection uses
// @Tags Templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param payload body dto.TemplateRequest true "Template"
// @Success 200 {object} response.Envelope
// @Router /templates/{id} [put]
func (h *TemplateHandler) Update(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var req dto.TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid template payload"))
		return
	}
	tpl, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tpl, nil)
}

// Clone godoc
// @Summary Copy a template under a new name
// @Tags Templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param payload body dto.CloneTemplateRequest true "New name"
// @Success 201 {object} response.Envelope
// @Router /templates/{id}/clone [post]
func (h *TemplateHandler) Clone(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.CloneTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid clone payload"))
		return
	}
	tpl, err := h.service.Clone(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tpl)
}

// Deactivate godoc
// @Summary Deactivate a template
// @Tags Templates
// @Param id path string true "Template ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /templates/{id} [delete]
func (h *TemplateHandler) Deactivate(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Activate godoc
// @Summary Reactivate a template
// @Tags Templates
// @Param id path string true "Template ID"
// @Success 204
// @Router /templates/{id}/activate [post]
func (h *TemplateHandler) Activate(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	if err := h.service.Activate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Import godoc
// @Summary Bulk import templates from a YAML document
// @Tags Templates
// @Accept application/x-yaml
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /templates/import [post]
func (h *TemplateHandler) Import(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	document, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTemplateDocument))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unable to read template document"))
		return
	}
	created, skipped, err := h.service.Import(c.Request.Context(), actor, document)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, gin.H{"created": created, "skipped": skipped}, nil)
}

func (h *TemplateHandler) ready(c *gin.Context) bool {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "template service not configured"))
		return false
	}
	return true
}

func (h *TemplateHandler) actor(c *gin.Context) (models.Actor, bool) {
	if !h.ready(c) {
		return models.Actor{}, false
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}
