package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civica-api/internal/dto"
	"github.com/noah-isme/civica-api/internal/models"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
	"github.com/noah-isme/civica-api/pkg/response"
)

type schoolService interface {
	List(ctx context.Context, filter models.DirectoryFilter) ([]models.School, error)
	Get(ctx context.Context, id string) (*models.School, error)
	Create(ctx context.Context, actor models.Actor, req dto.CreateSchoolRequest) (*models.School, error)
	SetActive(ctx context.Context, id string, active bool) error
}

type officeService interface {
	List(ctx context.Context, filter models.DirectoryFilter) ([]models.Office, error)
	Get(ctx context.Context, id string) (*models.Office, error)
	Create(ctx context.Context, actor models.Actor, req dto.CreateOfficeRequest) (*models.Office, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// DirectoryHandler exposes the school and office directories.
type DirectoryHandler struct {
	schools schoolService
	offices officeService
}

// NewDirectoryHandler constructs the handler.
func NewDirectoryHandler(schools schoolService, offices officeService) *DirectoryHandler {
	return &DirectoryHandler{schools: schools, offices: offices}
}

// ListSchools godoc
// @Summary List schools
// @Tags Directory
// @Produce json
// @Param active query bool false "Active filter"
// @Param district query string false "District"
// @Param search query string false "Name search"
// @Success 200 {object} response.Envelope
// @Router /schools [get]
func (h *DirectoryHandler) ListSchools(c *gin.Context) {
	if h.schools == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "school service not configured"))
		return
	}
	schools, err := h.schools.List(c.Request.Context(), directoryFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schools, nil)
}

// GetSchool godoc
// @Summary Get school detail
// @Tags Directory
// @Produce json
// @Param id path string true "School ID"
// @Success 200 {object} response.Envelope
// @Router /schools/{id} [get]
func (h *DirectoryHandler) GetSchool(c *gin.Context) {
	if h.schools == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "school service not configured"))
		return
	}
	school, err := h.schools.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}

// CreateSchool godoc
// @Summary Register a school
// @Tags Directory
// @Accept json
// @Produce json
// @Param payload body dto.CreateSchoolRequest true "School"
// @Success 201 {object} response.Envelope
// @Router /schools [post]
func (h *DirectoryHandler) CreateSchool(c *gin.Context) {
	if h.schools == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "school service not configured"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid school payload"))
		return
	}
	school, err := h.schools.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, school)
}

// SetSchoolActive godoc
// @Summary Activate or deactivate a school
// @Tags Directory
// @Accept json
// @Param id path string true "School ID"
// @Param payload body dto.SetActiveRequest true "Active flag"
// @Success 204
// @Router /schools/{id}/active [put]
func (h *DirectoryHandler) SetSchoolActive(c *gin.Context) {
	if h.schools == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "school service not configured"))
		return
	}
	var req dto.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "is_active is required"))
		return
	}
	if err := h.schools.SetActive(c.Request.Context(), c.Param("id"), *req.Active); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListOffices godoc
// @Summary List audited offices
// @Tags Directory
// @Produce json
// @Param type query string false "Office type"
// @Param active query bool false "Active filter"
// @Param district query string false "District"
// @Param search query string false "Name search"
// @Success 200 {object} response.Envelope
// @Router /offices [get]
func (h *DirectoryHandler) ListOffices(c *gin.Context) {
	if h.offices == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "office service not configured"))
		return
	}
	filter := directoryFilter(c)
	filter.Type = models.OfficeType(strings.ToLower(c.Query("type")))
	offices, err := h.offices.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offices, nil)
}

// GetOffice godoc
// @Summary Get office detail
// @Tags Directory
// @Produce json
// @Param id path string true "Office ID"
// @Success 200 {object} response.Envelope
// @Router /offices/{id} [get]
func (h *DirectoryHandler) GetOffice(c *gin.Context) {
	if h.offices == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "office service not configured"))
		return
	}
	office, err := h.offices.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, office, nil)
}

// CreateOffice godoc
// @Summary Register an office
// @Tags Directory
// @Accept json
// @Produce json
// @Param payload body dto.CreateOfficeRequest true "Office"
// @Success 201 {object} response.Envelope
// @Router /offices [post]
func (h *DirectoryHandler) CreateOffice(c *gin.Context) {
	if h.offices == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "office service not configured"))
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateOfficeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid office payload"))
		return
	}
	office, err := h.offices.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, office)
}

// SetOfficeActive godoc
// @Summary Activate or deactivate an office
// @Tags Directory
// @Accept json
// @Param id path string true "Office ID"
// @Param payload body dto.SetActiveRequest true "Active flag"
// @Success 204
// @Router /offices/{id}/active [put]
func (h *DirectoryHandler) SetOfficeActive(c *gin.Context) {
	if h.offices == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "office service not configured"))
		return
	}
	var req dto.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "is_active is required"))
		return
	}
	if err := h.offices.SetActive(c.Request.Context(), c.Param("id"), *req.Active); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func directoryFilter(c *gin.Context) models.DirectoryFilter {
	return models.DirectoryFilter{
		Active:   queryBool(c, "active"),
		District: c.Query("district"),
		Search:   c.Query("search"),
	}
}
