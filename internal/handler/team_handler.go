package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civica-api/internal/dto"
	"github.com/noah-isme/civica-api/internal/models"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
	"github.com/noah-isme/civica-api/pkg/response"
)

type teamService interface {
	List(ctx context.Context, schoolID string, activeOnly bool) ([]models.Team, error)
	Get(ctx context.Context, id string) (*models.Team, error)
	Create(ctx context.Context, actor models.Actor, req dto.TeamRequest) (*models.Team, error)
	Update(ctx context.Context, actor models.Actor, id string, req dto.TeamRequest) (*models.Team, error)
	Deactivate(ctx context.Context, actor models.Actor, id string) error
	Activate(ctx context.Context, actor models.Actor, id string) error
	Workload(ctx context.Context, schoolID string) ([]models.TeamWorkload, error)
}

// TeamHandler exposes student team management endpoints.
type TeamHandler struct {
	service teamService
}

// NewTeamHandler constructs the handler.
func NewTeamHandler(service teamService) *TeamHandler {
	return &TeamHandler{service: service}
}

// List godoc
// @Summary List teams of a school
// @Tags Teams
// @Produce json
// @Param school_id query string false "School ID, defaults to the caller's school"
// @Param active_only query bool false "Only active teams"
// @Success 200 {object} response.Envelope
// @Router /teams [get]
func (h *TeamHandler) List(c *gin.Context) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	schoolID := schoolScope(c, actor)
	activeOnly := false
	if active := queryBool(c, "active_only"); active != nil {
		activeOnly = *active
	}
	teams, err := h.service.List(c.Request.Context(), schoolID, activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teams, nil)
}

// Get godoc
// @Summary Get team detail
// @Tags Teams
// @Produce json
// @Param id path string true "Team ID"
// @Success 200 {object} response.Envelope
// @Router /teams/{id} [get]
func (h *TeamHandler) Get(c *gin.Context) {
	if _, ok := h.begin(c); !ok {
		return
	}
	team, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, team, nil)
}

// Create godoc
// @Summary Create a team
// @Tags Teams
// @Accept json
// @Produce json
// @Param payload body dto.TeamRequest true "Team payload"
// @Success 201 {object} response.Envelope
// @Router /teams [post]
func (h *TeamHandler) Create(c *gin.Context) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	var req dto.TeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid team payload"))
		return
	}
	team, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, team)
}

// Update godoc
// @Summary Replace a team's name and members
// @Tags Teams
// @Accept json
// @Produce json
// @Param id path string true "Team ID"
// @Param payload body dto.TeamRequest true "Team payload"
// @Success 200 {object} response.Envelope
// @Router /teams/{id} [put]
func (h *TeamHandler) Update(c *gin.Context) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	var req dto.TeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid team payload"))
		return
	}
	team, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, team, nil)
}

// Deactivate godoc
// @Summary Deactivate a team without open inspections
// @Tags Teams
// @Param id path string true "Team ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /teams/{id} [delete]
func (h *TeamHandler) Deactivate(c *gin.Context) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Activate godoc
// @Summary Reactivate a team
// @Tags Teams
// @Param id path string true "Team ID"
// @Success 204
// @Router /teams/{id}/activate [post]
func (h *TeamHandler) Activate(c *gin.Context) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	if err := h.service.Activate(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Workload godoc
// @Summary Open inspection count per team
// @Tags Teams
// @Produce json
// @Param school_id query string false "School ID, defaults to the caller's school"
// @Success 200 {object} response.Envelope
// @Router /teams/workload [get]
func (h *TeamHandler) Workload(c *gin.Context) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	schoolID := schoolScope(c, actor)
	if schoolID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "school_id is required"))
		return
	}
	workload, err := h.service.Workload(c.Request.Context(), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, workload, nil)
}

func (h *TeamHandler) begin(c *gin.Context) (models.Actor, bool) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "team service not configured"))
		return models.Actor{}, false
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

// schoolScope pins school-bound roles to their own school.
func schoolScope(c *gin.Context, actor models.Actor) string {
	if actor.Role != models.RoleAdmin && actor.SchoolID != "" {
		return actor.SchoolID
	}
	return c.Query("school_id")
}
