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

type escalationService interface {
	List(ctx context.Context, actor models.Actor, filter models.EscalationFilter) ([]models.Escalation, *models.Pagination, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Escalation, error)
	AddFollowUp(ctx context.Context, actor models.Actor, id string, req dto.FollowUpRequest) (*models.Escalation, error)
	ReEscalate(ctx context.Context, actor models.Actor, id string, req dto.ReEscalateRequest) (*models.Escalation, error)
	Resolve(ctx context.Context, actor models.Actor, id string, req dto.ResolveEscalationRequest) (*models.Escalation, error)
}

// EscalationHandler exposes escalation tracking endpoints.
type EscalationHandler struct {
	service escalationService
}

// NewEscalationHandler constructs the handler.
func NewEscalationHandler(service escalationService) *EscalationHandler {
	return &EscalationHandler{service: service}
}

// List godoc
// @Summary List escalations
// @Tags Escalations
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param office_id query string false "Office ID"
// @Param severity query string false "Severity"
// @Param reason query string false "Reason"
// @Param from query string false "Created on or after (YYYY-MM-DD)"
// @Param to query string false "Created on or before (YYYY-MM-DD)"
// @Param sort_by query string false "created_at or severity"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /escalations [get]
func (h *EscalationHandler) List(c *gin.Context) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	filter := models.EscalationFilter{
		OfficeID: c.Query("office_id"),
		Severity: models.Severity(strings.ToLower(c.Query("severity"))),
		Reason:   c.Query("reason"),
		SortBy:   c.Query("sort_by"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	for _, status := range splitCSV(c.Query("status")) {
		filter.Status = append(filter.Status, models.EscalationStatus(status))
	}
	var err error
	if filter.From, err = queryTime(c, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.To, err = queryTime(c, "to"); err != nil {
		response.Error(c, err)
		return
	}

	items, pagination, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get escalation detail
// @Tags Escalations
// @Produce json
// @Param id path string true "Escalation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /escalations/{id} [get]
func (h *EscalationHandler) Get(c *gin.Context) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	esc, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, esc, nil)
}

// FollowUp godoc
// @Summary Append a follow-up to an escalation
// @Tags Escalations
// @Accept json
// @Produce json
// @Param id path string true "Escalation ID"
// @Param payload body dto.FollowUpRequest true "Follow-up"
// @Success 200 {object} response.Envelope
// @Router /escalations/{id}/follow-ups [post]
func (h *EscalationHandler) FollowUp(c *gin.Context) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	var req dto.FollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid follow-up payload"))
		return
	}
	esc, err := h.service.AddFollowUp(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, esc, nil)
}

// ReEscalate godoc
// @Summary Raise an escalation to another responder
// @Tags Escalations
// @Accept json
// @Produce json
// @Param id path string true "Escalation ID"
// @Param payload body dto.ReEscalateRequest true "Re-escalation"
// @Success 200 {object} response.Envelope
// @Router /escalations/{id}/re-escalate [post]
func (h *EscalationHandler) ReEscalate(c *gin.Context) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	var req dto.ReEscalateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid re-escalation payload"))
		return
	}
	esc, err := h.service.ReEscalate(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, esc, nil)
}

// Resolve godoc
// @Summary Resolve an escalation and close its inspection
// @Tags Escalations
// @Accept json
// @Produce json
// @Param id path string true "Escalation ID"
// @Param payload body dto.ResolveEscalationRequest true "Resolution"
// @Success 200 {object} response.Envelope
// @Router /escalations/{id}/resolve [post]
func (h *EscalationHandler) Resolve(c *gin.Context) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	var req dto.ResolveEscalationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid resolution payload"))
		return
	}
	esc, err := h.service.Resolve(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, esc, nil)
}

func (h *EscalationHandler) begin(c *gin.Context) (models.Actor, bool) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "escalation service not configured"))
		return models.Actor{}, false
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}
