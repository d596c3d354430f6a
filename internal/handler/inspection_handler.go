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

type inspectionService interface {
	List(ctx context.Context, actor models.Actor, filter models.InspectionFilter) ([]models.Inspection, *models.Pagination, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Inspection, error)
	Create(ctx context.Context, actor models.Actor, req dto.CreateInspectionRequest) (*models.Inspection, error)
	Update(ctx context.Context, actor models.Actor, id string, req dto.UpdateInspectionRequest) (*models.Inspection, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
	SubmitReport(ctx context.Context, actor models.Actor, id string, req dto.SubmitReportRequest) (*models.Inspection, error)
	Respond(ctx context.Context, actor models.Actor, id string, req dto.OfficeResponseRequest) (*models.Inspection, error)
	EditResponse(ctx context.Context, actor models.Actor, id string, req dto.OfficeResponseRequest) (*models.Inspection, error)
	Approve(ctx context.Context, actor models.Actor, id string, req dto.HeadmasterDecisionRequest) (*models.Inspection, error)
	Reject(ctx context.Context, actor models.Actor, id string, req dto.HeadmasterDecisionRequest) (*models.Inspection, error)
	Review(ctx context.Context, actor models.Actor, id string, req dto.GovtReviewRequest) (*dto.ReviewOutcome, error)
	Override(ctx context.Context, actor models.Actor, id string, req dto.OverrideStatusRequest) (*models.Inspection, error)
	Reassign(ctx context.Context, actor models.Actor, id string, req dto.ReassignRequest) (*models.Inspection, error)
}

// InspectionHandler exposes the inspection lifecycle endpoints.
type InspectionHandler struct {
	service inspectionService
}

// NewInspectionHandler constructs the handler.
func NewInspectionHandler(service inspectionService) *InspectionHandler {
	return &InspectionHandler{service: service}
}

// List godoc
// @Summary List inspections visible to the caller
// @Tags Inspections
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param school_id query string false "School ID"
// @Param office_id query string false "Office ID"
// @Param team_id query string false "Team ID"
// @Param template_id query string false "Template ID"
// @Param priority query string false "Priority"
// @Param from query string false "Assigned on or after (YYYY-MM-DD)"
// @Param to query string false "Assigned on or before (YYYY-MM-DD)"
// @Param search query string false "Task name search"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /inspections [get]
func (h *InspectionHandler) List(c *gin.Context) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	filter := models.InspectionFilter{
		SchoolID:   c.Query("school_id"),
		OfficeID:   c.Query("office_id"),
		TeamID:     c.Query("team_id"),
		TemplateID: c.Query("template_id"),
		Priority:   models.Priority(strings.ToLower(c.Query("priority"))),
		Search:     c.Query("search"),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "page_size", 20),
	}
	for _, status := range splitCSV(c.Query("status")) {
		filter.Status = append(filter.Status, models.InspectionStatus(status))
	}
	var err error
	if filter.AssignedFrom, err = queryTime(c, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.AssignedTo, err = queryTime(c, "to"); err != nil {
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
// @Summary Get inspection detail
// @Tags Inspections
// @Produce json
// @Param id path string true "Inspection ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /inspections/{id} [get]
func (h *InspectionHandler) Get(c *gin.Context) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	insp, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, insp, nil)
}

// Create godoc
// @Summary Assign a new inspection to a team
// @Tags Inspections
// @Accept json
// @Produce json
// @Param payload body dto.CreateInspectionRequest true "Inspection payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /inspections [post]
func (h *InspectionHandler) Create(c *gin.Context) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	var req dto.CreateInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid inspection payload"))
		return
	}
	insp, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, insp)
}

// Update godoc
// @Summary Edit an assigned inspection
// @Tags Inspections
// @Accept json
// @Produce json
// @Param id path string true "Inspection ID"
// @Param payload body dto.UpdateInspectionRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /inspections/{id} [patch]
func (h *InspectionHandler) Update(c *gin.Context) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	var req dto.UpdateInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid inspection payload"))
		return
	}
	insp, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, insp, nil)
}

// Delete godoc
// @Summary Delete an inspection that has not been started
// @Tags Inspections
// @Param id path string true "Inspection ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /inspections/{id} [delete]
func (h *InspectionHandler) Delete(c *gin.Context) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SubmitReport godoc
// @Summary Submit the team's inspection report
// @Tags Inspections
// @Accept json
// @Produce json
// @Param id path string true "Inspection ID"
// @Param payload body dto.SubmitReportRequest true "Report"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /inspections/{id}/report [post]
func (h *InspectionHandler) SubmitReport(c *gin.Context) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	var req dto.SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid report payload"))
		return
	}
	insp, err := h.service.SubmitReport(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, insp, nil)
}

// Respond godoc
// @Summary Record the office response
// @Tags Inspections
// @Accept json
// @Produce json
// @Param id path string true "Inspection ID"
// @Param payload body dto.OfficeResponseRequest true "Response"
// @Success 200 {object} response.Envelope
// @Router /inspections/{id}/response [post]
func (h *InspectionHandler) Respond(c *gin.Context) {
	h.officeResponse(c, h.service.Respond)
}

// EditResponse godoc
// @Summary Edit the office response
// @Tags Inspections
// @Accept json
// @Produce json
// @Param id path string true "Inspection ID"
// @Param payload body dto.OfficeResponseRequest true "Response"
// @Success 200 {object} response.Envelope
// @Router /inspections/{id}/response [put]
func (h *InspectionHandler) EditResponse(c *gin.Context) {
	h.officeResponse(c, h.service.EditResponse)
}

// Approve godoc
// @Summary Headmaster approves a submitted report
// @Tags Inspections
// @Accept json
// @Produce json
// @Param id path string true "Inspection ID"
// @Param payload body dto.HeadmasterDecisionRequest false "Comments"
// @Success 200 {object} response.Envelope
// @Router /inspections/{id}/approve [post]
func (h *InspectionHandler) Approve(c *gin.Context) {
	h.headmasterDecision(c, h.service.Approve)
}

// Reject godoc
// @Summary Headmaster rejects a submitted report
// @Tags Inspections
// @Accept json
// @Produce json
// @Param id path string true "Inspection ID"
// @Param payload body dto.HeadmasterDecisionRequest false "Comments"
// @Success 200 {object} response.Envelope
// @Router /inspections/{id}/reject [post]
func (h *InspectionHandler) Reject(c *gin.Context) {
	h.headmasterDecision(c, h.service.Reject)
}

// Review godoc
// @Summary Responder review, optionally escalating
// @Tags Inspections
// @Accept json
// @Produce json
// @Param id path string true "Inspection ID"
// @Param payload body dto.GovtReviewRequest true "Review"
// @Success 200 {object} response.Envelope
// @Router /inspections/{id}/review [post]
func (h *InspectionHandler) Review(c *gin.Context) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	var req dto.GovtReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
		return
	}
	outcome, err := h.service.Review(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// Override godoc
// @Summary Administratively force an inspection status
// @Tags Inspections
// @Accept json
// @Produce json
// @Param id path string true "Inspection ID"
// @Param payload body dto.OverrideStatusRequest true "Override"
// @Success 200 {object} response.Envelope
// @Router /inspections/{id}/status [put]
func (h *InspectionHandler) Override(c *gin.Context) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	var req dto.OverrideStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid status payload"))
		return
	}
	insp, err := h.service.Override(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, insp, nil)
}

// Reassign godoc
// @Summary Move an inspection to another team
// @Tags Inspections
// @Accept json
// @Produce json
// @Param id path string true "Inspection ID"
// @Param payload body dto.ReassignRequest true "Target team"
// @Success 200 {object} response.Envelope
// @Router /inspections/{id}/team [put]
func (h *InspectionHandler) Reassign(c *gin.Context) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	var req dto.ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid reassignment payload"))
		return
	}
	insp, err := h.service.Reassign(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, insp, nil)
}

type inspectionStep[T any] func(ctx context.Context, actor models.Actor, id string, req T) (*models.Inspection, error)

func (h *InspectionHandler) officeResponse(c *gin.Context, step inspectionStep[dto.OfficeResponseRequest]) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	var req dto.OfficeResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid response payload"))
		return
	}
	insp, err := step(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, insp, nil)
}

func (h *InspectionHandler) headmasterDecision(c *gin.Context, step inspectionStep[dto.HeadmasterDecisionRequest]) {
	actor, ok := h.begin(c)
	if !ok {
		return
	}
	var req dto.HeadmasterDecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
			return
		}
	}
	insp, err := step(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, insp, nil)
}

func (h *InspectionHandler) begin(c *gin.Context) (models.Actor, bool) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "inspection service not configured"))
		return models.Actor{}, false
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}
