package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civica-api/internal/middleware"
	"github.com/noah-isme/civica-api/internal/models"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
	"github.com/noah-isme/civica-api/pkg/export"
	"github.com/noah-isme/civica-api/pkg/response"
)

type analyticsService interface {
	DashboardStats(ctx context.Context) (*models.DashboardStats, error)
	PriorityItems(ctx context.Context) (*models.PriorityItems, error)
	SystemAnalytics(ctx context.Context, days int) (*models.SystemAnalytics, error)
	OfficeCompliance(ctx context.Context, actor models.Actor, officeID string) (*models.ComplianceScore, error)
	AllOfficesCompliance(ctx context.Context) ([]models.ComplianceScore, error)
	Violations(ctx context.Context) ([]models.OfficeViolations, error)
	ComplianceHistory(ctx context.Context, actor models.Actor, officeID string, months int) ([]models.ComplianceHistoryPoint, error)
	ExportCompliance(ctx context.Context, format export.Format) ([]byte, string, error)
}

// AnalyticsHandler exposes responder dashboards and compliance scoring.
type AnalyticsHandler struct {
	analytics analyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Dashboard godoc
// @Summary Responder dashboard counters
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/dashboard [get]
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	start := time.Now()
	stats, err := h.analytics.DashboardStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, start, stats)
}

// Priority godoc
// @Summary Critical, overdue and repeat-violation inspections
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/priority [get]
func (h *AnalyticsHandler) Priority(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	start := time.Now()
	items, err := h.analytics.PriorityItems(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, start, items)
}

// System godoc
// @Summary System-wide analytics over a trailing window
// @Tags Analytics
// @Produce json
// @Param days query int false "Window in days (default 30, max 365)"
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	start := time.Now()
	days := queryInt(c, "days", 0)
	report, err := h.analytics.SystemAnalytics(c.Request.Context(), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "window_days", report.WindowDays)
	h.respond(c, start, report)
}

// OfficeCompliance godoc
// @Summary Compliance score of one office
// @Tags Compliance
// @Produce json
// @Param id path string true "Office ID"
// @Success 200 {object} response.Envelope
// @Router /compliance/offices/{id} [get]
func (h *AnalyticsHandler) OfficeCompliance(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	start := time.Now()
	score, err := h.analytics.OfficeCompliance(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, start, score)
}

// Ranking godoc
// @Summary Compliance ranking of all active offices
// @Tags Compliance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /compliance/offices [get]
func (h *AnalyticsHandler) Ranking(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	start := time.Now()
	scores, err := h.analytics.AllOfficesCompliance(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, start, scores)
}

// Violations godoc
// @Summary Offices with repeated low ratings
// @Tags Compliance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /compliance/violations [get]
func (h *AnalyticsHandler) Violations(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	start := time.Now()
	violations, err := h.analytics.Violations(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, start, violations)
}

// History godoc
// @Summary Monthly compliance history of an office
// @Tags Compliance
// @Produce json
// @Param id path string true "Office ID"
// @Param months query int false "Months (default 6, max 24)"
// @Success 200 {object} response.Envelope
// @Router /compliance/offices/{id}/history [get]
func (h *AnalyticsHandler) History(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	start := time.Now()
	points, err := h.analytics.ComplianceHistory(c.Request.Context(), actor, c.Param("id"), queryInt(c, "months", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, start, points)
}

// Export godoc
// @Summary Download the compliance ranking
// @Tags Compliance
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /compliance/export [get]
func (h *AnalyticsHandler) Export(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatCSV)))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	body, filename, err := h.analytics.ExportCompliance(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, format.ContentType(), body)
}

func (h *AnalyticsHandler) respond(c *gin.Context, start time.Time, data interface{}) {
	middleware.SetMeta(c, "processing_time_ms", time.Since(start).Milliseconds())
	response.JSON(c, http.StatusOK, data, nil)
}

func (h *AnalyticsHandler) ready(c *gin.Context) bool {
	if h.analytics == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "analytics service not configured"))
		return false
	}
	return true
}

func (h *AnalyticsHandler) actor(c *gin.Context) (models.Actor, bool) {
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
