package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civica-api/internal/models"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
	"github.com/noah-isme/civica-api/pkg/export"
)

type fakeAnalyticsService struct {
	days         int
	months       int
	officeID     string
	actor        models.Actor
	exportFormat export.Format
	err          error
}

func (f *fakeAnalyticsService) DashboardStats(context.Context) (*models.DashboardStats, error) {
	return &models.DashboardStats{TotalInspections: 12}, f.err
}

func (f *fakeAnalyticsService) PriorityItems(context.Context) (*models.PriorityItems, error) {
	return &models.PriorityItems{}, f.err
}

func (f *fakeAnalyticsService) SystemAnalytics(_ context.Context, days int) (*models.SystemAnalytics, error) {
	f.days = days
	return &models.SystemAnalytics{WindowDays: 30}, f.err
}

func (f *fakeAnalyticsService) OfficeCompliance(_ context.Context, actor models.Actor, officeID string) (*models.ComplianceScore, error) {
	f.actor, f.officeID = actor, officeID
	if f.err != nil {
		return nil, f.err
	}
	return &models.ComplianceScore{OfficeID: officeID}, nil
}

func (f *fakeAnalyticsService) AllOfficesCompliance(context.Context) ([]models.ComplianceScore, error) {
	return []models.ComplianceScore{{OfficeID: "office-1"}, {OfficeID: "office-2"}}, f.err
}

func (f *fakeAnalyticsService) Violations(context.Context) ([]models.OfficeViolations, error) {
	return nil, f.err
}

func (f *fakeAnalyticsService) ComplianceHistory(_ context.Context, _ models.Actor, officeID string, months int) ([]models.ComplianceHistoryPoint, error) {
	f.officeID, f.months = officeID, months
	return nil, f.err
}

func (f *fakeAnalyticsService) ExportCompliance(_ context.Context, format export.Format) ([]byte, string, error) {
	f.exportFormat = format
	return []byte("Rank,Office\n1,District Hospital\n"), "compliance-20261017." + string(format), f.err
}

func TestAnalyticsHandlerDashboardMeta(t *testing.T) {
	handler := NewAnalyticsHandler(&fakeAnalyticsService{})
	router := newRouter(responderClaims)
	router.GET("/analytics/dashboard", handler.Dashboard)

	rec, env := perform(t, router, http.MethodGet, "/analytics/dashboard", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, env.Meta, "processing_time_ms")
	var stats models.DashboardStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 12, stats.TotalInspections)
}

func TestAnalyticsHandlerSystemWindow(t *testing.T) {
	svc := &fakeAnalyticsService{}
	handler := NewAnalyticsHandler(svc)
	router := newRouter(responderClaims)
	router.GET("/analytics/system", handler.System)

	rec, env := perform(t, router, http.MethodGet, "/analytics/system?days=90", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 90, svc.days)
	assert.EqualValues(t, 30, env.Meta["window_days"])
}

func TestAnalyticsHandlerOfficeComplianceForbidden(t *testing.T) {
	svc := &fakeAnalyticsService{err: appErrors.Clone(appErrors.ErrForbidden, "office users may only view their own office")}
	handler := NewAnalyticsHandler(svc)
	router := newRouter(officeClaims)
	router.GET("/compliance/offices/:id", handler.OfficeCompliance)

	rec, _ := perform(t, router, http.MethodGet, "/compliance/offices/office-2", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "office-2", svc.officeID)
	assert.Equal(t, "office-1", svc.actor.OfficeID)
}

func TestAnalyticsHandlerHistoryMonths(t *testing.T) {
	svc := &fakeAnalyticsService{}
	handler := NewAnalyticsHandler(svc)
	router := newRouter(responderClaims)
	router.GET("/compliance/offices/:id/history", handler.History)

	rec, _ := perform(t, router, http.MethodGet, "/compliance/offices/office-1/history?months=12", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 12, svc.months)
	assert.Equal(t, "office-1", svc.officeID)
}

func TestAnalyticsHandlerExport(t *testing.T) {
	svc := &fakeAnalyticsService{}
	handler := NewAnalyticsHandler(svc)
	router := newRouter(adminClaims)
	router.GET("/compliance/export", handler.Export)

	rec, _ := perform(t, router, http.MethodGet, "/compliance/export", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.FormatCSV, svc.exportFormat)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "compliance-20261017.csv")
	assert.Contains(t, rec.Body.String(), "District Hospital")

	rec, _ = perform(t, router, http.MethodGet, "/compliance/export?format=xlsx", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
