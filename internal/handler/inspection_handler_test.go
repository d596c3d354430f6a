package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civica-api/internal/dto"
	"github.com/noah-isme/civica-api/internal/middleware"
	"github.com/noah-isme/civica-api/internal/models"
	"github.com/noah-isme/civica-api/internal/workflow"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
)

type fakeInspectionService struct {
	lastActor  models.Actor
	lastFilter models.InspectionFilter
	lastID     string
	lastReport dto.SubmitReportRequest
	lastReview dto.GovtReviewRequest
	lastDecide dto.HeadmasterDecisionRequest
	err        error
}

func (f *fakeInspectionService) List(_ context.Context, actor models.Actor, filter models.InspectionFilter) ([]models.Inspection, *models.Pagination, error) {
	f.lastActor, f.lastFilter = actor, filter
	return []models.Inspection{{ID: "insp-1"}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, f.err
}

func (f *fakeInspectionService) Get(_ context.Context, actor models.Actor, id string) (*models.Inspection, error) {
	f.lastActor, f.lastID = actor, id
	if f.err != nil {
		return nil, f.err
	}
	return &models.Inspection{ID: id}, nil
}

func (f *fakeInspectionService) Create(_ context.Context, actor models.Actor, req dto.CreateInspectionRequest) (*models.Inspection, error) {
	f.lastActor = actor
	return &models.Inspection{ID: "insp-new", TaskName: req.TaskName}, f.err
}

func (f *fakeInspectionService) Update(_ context.Context, _ models.Actor, id string, _ dto.UpdateInspectionRequest) (*models.Inspection, error) {
	return &models.Inspection{ID: id}, f.err
}

func (f *fakeInspectionService) Delete(_ context.Context, _ models.Actor, id string) error {
	f.lastID = id
	return f.err
}

func (f *fakeInspectionService) SubmitReport(_ context.Context, actor models.Actor, id string, req dto.SubmitReportRequest) (*models.Inspection, error) {
	f.lastActor, f.lastID, f.lastReport = actor, id, req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Inspection{ID: id, Status: models.InspectionStatusSubmitted}, nil
}

func (f *fakeInspectionService) Respond(_ context.Context, _ models.Actor, id string, _ dto.OfficeResponseRequest) (*models.Inspection, error) {
	f.lastID = id
	return &models.Inspection{ID: id, Status: models.InspectionStatusResponded}, f.err
}

func (f *fakeInspectionService) EditResponse(_ context.Context, _ models.Actor, id string, _ dto.OfficeResponseRequest) (*models.Inspection, error) {
	f.lastID = id
	return &models.Inspection{ID: id}, f.err
}

func (f *fakeInspectionService) Approve(_ context.Context, _ models.Actor, id string, req dto.HeadmasterDecisionRequest) (*models.Inspection, error) {
	f.lastID, f.lastDecide = id, req
	return &models.Inspection{ID: id}, f.err
}

func (f *fakeInspectionService) Reject(_ context.Context, _ models.Actor, id string, req dto.HeadmasterDecisionRequest) (*models.Inspection, error) {
	f.lastID, f.lastDecide = id, req
	return &models.Inspection{ID: id}, f.err
}

func (f *fakeInspectionService) Review(_ context.Context, _ models.Actor, id string, req dto.GovtReviewRequest) (*dto.ReviewOutcome, error) {
	f.lastID, f.lastReview = id, req
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ReviewOutcome{
		Inspection: &models.Inspection{ID: id, Status: models.InspectionStatusEscalated},
		Escalation: &models.Escalation{ID: "esc-1", InspectionID: id},
	}, nil
}

func (f *fakeInspectionService) Override(_ context.Context, _ models.Actor, id string, _ dto.OverrideStatusRequest) (*models.Inspection, error) {
	return &models.Inspection{ID: id}, f.err
}

func (f *fakeInspectionService) Reassign(_ context.Context, _ models.Actor, id string, _ dto.ReassignRequest) (*models.Inspection, error) {
	return &models.Inspection{ID: id}, f.err
}

func TestInspectionHandlerListParsesFilter(t *testing.T) {
	svc := &fakeInspectionService{}
	handler := NewInspectionHandler(svc)
	router := newRouter(officeClaims)
	router.GET("/inspections", handler.List)

	rec, env := perform(t, router, http.MethodGet, "/inspections?status=submitted,responded&priority=HIGH&from=2026-01-01&page=2&page_size=5", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.InspectionStatus{models.InspectionStatusSubmitted, models.InspectionStatusResponded}, svc.lastFilter.Status)
	assert.Equal(t, models.PriorityHigh, svc.lastFilter.Priority)
	require.NotNil(t, svc.lastFilter.AssignedFrom)
	assert.Equal(t, 2026, svc.lastFilter.AssignedFrom.Year())
	assert.Equal(t, 2, svc.lastFilter.Page)
	assert.Equal(t, "office-1", svc.lastActor.OfficeID)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 5, env.Pagination.PageSize)
}

func TestInspectionHandlerListRejectsBadDate(t *testing.T) {
	handler := NewInspectionHandler(&fakeInspectionService{})
	router := newRouter(adminClaims)
	router.GET("/inspections", handler.List)

	rec, env := perform(t, router, http.MethodGet, "/inspections?to=yesterday", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, env.Error.Code)
}

func TestInspectionHandlerRequiresClaims(t *testing.T) {
	handler := NewInspectionHandler(&fakeInspectionService{})
	router := newRouter(nil)
	router.GET("/inspections/:id", handler.Get)

	rec, _ := perform(t, router, http.MethodGet, "/inspections/insp-1", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInspectionHandlerUnconfigured(t *testing.T) {
	handler := NewInspectionHandler(nil)
	router := newRouter(adminClaims)
	router.GET("/inspections/:id", handler.Get)

	rec, _ := perform(t, router, http.MethodGet, "/inspections/insp-1", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestInspectionHandlerSubmitReport(t *testing.T) {
	svc := &fakeInspectionService{}
	handler := NewInspectionHandler(svc)
	router := newRouter(studentClaims)
	router.POST("/inspections/:id/report", handler.SubmitReport)

	rec, env := perform(t, router, http.MethodPost, "/inspections/insp-1/report", dto.SubmitReportRequest{
		CleanlinessRating:    4,
		StaffBehaviorRating:  3,
		ServiceQualityRating: 5,
		Issues:               "long queue",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "insp-1", svc.lastID)
	assert.Equal(t, "team-1", svc.lastActor.TeamID)
	assert.Equal(t, 4, svc.lastReport.CleanlinessRating)
	var insp models.Inspection
	require.NoError(t, json.Unmarshal(env.Data, &insp))
	assert.Equal(t, models.InspectionStatusSubmitted, insp.Status)
}

func TestInspectionHandlerSubmitReportMapsServiceErrors(t *testing.T) {
	svc := &fakeInspectionService{err: appErrors.InvalidState("report already submitted")}
	handler := NewInspectionHandler(svc)
	router := newRouter(studentClaims)
	router.POST("/inspections/:id/report", handler.SubmitReport)

	rec, env := perform(t, router, http.MethodPost, "/inspections/insp-1/report", dto.SubmitReportRequest{CleanlinessRating: 1})

	assert.Equal(t, appErrors.ErrInvalidState.Status, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrInvalidState.Code, env.Error.Code)
}

func TestInspectionHandlerMalformedPayload(t *testing.T) {
	handler := NewInspectionHandler(&fakeInspectionService{})
	router := newRouter(adminClaims)
	router.POST("/inspections", handler.Create)

	rec, _ := perform(t, router, http.MethodPost, "/inspections", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInspectionHandlerApproveWithoutBody(t *testing.T) {
	svc := &fakeInspectionService{}
	handler := NewInspectionHandler(svc)
	router := newRouter(headmasterClaims)
	router.POST("/inspections/:id/approve", handler.Approve)
	router.POST("/inspections/:id/reject", handler.Reject)

	rec, _ := perform(t, router, http.MethodPost, "/inspections/insp-9/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "insp-9", svc.lastID)
	assert.Empty(t, svc.lastDecide.Comments)

	rec, _ = perform(t, router, http.MethodPost, "/inspections/insp-9/reject", dto.HeadmasterDecisionRequest{Comments: "photos missing"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "photos missing", svc.lastDecide.Comments)
}

func TestInspectionHandlerReviewReturnsEscalation(t *testing.T) {
	svc := &fakeInspectionService{}
	handler := NewInspectionHandler(svc)
	router := newRouter(responderClaims)
	router.POST("/inspections/:id/review", handler.Review)

	rec, env := perform(t, router, http.MethodPost, "/inspections/insp-1/review", dto.GovtReviewRequest{
		ReviewStatus:     models.ReviewStatusEscalated,
		EscalationReason: "no action taken",
		Severity:         models.SeverityHigh,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.SeverityHigh, svc.lastReview.Severity)
	var outcome dto.ReviewOutcome
	require.NoError(t, json.Unmarshal(env.Data, &outcome))
	require.NotNil(t, outcome.Escalation)
	assert.Equal(t, "esc-1", outcome.Escalation.ID)
}

func TestInspectionHandlerDelete(t *testing.T) {
	svc := &fakeInspectionService{}
	handler := NewInspectionHandler(svc)
	router := newRouter(adminClaims)
	router.DELETE("/inspections/:id", handler.Delete)

	rec, _ := perform(t, router, http.MethodDelete, "/inspections/insp-3", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "insp-3", svc.lastID)
}

type reassigningInspectionService struct {
	fakeInspectionService
}

func (f *reassigningInspectionService) Reassign(_ context.Context, actor models.Actor, id string, req dto.ReassignRequest) (*models.Inspection, error) {
	current := &models.Inspection{ID: id, SchoolID: "school-1", TeamID: "team-1", Status: models.InspectionStatusSubmitted}
	team := &models.Team{ID: req.TeamID, SchoolID: "school-1", Active: true}
	tr, err := workflow.Reassign(current, actor, team, time.Now())
	if err != nil {
		return nil, err
	}
	return tr.Inspection, nil
}

func TestInspectionHandlerReassignRoles(t *testing.T) {
	cases := []struct {
		name   string
		claims *models.JWTClaims
		status int
	}{
		{"admin", adminClaims, http.StatusOK},
		{"responder", responderClaims, http.StatusOK},
		{"headmaster", headmasterClaims, http.StatusForbidden},
		{"student", studentClaims, http.StatusForbidden},
		{"office", officeClaims, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewInspectionHandler(&reassigningInspectionService{})
			router := newRouter(tc.claims)
			router.PUT("/inspections/:id/team", middleware.RequireRoles(workflow.ReassignRoles...), handler.Reassign)

			rec, env := perform(t, router, http.MethodPut, "/inspections/insp-1/team", dto.ReassignRequest{TeamID: "team-2"})

			require.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				var insp models.Inspection
				require.NoError(t, json.Unmarshal(env.Data, &insp))
				assert.Equal(t, "team-2", insp.TeamID)
				assert.Equal(t, models.InspectionStatusAssigned, insp.Status)
			}
		})
	}
}
