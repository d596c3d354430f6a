package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civica-api/internal/dto"
	"github.com/noah-isme/civica-api/internal/models"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
)

type fakeEscalationService struct {
	lastFilter  models.EscalationFilter
	lastFollow  dto.FollowUpRequest
	lastResolve dto.ResolveEscalationRequest
	err         error
}

func (f *fakeEscalationService) List(_ context.Context, _ models.Actor, filter models.EscalationFilter) ([]models.Escalation, *models.Pagination, error) {
	f.lastFilter = filter
	return nil, &models.Pagination{Page: 1, PageSize: 20}, f.err
}

func (f *fakeEscalationService) Get(_ context.Context, _ models.Actor, id string) (*models.Escalation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Escalation{ID: id}, nil
}

func (f *fakeEscalationService) AddFollowUp(_ context.Context, actor models.Actor, id string, req dto.FollowUpRequest) (*models.Escalation, error) {
	f.lastFollow = req
	return &models.Escalation{
		ID:        id,
		Status:    models.EscalationStatusInProgress,
		FollowUps: []models.FollowUp{{Notes: req.Notes, AddedBy: actor.UserID}},
	}, f.err
}

func (f *fakeEscalationService) ReEscalate(_ context.Context, _ models.Actor, id string, _ dto.ReEscalateRequest) (*models.Escalation, error) {
	return &models.Escalation{ID: id, Status: models.EscalationStatusReEscalated}, f.err
}

func (f *fakeEscalationService) Resolve(_ context.Context, _ models.Actor, id string, req dto.ResolveEscalationRequest) (*models.Escalation, error) {
	f.lastResolve = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Escalation{ID: id, Status: models.EscalationStatusResolved}, nil
}

func TestEscalationHandlerListFilter(t *testing.T) {
	svc := &fakeEscalationService{}
	handler := NewEscalationHandler(svc)
	router := newRouter(responderClaims)
	router.GET("/escalations", handler.List)

	rec, _ := perform(t, router, http.MethodGet, "/escalations?status=open,re_escalated&severity=Critical&sort_by=severity", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.EscalationStatus{models.EscalationStatusOpen, models.EscalationStatusReEscalated}, svc.lastFilter.Status)
	assert.Equal(t, models.SeverityCritical, svc.lastFilter.Severity)
	assert.Equal(t, "severity", svc.lastFilter.SortBy)
}

func TestEscalationHandlerFollowUp(t *testing.T) {
	svc := &fakeEscalationService{}
	handler := NewEscalationHandler(svc)
	router := newRouter(responderClaims)
	router.POST("/escalations/:id/follow-ups", handler.FollowUp)

	rec, env := perform(t, router, http.MethodPost, "/escalations/esc-1/follow-ups", dto.FollowUpRequest{Notes: "called the office"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "called the office", svc.lastFollow.Notes)
	var esc models.Escalation
	require.NoError(t, json.Unmarshal(env.Data, &esc))
	assert.Equal(t, models.EscalationStatusInProgress, esc.Status)
	require.Len(t, esc.FollowUps, 1)
	assert.Equal(t, "responder-1", esc.FollowUps[0].AddedBy)
}

func TestEscalationHandlerResolveConflict(t *testing.T) {
	svc := &fakeEscalationService{err: appErrors.InvalidState("escalation already resolved")}
	handler := NewEscalationHandler(svc)
	router := newRouter(responderClaims)
	router.POST("/escalations/:id/resolve", handler.Resolve)

	rec, env := perform(t, router, http.MethodPost, "/escalations/esc-1/resolve", dto.ResolveEscalationRequest{ResolutionNotes: "done"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrInvalidState.Code, env.Error.Code)
	assert.Equal(t, "done", svc.lastResolve.ResolutionNotes)
}

func TestEscalationHandlerGetNotFound(t *testing.T) {
	handler := NewEscalationHandler(&fakeEscalationService{err: appErrors.Clone(appErrors.ErrNotFound, "escalation not found")})
	router := newRouter(officeClaims)
	router.GET("/escalations/:id", handler.Get)

	rec, _ := perform(t, router, http.MethodGet, "/escalations/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
