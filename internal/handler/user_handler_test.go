package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civica-api/internal/models"
	"github.com/noah-isme/civica-api/internal/service"
)

type fakeUserService struct {
	filter  models.UserFilter
	created service.CreateUserRequest
	actor   string
	deleted string
}

func (f *fakeUserService) List(_ context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	f.filter = filter
	return []models.User{{ID: "u1"}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (f *fakeUserService) Get(_ context.Context, id string) (*models.User, error) {
	return &models.User{ID: id}, nil
}

func (f *fakeUserService) Create(_ context.Context, req service.CreateUserRequest, actorID string, _ models.LoginRequest) (*models.User, error) {
	f.created, f.actor = req, actorID
	return &models.User{ID: "u-new", Role: req.Role}, nil
}

func (f *fakeUserService) Update(_ context.Context, id string, req service.UpdateUserRequest, actorID string, _ models.LoginRequest) (*models.User, error) {
	f.actor = actorID
	return &models.User{ID: id, Role: req.Role}, nil
}

func (f *fakeUserService) Delete(_ context.Context, id string, actorID string, _ models.LoginRequest) error {
	f.deleted, f.actor = id, actorID
	return nil
}

func TestUserHandlerListFilters(t *testing.T) {
	svc := &fakeUserService{}
	router := newRouter(adminClaims)
	router.GET("/users", NewUserHandler(svc).List)

	rec, env := perform(t, router, http.MethodGet, "/users?role=office&office_id=office-1&active=true&page=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.filter.Role)
	assert.Equal(t, models.RoleOffice, *svc.filter.Role)
	assert.Equal(t, "office-1", svc.filter.OfficeID)
	require.NotNil(t, svc.filter.Active)
	assert.True(t, *svc.filter.Active)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 2, env.Pagination.Page)

	rec, env = perform(t, router, http.MethodGet, "/users?role=teacher", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestUserHandlerMutationsCarryActor(t *testing.T) {
	svc := &fakeUserService{}
	handler := NewUserHandler(svc)
	router := newRouter(adminClaims)
	router.POST("/users", handler.Create)
	router.DELETE("/users/:id", handler.Delete)

	rec, _ := perform(t, router, http.MethodPost, "/users", map[string]string{
		"email": "stu@school.test", "full_name": "Stu", "password": "secret1", "role": "student", "school_id": "school-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "admin-1", svc.actor)
	require.NotNil(t, svc.created.SchoolID)
	assert.Equal(t, "school-1", *svc.created.SchoolID)

	rec, _ = perform(t, router, http.MethodDelete, "/users/u9", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u9", svc.deleted)
}

func TestUserHandlerRequiresClaims(t *testing.T) {
	router := newRouter(nil)
	router.POST("/users", NewUserHandler(&fakeUserService{}).Create)

	rec, _ := perform(t, router, http.MethodPost, "/users", map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
