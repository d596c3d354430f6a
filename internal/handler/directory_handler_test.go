package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civica-api/internal/dto"
	"github.com/noah-isme/civica-api/internal/models"
)

type fakeSchoolService struct {
	filter models.DirectoryFilter
	active map[string]bool
}

func (f *fakeSchoolService) List(_ context.Context, filter models.DirectoryFilter) ([]models.School, error) {
	f.filter = filter
	return []models.School{{ID: "school-1"}}, nil
}

func (f *fakeSchoolService) Get(_ context.Context, id string) (*models.School, error) {
	return &models.School{ID: id}, nil
}

func (f *fakeSchoolService) Create(_ context.Context, actor models.Actor, req dto.CreateSchoolRequest) (*models.School, error) {
	return &models.School{ID: "school-new", Name: req.Name, CreatedBy: actor.UserID}, nil
}

func (f *fakeSchoolService) SetActive(_ context.Context, id string, active bool) error {
	f.active[id] = active
	return nil
}

type fakeOfficeService struct {
	filter models.DirectoryFilter
}

func (f *fakeOfficeService) List(_ context.Context, filter models.DirectoryFilter) ([]models.Office, error) {
	f.filter = filter
	return nil, nil
}

func (f *fakeOfficeService) Get(_ context.Context, id string) (*models.Office, error) {
	return &models.Office{ID: id}, nil
}

func (f *fakeOfficeService) Create(_ context.Context, _ models.Actor, req dto.CreateOfficeRequest) (*models.Office, error) {
	return &models.Office{ID: "office-new", Name: req.Name, Type: req.Type}, nil
}

func (f *fakeOfficeService) SetActive(context.Context, string, bool) error {
	return nil
}

func TestDirectoryHandlerSchools(t *testing.T) {
	schools := &fakeSchoolService{active: map[string]bool{}}
	handler := NewDirectoryHandler(schools, &fakeOfficeService{})
	router := newRouter(adminClaims)
	router.GET("/schools", handler.ListSchools)
	router.POST("/schools", handler.CreateSchool)
	router.PUT("/schools/:id/active", handler.SetSchoolActive)

	rec, _ := perform(t, router, http.MethodGet, "/schools?active=true&district=North", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, schools.filter.Active)
	assert.True(t, *schools.filter.Active)
	assert.Equal(t, "North", schools.filter.District)

	rec, _ = perform(t, router, http.MethodPost, "/schools", dto.CreateSchoolRequest{Name: "Govt High"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = perform(t, router, http.MethodPut, "/schools/school-1/active", map[string]bool{"is_active": false})
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, schools.active["school-1"])

	rec, _ = perform(t, router, http.MethodPut, "/schools/school-1/active", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDirectoryHandlerOfficeTypeFilter(t *testing.T) {
	offices := &fakeOfficeService{}
	handler := NewDirectoryHandler(&fakeSchoolService{}, offices)
	router := newRouter(responderClaims)
	router.GET("/offices", handler.ListOffices)

	rec, _ := perform(t, router, http.MethodGet, "/offices?type=Hospital&search=district", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.OfficeTypeHospital, offices.filter.Type)
	assert.Equal(t, "district", offices.filter.Search)
}

func TestDirectoryHandlerCreateOfficeRequiresClaims(t *testing.T) {
	handler := NewDirectoryHandler(nil, &fakeOfficeService{})
	router := newRouter(nil)
	router.POST("/offices", handler.CreateOffice)
	router.GET("/schools", handler.ListSchools)

	rec, _ := perform(t, router, http.MethodPost, "/offices", dto.CreateOfficeRequest{Name: "Depot"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = perform(t, router, http.MethodGet, "/schools", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
