package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civica-api/internal/dto"
	"github.com/noah-isme/civica-api/internal/models"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
)

type schoolStoreStub struct {
	existing map[string]bool
	created  []*models.School
	active   map[string]bool
}

func (s *schoolStoreStub) Create(ctx context.Context, school *models.School) error {
	school.ID = "school-new"
	s.created = append(s.created, school)
	return nil
}

func (s *schoolStoreStub) FindByID(ctx context.Context, id string) (*models.School, error) {
	return nil, sql.ErrNoRows
}

func (s *schoolStoreStub) ExistsByName(ctx context.Context, name string) (bool, error) {
	return s.existing[name], nil
}

func (s *schoolStoreStub) List(ctx context.Context, filter models.DirectoryFilter) ([]models.School, error) {
	return []models.School{{ID: "school-1"}}, nil
}

func (s *schoolStoreStub) SetActive(ctx context.Context, id string, active bool) error {
	if _, ok := s.active[id]; !ok {
		return sql.ErrNoRows
	}
	s.active[id] = active
	return nil
}

type officeStoreStub struct {
	existing map[string]bool
	filter   models.DirectoryFilter
}

func (s *officeStoreStub) Create(ctx context.Context, office *models.Office) error {
	office.ID = "office-new"
	return nil
}

func (s *officeStoreStub) FindByID(ctx context.Context, id string) (*models.Office, error) {
	if id == "office-1" {
		return &models.Office{ID: id, Type: models.OfficeTypePolice, Active: true}, nil
	}
	return nil, sql.ErrNoRows
}

func (s *officeStoreStub) ExistsByName(ctx context.Context, name string) (bool, error) {
	return s.existing[name], nil
}

func (s *officeStoreStub) List(ctx context.Context, filter models.DirectoryFilter) ([]models.Office, error) {
	s.filter = filter
	return nil, nil
}

func (s *officeStoreStub) SetActive(ctx context.Context, id string, active bool) error {
	return nil
}

func TestSchoolServiceCreate(t *testing.T) {
	store := &schoolStoreStub{existing: map[string]bool{"Taken High": true}}
	svc := NewSchoolService(store, nil, nil)

	school, err := svc.Create(context.Background(), adminActor, dto.CreateSchoolRequest{Name: " Govt High ", Pincode: "500001"})
	require.NoError(t, err)
	assert.Equal(t, "Govt High", school.Name)
	assert.True(t, school.Active)
	assert.Equal(t, adminActor.UserID, school.CreatedBy)

	_, err = svc.Create(context.Background(), adminActor, dto.CreateSchoolRequest{Name: "Taken High"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))

	_, err = svc.Create(context.Background(), adminActor, dto.CreateSchoolRequest{Name: "X", Pincode: "12ab"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestSchoolServiceSetActiveAndGet(t *testing.T) {
	store := &schoolStoreStub{active: map[string]bool{"school-1": true}}
	svc := NewSchoolService(store, nil, nil)

	require.NoError(t, svc.SetActive(context.Background(), "school-1", false))
	assert.False(t, store.active["school-1"])

	err := svc.SetActive(context.Background(), "missing", true)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	_, err = svc.Get(context.Background(), "missing")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestOfficeServiceCreateAndList(t *testing.T) {
	store := &officeStoreStub{existing: map[string]bool{"Central Police": true}}
	svc := NewOfficeService(store, nil, nil)

	office, err := svc.Create(context.Background(), adminActor, dto.CreateOfficeRequest{Name: "District Hospital", Type: models.OfficeTypeHospital})
	require.NoError(t, err)
	assert.Equal(t, "office-new", office.ID)
	assert.True(t, office.Active)

	_, err = svc.Create(context.Background(), adminActor, dto.CreateOfficeRequest{Name: "Central Police", Type: models.OfficeTypePolice})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))

	_, err = svc.Create(context.Background(), adminActor, dto.CreateOfficeRequest{Name: "Depot", Type: "transport"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = svc.List(context.Background(), models.DirectoryFilter{Type: "transport"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = svc.List(context.Background(), models.DirectoryFilter{Type: models.OfficeTypeMRO, District: "North"})
	require.NoError(t, err)
	assert.Equal(t, "North", store.filter.District)
}
