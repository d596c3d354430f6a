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

type fakeTemplateService struct {
	document   []byte
	active     *bool
	officeType models.OfficeType
	err        error
}

func (f *fakeTemplateService) List(_ context.Context, active *bool, officeType models.OfficeType) ([]models.Template, error) {
	f.active, f.officeType = active, officeType
	return nil, f.err
}

func (f *fakeTemplateService) Get(_ context.Context, id string) (*models.Template, error) {
	return &models.Template{ID: id}, f.err
}

func (f *fakeTemplateService) Create(_ context.Context, _ models.Actor, req dto.TemplateRequest) (*models.Template, error) {
	return &models.Template{ID: "tpl-new", Name: req.Name}, f.err
}

func (f *fakeTemplateService) Update(_ context.Context, id string, _ dto.TemplateRequest) (*models.Template, error) {
	return &models.Template{ID: id}, f.err
}

func (f *fakeTemplateService) Clone(_ context.Context, _ models.Actor, _ string, req dto.CloneTemplateRequest) (*models.Template, error) {
	return &models.Template{ID: "tpl-copy", Name: req.Name}, f.err
}

func (f *fakeTemplateService) Deactivate(context.Context, string) error { return f.err }

func (f *fakeTemplateService) Activate(context.Context, string) error { return f.err }

func (f *fakeTemplateService) Import(_ context.Context, _ models.Actor, document []byte) ([]models.Template, []string, error) {
	f.document = document
	if f.err != nil {
		return nil, nil, f.err
	}
	return []models.Template{{ID: "tpl-a", Name: "Municipality desk"}}, []string{"Existing"}, nil
}

func TestTemplateHandlerImport(t *testing.T) {
	svc := &fakeTemplateService{}
	handler := NewTemplateHandler(svc)
	router := newRouter(adminClaims)
	router.POST("/templates/import", handler.Import)

	document := "templates:\n  - name: Municipality desk\n"
	rec, env := perform(t, router, http.MethodPost, "/templates/import", document)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, document, string(svc.document))
	var payload struct {
		Created []models.Template `json:"created"`
		Skipped []string          `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.Len(t, payload.Created, 1)
	assert.Equal(t, []string{"Existing"}, payload.Skipped)
}

func TestTemplateHandlerListFilters(t *testing.T) {
	svc := &fakeTemplateService{}
	handler := NewTemplateHandler(svc)
	router := newRouter(responderClaims)
	router.GET("/templates", handler.List)

	rec, _ := perform(t, router, http.MethodGet, "/templates?active=false&office_type=POLICE", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.active)
	assert.False(t, *svc.active)
	assert.Equal(t, models.OfficeTypePolice, svc.officeType)
}

func TestTemplateHandlerDeactivateInUse(t *testing.T) {
	svc := &fakeTemplateService{err: appErrors.Clone(appErrors.ErrConflict, "template is used by pending inspections")}
	handler := NewTemplateHandler(svc)
	router := newRouter(adminClaims)
	router.DELETE("/templates/:id", handler.Deactivate)

	rec, env := perform(t, router, http.MethodDelete, "/templates/tpl-1", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrConflict.Code, env.Error.Code)
}
