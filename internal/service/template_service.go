package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/civica-api/internal/dto"
	"github.com/noah-isme/civica-api/internal/models"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
)

type templateStore interface {
	Create(ctx context.Context, tpl *models.Template) error
	Update(ctx context.Context, tpl *models.Template) error
	FindByID(ctx context.Context, id string) (*models.Template, error)
	List(ctx context.Context, active *bool, officeType models.OfficeType) ([]models.Template, error)
	ExistsActiveName(ctx context.Context, name, excludeID string) (bool, error)
	SetActive(ctx context.Context, id string, active bool) error
}

type templateUsageCounter interface {
	CountByTemplateStatus(ctx context.Context, templateID string, status models.InspectionStatus) (int, error)
}

// TemplateService manages inspection form templates.
type TemplateService struct {
	repo      templateStore
	usage     templateUsageCounter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTemplateService constructs a TemplateService.
func NewTemplateService(repo templateStore, usage templateUsageCounter, validate *validator.Validate, logger *zap.Logger) *TemplateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{repo: repo, usage: usage, validator: validate, logger: logger}
}

// List returns templates, optionally filtered by active flag and office type.
func (s *TemplateService) List(ctx context.Context, active *bool, officeType models.OfficeType) ([]models.Template, error) {
	items, err := s.repo.List(ctx, active, officeType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list templates")
	}
	return items, nil
}

// Get returns a template by id.
func (s *TemplateService) Get(ctx context.Context, id string) (*models.Template, error) {
	tpl, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	return tpl, nil
}

// Create validates and stores a new active template.
func (s *TemplateService) Create(ctx context.Context, actor models.Actor, req dto.TemplateRequest) (*models.Template, error) {
	tpl, err := s.build(req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUniqueName(ctx, tpl.Name, ""); err != nil {
		return nil, err
	}
	tpl.Active = true
	tpl.CreatedBy = actor.UserID
	if err := s.repo.Create(ctx, tpl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create template")
	}
	return tpl, nil
}

// Update replaces the template definition when no assigned inspection uses it.
func (s *TemplateService) Update(ctx context.Context, id string, req dto.TemplateRequest) (*models.Template, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := s.build(req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnused(ctx, id); err != nil {
		return nil, err
	}
	if current.Active {
		if err := s.ensureUniqueName(ctx, next.Name, id); err != nil {
			return nil, err
		}
	}
	current.Name = next.Name
	current.Description = next.Description
	current.OfficeTypes = next.OfficeTypes
	current.FormFields = next.FormFields
	if err := s.repo.Update(ctx, current); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update template")
	}
	return current, nil
}

// Clone copies a template under a new name.
func (s *TemplateService) Clone(ctx context.Context, actor models.Actor, id string, req dto.CloneTemplateRequest) (*models.Template, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clone payload")
	}
	source, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if err := s.ensureUniqueName(ctx, name, ""); err != nil {
		return nil, err
	}
	clone := &models.Template{
		Name:        name,
		Description: source.Description,
		OfficeTypes: append([]models.OfficeType(nil), source.OfficeTypes...),
		FormFields:  make([]models.FormField, len(source.FormFields)),
		Active:      true,
		CreatedBy:   actor.UserID,
	}
	for i, field := range source.FormFields {
		field.Options = append([]string(nil), field.Options...)
		clone.FormFields[i] = field
	}
	if err := s.repo.Create(ctx, clone); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clone template")
	}
	return clone, nil
}

// Deactivate hides a template from new assignments.
func (s *TemplateService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.ensureUnused(ctx, id); err != nil {
		return err
	}
	return s.setActive(ctx, id, false)
}

// Activate re-enables a template if its name is still free.
func (s *TemplateService) Activate(ctx context.Context, id string) error {
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ensureUniqueName(ctx, tpl.Name, id); err != nil {
		return err
	}
	return s.setActive(ctx, id, true)
}

// Import creates every template of a YAML document. Templates whose name is
// already active are skipped and reported.
func (s *TemplateService) Import(ctx context.Context, actor models.Actor, document []byte) ([]models.Template, []string, error) {
	requests, err := ParseTemplatesYAML(document)
	if err != nil {
		return nil, nil, err
	}
	created := make([]models.Template, 0, len(requests))
	skipped := make([]string, 0)
	for _, req := range requests {
		tpl, err := s.Create(ctx, actor, req)
		if err != nil {
			if appErrors.HasCode(err, appErrors.ErrConflict.Code) {
				skipped = append(skipped, req.Name)
				continue
			}
			return created, skipped, err
		}
		created = append(created, *tpl)
	}
	s.logger.Info("templates imported", zap.Int("created", len(created)), zap.Int("skipped", len(skipped)))
	return created, skipped, nil
}

// ParseTemplatesYAML decodes a `templates:` list document.
func ParseTemplatesYAML(document []byte) ([]dto.TemplateRequest, error) {
	var doc struct {
		Templates []dto.TemplateRequest `yaml:"templates"`
	}
	if err := yaml.Unmarshal(document, &doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template document")
	}
	if len(doc.Templates) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "template document contains no templates")
	}
	return doc.Templates, nil
}

func (s *TemplateService) build(req dto.TemplateRequest) (*models.Template, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template payload")
	}
	fields, err := normaliseFields(req.FormFields)
	if err != nil {
		return nil, err
	}
	return &models.Template{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		OfficeTypes: append([]models.OfficeType{}, req.OfficeTypes...),
		FormFields:  fields,
	}, nil
}

func normaliseFields(fields []models.FormField) ([]models.FormField, error) {
	if len(fields) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "template needs at least one form field")
	}
	seen := make(map[string]struct{}, len(fields))
	out := make([]models.FormField, 0, len(fields))
	for i, field := range fields {
		field.FieldName = strings.TrimSpace(field.FieldName)
		if field.FieldName == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("form_fields[%d] needs a field_name", i))
		}
		key := strings.ToLower(field.FieldName)
		if _, dup := seen[key]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate field name %q", field.FieldName))
		}
		seen[key] = struct{}{}
		if !field.FieldType.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("field %q has invalid type %q", field.FieldName, field.FieldType))
		}
		options := make([]string, 0, len(field.Options))
		for _, opt := range field.Options {
			if trimmed := strings.TrimSpace(opt); trimmed != "" {
				options = append(options, trimmed)
			}
		}
		if field.FieldType == models.FieldTypeDropdown && len(options) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("dropdown field %q needs options", field.FieldName))
		}
		if field.FieldType != models.FieldTypeDropdown {
			options = nil
		}
		field.Options = options
		out = append(out, field)
	}
	return out, nil
}

func (s *TemplateService) ensureUniqueName(ctx context.Context, name, excludeID string) error {
	exists, err := s.repo.ExistsActiveName(ctx, name, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check template name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "an active template with this name already exists")
	}
	return nil
}

func (s *TemplateService) ensureUnused(ctx context.Context, id string) error {
	if s.usage == nil {
		return nil
	}
	inUse, err := s.usage.CountByTemplateStatus(ctx, id, models.InspectionStatusAssigned)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count template usage")
	}
	if inUse > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "template is used by assigned inspections")
	}
	return nil
}

func (s *TemplateService) setActive(ctx context.Context, id string, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update template")
	}
	return nil
}
