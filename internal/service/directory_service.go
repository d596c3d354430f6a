package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/civica-api/internal/dto"
	"github.com/noah-isme/civica-api/internal/models"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
)

type schoolStore interface {
	Create(ctx context.Context, school *models.School) error
	FindByID(ctx context.Context, id string) (*models.School, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	List(ctx context.Context, filter models.DirectoryFilter) ([]models.School, error)
	SetActive(ctx context.Context, id string, active bool) error
}

type officeStore interface {
	Create(ctx context.Context, office *models.Office) error
	FindByID(ctx context.Context, id string) (*models.Office, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	List(ctx context.Context, filter models.DirectoryFilter) ([]models.Office, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// SchoolService manages the school directory.
type SchoolService struct {
	repo      schoolStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSchoolService constructs a SchoolService.
func NewSchoolService(repo schoolStore, validate *validator.Validate, logger *zap.Logger) *SchoolService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolService{repo: repo, validator: validate, logger: logger}
}

// List returns schools matching the filter.
func (s *SchoolService) List(ctx context.Context, filter models.DirectoryFilter) ([]models.School, error) {
	filter.Type = ""
	schools, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schools")
	}
	return schools, nil
}

// Get returns a school by id.
func (s *SchoolService) Get(ctx context.Context, id string) (*models.School, error) {
	school, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	return school, nil
}

// Create registers a school with a unique name.
func (s *SchoolService) Create(ctx context.Context, actor models.Actor, req dto.CreateSchoolRequest) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}
	name := strings.TrimSpace(req.Name)
	exists, err := s.repo.ExistsByName(ctx, name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check school name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a school with this name already exists")
	}
	school := &models.School{
		Name:         name,
		Address:      strings.TrimSpace(req.Address),
		District:     strings.TrimSpace(req.District),
		State:        strings.TrimSpace(req.State),
		Pincode:      strings.TrimSpace(req.Pincode),
		HeadmasterID: req.HeadmasterID,
		Active:       true,
		CreatedBy:    actor.UserID,
	}
	if err := s.repo.Create(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create school")
	}
	s.logger.Info("school created", zap.String("school_id", school.ID), zap.String("actor", actor.UserID))
	return school, nil
}

// SetActive activates or deactivates a school.
func (s *SchoolService) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update school")
	}
	return nil
}

// OfficeService manages the audited office directory.
type OfficeService struct {
	repo      officeStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOfficeService constructs an OfficeService.
func NewOfficeService(repo officeStore, validate *validator.Validate, logger *zap.Logger) *OfficeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OfficeService{repo: repo, validator: validate, logger: logger}
}

// List returns offices matching the filter.
func (s *OfficeService) List(ctx context.Context, filter models.DirectoryFilter) ([]models.Office, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown office type")
	}
	offices, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offices")
	}
	return offices, nil
}

// Get returns an office by id.
func (s *OfficeService) Get(ctx context.Context, id string) (*models.Office, error) {
	office, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "office not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load office")
	}
	return office, nil
}

// Create registers an office with a unique name.
func (s *OfficeService) Create(ctx context.Context, actor models.Actor, req dto.CreateOfficeRequest) (*models.Office, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid office payload")
	}
	name := strings.TrimSpace(req.Name)
	exists, err := s.repo.ExistsByName(ctx, name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check office name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an office with this name already exists")
	}
	office := &models.Office{
		Name:          name,
		Type:          req.Type,
		Address:       strings.TrimSpace(req.Address),
		District:      strings.TrimSpace(req.District),
		State:         strings.TrimSpace(req.State),
		Pincode:       strings.TrimSpace(req.Pincode),
		ContactPerson: req.ContactPerson,
		ContactPhone:  req.ContactPhone,
		Active:        true,
		CreatedBy:     actor.UserID,
	}
	if err := s.repo.Create(ctx, office); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create office")
	}
	s.logger.Info("office created", zap.String("office_id", office.ID), zap.String("type", string(office.Type)))
	return office, nil
}

// SetActive activates or deactivates an office.
func (s *OfficeService) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "office not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update office")
	}
	return nil
}
