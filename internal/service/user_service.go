package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/civica-api/internal/models"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required"`
	Phone    *string         `json:"phone" validate:"omitempty,max=20"`
	Role     models.UserRole `json:"role" validate:"required,oneof=admin headmaster student office responder"`
	SchoolID *string         `json:"school_id"`
	OfficeID *string         `json:"office_id"`
	Active   bool            `json:"active"`
	Password string          `json:"password" validate:"required,min=6"`
}

// UpdateUserRequest payload for updating users.
type UpdateUserRequest struct {
	FullName string          `json:"full_name" validate:"required"`
	Phone    *string         `json:"phone" validate:"omitempty,max=20"`
	Role     models.UserRole `json:"role" validate:"required,oneof=admin headmaster student office responder"`
	SchoolID *string         `json:"school_id"`
	OfficeID *string         `json:"office_id"`
	Active   *bool           `json:"active"`
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	schools   schoolFinder
	offices   officeFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService. The school and office
// lookups may be nil, in which case affiliations are not checked for existence.
func NewUserService(repo userRepository, schools schoolFinder, offices officeFinder, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, schools: schools, offices: offices, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	pagination := &models.Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}

	return users, pagination, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create registers a user with the affiliation its role requires.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest, actorID string, meta models.LoginRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}
	schoolID, officeID, err := s.affiliation(ctx, req.Role, req.SchoolID, req.OfficeID)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	_, err = s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		Phone:        req.Phone,
		Role:         req.Role,
		SchoolID:     schoolID,
		OfficeID:     officeID,
		Active:       req.Active,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.record(ctx, actorID, models.AuditActionUserCreate, user.ID, nil, affiliationSnapshot(user), meta)
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Update replaces profile, role and affiliation. A student whose school or
// role changes leaves their team; team rosters are rebuilt through the team
// endpoints.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest, actorID string, meta models.LoginRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}
	schoolID, officeID, err := s.affiliation(ctx, req.Role, req.SchoolID, req.OfficeID)
	if err != nil {
		return nil, err
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	before := affiliationSnapshot(user)
	if req.Role != models.RoleStudent || derefOrEmpty(schoolID) != derefOrEmpty(user.SchoolID) {
		user.TeamID = nil
	}
	user.FullName = strings.TrimSpace(req.FullName)
	user.Phone = req.Phone
	user.Role = req.Role
	user.SchoolID = schoolID
	user.OfficeID = officeID
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	s.record(ctx, actorID, models.AuditActionUserUpdate, user.ID, before, affiliationSnapshot(user), meta)
	return user, nil
}

// Delete deactivates a user; the row is kept for audit history.
func (s *UserService) Delete(ctx context.Context, id string, actorID string, meta models.LoginRequest) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	s.record(ctx, actorID, models.AuditActionUserDelete, user.ID,
		map[string]interface{}{"active": user.Active}, map[string]interface{}{"active": false}, meta)
	return nil
}

func (s *UserService) record(ctx context.Context, actorID, action, userID string, before, after map[string]interface{}, meta models.LoginRequest) {
	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "users",
		ResourceID: &userID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		entry.NewValues, _ = json.Marshal(after)
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record user audit log", zap.String("action", action), zap.Error(err))
	}
}

func affiliationSnapshot(user *models.User) map[string]interface{} {
	return map[string]interface{}{
		"role":      user.Role,
		"active":    user.Active,
		"school_id": user.SchoolID,
		"office_id": user.OfficeID,
		"team_id":   user.TeamID,
	}
}

// affiliation enforces that students and headmasters belong to a school and
// office users to an office. Other roles carry no affiliation.
func (s *UserService) affiliation(ctx context.Context, role models.UserRole, schoolID, officeID *string) (*string, *string, error) {
	switch role {
	case models.RoleStudent, models.RoleHeadmaster:
		if schoolID == nil || strings.TrimSpace(*schoolID) == "" {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "school_id is required for "+string(role)+" users")
		}
		if s.schools != nil {
			if _, err := s.schools.FindByID(ctx, *schoolID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
				}
				return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
			}
		}
		return schoolID, nil, nil
	case models.RoleOffice:
		if officeID == nil || strings.TrimSpace(*officeID) == "" {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "office_id is required for office users")
		}
		if s.offices != nil {
			if _, err := s.offices.FindByID(ctx, *officeID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "office not found")
				}
				return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load office")
			}
		}
		return nil, officeID, nil
	}
	return nil, nil, nil
}
