package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/civica-api/internal/models"
)

const officeColumns = `id, name, type, address, district, state, pincode, contact_person, contact_phone,
	is_active, created_by, created_at, updated_at`

// OfficeRepository persists audited offices.
type OfficeRepository struct {
	db *sqlx.DB
}

// NewOfficeRepository constructs the repository.
func NewOfficeRepository(db *sqlx.DB) *OfficeRepository {
	return &OfficeRepository{db: db}
}

// Create inserts an office.
func (r *OfficeRepository) Create(ctx context.Context, office *models.Office) error {
	if office.ID == "" {
		office.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	office.CreatedAt = now
	office.UpdatedAt = now
	const query = `INSERT INTO offices (` + officeColumns + `)
	VALUES (:id, :name, :type, :address, :district, :state, :pincode, :contact_person, :contact_phone,
	:is_active, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, office); err != nil {
		return fmt.Errorf("create office: %w", err)
	}
	return nil
}

// FindByID loads an office.
func (r *OfficeRepository) FindByID(ctx context.Context, id string) (*models.Office, error) {
	var office models.Office
	if err := r.db.GetContext(ctx, &office, `SELECT `+officeColumns+` FROM offices WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &office, nil
}

// ExistsByName performs a case-insensitive uniqueness check.
func (r *OfficeRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS(SELECT 1 FROM offices WHERE LOWER(name) = LOWER($1))`
	if err := r.db.GetContext(ctx, &exists, query, strings.TrimSpace(name)); err != nil {
		return false, fmt.Errorf("check office name: %w", err)
	}
	return exists, nil
}

// List returns offices ordered by name.
func (r *OfficeRepository) List(ctx context.Context, filter models.DirectoryFilter) ([]models.Office, error) {
	conditions, args := directoryConditions(filter)
	query := `SELECT ` + officeColumns + ` FROM offices` + whereClause(conditions) + ` ORDER BY name`
	var offices []models.Office
	if err := r.db.SelectContext(ctx, &offices, query, args...); err != nil {
		return nil, fmt.Errorf("list offices: %w", err)
	}
	return offices, nil
}

// SetActive toggles the active flag.
func (r *OfficeRepository) SetActive(ctx context.Context, id string, active bool) error {
	return setActive(ctx, r.db, "offices", id, active)
}
