package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/civica-api/internal/models"
)

const schoolColumns = `id, name, address, district, state, pincode, headmaster_id, is_active, created_by, created_at, updated_at`

// SchoolRepository persists schools.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs the repository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// Create inserts a school.
func (r *SchoolRepository) Create(ctx context.Context, school *models.School) error {
	if school.ID == "" {
		school.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	school.CreatedAt = now
	school.UpdatedAt = now
	const query = `INSERT INTO schools (` + schoolColumns + `)
	VALUES (:id, :name, :address, :district, :state, :pincode, :headmaster_id, :is_active, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("create school: %w", err)
	}
	return nil
}

// FindByID loads a school.
func (r *SchoolRepository) FindByID(ctx context.Context, id string) (*models.School, error) {
	var school models.School
	if err := r.db.GetContext(ctx, &school, `SELECT `+schoolColumns+` FROM schools WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &school, nil
}

// ExistsByName performs a case-insensitive uniqueness check.
func (r *SchoolRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS(SELECT 1 FROM schools WHERE LOWER(name) = LOWER($1))`
	if err := r.db.GetContext(ctx, &exists, query, strings.TrimSpace(name)); err != nil {
		return false, fmt.Errorf("check school name: %w", err)
	}
	return exists, nil
}

// List returns schools ordered by name.
func (r *SchoolRepository) List(ctx context.Context, filter models.DirectoryFilter) ([]models.School, error) {
	conditions, args := directoryConditions(filter)
	query := `SELECT ` + schoolColumns + ` FROM schools` + whereClause(conditions) + ` ORDER BY name`
	var schools []models.School
	if err := r.db.SelectContext(ctx, &schools, query, args...); err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	return schools, nil
}

// SetActive toggles the active flag.
func (r *SchoolRepository) SetActive(ctx context.Context, id string, active bool) error {
	return setActive(ctx, r.db, "schools", id, active)
}

func directoryConditions(filter models.DirectoryFilter) ([]string, []interface{}) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.District != "" {
		args = append(args, filter.District)
		conditions = append(conditions, fmt.Sprintf("district = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	return conditions, args
}

func setActive(ctx context.Context, db sqlx.ExecerContext, table, id string, active bool) error {
	query := fmt.Sprintf(`UPDATE %s SET is_active = $1, updated_at = $2 WHERE id = $3`, table)
	result, err := db.ExecContext(ctx, query, active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update %s status: %w", table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s status rows affected: %w", table, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
