package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/civica-api/internal/models"
)

const templateColumns = `id, name, description, office_types, form_fields, is_active, created_by, created_at, updated_at`

type templateRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	OfficeTypes pq.StringArray `db:"office_types"`
	FormFields  types.JSONText `db:"form_fields"`
	Active      bool           `db:"is_active"`
	CreatedBy   string         `db:"created_by"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func newTemplateRow(tpl *models.Template) (*templateRow, error) {
	fields, err := jsonList(tpl.FormFields)
	if err != nil {
		return nil, fmt.Errorf("encode form fields: %w", err)
	}
	officeTypes := make(pq.StringArray, 0, len(tpl.OfficeTypes))
	for _, t := range tpl.OfficeTypes {
		officeTypes = append(officeTypes, string(t))
	}
	return &templateRow{
		ID:          tpl.ID,
		Name:        tpl.Name,
		Description: tpl.Description,
		OfficeTypes: officeTypes,
		FormFields:  fields,
		Active:      tpl.Active,
		CreatedBy:   tpl.CreatedBy,
		CreatedAt:   tpl.CreatedAt,
		UpdatedAt:   tpl.UpdatedAt,
	}, nil
}

func (row *templateRow) model() (*models.Template, error) {
	fields, err := decodeList[models.FormField]("form_fields", row.FormFields)
	if err != nil {
		return nil, err
	}
	officeTypes := make([]models.OfficeType, 0, len(row.OfficeTypes))
	for _, t := range row.OfficeTypes {
		officeTypes = append(officeTypes, models.OfficeType(t))
	}
	return &models.Template{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		OfficeTypes: officeTypes,
		FormFields:  fields,
		Active:      row.Active,
		CreatedBy:   row.CreatedBy,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

// TemplateRepository persists inspection form templates.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository constructs the repository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create inserts a template.
func (r *TemplateRepository) Create(ctx context.Context, tpl *models.Template) error {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	row, err := newTemplateRow(tpl)
	if err != nil {
		return err
	}
	const query = `INSERT INTO templates (` + templateColumns + `)
	VALUES (:id, :name, :description, :office_types, :form_fields, :is_active, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

// Update rewrites the template definition.
func (r *TemplateRepository) Update(ctx context.Context, tpl *models.Template) error {
	tpl.UpdatedAt = time.Now().UTC()
	row, err := newTemplateRow(tpl)
	if err != nil {
		return err
	}
	const query = `UPDATE templates SET name = :name, description = :description, office_types = :office_types,
	form_fields = :form_fields, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return nil
}

// FindByID loads a template.
func (r *TemplateRepository) FindByID(ctx context.Context, id string) (*models.Template, error) {
	var row templateRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+templateColumns+` FROM templates WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return row.model()
}

// List returns templates, optionally filtered by active flag and office type.
func (r *TemplateRepository) List(ctx context.Context, active *bool, officeType models.OfficeType) ([]models.Template, error) {
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)
	if active != nil {
		args = append(args, *active)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if officeType != "" {
		args = append(args, string(officeType))
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(office_types)", len(args)))
	}
	query := `SELECT ` + templateColumns + ` FROM templates` + whereClause(conditions) + ` ORDER BY name`
	var rows []templateRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	out := make([]models.Template, 0, len(rows))
	for i := range rows {
		tpl, err := rows[i].model()
		if err != nil {
			return nil, err
		}
		out = append(out, *tpl)
	}
	return out, nil
}

// ExistsActiveName reports whether another active template uses name.
func (r *TemplateRepository) ExistsActiveName(ctx context.Context, name, excludeID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS(SELECT 1 FROM templates WHERE LOWER(name) = LOWER($1) AND is_active AND id <> $2)`
	if err := r.db.GetContext(ctx, &exists, query, strings.TrimSpace(name), excludeID); err != nil {
		return false, fmt.Errorf("check template name: %w", err)
	}
	return exists, nil
}

// SetActive toggles the active flag.
func (r *TemplateRepository) SetActive(ctx context.Context, id string, active bool) error {
	return setActive(ctx, r.db, "templates", id, active)
}
