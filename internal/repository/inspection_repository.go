package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/civica-api/internal/models"
)

const inspectionColumns = `id, task_name, task_description, office_id, school_id, team_id, template_id,
	assigned_date, due_date, priority, status, report, office_response, govt_review, headmaster_approval,
	admin_override, responder_override, created_by, created_at, updated_at, version`

type inspectionRow struct {
	ID                 string             `db:"id"`
	TaskName           string             `db:"task_name"`
	TaskDescription    string             `db:"task_description"`
	OfficeID           string             `db:"office_id"`
	SchoolID           string             `db:"school_id"`
	TeamID             string             `db:"team_id"`
	TemplateID         string             `db:"template_id"`
	AssignedDate       time.Time          `db:"assigned_date"`
	DueDate            time.Time          `db:"due_date"`
	Priority           string             `db:"priority"`
	Status             string             `db:"status"`
	Report             types.NullJSONText `db:"report"`
	OfficeResponse     types.NullJSONText `db:"office_response"`
	GovtReview         types.NullJSONText `db:"govt_review"`
	HeadmasterApproval types.NullJSONText `db:"headmaster_approval"`
	AdminOverride      types.NullJSONText `db:"admin_override"`
	ResponderOverride  types.NullJSONText `db:"responder_override"`
	CreatedBy          string             `db:"created_by"`
	CreatedAt          time.Time          `db:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at"`
	Version            int                `db:"version"`
}

func newInspectionRow(insp *models.Inspection) (*inspectionRow, error) {
	row := &inspectionRow{
		ID:              insp.ID,
		TaskName:        insp.TaskName,
		TaskDescription: insp.TaskDescription,
		OfficeID:        insp.OfficeID,
		SchoolID:        insp.SchoolID,
		TeamID:          insp.TeamID,
		TemplateID:      insp.TemplateID,
		AssignedDate:    insp.AssignedDate,
		DueDate:         insp.DueDate,
		Priority:        string(insp.Priority),
		Status:          string(insp.Status),
		CreatedBy:       insp.CreatedBy,
		CreatedAt:       insp.CreatedAt,
		UpdatedAt:       insp.UpdatedAt,
		Version:         insp.Version,
	}
	var err error
	if row.Report, err = nullJSON(insp.Report); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	if row.OfficeResponse, err = nullJSON(insp.OfficeResponse); err != nil {
		return nil, fmt.Errorf("encode office response: %w", err)
	}
	if row.GovtReview, err = nullJSON(insp.GovtReview); err != nil {
		return nil, fmt.Errorf("encode govt review: %w", err)
	}
	if row.HeadmasterApproval, err = nullJSON(insp.HeadmasterApproval); err != nil {
		return nil, fmt.Errorf("encode headmaster approval: %w", err)
	}
	if row.AdminOverride, err = nullJSON(insp.AdminOverride); err != nil {
		return nil, fmt.Errorf("encode admin override: %w", err)
	}
	if row.ResponderOverride, err = nullJSON(insp.ResponderOverride); err != nil {
		return nil, fmt.Errorf("encode responder override: %w", err)
	}
	return row, nil
}

func (row *inspectionRow) model() (*models.Inspection, error) {
	insp := &models.Inspection{
		ID:              row.ID,
		TaskName:        row.TaskName,
		TaskDescription: row.TaskDescription,
		OfficeID:        row.OfficeID,
		SchoolID:        row.SchoolID,
		TeamID:          row.TeamID,
		TemplateID:      row.TemplateID,
		AssignedDate:    row.AssignedDate,
		DueDate:         row.DueDate,
		Priority:        models.Priority(row.Priority),
		Status:          models.InspectionStatus(row.Status),
		CreatedBy:       row.CreatedBy,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
		Version:         row.Version,
	}
	var err error
	if insp.Report, err = decodeJSON[models.Report]("report", row.Report); err != nil {
		return nil, err
	}
	if insp.OfficeResponse, err = decodeJSON[models.OfficeResponse]("office_response", row.OfficeResponse); err != nil {
		return nil, err
	}
	if insp.GovtReview, err = decodeJSON[models.GovtReview]("govt_review", row.GovtReview); err != nil {
		return nil, err
	}
	if insp.HeadmasterApproval, err = decodeJSON[models.HeadmasterApproval]("headmaster_approval", row.HeadmasterApproval); err != nil {
		return nil, err
	}
	if insp.AdminOverride, err = decodeJSON[models.StatusOverride]("admin_override", row.AdminOverride); err != nil {
		return nil, err
	}
	if insp.ResponderOverride, err = decodeJSON[models.StatusOverride]("responder_override", row.ResponderOverride); err != nil {
		return nil, err
	}
	return insp, nil
}

func inspectionModels(rows []inspectionRow) ([]models.Inspection, error) {
	out := make([]models.Inspection, 0, len(rows))
	for i := range rows {
		insp, err := rows[i].model()
		if err != nil {
			return nil, err
		}
		out = append(out, *insp)
	}
	return out, nil
}

// InspectionRepository persists inspections with their embedded workflow records.
type InspectionRepository struct {
	db *sqlx.DB
}

// NewInspectionRepository constructs the repository.
func NewInspectionRepository(db *sqlx.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

func (r *InspectionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a new inspection at version 1.
func (r *InspectionRepository) Create(ctx context.Context, exec sqlx.ExtContext, insp *models.Inspection) error {
	if insp.ID == "" {
		insp.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if insp.CreatedAt.IsZero() {
		insp.CreatedAt = now
	}
	if insp.UpdatedAt.IsZero() {
		insp.UpdatedAt = insp.CreatedAt
	}
	insp.Version = 1
	row, err := newInspectionRow(insp)
	if err != nil {
		return err
	}
	const query = `INSERT INTO inspections (` + inspectionColumns + `)
	VALUES (:id, :task_name, :task_description, :office_id, :school_id, :team_id, :template_id,
	:assigned_date, :due_date, :priority, :status, :report, :office_response, :govt_review, :headmaster_approval,
	:admin_override, :responder_override, :created_by, :created_at, :updated_at, :version)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, row); err != nil {
		return fmt.Errorf("create inspection: %w", err)
	}
	return nil
}

// FindByID loads one inspection.
func (r *InspectionRepository) FindByID(ctx context.Context, id string) (*models.Inspection, error) {
	const query = `SELECT ` + inspectionColumns + ` FROM inspections WHERE id = $1`
	var row inspectionRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return row.model()
}

// Update writes every mutable column when the stored version still matches
// insp.Version, then bumps the in-memory version. A stale version yields
// sql.ErrNoRows.
func (r *InspectionRepository) Update(ctx context.Context, exec sqlx.ExtContext, insp *models.Inspection) error {
	row, err := newInspectionRow(insp)
	if err != nil {
		return err
	}
	const query = `UPDATE inspections SET
	task_name = :task_name,
	task_description = :task_description,
	office_id = :office_id,
	school_id = :school_id,
	team_id = :team_id,
	template_id = :template_id,
	assigned_date = :assigned_date,
	due_date = :due_date,
	priority = :priority,
	status = :status,
	report = :report,
	office_response = :office_response,
	govt_review = :govt_review,
	headmaster_approval = :headmaster_approval,
	admin_override = :admin_override,
	responder_override = :responder_override,
	updated_at = :updated_at,
	version = version + 1
	WHERE id = :id AND version = :version`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, row)
	if err != nil {
		return fmt.Errorf("update inspection: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("inspection update rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	insp.Version++
	return nil
}

// Delete removes an inspection permanently.
func (r *InspectionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM inspections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete inspection: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("inspection delete rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns one page of inspections plus the total match count.
func (r *InspectionRepository) List(ctx context.Context, filter models.InspectionFilter) ([]models.Inspection, int, error) {
	conditions := make([]string, 0, 8)
	args := make([]interface{}, 0, 10)

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, string(status))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	equals := []struct {
		column string
		value  string
	}{
		{"school_id", filter.SchoolID},
		{"office_id", filter.OfficeID},
		{"team_id", filter.TeamID},
		{"template_id", filter.TemplateID},
		{"priority", string(filter.Priority)},
	}
	for _, eq := range equals {
		if eq.value == "" {
			continue
		}
		args = append(args, eq.value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", eq.column, len(args)))
	}
	if filter.AssignedFrom != nil {
		args = append(args, *filter.AssignedFrom)
		conditions = append(conditions, fmt.Sprintf("assigned_date >= $%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		conditions = append(conditions, fmt.Sprintf("assigned_date <= $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		conditions = append(conditions, fmt.Sprintf("task_name ILIKE $%d", len(args)))
	}
	where := whereClause(conditions)

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM inspections"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count inspections: %w", err)
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM inspections%s ORDER BY assigned_date DESC, id LIMIT %d OFFSET %d", inspectionColumns, where, limit, offset)
	var rows []inspectionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list inspections: %w", err)
	}
	inspections, err := inspectionModels(rows)
	if err != nil {
		return nil, 0, err
	}
	return inspections, total, nil
}

// ListAll scans every inspection, optionally restricted to one office.
func (r *InspectionRepository) ListAll(ctx context.Context, officeID string) ([]models.Inspection, error) {
	query := `SELECT ` + inspectionColumns + ` FROM inspections`
	args := []interface{}{}
	if officeID != "" {
		query += ` WHERE office_id = $1`
		args = append(args, officeID)
	}
	query += ` ORDER BY assigned_date`
	var rows []inspectionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("scan inspections: %w", err)
	}
	return inspectionModels(rows)
}

// CountAssignedSince counts inspections per team with assigned_date >= since.
// Teams without any assignment are absent from the result.
func (r *InspectionRepository) CountAssignedSince(ctx context.Context, teamIDs []string, since time.Time) (map[string]int, error) {
	counts := make(map[string]int, len(teamIDs))
	if len(teamIDs) == 0 {
		return counts, nil
	}
	const query = `SELECT team_id, COUNT(*) AS total FROM inspections
	WHERE team_id = ANY($1) AND assigned_date >= $2 GROUP BY team_id`
	var rows []struct {
		TeamID string `db:"team_id"`
		Total  int    `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(teamIDs), since); err != nil {
		return nil, fmt.Errorf("count team workload: %w", err)
	}
	for _, row := range rows {
		counts[row.TeamID] = row.Total
	}
	return counts, nil
}

// CountByTeamStatus counts inspections of a team in one status.
func (r *InspectionRepository) CountByTeamStatus(ctx context.Context, teamID string, status models.InspectionStatus) (int, error) {
	var total int
	const query = `SELECT COUNT(*) FROM inspections WHERE team_id = $1 AND status = $2`
	if err := r.db.GetContext(ctx, &total, query, teamID, string(status)); err != nil {
		return 0, fmt.Errorf("count team inspections: %w", err)
	}
	return total, nil
}

// CountByTemplateStatus counts inspections using a template in one status.
func (r *InspectionRepository) CountByTemplateStatus(ctx context.Context, templateID string, status models.InspectionStatus) (int, error) {
	var total int
	const query = `SELECT COUNT(*) FROM inspections WHERE template_id = $1 AND status = $2`
	if err := r.db.GetContext(ctx, &total, query, templateID, string(status)); err != nil {
		return 0, fmt.Errorf("count template inspections: %w", err)
	}
	return total, nil
}

// Workload aggregates assignment counts for every active team of a school.
func (r *InspectionRepository) Workload(ctx context.Context, schoolID string) ([]models.TeamWorkload, error) {
	const query = `SELECT t.id AS team_id, t.name AS team_name,
	COUNT(i.id) AS total_assigned,
	COUNT(i.id) FILTER (WHERE i.status = 'assigned') AS pending,
	COUNT(i.id) FILTER (WHERE i.status IN ('submitted', 'responded', 'closed')) AS completed
	FROM teams t LEFT JOIN inspections i ON i.team_id = t.id
	WHERE t.school_id = $1 AND t.is_active
	GROUP BY t.id, t.name ORDER BY t.name`
	var stats []models.TeamWorkload
	if err := r.db.SelectContext(ctx, &stats, query, schoolID); err != nil {
		return nil, fmt.Errorf("team workload: %w", err)
	}
	return stats, nil
}
