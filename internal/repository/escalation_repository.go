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

const escalationColumns = `id, inspection_id, office_id, escalation_reason, action_items, description, severity,
	escalated_by, escalated_at, status, follow_ups, resolution_notes, resolved_at, resolved_by,
	re_escalated_to, re_escalation_reason, created_at, updated_at, version`

type escalationRow struct {
	ID                 string         `db:"id"`
	InspectionID       string         `db:"inspection_id"`
	OfficeID           string         `db:"office_id"`
	EscalationReason   string         `db:"escalation_reason"`
	ActionItems        pq.StringArray `db:"action_items"`
	Description        *string        `db:"description"`
	Severity           string         `db:"severity"`
	EscalatedBy        string         `db:"escalated_by"`
	EscalatedAt        time.Time      `db:"escalated_at"`
	Status             string         `db:"status"`
	FollowUps          types.JSONText `db:"follow_ups"`
	ResolutionNotes    *string        `db:"resolution_notes"`
	ResolvedAt         *time.Time     `db:"resolved_at"`
	ResolvedBy         *string        `db:"resolved_by"`
	ReEscalatedTo      *string        `db:"re_escalated_to"`
	ReEscalationReason *string        `db:"re_escalation_reason"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
	Version            int            `db:"version"`
}

func newEscalationRow(esc *models.Escalation) (*escalationRow, error) {
	followUps, err := jsonList(esc.FollowUps)
	if err != nil {
		return nil, fmt.Errorf("encode follow ups: %w", err)
	}
	items := esc.ActionItems
	if items == nil {
		items = []string{}
	}
	return &escalationRow{
		ID:                 esc.ID,
		InspectionID:       esc.InspectionID,
		OfficeID:           esc.OfficeID,
		EscalationReason:   esc.EscalationReason,
		ActionItems:        pq.StringArray(items),
		Description:        esc.Description,
		Severity:           string(esc.Severity),
		EscalatedBy:        esc.EscalatedBy,
		EscalatedAt:        esc.EscalatedAt,
		Status:             string(esc.Status),
		FollowUps:          followUps,
		ResolutionNotes:    esc.ResolutionNotes,
		ResolvedAt:         esc.ResolvedAt,
		ResolvedBy:         esc.ResolvedBy,
		ReEscalatedTo:      esc.ReEscalatedTo,
		ReEscalationReason: esc.ReEscalationReason,
		CreatedAt:          esc.CreatedAt,
		UpdatedAt:          esc.UpdatedAt,
		Version:            esc.Version,
	}, nil
}

func (row *escalationRow) model() (*models.Escalation, error) {
	followUps, err := decodeList[models.FollowUp]("follow_ups", row.FollowUps)
	if err != nil {
		return nil, err
	}
	return &models.Escalation{
		ID:                 row.ID,
		InspectionID:       row.InspectionID,
		OfficeID:           row.OfficeID,
		EscalationReason:   row.EscalationReason,
		ActionItems:        append([]string{}, row.ActionItems...),
		Description:        row.Description,
		Severity:           models.Severity(row.Severity),
		EscalatedBy:        row.EscalatedBy,
		EscalatedAt:        row.EscalatedAt,
		Status:             models.EscalationStatus(row.Status),
		FollowUps:          followUps,
		ResolutionNotes:    row.ResolutionNotes,
		ResolvedAt:         row.ResolvedAt,
		ResolvedBy:         row.ResolvedBy,
		ReEscalatedTo:      row.ReEscalatedTo,
		ReEscalationReason: row.ReEscalationReason,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
		Version:            row.Version,
	}, nil
}

// EscalationRepository persists escalations and their follow-up trail.
type EscalationRepository struct {
	db *sqlx.DB
}

// NewEscalationRepository constructs the repository.
func NewEscalationRepository(db *sqlx.DB) *EscalationRepository {
	return &EscalationRepository{db: db}
}

func (r *EscalationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts an escalation at version 1.
func (r *EscalationRepository) Create(ctx context.Context, exec sqlx.ExtContext, esc *models.Escalation) error {
	if esc.ID == "" {
		esc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if esc.CreatedAt.IsZero() {
		esc.CreatedAt = now
	}
	if esc.UpdatedAt.IsZero() {
		esc.UpdatedAt = esc.CreatedAt
	}
	esc.Version = 1
	row, err := newEscalationRow(esc)
	if err != nil {
		return err
	}
	const query = `INSERT INTO escalations (` + escalationColumns + `)
	VALUES (:id, :inspection_id, :office_id, :escalation_reason, :action_items, :description, :severity,
	:escalated_by, :escalated_at, :status, :follow_ups, :resolution_notes, :resolved_at, :resolved_by,
	:re_escalated_to, :re_escalation_reason, :created_at, :updated_at, :version)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, row); err != nil {
		return fmt.Errorf("create escalation: %w", err)
	}
	return nil
}

// FindByID loads one escalation.
func (r *EscalationRepository) FindByID(ctx context.Context, id string) (*models.Escalation, error) {
	const query = `SELECT ` + escalationColumns + ` FROM escalations WHERE id = $1`
	var row escalationRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return row.model()
}

// FindUnresolvedByInspection returns the inspection's open escalation or
// sql.ErrNoRows.
func (r *EscalationRepository) FindUnresolvedByInspection(ctx context.Context, inspectionID string) (*models.Escalation, error) {
	const query = `SELECT ` + escalationColumns + ` FROM escalations WHERE inspection_id = $1 AND status <> 'resolved'
	ORDER BY created_at DESC LIMIT 1`
	var row escalationRow
	if err := r.db.GetContext(ctx, &row, query, inspectionID); err != nil {
		return nil, err
	}
	return row.model()
}

// Update persists a version-checked change. A stale version yields sql.ErrNoRows.
func (r *EscalationRepository) Update(ctx context.Context, exec sqlx.ExtContext, esc *models.Escalation) error {
	row, err := newEscalationRow(esc)
	if err != nil {
		return err
	}
	const query = `UPDATE escalations SET
	severity = :severity,
	status = :status,
	follow_ups = :follow_ups,
	resolution_notes = :resolution_notes,
	resolved_at = :resolved_at,
	resolved_by = :resolved_by,
	re_escalated_to = :re_escalated_to,
	re_escalation_reason = :re_escalation_reason,
	updated_at = :updated_at,
	version = version + 1
	WHERE id = :id AND version = :version`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, row)
	if err != nil {
		return fmt.Errorf("update escalation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("escalation update rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	esc.Version++
	return nil
}

const severityRank = `CASE severity WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END`

var escalationOrder = map[string]string{
	"date_asc":  "escalated_at ASC",
	"date_desc": "escalated_at DESC",
	"severity":  severityRank + ", escalated_at DESC",
}

// List returns one page of escalations and the total match count.
func (r *EscalationRepository) List(ctx context.Context, filter models.EscalationFilter) ([]models.Escalation, int, error) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 6)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, string(status))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.OfficeID != "" {
		args = append(args, filter.OfficeID)
		conditions = append(conditions, fmt.Sprintf("office_id = $%d", len(args)))
	}
	if filter.Severity != "" {
		args = append(args, string(filter.Severity))
		conditions = append(conditions, fmt.Sprintf("severity = $%d", len(args)))
	}
	if reason := strings.TrimSpace(filter.Reason); reason != "" {
		args = append(args, "%"+reason+"%")
		conditions = append(conditions, fmt.Sprintf("escalation_reason ILIKE $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("escalated_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("escalated_at <= $%d", len(args)))
	}
	where := whereClause(conditions)

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM escalations"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count escalations: %w", err)
	}

	order, ok := escalationOrder[filter.SortBy]
	if !ok {
		order = escalationOrder["date_desc"]
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM escalations%s ORDER BY %s LIMIT %d OFFSET %d", escalationColumns, where, order, limit, offset)
	var rows []escalationRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list escalations: %w", err)
	}
	out := make([]models.Escalation, 0, len(rows))
	for i := range rows {
		esc, err := rows[i].model()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *esc)
	}
	return out, total, nil
}

// CountByStatus tallies escalations per status.
func (r *EscalationRepository) CountByStatus(ctx context.Context) (map[models.EscalationStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Total  int    `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS total FROM escalations GROUP BY status`); err != nil {
		return nil, fmt.Errorf("count escalations by status: %w", err)
	}
	counts := make(map[models.EscalationStatus]int, len(rows))
	for _, row := range rows {
		counts[models.EscalationStatus(row.Status)] = row.Total
	}
	return counts, nil
}
