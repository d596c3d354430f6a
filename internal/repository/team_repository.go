package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/civica-api/internal/models"
)

const teamColumns = `id, name, school_id, student_ids, team_leader_id, is_active, created_by, created_at, updated_at`

type teamRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	SchoolID     string         `db:"school_id"`
	StudentIDs   pq.StringArray `db:"student_ids"`
	TeamLeaderID string         `db:"team_leader_id"`
	Active       bool           `db:"is_active"`
	CreatedBy    string         `db:"created_by"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func newTeamRow(team *models.Team) teamRow {
	members := team.StudentIDs
	if members == nil {
		members = []string{}
	}
	return teamRow{
		ID:           team.ID,
		Name:         team.Name,
		SchoolID:     team.SchoolID,
		StudentIDs:   pq.StringArray(members),
		TeamLeaderID: team.TeamLeaderID,
		Active:       team.Active,
		CreatedBy:    team.CreatedBy,
		CreatedAt:    team.CreatedAt,
		UpdatedAt:    team.UpdatedAt,
	}
}

func (row teamRow) model() models.Team {
	return models.Team{
		ID:           row.ID,
		Name:         row.Name,
		SchoolID:     row.SchoolID,
		StudentIDs:   append([]string{}, row.StudentIDs...),
		TeamLeaderID: row.TeamLeaderID,
		Active:       row.Active,
		CreatedBy:    row.CreatedBy,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

// TeamRepository persists student teams.
type TeamRepository struct {
	db *sqlx.DB
}

// NewTeamRepository constructs the repository.
func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a team.
func (r *TeamRepository) Create(ctx context.Context, exec sqlx.ExtContext, team *models.Team) error {
	if team.ID == "" {
		team.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	team.CreatedAt = now
	team.UpdatedAt = now
	const query = `INSERT INTO teams (` + teamColumns + `)
	VALUES (:id, :name, :school_id, :student_ids, :team_leader_id, :is_active, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, newTeamRow(team)); err != nil {
		return fmt.Errorf("create team: %w", err)
	}
	return nil
}

// Update rewrites the mutable team columns.
func (r *TeamRepository) Update(ctx context.Context, exec sqlx.ExtContext, team *models.Team) error {
	team.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teams SET name = :name, student_ids = :student_ids, team_leader_id = :team_leader_id,
	is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, newTeamRow(team)); err != nil {
		return fmt.Errorf("update team: %w", err)
	}
	return nil
}

// FindByID loads a team.
func (r *TeamRepository) FindByID(ctx context.Context, id string) (*models.Team, error) {
	var row teamRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, id); err != nil {
		return nil, err
	}
	team := row.model()
	return &team, nil
}

// ListBySchool returns the teams of a school, optionally only active ones.
func (r *TeamRepository) ListBySchool(ctx context.Context, schoolID string, activeOnly bool) ([]models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE school_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY name`
	var rows []teamRow
	if err := r.db.SelectContext(ctx, &rows, query, schoolID); err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	teams := make([]models.Team, 0, len(rows))
	for _, row := range rows {
		teams = append(teams, row.model())
	}
	return teams, nil
}

// ExistsActiveName reports whether another active team of the school uses name.
func (r *TeamRepository) ExistsActiveName(ctx context.Context, schoolID, name, excludeID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS(SELECT 1 FROM teams WHERE school_id = $1 AND LOWER(name) = LOWER($2) AND is_active AND id <> $3)`
	if err := r.db.GetContext(ctx, &exists, query, schoolID, strings.TrimSpace(name), excludeID); err != nil {
		return false, fmt.Errorf("check team name: %w", err)
	}
	return exists, nil
}

// SetActive toggles the active flag.
func (r *TeamRepository) SetActive(ctx context.Context, exec sqlx.ExtContext, id string, active bool) error {
	return setActive(ctx, r.exec(exec), "teams", id, active)
}
