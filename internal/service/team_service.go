package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/civica-api/internal/dto"
	"github.com/noah-isme/civica-api/internal/models"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
)

type teamStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, team *models.Team) error
	Update(ctx context.Context, exec sqlx.ExtContext, team *models.Team) error
	FindByID(ctx context.Context, id string) (*models.Team, error)
	ListBySchool(ctx context.Context, schoolID string, activeOnly bool) ([]models.Team, error)
	ExistsActiveName(ctx context.Context, schoolID, name, excludeID string) (bool, error)
	SetActive(ctx context.Context, exec sqlx.ExtContext, id string, active bool) error
}

type teamMemberStore interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	AssignTeam(ctx context.Context, exec sqlx.ExecerContext, teamID string, userIDs []string) error
	ClearTeam(ctx context.Context, exec sqlx.ExecerContext, teamID string, keep []string) error
}

type teamInspectionCounter interface {
	CountByTeamStatus(ctx context.Context, teamID string, status models.InspectionStatus) (int, error)
	Workload(ctx context.Context, schoolID string) ([]models.TeamWorkload, error)
}

// TeamService manages student teams and keeps member back-references in sync.
type TeamService struct {
	repo        teamStore
	members     teamMemberStore
	schools     schoolFinder
	inspections teamInspectionCounter
	tx          txProvider
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewTeamService constructs a TeamService.
func NewTeamService(repo teamStore, members teamMemberStore, schools schoolFinder, inspections teamInspectionCounter, tx txProvider, validate *validator.Validate, logger *zap.Logger) *TeamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeamService{
		repo:        repo,
		members:     members,
		schools:     schools,
		inspections: inspections,
		tx:          tx,
		validator:   validate,
		logger:      logger,
	}
}

// List returns the teams of a school.
func (s *TeamService) List(ctx context.Context, schoolID string, activeOnly bool) ([]models.Team, error) {
	teams, err := s.repo.ListBySchool(ctx, schoolID, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teams")
	}
	return teams, nil
}

// Get returns a team by id.
func (s *TeamService) Get(ctx context.Context, id string) (*models.Team, error) {
	team, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "team not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
	}
	return team, nil
}

// Create registers a team and points its members at it.
func (s *TeamService) Create(ctx context.Context, actor models.Actor, req dto.TeamRequest) (*models.Team, error) {
	team, err := s.prepare(ctx, actor, req, "")
	if err != nil {
		return nil, err
	}
	team.Active = true
	team.CreatedBy = actor.UserID

	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.repo.Create(ctx, tx, team); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create team")
		}
		if err := s.members.AssignTeam(ctx, tx, team.ID, team.StudentIDs); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign team members")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("team created", zap.String("team_id", team.ID), zap.String("school_id", team.SchoolID), zap.Int("members", len(team.StudentIDs)))
	return team, nil
}

// Update replaces name, members and leader. Removed members lose their
// back-reference and new members gain it.
func (s *TeamService) Update(ctx context.Context, actor models.Actor, id string, req dto.TeamRequest) (*models.Team, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.SchoolID != current.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a team cannot move to another school")
	}
	next, err := s.prepare(ctx, actor, req, id)
	if err != nil {
		return nil, err
	}
	current.Name = next.Name
	current.StudentIDs = next.StudentIDs
	current.TeamLeaderID = next.TeamLeaderID

	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.repo.Update(ctx, tx, current); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update team")
		}
		if !current.Active {
			return nil
		}
		return s.syncMembers(ctx, tx, current)
	})
	if err != nil {
		return nil, err
	}
	return current, nil
}

// Deactivate disables a team without assigned work and clears member back-references.
func (s *TeamService) Deactivate(ctx context.Context, actor models.Actor, id string) error {
	team, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ensureSchoolScope(actor, team.SchoolID); err != nil {
		return err
	}
	pending, err := s.inspections.CountByTeamStatus(ctx, id, models.InspectionStatusAssigned)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count team inspections")
	}
	if pending > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "team still has assigned inspections")
	}
	return withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.repo.SetActive(ctx, tx, id, false); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate team")
		}
		if err := s.members.ClearTeam(ctx, tx, id, nil); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear team members")
		}
		return nil
	})
}

// Activate re-enables a team and restores member back-references.
func (s *TeamService) Activate(ctx context.Context, actor models.Actor, id string) error {
	team, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ensureSchoolScope(actor, team.SchoolID); err != nil {
		return err
	}
	exists, err := s.repo.ExistsActiveName(ctx, team.SchoolID, team.Name, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check team name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "an active team with this name already exists")
	}
	users, err := s.members.FindByIDs(ctx, team.StudentIDs)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team members")
	}
	if err := ensureUnclaimed(users, id); err != nil {
		return err
	}
	return withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.repo.SetActive(ctx, tx, id, true); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate team")
		}
		if err := s.members.AssignTeam(ctx, tx, id, team.StudentIDs); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign team members")
		}
		return nil
	})
}

// Workload reports assignment totals and completion rate per active team.
func (s *TeamService) Workload(ctx context.Context, schoolID string) ([]models.TeamWorkload, error) {
	stats, err := s.inspections.Workload(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team workload")
	}
	for i := range stats {
		if stats[i].TotalAssigned > 0 {
			rate := float64(stats[i].Completed) / float64(stats[i].TotalAssigned) * 100
			stats[i].CompletionRate = math.Round(rate*10) / 10
		}
	}
	return stats, nil
}

func (s *TeamService) prepare(ctx context.Context, actor models.Actor, req dto.TeamRequest, excludeID string) (*models.Team, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid team payload")
	}
	if err := s.ensureSchoolScope(actor, req.SchoolID); err != nil {
		return nil, err
	}
	if _, err := s.schools.FindByID(ctx, req.SchoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}

	members := uniqueIDs(req.StudentIDs)
	leader := strings.TrimSpace(req.TeamLeaderID)
	if !containsString(members, leader) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "team leader must be a member of the team")
	}
	users, err := s.members.FindByIDs(ctx, members)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team members")
	}
	found := make(map[string]models.User, len(users))
	for _, user := range users {
		found[user.ID] = user
	}
	for _, id := range members {
		user, ok := found[id]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student "+id+" does not exist")
		}
		if user.Role != models.RoleStudent {
			return nil, appErrors.Clone(appErrors.ErrValidation, "user "+id+" is not a student")
		}
		if user.SchoolID == nil || *user.SchoolID != req.SchoolID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student "+id+" belongs to another school")
		}
	}
	if err := ensureUnclaimed(users, excludeID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	exists, err := s.repo.ExistsActiveName(ctx, req.SchoolID, name, excludeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check team name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an active team with this name already exists")
	}
	return &models.Team{
		Name:         name,
		SchoolID:     req.SchoolID,
		StudentIDs:   members,
		TeamLeaderID: leader,
	}, nil
}

func (s *TeamService) syncMembers(ctx context.Context, tx *sqlx.Tx, team *models.Team) error {
	if err := s.members.ClearTeam(ctx, tx, team.ID, team.StudentIDs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear team members")
	}
	if err := s.members.AssignTeam(ctx, tx, team.ID, team.StudentIDs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign team members")
	}
	return nil
}

// ensureUnclaimed rejects students already on an active team other than teamID.
// Deactivation clears back-references, so any other team id is live.
func ensureUnclaimed(users []models.User, teamID string) error {
	for _, user := range users {
		if user.TeamID != nil && *user.TeamID != "" && *user.TeamID != teamID {
			return appErrors.Clone(appErrors.ErrConflict, "student "+user.ID+" already belongs to another team")
		}
	}
	return nil
}

func (s *TeamService) ensureSchoolScope(actor models.Actor, schoolID string) error {
	if actor.Role == models.RoleHeadmaster && actor.SchoolID != schoolID {
		return appErrors.Clone(appErrors.ErrForbidden, "headmasters can only manage teams of their school")
	}
	return nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
