package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/civica-api/internal/models"
	"github.com/noah-isme/civica-api/internal/workflow"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
)

type assignmentTeamLister interface {
	ListBySchool(ctx context.Context, schoolID string, activeOnly bool) ([]models.Team, error)
}

type assignmentCounter interface {
	CountAssignedSince(ctx context.Context, teamIDs []string, since time.Time) (map[string]int, error)
}

// AssignmentService picks the least loaded team of a school for a new inspection.
type AssignmentService struct {
	teams  assignmentTeamLister
	counts assignmentCounter
	window time.Duration
	picker workflow.Picker
	now    func() time.Time
	logger *zap.Logger
}

// NewAssignmentService constructs the selector. A zero window defaults to 30 days.
func NewAssignmentService(teams assignmentTeamLister, counts assignmentCounter, window time.Duration, picker workflow.Picker, logger *zap.Logger) *AssignmentService {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	if picker == nil {
		picker = workflow.DefaultPicker
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{teams: teams, counts: counts, window: window, picker: picker, now: time.Now, logger: logger}
}

// SelectTeam returns the id of the team that should receive the next
// inspection of the school.
func (s *AssignmentService) SelectTeam(ctx context.Context, schoolID string) (string, error) {
	teams, err := s.teams.ListBySchool(ctx, schoolID, true)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teams")
	}
	switch len(teams) {
	case 0:
		return "", appErrors.Clone(appErrors.ErrNotFound, "no active teams for school")
	case 1:
		return teams[0].ID, nil
	}

	ids := make([]string, len(teams))
	for i, team := range teams {
		ids[i] = team.ID
	}
	counts, err := s.counts.CountAssignedSince(ctx, ids, s.now().Add(-s.window))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team workload")
	}
	loads := make([]workflow.TeamLoad, len(ids))
	for i, id := range ids {
		loads[i] = workflow.TeamLoad{TeamID: id, Workload: counts[id]}
	}
	teamID, err := workflow.SelectTeam(loads, s.picker)
	if err != nil {
		return "", err
	}
	s.logger.Debug("team selected",
		zap.String("school_id", schoolID),
		zap.String("team_id", teamID),
		zap.Float64("threshold", workflow.FairnessThreshold(loads)),
	)
	return teamID, nil
}
