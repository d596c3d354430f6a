package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civica-api/internal/models"
	"github.com/noah-isme/civica-api/internal/workflow"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
)

type assignmentTeamsStub struct {
	teams []models.Team
}

func (s assignmentTeamsStub) ListBySchool(ctx context.Context, schoolID string, activeOnly bool) ([]models.Team, error) {
	return s.teams, nil
}

type assignmentCounterStub struct {
	counts map[string]int
	since  time.Time
	calls  int
}

func (s *assignmentCounterStub) CountAssignedSince(ctx context.Context, teamIDs []string, since time.Time) (map[string]int, error) {
	s.calls++
	s.since = since
	return s.counts, nil
}

func TestAssignmentServicePrefersUnderloadedTeams(t *testing.T) {
	teams := assignmentTeamsStub{teams: []models.Team{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	counter := &assignmentCounterStub{counts: map[string]int{"a": 5, "b": 1}}
	var offered int
	picker := workflow.PickerFunc(func(n int) int {
		offered = n
		return n - 1
	})
	svc := NewAssignmentService(teams, counter, 0, picker, nil)
	fixed := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	teamID, err := svc.SelectTeam(context.Background(), "school-1")
	require.NoError(t, err)
	// mean 2 -> threshold 3, so only b and c qualify
	assert.Equal(t, 2, offered)
	assert.Equal(t, "c", teamID)
	assert.Equal(t, fixed.Add(-30*24*time.Hour), counter.since)
}

func TestAssignmentServiceSingleTeamShortCircuits(t *testing.T) {
	counter := &assignmentCounterStub{}
	svc := NewAssignmentService(assignmentTeamsStub{teams: []models.Team{{ID: "solo"}}}, counter, time.Hour, nil, nil)

	teamID, err := svc.SelectTeam(context.Background(), "school-1")
	require.NoError(t, err)
	assert.Equal(t, "solo", teamID)
	assert.Zero(t, counter.calls)
}

func TestAssignmentServiceNoTeams(t *testing.T) {
	svc := NewAssignmentService(assignmentTeamsStub{}, &assignmentCounterStub{}, time.Hour, nil, nil)
	_, err := svc.SelectTeam(context.Background(), "school-1")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}
