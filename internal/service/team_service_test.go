package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civica-api/internal/dto"
	"github.com/noah-isme/civica-api/internal/models"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
)

type teamStoreStub struct {
	teams      map[string]*models.Team
	nameTaken  bool
	activeSets map[string]bool
}

func (s *teamStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, team *models.Team) error {
	team.ID = "team-new"
	s.teams[team.ID] = team
	return nil
}

func (s *teamStoreStub) Update(ctx context.Context, exec sqlx.ExtContext, team *models.Team) error {
	s.teams[team.ID] = team
	return nil
}

func (s *teamStoreStub) FindByID(ctx context.Context, id string) (*models.Team, error) {
	team, ok := s.teams[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *team
	copied.StudentIDs = append([]string(nil), team.StudentIDs...)
	return &copied, nil
}

func (s *teamStoreStub) ListBySchool(ctx context.Context, schoolID string, activeOnly bool) ([]models.Team, error) {
	return nil, nil
}

func (s *teamStoreStub) ExistsActiveName(ctx context.Context, schoolID, name, excludeID string) (bool, error) {
	return s.nameTaken, nil
}

func (s *teamStoreStub) SetActive(ctx context.Context, exec sqlx.ExtContext, id string, active bool) error {
	s.activeSets[id] = active
	return nil
}

type memberStoreStub struct {
	users    []models.User
	assigned map[string][]string
	cleared  map[string][]string
}

func (s *memberStoreStub) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	var out []models.User
	for _, user := range s.users {
		if containsString(ids, user.ID) {
			out = append(out, user)
		}
	}
	return out, nil
}

func (s *memberStoreStub) AssignTeam(ctx context.Context, exec sqlx.ExecerContext, teamID string, userIDs []string) error {
	s.assigned[teamID] = userIDs
	return nil
}

func (s *memberStoreStub) ClearTeam(ctx context.Context, exec sqlx.ExecerContext, teamID string, keep []string) error {
	if keep == nil {
		keep = []string{}
	}
	s.cleared[teamID] = keep
	return nil
}

type teamCounterStub struct {
	assigned int
	workload []models.TeamWorkload
}

func (s teamCounterStub) CountByTeamStatus(ctx context.Context, teamID string, status models.InspectionStatus) (int, error) {
	return s.assigned, nil
}

func (s teamCounterStub) Workload(ctx context.Context, schoolID string) ([]models.TeamWorkload, error) {
	return s.workload, nil
}

func student(id, schoolID string) models.User {
	return models.User{ID: id, Role: models.RoleStudent, SchoolID: &schoolID}
}

func teamMember(id, schoolID, teamID string) models.User {
	user := student(id, schoolID)
	user.TeamID = &teamID
	return user
}

func newTeamFixture(t *testing.T, counter teamCounterStub) (*TeamService, *teamStoreStub, *memberStoreStub) {
	t.Helper()
	provider, mock := newTxProviderMock(t)
	for i := 0; i < 4; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
	teams := &teamStoreStub{
		teams: map[string]*models.Team{
			"team-1": {ID: "team-1", Name: "Alpha", SchoolID: "school-1", StudentIDs: []string{"stu-1", "stu-2"}, TeamLeaderID: "stu-1", Active: true},
		},
		activeSets: map[string]bool{},
	}
	members := &memberStoreStub{
		users: []models.User{
			teamMember("stu-1", "school-1", "team-1"),
			teamMember("stu-2", "school-1", "team-1"),
			student("stu-3", "school-1"),
			student("stu-4", "school-1"),
		},
		assigned: map[string][]string{},
		cleared:  map[string][]string{},
	}
	schools := schoolLookupFunc(func(id string) (*models.School, error) {
		if id == "school-1" {
			return &models.School{ID: id, Active: true}, nil
		}
		return nil, sql.ErrNoRows
	})
	return NewTeamService(teams, members, schools, counter, provider, nil, nil), teams, members
}

func TestTeamServiceCreateAssignsMembers(t *testing.T) {
	svc, _, members := newTeamFixture(t, teamCounterStub{})

	team, err := svc.Create(context.Background(), headActor, dto.TeamRequest{
		Name:         " Bravo ",
		SchoolID:     "school-1",
		StudentIDs:   []string{"stu-3", "stu-4", "stu-3"},
		TeamLeaderID: "stu-4",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bravo", team.Name)
	assert.True(t, team.Active)
	assert.Equal(t, []string{"stu-3", "stu-4"}, team.StudentIDs)
	assert.Equal(t, []string{"stu-3", "stu-4"}, members.assigned["team-new"])
}

func TestTeamServiceRejectsStudentsOfAnotherTeam(t *testing.T) {
	svc, teams, members := newTeamFixture(t, teamCounterStub{})

	_, err := svc.Create(context.Background(), adminActor, dto.TeamRequest{
		Name: "Bravo", SchoolID: "school-1", StudentIDs: []string{"stu-1", "stu-3"}, TeamLeaderID: "stu-3",
	})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))
	assert.NotContains(t, teams.teams, "team-new")
	assert.Empty(t, members.assigned)
	assert.Equal(t, []string{"stu-1", "stu-2"}, teams.teams["team-1"].StudentIDs)

	teams.teams["team-2"] = &models.Team{ID: "team-2", Name: "Delta", SchoolID: "school-1", StudentIDs: []string{"stu-3"}, TeamLeaderID: "stu-3", Active: true}
	members.users[2] = teamMember("stu-3", "school-1", "team-2")
	_, err = svc.Update(context.Background(), adminActor, "team-1", dto.TeamRequest{
		Name: "Alpha", SchoolID: "school-1", StudentIDs: []string{"stu-1", "stu-3"}, TeamLeaderID: "stu-1",
	})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))
}

func TestTeamServiceActivateRefusedWhenMemberMoved(t *testing.T) {
	svc, teams, members := newTeamFixture(t, teamCounterStub{})

	require.NoError(t, svc.Deactivate(context.Background(), adminActor, "team-1"))
	members.users[0] = student("stu-1", "school-1")
	members.users[1] = teamMember("stu-2", "school-1", "team-2")

	err := svc.Activate(context.Background(), adminActor, "team-1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))
	assert.Equal(t, false, teams.activeSets["team-1"])
	assert.NotContains(t, members.assigned, "team-1")
}

func TestTeamServiceCreateValidatesMembers(t *testing.T) {
	svc, teams, members := newTeamFixture(t, teamCounterStub{})

	_, err := svc.Create(context.Background(), adminActor, dto.TeamRequest{
		Name: "Bravo", SchoolID: "school-1", StudentIDs: []string{"stu-1"}, TeamLeaderID: "stu-9",
	})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	members.users = []models.User{student("stu-1", "school-2")}
	_, err = svc.Create(context.Background(), adminActor, dto.TeamRequest{
		Name: "Bravo", SchoolID: "school-1", StudentIDs: []string{"stu-1"}, TeamLeaderID: "stu-1",
	})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	members.users = []models.User{student("stu-1", "school-1")}
	teams.nameTaken = true
	_, err = svc.Create(context.Background(), adminActor, dto.TeamRequest{
		Name: "Alpha", SchoolID: "school-1", StudentIDs: []string{"stu-1"}, TeamLeaderID: "stu-1",
	})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))

	_, err = svc.Create(context.Background(), headActor, dto.TeamRequest{
		Name: "Gamma", SchoolID: "school-2", StudentIDs: []string{"stu-1"}, TeamLeaderID: "stu-1",
	})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))
}

func TestTeamServiceUpdateSyncsBackReferences(t *testing.T) {
	svc, _, members := newTeamFixture(t, teamCounterStub{})

	team, err := svc.Update(context.Background(), headActor, "team-1", dto.TeamRequest{
		Name: "Alpha", SchoolID: "school-1", StudentIDs: []string{"stu-1", "stu-3"}, TeamLeaderID: "stu-1",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"stu-1", "stu-3"}, team.StudentIDs)
	assert.Equal(t, []string{"stu-1", "stu-3"}, members.cleared["team-1"])
	assert.Equal(t, []string{"stu-1", "stu-3"}, members.assigned["team-1"])
}

func TestTeamServiceDeactivateRefusedWithAssignedWork(t *testing.T) {
	svc, teams, _ := newTeamFixture(t, teamCounterStub{assigned: 2})

	err := svc.Deactivate(context.Background(), adminActor, "team-1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))
	assert.Empty(t, teams.activeSets)
}

func TestTeamServiceDeactivateAndActivate(t *testing.T) {
	svc, teams, members := newTeamFixture(t, teamCounterStub{})

	require.NoError(t, svc.Deactivate(context.Background(), adminActor, "team-1"))
	assert.Equal(t, false, teams.activeSets["team-1"])
	assert.Equal(t, []string{}, members.cleared["team-1"])

	require.NoError(t, svc.Activate(context.Background(), adminActor, "team-1"))
	assert.Equal(t, true, teams.activeSets["team-1"])
	assert.Equal(t, []string{"stu-1", "stu-2"}, members.assigned["team-1"])
}

func TestTeamServiceWorkloadCompletionRate(t *testing.T) {
	svc, _, _ := newTeamFixture(t, teamCounterStub{workload: []models.TeamWorkload{
		{TeamID: "team-1", TotalAssigned: 3, Completed: 2, Pending: 1},
		{TeamID: "team-2"},
	}})

	stats, err := svc.Workload(context.Background(), "school-1")
	require.NoError(t, err)
	assert.Equal(t, 66.7, stats[0].CompletionRate)
	assert.Zero(t, stats[1].CompletionRate)
}
