package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civica-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var inspectionRowColumns = []string{"id", "task_name", "task_description", "office_id", "school_id", "team_id", "template_id",
	"assigned_date", "due_date", "priority", "status", "report", "office_response", "govt_review", "headmaster_approval",
	"admin_override", "responder_override", "created_by", "created_at", "updated_at", "version"}

func TestInspectionRepositoryCreateAssignsIDAndVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewInspectionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO inspections")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	insp := &models.Inspection{
		TaskName: "Ration office visit",
		OfficeID: "office-1",
		SchoolID: "school-1",
		TeamID:   "team-1",
		Priority: models.PriorityMedium,
		Status:   models.InspectionStatusAssigned,
	}
	require.NoError(t, repo.Create(context.Background(), nil, insp))
	assert.NotEmpty(t, insp.ID)
	assert.Equal(t, 1, insp.Version)
	assert.False(t, insp.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionRepositoryFindByIDDecodesEmbeddedRecords(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(inspectionRowColumns).
		AddRow("insp-1", "Ration office visit", "", "office-1", "school-1", "team-1", "tpl-1",
			now, now.Add(72*time.Hour), "high", "submitted",
			[]byte(`{"cleanliness_rating":4,"staff_behavior_rating":3,"service_quality_rating":5,"photos":["a.jpg"],"submitted_by":"stu-1"}`),
			nil, nil, nil, nil, nil, "admin-1", now, now, 2)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, task_name")).
		WithArgs("insp-1").
		WillReturnRows(rows)

	repo := NewInspectionRepository(db)
	insp, err := repo.FindByID(context.Background(), "insp-1")
	require.NoError(t, err)
	assert.Equal(t, models.InspectionStatusSubmitted, insp.Status)
	assert.Equal(t, models.PriorityHigh, insp.Priority)
	require.NotNil(t, insp.Report)
	assert.Equal(t, 4, insp.Report.CleanlinessRating)
	assert.Equal(t, []string{"a.jpg"}, insp.Report.Photos)
	assert.Nil(t, insp.OfficeResponse)
	assert.Nil(t, insp.GovtReview)
	assert.Equal(t, 2, insp.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, task_name")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := NewInspectionRepository(db).FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestInspectionRepositoryUpdateChecksVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewInspectionRepository(db)
	insp := &models.Inspection{ID: "insp-1", Status: models.InspectionStatusResponded, Version: 3}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE inspections SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), nil, insp))
	assert.Equal(t, 4, insp.Version)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE inspections SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(context.Background(), nil, insp)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.Equal(t, 4, insp.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionRepositoryListBuildsFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM inspections WHERE status IN ($1,$2) AND office_id = $3 AND task_name ILIKE $4")).
		WithArgs("submitted", "responded", "office-1", "%ration%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	now := time.Now()
	rows := sqlmock.NewRows(inspectionRowColumns).
		AddRow("insp-1", "Ration office visit", "", "office-1", "school-1", "team-1", "tpl-1",
			now, now, "low", "submitted", nil, nil, nil, nil, nil, nil, "admin-1", now, now, 1)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY assigned_date DESC, id LIMIT 10 OFFSET 10")).
		WithArgs("submitted", "responded", "office-1", "%ration%").
		WillReturnRows(rows)

	list, total, err := NewInspectionRepository(db).List(context.Background(), models.InspectionFilter{
		Status:   []models.InspectionStatus{models.InspectionStatusSubmitted, models.InspectionStatusResponded},
		OfficeID: "office-1",
		Search:   " ration ",
		Page:     2,
		PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "insp-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionRepositoryCountAssignedSince(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	since := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE team_id = ANY($1) AND assigned_date >= $2")).
		WithArgs(pq.Array([]string{"A", "B", "C"}), since).
		WillReturnRows(sqlmock.NewRows([]string{"team_id", "total"}).AddRow("B", 3).AddRow("C", 3))

	counts, err := NewInspectionRepository(db).CountAssignedSince(context.Background(), []string{"A", "B", "C"}, since)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"B": 3, "C": 3}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectionRepositoryWorkload(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM teams t LEFT JOIN inspections i")).
		WithArgs("school-1").
		WillReturnRows(sqlmock.NewRows([]string{"team_id", "team_name", "total_assigned", "pending", "completed"}).
			AddRow("team-1", "Alpha", 4, 1, 3))

	stats, err := NewInspectionRepository(db).Workload(context.Background(), "school-1")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 3, stats[0].Completed)
	require.NoError(t, mock.ExpectationsWereMet())
}
