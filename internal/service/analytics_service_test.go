package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civica-api/internal/models"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
	"github.com/noah-isme/civica-api/pkg/export"
)

type inspectionScannerStub struct {
	items []models.Inspection
	err   error
}

func (s *inspectionScannerStub) ListAll(ctx context.Context, officeID string) ([]models.Inspection, error) {
	if s.err != nil {
		return nil, s.err
	}
	if officeID == "" {
		return s.items, nil
	}
	var out []models.Inspection
	for _, insp := range s.items {
		if insp.OfficeID == officeID {
			out = append(out, insp)
		}
	}
	return out, nil
}

type officeDirectoryStub map[string]models.Office

func (d officeDirectoryStub) FindByID(ctx context.Context, id string) (*models.Office, error) {
	office, ok := d[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &office, nil
}

func (d officeDirectoryStub) List(ctx context.Context, filter models.DirectoryFilter) ([]models.Office, error) {
	out := make([]models.Office, 0, len(d))
	for _, office := range d {
		if filter.Active != nil && office.Active != *filter.Active {
			continue
		}
		out = append(out, office)
	}
	return out, nil
}

type escalationTallyStub map[models.EscalationStatus]int

func (t escalationTallyStub) CountByStatus(ctx context.Context) (map[models.EscalationStatus]int, error) {
	return t, nil
}

func rated(id, officeID string, status models.InspectionStatus, rating int, submitted time.Time, responseDays int) models.Inspection {
	insp := models.Inspection{
		ID:           id,
		TaskName:     "Visit " + id,
		OfficeID:     officeID,
		Status:       status,
		Priority:     models.PriorityMedium,
		AssignedDate: submitted.AddDate(0, 0, -2),
		Report: &models.Report{
			CleanlinessRating:    rating,
			StaffBehaviorRating:  rating,
			ServiceQualityRating: rating,
			SubmittedAt:          submitted,
		},
	}
	if responseDays >= 0 {
		insp.OfficeResponse = &models.OfficeResponse{RespondedAt: submitted.AddDate(0, 0, responseDays)}
	}
	return insp
}

func newAnalyticsFixture(items ...models.Inspection) *AnalyticsService {
	offices := officeDirectoryStub{
		"office-1": {ID: "office-1", Name: "District Hospital", Type: models.OfficeTypeHospital, Active: true},
		"office-2": {ID: "office-2", Name: "Ward Office", Type: models.OfficeTypeMunicipality, Active: true},
		"office-3": {ID: "office-3", Name: "Old Depot", Type: models.OfficeTypeOther, Active: false},
	}
	tally := escalationTallyStub{
		models.EscalationStatusOpen:        2,
		models.EscalationStatusReEscalated: 1,
		models.EscalationStatusResolved:    5,
	}
	svc := NewAnalyticsService(&inspectionScannerStub{items: items}, offices, tally, nil, 7, nil)
	svc.now = func() time.Time { return fixtureNow }
	return svc
}

func TestAnalyticsDashboardStats(t *testing.T) {
	base := fixtureNow.AddDate(0, 0, -20)
	svc := newAnalyticsFixture(
		rated("a", "office-1", models.InspectionStatusClosed, 4, base, 2),
		rated("b", "office-1", models.InspectionStatusResponded, 4, base, 10),
		rated("c", "office-2", models.InspectionStatusEscalated, 2, base, 3),
		rated("d", "office-2", models.InspectionStatusSubmitted, 3, base, -1),
		models.Inspection{ID: "e", OfficeID: "office-2", Status: models.InspectionStatusAssigned},
	)

	stats, err := svc.DashboardStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalInspections)
	assert.Equal(t, 3, stats.ActiveInspections)
	assert.Equal(t, 2, stats.PendingReviews)
	assert.Equal(t, 1, stats.Escalated)
	assert.Equal(t, 5.0, stats.AvgResponseTimeDays)
	assert.Equal(t, 66.7, stats.OnTimeComplianceRate)
	assert.Equal(t, 20.0, stats.ResolutionRate)
	assert.Equal(t, 20.0, stats.EscalationRate)
	assert.Equal(t, 3, stats.OpenEscalations)
}

func TestAnalyticsPriorityItems(t *testing.T) {
	overdue := rated("late", "office-1", models.InspectionStatusSubmitted, 4, fixtureNow.AddDate(0, 0, -12), -1)
	fresh := rated("fresh", "office-1", models.InspectionStatusSubmitted, 4, fixtureNow.AddDate(0, 0, -3), -1)
	critical := rated("crit", "office-2", models.InspectionStatusResponded, 2, fixtureNow.AddDate(0, 0, -5), 1)
	critical.Priority = models.PriorityHigh
	second := rated("crit-2", "office-2", models.InspectionStatusClosed, 1, fixtureNow.AddDate(0, 0, -9), 1)
	svc := newAnalyticsFixture(overdue, fresh, critical, second)

	items, err := svc.PriorityItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items.OverdueResponses, 1)
	assert.Equal(t, "late", items.OverdueResponses[0].InspectionID)
	assert.Equal(t, 5, items.OverdueResponses[0].DaysWaiting)
	require.Len(t, items.CriticalIssues, 1)
	assert.Equal(t, 2.0, items.CriticalIssues[0].AvgRating)
	require.Len(t, items.RepeatedViolations, 1)
	assert.Equal(t, "office-2", items.RepeatedViolations[0].OfficeID)
	assert.Equal(t, models.SeverityMedium, items.RepeatedViolations[0].Severity)
	assert.Equal(t, "crit", items.RepeatedViolations[0].Latest[0].InspectionID)
}

func TestAnalyticsViolationSeverity(t *testing.T) {
	var items []models.Inspection
	for i := 0; i < 5; i++ {
		items = append(items, rated(string(rune('a'+i)), "office-1", models.InspectionStatusClosed, 2, fixtureNow.AddDate(0, 0, -i), 1))
	}
	for i := 0; i < 3; i++ {
		items = append(items, rated(string(rune('p'+i)), "office-2", models.InspectionStatusClosed, 1, fixtureNow.AddDate(0, 0, -i), 1))
	}
	items = append(items, rated("ghost", "office-9", models.InspectionStatusClosed, 1, fixtureNow, 1), rated("ghost-2", "office-9", models.InspectionStatusClosed, 1, fixtureNow, 1))
	svc := newAnalyticsFixture(items...)

	violations, err := svc.Violations(context.Background())
	require.NoError(t, err)
	require.Len(t, violations, 2)
	assert.Equal(t, models.SeverityCritical, violations[0].Severity)
	assert.Equal(t, 5, violations[0].ViolationCount)
	assert.Equal(t, models.SeverityHigh, violations[1].Severity)
}

func TestAnalyticsSystemAnalytics(t *testing.T) {
	first := rated("a", "office-1", models.InspectionStatusClosed, 4, fixtureNow.AddDate(0, 0, -5), 2)
	first.Report.Issues = "Dirty floors and a rude clerk"
	second := rated("b", "office-2", models.InspectionStatusResponded, 2, fixtureNow.AddDate(0, 0, -5), 9)
	second.Report.Issues = "Long queue"
	old := rated("c", "office-2", models.InspectionStatusClosed, 5, fixtureNow.AddDate(0, 0, -90), 20)
	svc := newAnalyticsFixture(first, second, old)

	report, err := svc.SystemAnalytics(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 30, report.WindowDays)
	require.Len(t, report.InspectionsPerDay, 1)
	assert.Equal(t, 2, report.InspectionsPerDay[0].Count)
	assert.Equal(t, 2, report.StatusDistribution["closed"])
	assert.Equal(t, 1, report.ResponseTimeBuckets["0-3 days"])
	assert.Equal(t, 1, report.ResponseTimeBuckets["8-14 days"])
	assert.Equal(t, 1, report.ResponseTimeBuckets["15+ days"])
	assert.Equal(t, 1, report.IssueCategories["Cleanliness"])
	assert.Equal(t, 1, report.IssueCategories["Staff Behavior"])
	assert.Equal(t, 1, report.IssueCategories["Service Quality"])
	require.Len(t, report.RatingTrends, 1)
	assert.Equal(t, 3.0, report.RatingTrends[0].Cleanliness)
	require.Len(t, report.OfficeTypes, 2)
	assert.Equal(t, models.OfficeTypeHospital, report.OfficeTypes[0].OfficeType)
	assert.Equal(t, 100.0, report.OfficeTypes[0].OnTimeRate)
	assert.Equal(t, 0.0, report.OfficeTypes[1].OnTimeRate)

	_, err = svc.SystemAnalytics(context.Background(), 400)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestAnalyticsComplianceRanking(t *testing.T) {
	svc := newAnalyticsFixture(
		rated("a", "office-1", models.InspectionStatusClosed, 5, fixtureNow.AddDate(0, 0, -10), 1),
		rated("b", "office-2", models.InspectionStatusSubmitted, 2, fixtureNow.AddDate(0, 0, -10), -1),
	)

	scores, err := svc.AllOfficesCompliance(context.Background())
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "office-1", scores[0].OfficeID)
	assert.Equal(t, 100.0, scores[0].Score)
	assert.Equal(t, "District Hospital", scores[0].OfficeName)
	assert.Greater(t, scores[0].Score, scores[1].Score)

	single, err := svc.OfficeCompliance(context.Background(), officeActor, "office-1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, single.Score)

	_, err = svc.OfficeCompliance(context.Background(), officeActor, "office-2")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))

	_, err = svc.OfficeCompliance(context.Background(), adminActor, "missing")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestAnalyticsComplianceHistory(t *testing.T) {
	jan := rated("a", "office-1", models.InspectionStatusClosed, 5, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 1)
	feb := rated("b", "office-1", models.InspectionStatusSubmitted, 3, time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC), -1)
	ancient := rated("c", "office-1", models.InspectionStatusClosed, 5, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), 1)
	svc := newAnalyticsFixture(jan, feb, ancient)

	history, err := svc.ComplianceHistory(context.Background(), adminActor, "office-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2024-01", history[0].Month)
	assert.Equal(t, 100.0, history[0].Score)
	assert.Equal(t, "2024-02", history[1].Month)
	assert.Equal(t, 1, history[1].Total)
}

func TestAnalyticsExportCompliance(t *testing.T) {
	svc := newAnalyticsFixture(rated("a", "office-1", models.InspectionStatusClosed, 5, fixtureNow.AddDate(0, 0, -10), 1))

	body, filename, err := svc.ExportCompliance(context.Background(), export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "compliance-20240310.csv", filename)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Rank,Office,Type,Score"))
	assert.True(t, strings.HasPrefix(lines[1], "1,District Hospital,hospital,100.0"))
	assert.True(t, strings.HasPrefix(lines[2], "2,Ward Office,municipality,0.0,0"))
}

func TestAnalyticsScanFailureIsInternal(t *testing.T) {
	svc := NewAnalyticsService(&inspectionScannerStub{err: assert.AnError}, officeDirectoryStub{}, nil, nil, 0, nil)

	_, err := svc.DashboardStats(context.Background())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal.Code))
	assert.ErrorIs(t, err, assert.AnError)
}
