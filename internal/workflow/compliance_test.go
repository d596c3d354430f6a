package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civica-api/internal/models"
)

func ratedInspection(status models.InspectionStatus, ratings [3]int, responseDelay time.Duration) models.Inspection {
	submittedAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	insp := models.Inspection{
		OfficeID: "office-1",
		Status:   status,
		Report: &models.Report{
			CleanlinessRating:    ratings[0],
			StaffBehaviorRating:  ratings[1],
			ServiceQualityRating: ratings[2],
			SubmittedAt:          submittedAt,
		},
	}
	if responseDelay >= 0 {
		insp.OfficeResponse = &models.OfficeResponse{RespondedAt: submittedAt.Add(responseDelay)}
	}
	return insp
}

const noResponse = time.Duration(-1)

func TestScoreOfficeReferenceScenario(t *testing.T) {
	day := 24 * time.Hour
	// 10 inspections: 8 responded (5 on time), 8 rated averaging 4.0 with one
	// violation, 6 closed.
	inspections := []models.Inspection{
		ratedInspection(models.InspectionStatusClosed, [3]int{4, 4, 5}, 1*day),
		ratedInspection(models.InspectionStatusClosed, [3]int{4, 4, 5}, 2*day),
		ratedInspection(models.InspectionStatusClosed, [3]int{4, 4, 5}, 3*day),
		ratedInspection(models.InspectionStatusClosed, [3]int{4, 4, 5}, 7*day+23*time.Hour),
		ratedInspection(models.InspectionStatusClosed, [3]int{4, 4, 5}, 6*day),
		ratedInspection(models.InspectionStatusClosed, [3]int{4, 4, 5}, 9*day),
		ratedInspection(models.InspectionStatusResponded, [3]int{4, 4, 4}, 10*day),
		ratedInspection(models.InspectionStatusResponded, [3]int{2, 2, 2}, 12*day),
		{OfficeID: "office-1", Status: models.InspectionStatusAssigned},
		{OfficeID: "office-1", Status: models.InspectionStatusAssigned},
	}

	score := ScoreOffice("office-1", inspections, DefaultOnTimeDays)
	require.NotNil(t, score.Metrics)
	m := score.Metrics
	assert.InDelta(t, 80, m.ResponseRate, 1e-9)
	assert.InDelta(t, 62.5, m.OnTimeRate, 1e-9)
	assert.InDelta(t, 80, m.RatingScore, 1e-9)
	assert.InDelta(t, 60, m.ResolutionRate, 1e-9)
	assert.InDelta(t, 12.5, m.ViolationRate, 1e-9)
	assert.Equal(t, 1, m.ViolationCount)
	assert.Equal(t, 5, m.OnTimeCount)
	assert.Equal(t, 73.0, score.Score)
}

func TestScoreOfficeWithoutInspections(t *testing.T) {
	score := ScoreOffice("office-1", nil, DefaultOnTimeDays)
	assert.Equal(t, 0.0, score.Score)
	assert.Nil(t, score.Metrics)
}

func TestScoreOfficeIgnoresPartialRatings(t *testing.T) {
	partial := ratedInspection(models.InspectionStatusSubmitted, [3]int{5, 0, 5}, noResponse)
	score := ScoreOffice("office-1", []models.Inspection{partial}, DefaultOnTimeDays)
	require.NotNil(t, score.Metrics)
	assert.Equal(t, 0, score.Metrics.RatedCount)
	assert.Equal(t, 0.0, score.Metrics.RatingScore)
	assert.Equal(t, 0.0, score.Metrics.OnTimeRate)
	// Only the violation complement contributes.
	assert.Equal(t, 5.0, score.Score)
}

func TestScoreOfficeBounds(t *testing.T) {
	perfect := []models.Inspection{
		ratedInspection(models.InspectionStatusClosed, [3]int{5, 5, 5}, time.Hour),
		ratedInspection(models.InspectionStatusClosed, [3]int{5, 5, 5}, 2*time.Hour),
	}
	score := ScoreOffice("office-1", perfect, DefaultOnTimeDays)
	assert.Equal(t, 100.0, score.Score)

	worst := []models.Inspection{
		ratedInspection(models.InspectionStatusSubmitted, [3]int{1, 1, 1}, noResponse),
	}
	score = ScoreOffice("office-1", worst, DefaultOnTimeDays)
	assert.GreaterOrEqual(t, score.Score, 0.0)
	assert.LessOrEqual(t, score.Score, 100.0)
}

func TestResponseDaysFloorsPartialDays(t *testing.T) {
	insp := ratedInspection(models.InspectionStatusResponded, [3]int{3, 3, 3}, 7*24*time.Hour+23*time.Hour)
	days, ok := ResponseDays(&insp)
	require.True(t, ok)
	assert.Equal(t, 7, days)

	pending := ratedInspection(models.InspectionStatusSubmitted, [3]int{3, 3, 3}, noResponse)
	_, ok = ResponseDays(&pending)
	assert.False(t, ok)
}

func TestIsViolation(t *testing.T) {
	low := ratedInspection(models.InspectionStatusSubmitted, [3]int{3, 3, 2}, noResponse)
	ok := ratedInspection(models.InspectionStatusSubmitted, [3]int{3, 3, 3}, noResponse)
	assert.True(t, IsViolation(&low))
	assert.False(t, IsViolation(&ok))
	assert.False(t, IsViolation(&models.Inspection{}))
}
