package workflow

import (
	"math"
	"time"

	"github.com/noah-isme/civica-api/internal/models"
)

// DefaultOnTimeDays is the response window counted as on time.
const DefaultOnTimeDays = 7

// ViolationThreshold is the mean rating below which an inspection is a violation.
const ViolationThreshold = 3.0

// Compliance weights. They sum to one.
const (
	weightResponse   = 0.30
	weightOnTime     = 0.25
	weightRating     = 0.25
	weightResolution = 0.15
	weightViolation  = 0.05
)

// ResponseDays returns the whole days between report submission and the
// office response, and false when either record is missing.
func ResponseDays(insp *models.Inspection) (int, bool) {
	if insp == nil || insp.Report == nil || insp.OfficeResponse == nil {
		return 0, false
	}
	elapsed := insp.OfficeResponse.RespondedAt.Sub(insp.Report.SubmittedAt)
	return int(math.Floor(elapsed.Hours() / 24)), true
}

// IsViolation reports whether a fully rated inspection averages below the threshold.
func IsViolation(insp *models.Inspection) bool {
	if insp == nil {
		return false
	}
	avg, ok := insp.Report.AverageRating()
	return ok && avg < ViolationThreshold
}

// ScoreOffice computes an office's weighted compliance score from its full
// inspection history. An office with no inspections scores 0 with nil metrics.
func ScoreOffice(officeID string, inspections []models.Inspection, onTimeDays int) models.ComplianceScore {
	if onTimeDays <= 0 {
		onTimeDays = DefaultOnTimeDays
	}
	result := models.ComplianceScore{OfficeID: officeID}
	if len(inspections) == 0 {
		return result
	}

	m := &models.ComplianceMetrics{TotalInspections: len(inspections)}
	var responseDaysTotal, ratingTotal float64
	for i := range inspections {
		insp := &inspections[i]
		if insp.OfficeResponse != nil {
			m.RespondedCount++
			if days, ok := ResponseDays(insp); ok {
				responseDaysTotal += float64(days)
				if days <= onTimeDays {
					m.OnTimeCount++
				}
			}
		}
		if avg, ok := insp.Report.AverageRating(); ok {
			m.RatedCount++
			ratingTotal += avg
			if avg < ViolationThreshold {
				m.ViolationCount++
			}
		}
		if insp.Status == models.InspectionStatusClosed {
			m.ClosedCount++
		}
	}

	total := float64(m.TotalInspections)
	m.ResponseRate = percent(float64(m.RespondedCount), total)
	m.ResolutionRate = percent(float64(m.ClosedCount), total)
	if m.RespondedCount > 0 {
		m.OnTimeRate = percent(float64(m.OnTimeCount), float64(m.RespondedCount))
		m.AvgResponseTimeDays = round1(responseDaysTotal / float64(m.RespondedCount))
	}
	if m.RatedCount > 0 {
		m.AvgRating = ratingTotal / float64(m.RatedCount)
		m.RatingScore = m.AvgRating / MaxRating * 100
		m.ViolationRate = percent(float64(m.ViolationCount), float64(m.RatedCount))
		m.AvgRating = round1(m.AvgRating)
	}

	score := weightResponse*m.ResponseRate +
		weightOnTime*m.OnTimeRate +
		weightRating*m.RatingScore +
		weightResolution*m.ResolutionRate +
		weightViolation*(100-m.ViolationRate)
	result.Score = clamp(round1(score), 0, 100)
	result.Metrics = m
	return result
}

// MonthKey buckets a timestamp into its calendar month.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
