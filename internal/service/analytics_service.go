package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/civica-api/internal/models"
	"github.com/noah-isme/civica-api/internal/workflow"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
	"github.com/noah-isme/civica-api/pkg/export"
)

const (
	overdueAfterDays       = 7
	criticalRatingCeiling  = 2.5
	repeatedViolationFloor = 2
	priorityListLimit      = 10
	defaultAnalyticsWindow = 30
	maxAnalyticsWindow     = 365
	defaultHistoryMonths   = 6
	maxHistoryMonths       = 24
)

type inspectionScanner interface {
	ListAll(ctx context.Context, officeID string) ([]models.Inspection, error)
}

type officeDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Office, error)
	List(ctx context.Context, filter models.DirectoryFilter) ([]models.Office, error)
}

type escalationTally interface {
	CountByStatus(ctx context.Context) (map[models.EscalationStatus]int, error)
}

type datasetRenderer interface {
	Render(format export.Format, data export.Dataset) ([]byte, error)
}

// issueKeywords buckets free-text report issues into coarse categories.
var issueKeywords = []struct {
	category string
	words    []string
}{
	{"Cleanliness", []string{"clean", "dirty", "garbage", "waste", "hygiene"}},
	{"Staff Behavior", []string{"staff", "behavior", "behaviour", "rude", "attitude"}},
	{"Service Quality", []string{"service", "slow", "delay", "queue", "waiting"}},
	{"Infrastructure", []string{"infrastructure", "building", "facility", "equipment"}},
}

// AnalyticsService recomputes dashboards and compliance from full inspection scans.
type AnalyticsService struct {
	inspections inspectionScanner
	offices     officeDirectory
	escalations escalationTally
	renderer    datasetRenderer
	onTimeDays  int
	now         func() time.Time
	logger      *zap.Logger
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(inspections inspectionScanner, offices officeDirectory, escalations escalationTally, renderer datasetRenderer, onTimeDays int, logger *zap.Logger) *AnalyticsService {
	if onTimeDays <= 0 {
		onTimeDays = workflow.DefaultOnTimeDays
	}
	if renderer == nil {
		renderer = export.NewRenderer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		inspections: inspections,
		offices:     offices,
		escalations: escalations,
		renderer:    renderer,
		onTimeDays:  onTimeDays,
		now:         time.Now,
		logger:      logger,
	}
}

// DashboardStats returns the headline counters and rates across every inspection.
func (s *AnalyticsService) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	all, err := s.scan(ctx, "")
	if err != nil {
		return nil, err
	}
	stats := &models.DashboardStats{TotalInspections: len(all)}
	var responseDays []float64
	for i := range all {
		insp := &all[i]
		switch insp.Status {
		case models.InspectionStatusAssigned:
			stats.ActiveInspections++
		case models.InspectionStatusSubmitted, models.InspectionStatusResponded:
			stats.ActiveInspections++
			stats.PendingReviews++
		case models.InspectionStatusEscalated:
			stats.Escalated++
		case models.InspectionStatusClosed:
			stats.Closed++
		}
		if insp.Report != nil && insp.OfficeResponse != nil {
			elapsed := insp.OfficeResponse.RespondedAt.Sub(insp.Report.SubmittedAt)
			responseDays = append(responseDays, elapsed.Hours()/24)
		}
	}
	if len(responseDays) > 0 {
		var total float64
		onTime := 0
		for _, days := range responseDays {
			total += days
			if days <= float64(s.onTimeDays) {
				onTime++
			}
		}
		stats.AvgResponseTimeDays = roundTo(total/float64(len(responseDays)), 1)
		stats.OnTimeComplianceRate = ratio(onTime, len(responseDays))
	}
	stats.ResolutionRate = ratio(stats.Closed, stats.TotalInspections)
	stats.EscalationRate = ratio(stats.Escalated, stats.TotalInspections)

	if s.escalations != nil {
		counts, err := s.escalations.CountByStatus(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count escalations")
		}
		stats.OpenEscalations = counts[models.EscalationStatusOpen] +
			counts[models.EscalationStatusInProgress] +
			counts[models.EscalationStatusReEscalated]
	}
	return stats, nil
}

// PriorityItems surfaces overdue responses, critical low-rated inspections and
// offices with repeated violations.
func (s *AnalyticsService) PriorityItems(ctx context.Context) (*models.PriorityItems, error) {
	all, err := s.scan(ctx, "")
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	items := &models.PriorityItems{
		OverdueResponses: make([]models.PriorityItem, 0),
		CriticalIssues:   make([]models.PriorityItem, 0),
	}
	for i := range all {
		insp := &all[i]
		if insp.Status == models.InspectionStatusSubmitted && insp.Report != nil {
			waited := int(now.Sub(insp.Report.SubmittedAt).Hours() / 24)
			if waited > overdueAfterDays {
				items.OverdueResponses = append(items.OverdueResponses, priorityItem(insp, 0, waited-overdueAfterDays))
			}
		}
		if insp.Priority == models.PriorityHigh {
			if avg, ok := insp.Report.AverageRating(); ok && avg <= criticalRatingCeiling {
				items.CriticalIssues = append(items.CriticalIssues, priorityItem(insp, roundTo(avg, 1), 0))
			}
		}
	}
	sort.SliceStable(items.OverdueResponses, func(i, j int) bool {
		return items.OverdueResponses[i].DaysWaiting > items.OverdueResponses[j].DaysWaiting
	})
	sort.SliceStable(items.CriticalIssues, func(i, j int) bool {
		return items.CriticalIssues[i].AvgRating < items.CriticalIssues[j].AvgRating
	})
	items.OverdueResponses = truncateItems(items.OverdueResponses, priorityListLimit)
	items.CriticalIssues = truncateItems(items.CriticalIssues, priorityListLimit)

	violations, err := s.violationsFrom(ctx, all)
	if err != nil {
		return nil, err
	}
	if len(violations) > priorityListLimit {
		violations = violations[:priorityListLimit]
	}
	items.RepeatedViolations = violations
	return items, nil
}

// SystemAnalytics reports trends over the last days (default 30).
func (s *AnalyticsService) SystemAnalytics(ctx context.Context, days int) (*models.SystemAnalytics, error) {
	if days <= 0 {
		days = defaultAnalyticsWindow
	}
	if days > maxAnalyticsWindow {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("days must not exceed %d", maxAnalyticsWindow))
	}
	all, err := s.scan(ctx, "")
	if err != nil {
		return nil, err
	}
	offices, err := s.offices.List(ctx, models.DirectoryFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offices")
	}
	officeTypes := make(map[string]models.OfficeType, len(offices))
	for _, office := range offices {
		officeTypes[office.ID] = office.Type
	}

	start := s.now().UTC().AddDate(0, 0, -days)
	result := &models.SystemAnalytics{
		WindowDays:         days,
		StatusDistribution: make(map[string]int),
		ResponseTimeBuckets: map[string]int{
			"0-3 days": 0, "4-7 days": 0, "8-14 days": 0, "15+ days": 0,
		},
		IssueCategories: make(map[string]int),
	}
	perDay := make(map[string]int)
	type ratingSum struct {
		cleanliness, staff, service float64
		count                       int
	}
	ratings := make(map[string]*ratingSum)
	type typeTally struct{ total, responded, onTime int }
	byType := make(map[models.OfficeType]*typeTally)

	for i := range all {
		insp := &all[i]
		result.StatusDistribution[string(insp.Status)]++

		officeType, ok := officeTypes[insp.OfficeID]
		if !ok {
			officeType = models.OfficeTypeOther
		}
		tally := byType[officeType]
		if tally == nil {
			tally = &typeTally{}
			byType[officeType] = tally
		}
		tally.total++
		if elapsed, ok := workflow.ResponseDays(insp); ok {
			tally.responded++
			if elapsed <= s.onTimeDays {
				tally.onTime++
			}
			result.ResponseTimeBuckets[responseBucket(elapsed)]++
		}

		if insp.Report != nil && insp.Report.Issues != "" {
			text := strings.ToLower(insp.Report.Issues)
			for _, group := range issueKeywords {
				if containsAny(text, group.words) {
					result.IssueCategories[group.category]++
				}
			}
		}

		if insp.AssignedDate.Before(start) {
			continue
		}
		day := insp.AssignedDate.UTC().Format("2006-01-02")
		perDay[day]++
		if _, ok := insp.Report.AverageRating(); ok {
			sum := ratings[day]
			if sum == nil {
				sum = &ratingSum{}
				ratings[day] = sum
			}
			sum.cleanliness += float64(insp.Report.CleanlinessRating)
			sum.staff += float64(insp.Report.StaffBehaviorRating)
			sum.service += float64(insp.Report.ServiceQualityRating)
			sum.count++
		}
	}

	for _, day := range sortedKeys(perDay) {
		result.InspectionsPerDay = append(result.InspectionsPerDay, models.DailyCount{Date: day, Count: perDay[day]})
	}
	for _, day := range sortedKeys(ratings) {
		sum := ratings[day]
		n := float64(sum.count)
		result.RatingTrends = append(result.RatingTrends, models.DailyRating{
			Date:           day,
			Cleanliness:    roundTo(sum.cleanliness/n, 2),
			StaffBehavior:  roundTo(sum.staff/n, 2),
			ServiceQuality: roundTo(sum.service/n, 2),
			Count:          sum.count,
		})
	}
	for officeType, tally := range byType {
		result.OfficeTypes = append(result.OfficeTypes, models.OfficeTypePerformance{
			OfficeType: officeType,
			Total:      tally.total,
			Responded:  tally.responded,
			OnTimeRate: ratio(tally.onTime, tally.responded),
		})
	}
	sort.Slice(result.OfficeTypes, func(i, j int) bool {
		return result.OfficeTypes[i].OfficeType < result.OfficeTypes[j].OfficeType
	})
	return result, nil
}

// OfficeCompliance scores one office. Office users may only read their own office.
func (s *AnalyticsService) OfficeCompliance(ctx context.Context, actor models.Actor, officeID string) (*models.ComplianceScore, error) {
	office, err := s.office(ctx, actor, officeID)
	if err != nil {
		return nil, err
	}
	inspections, err := s.scan(ctx, officeID)
	if err != nil {
		return nil, err
	}
	score := workflow.ScoreOffice(officeID, inspections, s.onTimeDays)
	score.OfficeName = office.Name
	score.OfficeType = office.Type
	return &score, nil
}

// AllOfficesCompliance scores every active office, best first.
func (s *AnalyticsService) AllOfficesCompliance(ctx context.Context) ([]models.ComplianceScore, error) {
	active := true
	offices, err := s.offices.List(ctx, models.DirectoryFilter{Active: &active})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offices")
	}
	all, err := s.scan(ctx, "")
	if err != nil {
		return nil, err
	}
	byOffice := groupByOffice(all)
	scores := make([]models.ComplianceScore, 0, len(offices))
	for _, office := range offices {
		score := workflow.ScoreOffice(office.ID, byOffice[office.ID], s.onTimeDays)
		score.OfficeName = office.Name
		score.OfficeType = office.Type
		scores = append(scores, score)
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score == scores[j].Score {
			return scores[i].OfficeName < scores[j].OfficeName
		}
		return scores[i].Score > scores[j].Score
	})
	return scores, nil
}

// Violations lists offices with repeated low-rated inspections, worst first.
func (s *AnalyticsService) Violations(ctx context.Context) ([]models.OfficeViolations, error) {
	all, err := s.scan(ctx, "")
	if err != nil {
		return nil, err
	}
	return s.violationsFrom(ctx, all)
}

// ComplianceHistory buckets an office's inspections by assignment month over
// the last months (default 6) and scores each bucket.
func (s *AnalyticsService) ComplianceHistory(ctx context.Context, actor models.Actor, officeID string, months int) ([]models.ComplianceHistoryPoint, error) {
	if months <= 0 {
		months = defaultHistoryMonths
	}
	if months > maxHistoryMonths {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("months must not exceed %d", maxHistoryMonths))
	}
	if _, err := s.office(ctx, actor, officeID); err != nil {
		return nil, err
	}
	inspections, err := s.scan(ctx, officeID)
	if err != nil {
		return nil, err
	}
	end := s.now().UTC()
	start := end.AddDate(0, 0, -months*30)
	buckets := make(map[string][]models.Inspection)
	for _, insp := range inspections {
		if insp.AssignedDate.Before(start) || insp.AssignedDate.After(end) {
			continue
		}
		key := workflow.MonthKey(insp.AssignedDate)
		buckets[key] = append(buckets[key], insp)
	}
	history := make([]models.ComplianceHistoryPoint, 0, len(buckets))
	for _, month := range sortedKeys(buckets) {
		score := workflow.ScoreOffice(officeID, buckets[month], s.onTimeDays)
		point := models.ComplianceHistoryPoint{Month: month, Score: score.Score, Total: len(buckets[month])}
		if score.Metrics != nil {
			point.OnTime = roundTo(score.Metrics.OnTimeRate, 1)
			point.Average = score.Metrics.AvgRating
		}
		history = append(history, point)
	}
	return history, nil
}

// ExportCompliance renders the office ranking as CSV or PDF.
func (s *AnalyticsService) ExportCompliance(ctx context.Context, format export.Format) ([]byte, string, error) {
	scores, err := s.AllOfficesCompliance(ctx)
	if err != nil {
		return nil, "", err
	}
	data := export.Dataset{
		Title:   "Office compliance ranking",
		Headers: []string{"Rank", "Office", "Type", "Score", "Inspections", "Response %", "On-time %", "Avg rating", "Violations"},
	}
	for i, score := range scores {
		row := map[string]string{
			"Rank":   fmt.Sprintf("%d", i+1),
			"Office": score.OfficeName,
			"Type":   string(score.OfficeType),
			"Score":  fmt.Sprintf("%.1f", score.Score),
		}
		if m := score.Metrics; m != nil {
			row["Inspections"] = fmt.Sprintf("%d", m.TotalInspections)
			row["Response %"] = fmt.Sprintf("%.1f", m.ResponseRate)
			row["On-time %"] = fmt.Sprintf("%.1f", m.OnTimeRate)
			row["Avg rating"] = fmt.Sprintf("%.1f", m.AvgRating)
			row["Violations"] = fmt.Sprintf("%d", m.ViolationCount)
		} else {
			row["Inspections"] = "0"
		}
		data.Rows = append(data.Rows, row)
	}
	body, err := s.renderer.Render(format, data)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render compliance export")
	}
	filename := fmt.Sprintf("compliance-%s.%s", s.now().UTC().Format("20060102"), format)
	s.logger.Info("compliance exported", zap.String("format", string(format)), zap.Int("offices", len(scores)))
	return body, filename, nil
}

func (s *AnalyticsService) scan(ctx context.Context, officeID string) ([]models.Inspection, error) {
	start := time.Now()
	all, err := s.inspections.ListAll(ctx, officeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan inspections")
	}
	s.logger.Debug("inspection scan", zap.String("office_id", officeID), zap.Int("rows", len(all)), zap.Duration("took", time.Since(start)))
	return all, nil
}

func (s *AnalyticsService) office(ctx context.Context, actor models.Actor, officeID string) (*models.Office, error) {
	if actor.Role == models.RoleOffice && actor.OfficeID != officeID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "office users may only read their own compliance")
	}
	office, err := s.offices.FindByID(ctx, officeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "office not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load office")
	}
	return office, nil
}

func (s *AnalyticsService) violationsFrom(ctx context.Context, all []models.Inspection) ([]models.OfficeViolations, error) {
	byOffice := make(map[string][]models.ViolationRecord)
	for i := range all {
		insp := &all[i]
		if !workflow.IsViolation(insp) {
			continue
		}
		avg, _ := insp.Report.AverageRating()
		byOffice[insp.OfficeID] = append(byOffice[insp.OfficeID], models.ViolationRecord{
			InspectionID: insp.ID,
			TaskName:     insp.TaskName,
			AvgRating:    roundTo(avg, 1),
			SubmittedAt:  insp.Report.SubmittedAt,
		})
	}
	out := make([]models.OfficeViolations, 0)
	for officeID, records := range byOffice {
		if len(records) < repeatedViolationFloor {
			continue
		}
		office, err := s.offices.FindByID(ctx, officeID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load office")
		}
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].SubmittedAt.After(records[j].SubmittedAt)
		})
		latest := records
		if len(latest) > priorityListLimit {
			latest = latest[:priorityListLimit]
		}
		out = append(out, models.OfficeViolations{
			OfficeID:       officeID,
			OfficeName:     office.Name,
			ViolationCount: len(records),
			Severity:       violationSeverity(len(records)),
			Latest:         latest,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ViolationCount == out[j].ViolationCount {
			return out[i].OfficeName < out[j].OfficeName
		}
		return out[i].ViolationCount > out[j].ViolationCount
	})
	return out, nil
}

func violationSeverity(count int) models.Severity {
	switch {
	case count >= 5:
		return models.SeverityCritical
	case count >= 3:
		return models.SeverityHigh
	}
	return models.SeverityMedium
}

func responseBucket(days int) string {
	switch {
	case days <= 3:
		return "0-3 days"
	case days <= 7:
		return "4-7 days"
	case days <= 14:
		return "8-14 days"
	}
	return "15+ days"
}

func priorityItem(insp *models.Inspection, avg float64, waiting int) models.PriorityItem {
	return models.PriorityItem{
		InspectionID: insp.ID,
		TaskName:     insp.TaskName,
		OfficeID:     insp.OfficeID,
		Priority:     insp.Priority,
		AvgRating:    avg,
		DaysWaiting:  waiting,
	}
}

func truncateItems(items []models.PriorityItem, limit int) []models.PriorityItem {
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

func groupByOffice(all []models.Inspection) map[string][]models.Inspection {
	out := make(map[string][]models.Inspection)
	for _, insp := range all {
		out[insp.OfficeID] = append(out[insp.OfficeID], insp)
	}
	return out
}

func containsAny(text string, words []string) bool {
	for _, word := range words {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return roundTo(float64(part)/float64(whole)*100, 1)
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
