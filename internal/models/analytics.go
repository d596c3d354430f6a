package models

import "time"

// ComplianceMetrics are the component percentages behind a compliance score.
type ComplianceMetrics struct {
	ResponseRate        float64 `json:"response_rate"`
	OnTimeRate          float64 `json:"on_time_rate"`
	RatingScore         float64 `json:"rating_score"`
	ResolutionRate      float64 `json:"resolution_rate"`
	ViolationRate       float64 `json:"violation_rate"`
	AvgResponseTimeDays float64 `json:"avg_response_time_days"`
	AvgRating           float64 `json:"avg_rating"`
	ViolationCount      int     `json:"violation_count"`
	TotalInspections    int     `json:"total_inspections"`
	RespondedCount      int     `json:"responded_count"`
	OnTimeCount         int     `json:"on_time_count"`
	ClosedCount         int     `json:"closed_count"`
	RatedCount          int     `json:"rated_count"`
}

// ComplianceScore is an office's weighted 0-100 compliance result.
type ComplianceScore struct {
	OfficeID   string             `json:"office_id"`
	OfficeName string             `json:"office_name,omitempty"`
	OfficeType OfficeType         `json:"office_type,omitempty"`
	Score      float64            `json:"compliance_score"`
	Metrics    *ComplianceMetrics `json:"metrics"`
}

// ComplianceHistoryPoint is one monthly bucket of an office's compliance trend.
type ComplianceHistoryPoint struct {
	Month   string  `json:"month"`
	Score   float64 `json:"compliance_score"`
	Total   int     `json:"total_inspections"`
	OnTime  float64 `json:"on_time_rate"`
	Average float64 `json:"avg_rating"`
}

// ViolationRecord lists one low-rated inspection of an office.
type ViolationRecord struct {
	InspectionID string    `json:"inspection_id"`
	TaskName     string    `json:"task_name"`
	AvgRating    float64   `json:"avg_rating"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// OfficeViolations summarises repeated violations for one office.
type OfficeViolations struct {
	OfficeID       string            `json:"office_id"`
	OfficeName     string            `json:"office_name"`
	ViolationCount int               `json:"violation_count"`
	Severity       Severity          `json:"severity"`
	Latest         []ViolationRecord `json:"latest_violations"`
}

// DashboardStats aggregates the headline numbers of the inspection system.
type DashboardStats struct {
	TotalInspections     int     `json:"total_inspections"`
	ActiveInspections    int     `json:"active_inspections"`
	PendingReviews       int     `json:"pending_reviews"`
	Escalated            int     `json:"escalated"`
	Closed               int     `json:"closed"`
	AvgResponseTimeDays  float64 `json:"avg_response_time_days"`
	OnTimeComplianceRate float64 `json:"on_time_compliance_rate"`
	ResolutionRate       float64 `json:"resolution_rate"`
	EscalationRate       float64 `json:"escalation_rate"`
	OpenEscalations      int     `json:"open_escalations"`
}

// PriorityItem flags an inspection that needs attention.
type PriorityItem struct {
	InspectionID string   `json:"inspection_id"`
	TaskName     string   `json:"task_name"`
	OfficeID     string   `json:"office_id"`
	Priority     Priority `json:"priority"`
	AvgRating    float64  `json:"avg_rating,omitempty"`
	DaysWaiting  int      `json:"days_waiting,omitempty"`
}

// PriorityItems groups the items surfaced on the responder dashboard.
type PriorityItems struct {
	OverdueResponses   []PriorityItem     `json:"overdue_responses"`
	CriticalIssues     []PriorityItem     `json:"critical_issues"`
	RepeatedViolations []OfficeViolations `json:"repeated_violations"`
}

// DailyCount is a per-day count bucket.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DailyRating is a per-day rating average.
type DailyRating struct {
	Date           string  `json:"date"`
	Cleanliness    float64 `json:"cleanliness"`
	StaffBehavior  float64 `json:"staff_behavior"`
	ServiceQuality float64 `json:"service_quality"`
	Count          int     `json:"count"`
}

// OfficeTypePerformance reports on-time behaviour by office type.
type OfficeTypePerformance struct {
	OfficeType OfficeType `json:"office_type"`
	Total      int        `json:"total"`
	Responded  int        `json:"responded"`
	OnTimeRate float64    `json:"on_time_rate"`
}

// SystemAnalytics is the time-windowed system-wide report.
type SystemAnalytics struct {
	WindowDays          int                     `json:"window_days"`
	InspectionsPerDay   []DailyCount            `json:"inspections_per_day"`
	StatusDistribution  map[string]int          `json:"status_distribution"`
	OfficeTypes         []OfficeTypePerformance `json:"office_type_performance"`
	RatingTrends        []DailyRating           `json:"rating_trends"`
	ResponseTimeBuckets map[string]int          `json:"response_time_buckets"`
	IssueCategories     map[string]int          `json:"issue_categories"`
}

// SystemMetrics is a lightweight snapshot of process instrumentation.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	TransitionsTotal         uint64    `json:"transitions_total"`
	NotificationsDelivered   uint64    `json:"notifications_delivered"`
	NotificationsFailed      uint64    `json:"notifications_failed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
