package dto

import (
	"time"

	"github.com/noah-isme/civica-api/internal/models"
)

// CreateInspectionRequest is the POST /inspections payload. TeamID is optional;
// when empty or AutoAssign is set the least loaded team of the school is chosen.
type CreateInspectionRequest struct {
	TaskName        string          `json:"task_name" validate:"required,max=200"`
	TaskDescription string          `json:"task_description" validate:"max=2000"`
	OfficeID        string          `json:"office_id" validate:"required"`
	SchoolID        string          `json:"school_id" validate:"required"`
	TeamID          string          `json:"team_id"`
	TemplateID      string          `json:"template_id" validate:"required"`
	AutoAssign      bool            `json:"auto_assign"`
	AssignedDate    *time.Time      `json:"assigned_date"`
	DueDate         time.Time       `json:"due_date" validate:"required"`
	Priority        models.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
}

// UpdateInspectionRequest edits the task definition of an assigned inspection.
type UpdateInspectionRequest struct {
	TaskName        *string          `json:"task_name" validate:"omitempty,max=200"`
	TaskDescription *string          `json:"task_description" validate:"omitempty,max=2000"`
	OfficeID        *string          `json:"office_id"`
	TemplateID      *string          `json:"template_id"`
	TeamID          *string          `json:"team_id"`
	DueDate         *time.Time       `json:"due_date"`
	Priority        *models.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
}

// SubmitReportRequest is the team's report payload.
type SubmitReportRequest struct {
	CleanlinessRating    int      `json:"cleanliness_rating"`
	StaffBehaviorRating  int      `json:"staff_behavior_rating"`
	ServiceQualityRating int      `json:"service_quality_rating"`
	Issues               string   `json:"issues"`
	Complaints           string   `json:"complaints"`
	Suggestions          string   `json:"suggestions"`
	Photos               []string `json:"photos"`
}

// OfficeResponseRequest is used both to respond and to edit a response.
type OfficeResponseRequest struct {
	ResponseText string `json:"response_text"`
	ActionTaken  string `json:"action_taken"`
	Remarks      string `json:"remarks"`
}

// HeadmasterDecisionRequest carries the headmaster's optional comments.
type HeadmasterDecisionRequest struct {
	Comments string `json:"comments"`
}

// GovtReviewRequest is the responder's review. Severity and Description only
// apply when the review escalates.
type GovtReviewRequest struct {
	ReviewStatus     models.ReviewStatus `json:"review_status"`
	ReviewComments   string              `json:"review_comments"`
	EscalationReason string              `json:"escalation_reason"`
	ActionItems      []string            `json:"action_items"`
	Severity         models.Severity     `json:"severity"`
	Description      string              `json:"description"`
}

// OverrideStatusRequest forces an inspection status.
type OverrideStatusRequest struct {
	Status models.InspectionStatus `json:"status"`
	Reason string                  `json:"reason"`
}

// ReassignRequest moves an inspection to another team.
type ReassignRequest struct {
	TeamID string `json:"team_id" validate:"required"`
}

// ReviewOutcome is returned by the review endpoint; Escalation is set when the
// review escalated the inspection.
type ReviewOutcome struct {
	Inspection *models.Inspection `json:"inspection"`
	Escalation *models.Escalation `json:"escalation,omitempty"`
}

// FollowUpRequest appends a follow-up to an escalation.
type FollowUpRequest struct {
	Notes       string `json:"notes"`
	ActionTaken string `json:"action_taken"`
}

// ResolveEscalationRequest closes an escalation.
type ResolveEscalationRequest struct {
	ResolutionNotes string `json:"resolution_notes"`
}

// ReEscalateRequest raises an escalation to a higher authority. EscalateTo
// names that authority in free text.
type ReEscalateRequest struct {
	Reason     string `json:"reason"`
	EscalateTo string `json:"escalate_to"`
}
