package models

import "time"

// InspectionStatus captures lifecycle states of an inspection.
type InspectionStatus string

const (
	InspectionStatusAssigned  InspectionStatus = "assigned"
	InspectionStatusSubmitted InspectionStatus = "submitted"
	InspectionStatusResponded InspectionStatus = "responded"
	InspectionStatusClosed    InspectionStatus = "closed"
	InspectionStatusEscalated InspectionStatus = "escalated"
)

// InspectionStatuses lists every valid status in lifecycle order.
var InspectionStatuses = []InspectionStatus{
	InspectionStatusAssigned,
	InspectionStatusSubmitted,
	InspectionStatusResponded,
	InspectionStatusClosed,
	InspectionStatusEscalated,
}

// Valid reports whether the status belongs to the fixed enum.
func (s InspectionStatus) Valid() bool {
	for _, candidate := range InspectionStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Priority of an inspection assignment.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether the priority is known.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ReviewStatus is the government reviewer's decision.
type ReviewStatus string

const (
	ReviewStatusApproved  ReviewStatus = "approved"
	ReviewStatusEscalated ReviewStatus = "escalated"
	ReviewStatusMoreInfo  ReviewStatus = "more_info"
)

// Report is the student team's submitted observation.
type Report struct {
	CleanlinessRating    int       `json:"cleanliness_rating"`
	StaffBehaviorRating  int       `json:"staff_behavior_rating"`
	ServiceQualityRating int       `json:"service_quality_rating"`
	Issues               string    `json:"issues"`
	Complaints           string    `json:"complaints"`
	Suggestions          string    `json:"suggestions"`
	Photos               []string  `json:"photos"`
	SubmittedAt          time.Time `json:"submitted_at"`
	SubmittedBy          string    `json:"submitted_by"`
}

// AverageRating returns the mean of the three ratings and whether all were present.
func (r *Report) AverageRating() (float64, bool) {
	if r == nil || r.CleanlinessRating <= 0 || r.StaffBehaviorRating <= 0 || r.ServiceQualityRating <= 0 {
		return 0, false
	}
	return float64(r.CleanlinessRating+r.StaffBehaviorRating+r.ServiceQualityRating) / 3, true
}

// OfficeResponse is the audited office's answer to a report.
type OfficeResponse struct {
	ResponseText string     `json:"response_text"`
	ActionTaken  string     `json:"action_taken"`
	Remarks      string     `json:"remarks,omitempty"`
	RespondedAt  time.Time  `json:"responded_at"`
	RespondedBy  string     `json:"responded_by"`
	EditedAt     *time.Time `json:"edited_at,omitempty"`
	EditedBy     *string    `json:"edited_by,omitempty"`
}

// GovtReview records the government responder's review.
type GovtReview struct {
	ReviewStatus     ReviewStatus `json:"review_status"`
	ReviewComments   string       `json:"review_comments"`
	EscalationReason *string      `json:"escalation_reason,omitempty"`
	ActionItems      []string     `json:"action_items"`
	ReviewedAt       time.Time    `json:"reviewed_at"`
	ReviewedBy       string       `json:"reviewed_by"`
}

// HeadmasterApproval records the school's sign-off on a submitted report.
type HeadmasterApproval struct {
	Approved   bool      `json:"approved"`
	Comments   string    `json:"comments,omitempty"`
	ApprovedBy string    `json:"approved_by"`
	ApprovedAt time.Time `json:"approved_at"`
}

// StatusOverride is the audit record of a forced status change.
type StatusOverride struct {
	PreviousStatus InspectionStatus `json:"previous_status"`
	Reason         string           `json:"reason,omitempty"`
	OverriddenBy   string           `json:"overridden_by"`
	OverriddenAt   time.Time        `json:"overridden_at"`
}

// Inspection is one audit assignment of a team to an office.
type Inspection struct {
	ID                 string              `json:"id"`
	TaskName           string              `json:"task_name"`
	TaskDescription    string              `json:"task_description"`
	OfficeID           string              `json:"office_id"`
	SchoolID           string              `json:"school_id"`
	TeamID             string              `json:"team_id"`
	TemplateID         string              `json:"template_id"`
	AssignedDate       time.Time           `json:"assigned_date"`
	DueDate            time.Time           `json:"due_date"`
	Priority           Priority            `json:"priority"`
	Status             InspectionStatus    `json:"status"`
	Report             *Report             `json:"report,omitempty"`
	OfficeResponse     *OfficeResponse     `json:"office_response,omitempty"`
	GovtReview         *GovtReview         `json:"govt_review,omitempty"`
	HeadmasterApproval *HeadmasterApproval `json:"headmaster_approval,omitempty"`
	AdminOverride      *StatusOverride     `json:"admin_override,omitempty"`
	ResponderOverride  *StatusOverride     `json:"responder_override,omitempty"`
	CreatedBy          string              `json:"created_by"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	Version            int                 `json:"version"`
}

// Clone returns a deep copy so transitions never mutate the caller's value.
func (i *Inspection) Clone() *Inspection {
	if i == nil {
		return nil
	}
	out := *i
	if i.Report != nil {
		report := *i.Report
		report.Photos = append([]string(nil), i.Report.Photos...)
		out.Report = &report
	}
	if i.OfficeResponse != nil {
		resp := *i.OfficeResponse
		out.OfficeResponse = &resp
	}
	if i.GovtReview != nil {
		review := *i.GovtReview
		review.ActionItems = append([]string(nil), i.GovtReview.ActionItems...)
		out.GovtReview = &review
	}
	if i.HeadmasterApproval != nil {
		approval := *i.HeadmasterApproval
		out.HeadmasterApproval = &approval
	}
	if i.AdminOverride != nil {
		override := *i.AdminOverride
		out.AdminOverride = &override
	}
	if i.ResponderOverride != nil {
		override := *i.ResponderOverride
		out.ResponderOverride = &override
	}
	return &out
}

// InspectionFilter constrains listing queries.
type InspectionFilter struct {
	Status       []InspectionStatus
	SchoolID     string
	OfficeID     string
	TeamID       string
	TemplateID   string
	Priority     Priority
	AssignedFrom *time.Time
	AssignedTo   *time.Time
	Search       string
	Page         int
	PageSize     int
}
