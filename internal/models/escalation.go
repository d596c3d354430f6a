package models

import "time"

// EscalationStatus captures the escalation sub-lifecycle.
type EscalationStatus string

const (
	EscalationStatusOpen        EscalationStatus = "open"
	EscalationStatusInProgress  EscalationStatus = "in_progress"
	EscalationStatusResolved    EscalationStatus = "resolved"
	EscalationStatusReEscalated EscalationStatus = "re_escalated"
)

// Severity of an escalation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from most to least urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	}
	return 4
}

// Valid reports whether the severity is known.
func (s Severity) Valid() bool {
	return s.Rank() < 4
}

// FollowUp is one entry of an escalation's activity trail.
type FollowUp struct {
	Notes       string    `json:"notes"`
	AddedBy     string    `json:"added_by"`
	AddedAt     time.Time `json:"added_at"`
	ActionTaken *string   `json:"action_taken,omitempty"`
}

// Escalation tracks a government follow-up on an unresolved inspection.
type Escalation struct {
	ID                 string           `json:"id"`
	InspectionID       string           `json:"inspection_id"`
	OfficeID           string           `json:"office_id"`
	EscalationReason   string           `json:"escalation_reason"`
	ActionItems        []string         `json:"action_items"`
	Description        *string          `json:"description,omitempty"`
	Severity           Severity         `json:"severity"`
	EscalatedBy        string           `json:"escalated_by"`
	EscalatedAt        time.Time        `json:"escalated_at"`
	Status             EscalationStatus `json:"status"`
	FollowUps          []FollowUp       `json:"follow_ups"`
	ResolutionNotes    *string          `json:"resolution_notes,omitempty"`
	ResolvedAt         *time.Time       `json:"resolved_at,omitempty"`
	ResolvedBy         *string          `json:"resolved_by,omitempty"`
	ReEscalatedTo      *string          `json:"re_escalated_to,omitempty"`
	ReEscalationReason *string          `json:"re_escalation_reason,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	Version            int              `json:"version"`
}

// Clone returns a deep copy of the escalation.
func (e *Escalation) Clone() *Escalation {
	if e == nil {
		return nil
	}
	out := *e
	out.ActionItems = append([]string(nil), e.ActionItems...)
	out.FollowUps = append([]FollowUp(nil), e.FollowUps...)
	return &out
}

// EscalationFilter constrains escalation listings.
type EscalationFilter struct {
	Status   []EscalationStatus
	OfficeID string
	Severity Severity
	Reason   string
	From     *time.Time
	To       *time.Time
	SortBy   string
	Page     int
	PageSize int
}
