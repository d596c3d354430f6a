package models

import "time"

// NotificationType names the workflow event behind a notification.
type NotificationType string

const (
	NotificationNewAssignment      NotificationType = "new_assignment"
	NotificationReportSubmitted    NotificationType = "report_submitted"
	NotificationOfficeResponded    NotificationType = "office_responded"
	NotificationResponseEdited     NotificationType = "response_edited"
	NotificationHeadmasterApproved NotificationType = "headmaster_approved"
	NotificationHeadmasterRejected NotificationType = "headmaster_rejected"
	NotificationReviewCompleted    NotificationType = "review_completed"
	NotificationStatusOverridden   NotificationType = "status_overridden"
	NotificationEscalationUpdated  NotificationType = "escalation_updated"
	NotificationEscalationResolved NotificationType = "escalation_resolved"
	NotificationReEscalated        NotificationType = "re_escalated"
)

// RecipientKind selects how a notification audience is expanded to users.
type RecipientKind string

const (
	RecipientTeam       RecipientKind = "team"
	RecipientOffice     RecipientKind = "office"
	RecipientSchool     RecipientKind = "school"
	RecipientResponders RecipientKind = "responders"
	RecipientUser       RecipientKind = "user"
)

// Recipient addresses the audience of an intent.
type Recipient struct {
	Kind RecipientKind `json:"kind"`
	ID   string        `json:"id,omitempty"`
}

// NotificationIntent is emitted once per workflow transition.
type NotificationIntent struct {
	Type         NotificationType `json:"type"`
	Recipient    Recipient        `json:"recipient"`
	InspectionID string           `json:"inspection_id"`
	EscalationID string           `json:"escalation_id,omitempty"`
	Title        string           `json:"title"`
	Message      string           `json:"message"`
	ActorID      string           `json:"actor_id"`
	OccurredAt   time.Time        `json:"occurred_at"`
}

// Notification is a persisted per-user notification row.
type Notification struct {
	ID           string           `db:"id" json:"id"`
	UserID       string           `db:"user_id" json:"user_id"`
	Type         NotificationType `db:"type" json:"type"`
	Title        string           `db:"title" json:"title"`
	Message      string           `db:"message" json:"message"`
	InspectionID *string          `db:"inspection_id" json:"inspection_id,omitempty"`
	EscalationID *string          `db:"escalation_id" json:"escalation_id,omitempty"`
	Read         bool             `db:"is_read" json:"is_read"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter constrains a user's notification listing.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
