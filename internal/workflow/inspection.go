// Package workflow contains the pure inspection and escalation state machines
// together with the fair assignment and compliance scoring algorithms.
// Functions here never perform I/O: they take the current record, the actor
// and a typed payload and return the next record plus the notification intent
// the caller must dispatch.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/civica-api/internal/models"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
)

const (
	MinResponseTextLength   = 50
	MinReviewCommentsLength = 30
	MinRating               = 1
	MaxRating               = 5
)

// ReassignRoles may move an inspection to another team.
var ReassignRoles = []models.UserRole{models.RoleAdmin, models.RoleResponder}

// Transition is the outcome of an inspection lifecycle step.
type Transition struct {
	From       models.InspectionStatus
	To         models.InspectionStatus
	Inspection *models.Inspection
	Intent     models.NotificationIntent
}

// ReportInput is the team's inspection report payload.
type ReportInput struct {
	CleanlinessRating    int
	StaffBehaviorRating  int
	ServiceQualityRating int
	Issues               string
	Complaints           string
	Suggestions          string
	Photos               []string
}

// ResponseInput is the office's response payload, used for submit and edit.
type ResponseInput struct {
	ResponseText string
	ActionTaken  string
	Remarks      string
}

// ReviewInput is the government responder's review payload.
type ReviewInput struct {
	ReviewStatus     models.ReviewStatus
	ReviewComments   string
	EscalationReason string
	ActionItems      []string
}

// OverrideInput forces an inspection into a target status.
type OverrideInput struct {
	Target models.InspectionStatus
	Reason string
}

// Assign produces the initial assigned state of a freshly created inspection.
func Assign(insp *models.Inspection, actor models.Actor, now time.Time) (*Transition, error) {
	if insp == nil {
		return nil, appErrors.ErrNotFound
	}
	if strings.TrimSpace(insp.TeamID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "team is required")
	}
	next := insp.Clone()
	next.Status = models.InspectionStatusAssigned
	next.CreatedBy = actor.UserID
	if next.AssignedDate.IsZero() {
		next.AssignedDate = now
	}
	next.CreatedAt = now
	next.UpdatedAt = now
	return &Transition{
		To:         models.InspectionStatusAssigned,
		Inspection: next,
		Intent: intent(models.NotificationNewAssignment, teamRecipient(next.TeamID), next, actor, now,
			"New inspection assigned",
			fmt.Sprintf("Your team has been assigned to inspect %q", next.TaskName)),
	}, nil
}

// SubmitReport attaches the team's report to an assigned inspection.
func SubmitReport(current *models.Inspection, actor models.Actor, in ReportInput, now time.Time) (*Transition, error) {
	if current == nil {
		return nil, appErrors.ErrNotFound
	}
	if actor.TeamID == "" || actor.TeamID != current.TeamID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned team can submit this report")
	}
	if current.Status != models.InspectionStatusAssigned {
		return nil, appErrors.InvalidState(fmt.Sprintf("report can only be submitted while assigned (current status: %s)", current.Status))
	}
	ratings := []struct {
		name  string
		value int
	}{
		{"cleanliness_rating", in.CleanlinessRating},
		{"staff_behavior_rating", in.StaffBehaviorRating},
		{"service_quality_rating", in.ServiceQualityRating},
	}
	for _, rating := range ratings {
		if rating.value < MinRating || rating.value > MaxRating {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be between %d and %d", rating.name, MinRating, MaxRating))
		}
	}

	next := current.Clone()
	next.Report = &models.Report{
		CleanlinessRating:    in.CleanlinessRating,
		StaffBehaviorRating:  in.StaffBehaviorRating,
		ServiceQualityRating: in.ServiceQualityRating,
		Issues:               strings.TrimSpace(in.Issues),
		Complaints:           strings.TrimSpace(in.Complaints),
		Suggestions:          strings.TrimSpace(in.Suggestions),
		Photos:               append([]string{}, in.Photos...),
		SubmittedAt:          now,
		SubmittedBy:          actor.UserID,
	}
	return advance(current, next, models.InspectionStatusSubmitted, now,
		intent(models.NotificationReportSubmitted, officeRecipient(next.OfficeID), next, actor, now,
			"Inspection report submitted",
			fmt.Sprintf("A report for %q is awaiting your response", next.TaskName))), nil
}

// RespondAsOffice records the audited office's response to the report.
func RespondAsOffice(current *models.Inspection, actor models.Actor, in ResponseInput, now time.Time) (*Transition, error) {
	if current == nil {
		return nil, appErrors.ErrNotFound
	}
	if err := requireOfficeActor(current, actor); err != nil {
		return nil, err
	}
	if current.Report == nil {
		return nil, appErrors.InvalidState("no report has been submitted")
	}
	if current.OfficeResponse != nil {
		return nil, appErrors.InvalidState("office has already responded")
	}
	// A headmaster approval moves the record to responded before the office answers.
	headmasterApproved := current.Status == models.InspectionStatusResponded &&
		current.HeadmasterApproval != nil && current.HeadmasterApproval.Approved
	if current.Status != models.InspectionStatusSubmitted && !headmasterApproved {
		return nil, appErrors.InvalidState(fmt.Sprintf("office can only respond to submitted reports (current status: %s)", current.Status))
	}
	if err := validateResponse(in); err != nil {
		return nil, err
	}

	next := current.Clone()
	next.OfficeResponse = &models.OfficeResponse{
		ResponseText: strings.TrimSpace(in.ResponseText),
		ActionTaken:  strings.TrimSpace(in.ActionTaken),
		Remarks:      strings.TrimSpace(in.Remarks),
		RespondedAt:  now,
		RespondedBy:  actor.UserID,
	}
	return advance(current, next, models.InspectionStatusResponded, now,
		intent(models.NotificationOfficeResponded, respondersRecipient(), next, actor, now,
			"Office response received",
			fmt.Sprintf("The office responded to %q and awaits review", next.TaskName))), nil
}

// EditOfficeResponse replaces the office response while no review exists.
// The original responder and response time are preserved.
func EditOfficeResponse(current *models.Inspection, actor models.Actor, in ResponseInput, now time.Time) (*Transition, error) {
	if current == nil {
		return nil, appErrors.ErrNotFound
	}
	if err := requireOfficeActor(current, actor); err != nil {
		return nil, err
	}
	if current.OfficeResponse == nil {
		return nil, appErrors.InvalidState("no office response to edit")
	}
	if current.GovtReview != nil {
		return nil, appErrors.InvalidState("response can no longer be edited after government review")
	}
	if err := validateResponse(in); err != nil {
		return nil, err
	}

	next := current.Clone()
	editor := actor.UserID
	edited := now
	next.OfficeResponse.ResponseText = strings.TrimSpace(in.ResponseText)
	next.OfficeResponse.ActionTaken = strings.TrimSpace(in.ActionTaken)
	next.OfficeResponse.Remarks = strings.TrimSpace(in.Remarks)
	next.OfficeResponse.EditedAt = &edited
	next.OfficeResponse.EditedBy = &editor
	return advance(current, next, current.Status, now,
		intent(models.NotificationResponseEdited, respondersRecipient(), next, actor, now,
			"Office response updated",
			fmt.Sprintf("The office updated its response to %q", next.TaskName))), nil
}

// ApproveAsHeadmaster signs off a submitted report.
func ApproveAsHeadmaster(current *models.Inspection, actor models.Actor, comments string, now time.Time) (*Transition, error) {
	return headmasterDecision(current, actor, true, comments, now)
}

// RejectAsHeadmaster records a rejection; the inspection stays submitted.
func RejectAsHeadmaster(current *models.Inspection, actor models.Actor, comments string, now time.Time) (*Transition, error) {
	return headmasterDecision(current, actor, false, comments, now)
}

func headmasterDecision(current *models.Inspection, actor models.Actor, approved bool, comments string, now time.Time) (*Transition, error) {
	if current == nil {
		return nil, appErrors.ErrNotFound
	}
	if actor.Role != models.RoleAdmin && (actor.Role != models.RoleHeadmaster || actor.SchoolID != current.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the school's headmaster can decide on this report")
	}
	if current.Status != models.InspectionStatusSubmitted {
		return nil, appErrors.InvalidState(fmt.Sprintf("only submitted reports can be approved or rejected (current status: %s)", current.Status))
	}
	if current.Report == nil {
		return nil, appErrors.InvalidState("no report has been submitted")
	}

	next := current.Clone()
	next.HeadmasterApproval = &models.HeadmasterApproval{
		Approved:   approved,
		Comments:   strings.TrimSpace(comments),
		ApprovedBy: actor.UserID,
		ApprovedAt: now,
	}
	to := models.InspectionStatusSubmitted
	kind := models.NotificationHeadmasterRejected
	title := "Report rejected by headmaster"
	if approved {
		to = models.InspectionStatusResponded
		kind = models.NotificationHeadmasterApproved
		title = "Report approved by headmaster"
	}
	return advance(current, next, to, now,
		intent(kind, teamRecipient(next.TeamID), next, actor, now, title,
			fmt.Sprintf("Headmaster decision recorded for %q", next.TaskName))), nil
}

// ReviewAsGovernment attaches the responder's review and routes the inspection
// to closed, escalated or back to responded.
func ReviewAsGovernment(current *models.Inspection, actor models.Actor, in ReviewInput, now time.Time) (*Transition, error) {
	if current == nil {
		return nil, appErrors.ErrNotFound
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleResponder {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only government responders can review inspections")
	}
	if current.OfficeResponse == nil {
		return nil, appErrors.InvalidState("office has not responded yet")
	}
	if current.Status != models.InspectionStatusResponded {
		return nil, appErrors.InvalidState(fmt.Sprintf("only responded inspections can be reviewed (current status: %s)", current.Status))
	}

	var to models.InspectionStatus
	switch in.ReviewStatus {
	case models.ReviewStatusApproved:
		to = models.InspectionStatusClosed
	case models.ReviewStatusEscalated:
		to = models.InspectionStatusEscalated
	case models.ReviewStatusMoreInfo:
		to = models.InspectionStatusResponded
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "review_status must be one of approved, escalated, more_info")
	}
	comments := strings.TrimSpace(in.ReviewComments)
	if len(comments) < MinReviewCommentsLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("review_comments must be at least %d characters", MinReviewCommentsLength))
	}
	reason := strings.TrimSpace(in.EscalationReason)
	if in.ReviewStatus == models.ReviewStatusEscalated && reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "escalation_reason is required when escalating")
	}

	next := current.Clone()
	review := &models.GovtReview{
		ReviewStatus:   in.ReviewStatus,
		ReviewComments: comments,
		ActionItems:    cleanItems(in.ActionItems),
		ReviewedAt:     now,
		ReviewedBy:     actor.UserID,
	}
	if reason != "" {
		review.EscalationReason = &reason
	}
	next.GovtReview = review
	return advance(current, next, to, now,
		intent(models.NotificationReviewCompleted, officeRecipient(next.OfficeID), next, actor, now,
			"Government review completed",
			fmt.Sprintf("Review of %q finished with status %s", next.TaskName, in.ReviewStatus))), nil
}

// OverrideStatus forces a status and records the audit trail on the record.
func OverrideStatus(current *models.Inspection, actor models.Actor, in OverrideInput, now time.Time) (*Transition, error) {
	if current == nil {
		return nil, appErrors.ErrNotFound
	}
	if !in.Target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid status %q", in.Target))
	}
	record := &models.StatusOverride{
		PreviousStatus: current.Status,
		Reason:         strings.TrimSpace(in.Reason),
		OverriddenBy:   actor.UserID,
		OverriddenAt:   now,
	}
	next := current.Clone()
	switch actor.Role {
	case models.RoleAdmin:
		next.AdminOverride = record
	case models.RoleResponder:
		next.ResponderOverride = record
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins and responders can override status")
	}
	return advance(current, next, in.Target, now,
		intent(models.NotificationStatusOverridden, teamRecipient(next.TeamID), next, actor, now,
			"Inspection status changed",
			fmt.Sprintf("Status of %q was set to %s", next.TaskName, in.Target))), nil
}

// Reassign moves a non-closed inspection to another active team of the same
// school and resets all downstream workflow records.
func Reassign(current *models.Inspection, actor models.Actor, team *models.Team, now time.Time) (*Transition, error) {
	if current == nil || team == nil {
		return nil, appErrors.ErrNotFound
	}
	if !hasRole(actor, ReassignRoles) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins and responders can reassign")
	}
	if current.Status == models.InspectionStatusClosed {
		return nil, appErrors.InvalidState("closed inspections cannot be reassigned")
	}
	if !team.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "team is not active")
	}
	if team.SchoolID != current.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "team does not belong to the inspection's school")
	}

	next := current.Clone()
	next.TeamID = team.ID
	next.Report = nil
	next.OfficeResponse = nil
	next.GovtReview = nil
	next.HeadmasterApproval = nil
	return advance(current, next, models.InspectionStatusAssigned, now,
		intent(models.NotificationNewAssignment, teamRecipient(team.ID), next, actor, now,
			"Inspection reassigned to your team",
			fmt.Sprintf("Your team has been assigned to inspect %q", next.TaskName))), nil
}

func hasRole(actor models.Actor, roles []models.UserRole) bool {
	for _, role := range roles {
		if actor.Role == role {
			return true
		}
	}
	return false
}

// CloseForResolution forces an inspection to closed after its escalation is
// resolved, whatever its prior status.
func CloseForResolution(current *models.Inspection, now time.Time) *Transition {
	next := current.Clone()
	from := current.Status
	next.Status = models.InspectionStatusClosed
	next.UpdatedAt = now
	return &Transition{From: from, To: models.InspectionStatusClosed, Inspection: next}
}

func advance(current, next *models.Inspection, to models.InspectionStatus, now time.Time, in models.NotificationIntent) *Transition {
	next.Status = to
	next.UpdatedAt = now
	return &Transition{From: current.Status, To: to, Inspection: next, Intent: in}
}

func requireOfficeActor(current *models.Inspection, actor models.Actor) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	if actor.OfficeID == "" || actor.OfficeID != current.OfficeID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the inspected office can respond")
	}
	return nil
}

func validateResponse(in ResponseInput) error {
	if len(strings.TrimSpace(in.ResponseText)) < MinResponseTextLength {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("response_text must be at least %d characters", MinResponseTextLength))
	}
	if strings.TrimSpace(in.ActionTaken) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "action_taken is required")
	}
	return nil
}

func cleanItems(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func intent(kind models.NotificationType, to models.Recipient, insp *models.Inspection, actor models.Actor, now time.Time, title, message string) models.NotificationIntent {
	return models.NotificationIntent{
		Type:         kind,
		Recipient:    to,
		InspectionID: insp.ID,
		Title:        title,
		Message:      message,
		ActorID:      actor.UserID,
		OccurredAt:   now,
	}
}

func teamRecipient(id string) models.Recipient {
	return models.Recipient{Kind: models.RecipientTeam, ID: id}
}

func officeRecipient(id string) models.Recipient {
	return models.Recipient{Kind: models.RecipientOffice, ID: id}
}

func respondersRecipient() models.Recipient {
	return models.Recipient{Kind: models.RecipientResponders}
}
