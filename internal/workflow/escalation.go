package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/civica-api/internal/models"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
)

const (
	MinResolutionNotesLength = 30
	MinReEscalationLength    = 30
	ReEscalatedAction        = "re_escalated"
)

// EscalationTransition is the outcome of an escalation lifecycle step.
type EscalationTransition struct {
	From       models.EscalationStatus
	To         models.EscalationStatus
	Escalation *models.Escalation
	Intent     models.NotificationIntent
	// CloseInspection is set when the linked inspection must be forced closed.
	CloseInspection bool
}

// OpenEscalationInput carries the optional creation attributes.
type OpenEscalationInput struct {
	Severity    models.Severity
	Description string
}

// FollowUpInput is the payload of a follow-up entry.
type FollowUpInput struct {
	Notes       string
	ActionTaken string
}

// ReEscalateInput is the payload of a re-escalation.
type ReEscalateInput struct {
	Reason     string
	EscalateTo string
}

// OpenEscalation builds the escalation record for an inspection whose
// government review escalated it.
func OpenEscalation(insp *models.Inspection, actor models.Actor, in OpenEscalationInput, now time.Time) (*models.Escalation, error) {
	if insp == nil {
		return nil, appErrors.ErrNotFound
	}
	if insp.Status != models.InspectionStatusEscalated || insp.GovtReview == nil ||
		insp.GovtReview.ReviewStatus != models.ReviewStatusEscalated {
		return nil, appErrors.InvalidState("inspection has not been escalated by a government review")
	}
	severity := in.Severity
	if severity == "" {
		severity = models.SeverityMedium
	}
	if !severity.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid severity %q", severity))
	}
	reason := ""
	if insp.GovtReview.EscalationReason != nil {
		reason = *insp.GovtReview.EscalationReason
	}
	esc := &models.Escalation{
		InspectionID:     insp.ID,
		OfficeID:         insp.OfficeID,
		EscalationReason: reason,
		ActionItems:      append([]string{}, insp.GovtReview.ActionItems...),
		Severity:         severity,
		EscalatedBy:      actor.UserID,
		EscalatedAt:      now,
		Status:           models.EscalationStatusOpen,
		FollowUps:        []models.FollowUp{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if desc := strings.TrimSpace(in.Description); desc != "" {
		esc.Description = &desc
	}
	return esc, nil
}

// AddFollowUp appends a follow-up; the escalation becomes in_progress.
func AddFollowUp(current *models.Escalation, actor models.Actor, in FollowUpInput, now time.Time) (*EscalationTransition, error) {
	if current == nil {
		return nil, appErrors.ErrNotFound
	}
	if current.Status == models.EscalationStatusResolved {
		return nil, appErrors.InvalidState("escalation is already resolved")
	}
	notes := strings.TrimSpace(in.Notes)
	if notes == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "notes are required")
	}
	next := current.Clone()
	entry := models.FollowUp{Notes: notes, AddedBy: actor.UserID, AddedAt: now}
	if action := strings.TrimSpace(in.ActionTaken); action != "" {
		entry.ActionTaken = &action
	}
	next.FollowUps = append(next.FollowUps, entry)
	return escalate(current, next, models.EscalationStatusInProgress, now, false,
		escalationIntent(models.NotificationEscalationUpdated, officeRecipient(next.OfficeID), next, actor, now,
			"Escalation follow-up added", "A follow-up was added to an escalation on your office")), nil
}

// Resolve closes the escalation. The caller must force the linked inspection
// to closed regardless of its prior status.
func Resolve(current *models.Escalation, actor models.Actor, notes string, now time.Time) (*EscalationTransition, error) {
	if current == nil {
		return nil, appErrors.ErrNotFound
	}
	if current.Status == models.EscalationStatusResolved {
		return nil, appErrors.InvalidState("escalation is already resolved")
	}
	notes = strings.TrimSpace(notes)
	if len(notes) < MinResolutionNotesLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("resolution_notes must be at least %d characters", MinResolutionNotesLength))
	}
	next := current.Clone()
	resolver := actor.UserID
	resolvedAt := now
	next.ResolutionNotes = &notes
	next.ResolvedBy = &resolver
	next.ResolvedAt = &resolvedAt
	return escalate(current, next, models.EscalationStatusResolved, now, true,
		escalationIntent(models.NotificationEscalationResolved, officeRecipient(next.OfficeID), next, actor, now,
			"Escalation resolved", "An escalation on your office has been resolved")), nil
}

// ReEscalate pushes the escalation to a higher authority and records a
// synthetic follow-up describing the move.
func ReEscalate(current *models.Escalation, actor models.Actor, in ReEscalateInput, now time.Time) (*EscalationTransition, error) {
	if current == nil {
		return nil, appErrors.ErrNotFound
	}
	if current.Status == models.EscalationStatusResolved {
		return nil, appErrors.InvalidState("escalation is already resolved")
	}
	reason := strings.TrimSpace(in.Reason)
	if len(reason) < MinReEscalationLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("reason must be at least %d characters", MinReEscalationLength))
	}
	next := current.Clone()
	next.ReEscalationReason = &reason
	body := reason
	if target := strings.TrimSpace(in.EscalateTo); target != "" {
		// Free-text authority name, never a user id.
		next.ReEscalatedTo = &target
		body = fmt.Sprintf("Escalated to %s: %s", target, reason)
	}
	action := ReEscalatedAction
	next.FollowUps = append(next.FollowUps, models.FollowUp{
		Notes:       "Re-escalated: " + reason,
		AddedBy:     actor.UserID,
		AddedAt:     now,
		ActionTaken: &action,
	})
	return escalate(current, next, models.EscalationStatusReEscalated, now, false,
		escalationIntent(models.NotificationReEscalated, respondersRecipient(), next, actor, now,
			"Escalation re-escalated", body)), nil
}

func escalate(current, next *models.Escalation, to models.EscalationStatus, now time.Time, closeInspection bool, in models.NotificationIntent) *EscalationTransition {
	next.Status = to
	next.UpdatedAt = now
	return &EscalationTransition{
		From:            current.Status,
		To:              to,
		Escalation:      next,
		Intent:          in,
		CloseInspection: closeInspection,
	}
}

func escalationIntent(kind models.NotificationType, to models.Recipient, esc *models.Escalation, actor models.Actor, now time.Time, title, message string) models.NotificationIntent {
	return models.NotificationIntent{
		Type:         kind,
		Recipient:    to,
		InspectionID: esc.InspectionID,
		EscalationID: esc.ID,
		Title:        title,
		Message:      message,
		ActorID:      actor.UserID,
		OccurredAt:   now,
	}
}
