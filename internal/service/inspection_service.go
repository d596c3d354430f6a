package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/civica-api/internal/dto"
	"github.com/noah-isme/civica-api/internal/models"
	"github.com/noah-isme/civica-api/internal/workflow"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
)

type inspectionStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, insp *models.Inspection) error
	FindByID(ctx context.Context, id string) (*models.Inspection, error)
	Update(ctx context.Context, exec sqlx.ExtContext, insp *models.Inspection) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.InspectionFilter) ([]models.Inspection, int, error)
}

type escalationOpener interface {
	Create(ctx context.Context, exec sqlx.ExtContext, esc *models.Escalation) error
	FindUnresolvedByInspection(ctx context.Context, inspectionID string) (*models.Escalation, error)
}

type schoolFinder interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
}

type officeFinder interface {
	FindByID(ctx context.Context, id string) (*models.Office, error)
}

type templateFinder interface {
	FindByID(ctx context.Context, id string) (*models.Template, error)
}

type teamFinder interface {
	FindByID(ctx context.Context, id string) (*models.Team, error)
}

type teamSelector interface {
	SelectTeam(ctx context.Context, schoolID string) (string, error)
}

type transitionObserver interface {
	ObserveTransition(entity, from, to string)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// InspectionLookups groups the directory readers used to validate references.
type InspectionLookups struct {
	Schools   schoolFinder
	Offices   officeFinder
	Templates templateFinder
	Teams     teamFinder
}

// InspectionService drives inspections through their lifecycle and persists
// every transition under optimistic concurrency.
type InspectionService struct {
	repo        inspectionStore
	escalations escalationOpener
	lookups     InspectionLookups
	selector    teamSelector
	tx          txProvider
	notifier    NotificationDispatcher
	metrics     transitionObserver
	audit       auditRecorder
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewInspectionService constructs the service. notifier, metrics and audit are optional.
func NewInspectionService(
	repo inspectionStore,
	escalations escalationOpener,
	lookups InspectionLookups,
	selector teamSelector,
	tx txProvider,
	notifier NotificationDispatcher,
	metrics transitionObserver,
	audit auditRecorder,
	validate *validator.Validate,
	logger *zap.Logger,
) *InspectionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InspectionService{
		repo:        repo,
		escalations: escalations,
		lookups:     lookups,
		selector:    selector,
		tx:          tx,
		notifier:    notifier,
		metrics:     metrics,
		audit:       audit,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// List returns inspections visible to the actor.
func (s *InspectionService) List(ctx context.Context, actor models.Actor, filter models.InspectionFilter) ([]models.Inspection, *models.Pagination, error) {
	filter.Page, filter.PageSize = models.NormalisePage(filter.Page, filter.PageSize, 20, 200)
	switch actor.Role {
	case models.RoleStudent:
		if actor.TeamID == "" {
			return []models.Inspection{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
		}
		filter.TeamID = actor.TeamID
	case models.RoleOffice:
		if actor.OfficeID == "" {
			return []models.Inspection{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
		}
		filter.OfficeID = actor.OfficeID
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list inspections")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one inspection if the actor may read it.
func (s *InspectionService) Get(ctx context.Context, actor models.Actor, id string) (*models.Inspection, error) {
	insp, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canRead(actor, insp) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "inspection belongs to another team or office")
	}
	return insp, nil
}

// Create validates references, picks a team when needed and stores the
// inspection in status assigned.
func (s *InspectionService) Create(ctx context.Context, actor models.Actor, req dto.CreateInspectionRequest) (*models.Inspection, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid inspection payload")
	}
	if actor.Role == models.RoleHeadmaster && actor.SchoolID != req.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "headmasters can only assign inspections for their school")
	}
	now := s.now().UTC()
	assigned := now
	if req.AssignedDate != nil {
		assigned = req.AssignedDate.UTC()
	}
	if req.DueDate.Before(assigned) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "due_date must not be before assigned_date")
	}
	if err := s.ensureSchool(ctx, req.SchoolID); err != nil {
		return nil, err
	}
	if err := s.ensureOffice(ctx, req.OfficeID); err != nil {
		return nil, err
	}
	if err := s.ensureTemplate(ctx, req.TemplateID); err != nil {
		return nil, err
	}

	teamID := strings.TrimSpace(req.TeamID)
	if req.AutoAssign || teamID == "" {
		if s.selector == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "team_id is required")
		}
		selected, err := s.selector.SelectTeam(ctx, req.SchoolID)
		if err != nil {
			return nil, err
		}
		teamID = selected
	} else if _, err := s.schoolTeam(ctx, teamID, req.SchoolID); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	tr, err := workflow.Assign(&models.Inspection{
		TaskName:        strings.TrimSpace(req.TaskName),
		TaskDescription: strings.TrimSpace(req.TaskDescription),
		OfficeID:        req.OfficeID,
		SchoolID:        req.SchoolID,
		TeamID:          teamID,
		TemplateID:      req.TemplateID,
		AssignedDate:    assigned,
		DueDate:         req.DueDate.UTC(),
		Priority:        priority,
	}, actor, now)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, nil, tr.Inspection); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create inspection")
	}
	s.recordTransition(ctx, actor, tr)
	s.emitAudit(ctx, actor, models.AuditActionInspectionAdd, tr.Inspection.ID, nil, tr.Inspection)
	return tr.Inspection, nil
}

// Update edits the task definition while the inspection is still assigned.
func (s *InspectionService) Update(ctx context.Context, actor models.Actor, id string, req dto.UpdateInspectionRequest) (*models.Inspection, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid inspection payload")
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleHeadmaster && actor.SchoolID != current.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "inspection belongs to another school")
	}
	if current.Status != models.InspectionStatusAssigned {
		return nil, appErrors.InvalidState("only assigned inspections can be edited (current status: " + string(current.Status) + ")")
	}

	next := current.Clone()
	if req.TaskName != nil {
		name := strings.TrimSpace(*req.TaskName)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "task_name cannot be empty")
		}
		next.TaskName = name
	}
	if req.TaskDescription != nil {
		next.TaskDescription = strings.TrimSpace(*req.TaskDescription)
	}
	if req.OfficeID != nil && *req.OfficeID != current.OfficeID {
		if err := s.ensureOffice(ctx, *req.OfficeID); err != nil {
			return nil, err
		}
		next.OfficeID = *req.OfficeID
	}
	if req.TemplateID != nil && *req.TemplateID != current.TemplateID {
		if err := s.ensureTemplate(ctx, *req.TemplateID); err != nil {
			return nil, err
		}
		next.TemplateID = *req.TemplateID
	}
	if req.TeamID != nil && *req.TeamID != current.TeamID {
		if _, err := s.schoolTeam(ctx, *req.TeamID, current.SchoolID); err != nil {
			return nil, err
		}
		next.TeamID = *req.TeamID
	}
	if req.DueDate != nil {
		if req.DueDate.Before(next.AssignedDate) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "due_date must not be before assigned_date")
		}
		next.DueDate = req.DueDate.UTC()
	}
	if req.Priority != nil {
		next.Priority = *req.Priority
	}
	next.UpdatedAt = s.now().UTC()
	if err := s.persist(ctx, nil, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Delete removes an inspection permanently.
func (s *InspectionService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "inspection not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete inspection")
	}
	s.emitAudit(ctx, actor, models.AuditActionInspectionDrop, id, nil, nil)
	return nil
}

// SubmitReport stores the team's report.
func (s *InspectionService) SubmitReport(ctx context.Context, actor models.Actor, id string, req dto.SubmitReportRequest) (*models.Inspection, error) {
	return s.apply(ctx, actor, id, func(current *models.Inspection, now time.Time) (*workflow.Transition, error) {
		return workflow.SubmitReport(current, actor, workflow.ReportInput{
			CleanlinessRating:    req.CleanlinessRating,
			StaffBehaviorRating:  req.StaffBehaviorRating,
			ServiceQualityRating: req.ServiceQualityRating,
			Issues:               req.Issues,
			Complaints:           req.Complaints,
			Suggestions:          req.Suggestions,
			Photos:               req.Photos,
		}, now)
	})
}

// Respond records the office response.
func (s *InspectionService) Respond(ctx context.Context, actor models.Actor, id string, req dto.OfficeResponseRequest) (*models.Inspection, error) {
	return s.apply(ctx, actor, id, func(current *models.Inspection, now time.Time) (*workflow.Transition, error) {
		return workflow.RespondAsOffice(current, actor, responseInput(req), now)
	})
}

// EditResponse amends the office response before review.
func (s *InspectionService) EditResponse(ctx context.Context, actor models.Actor, id string, req dto.OfficeResponseRequest) (*models.Inspection, error) {
	return s.apply(ctx, actor, id, func(current *models.Inspection, now time.Time) (*workflow.Transition, error) {
		return workflow.EditOfficeResponse(current, actor, responseInput(req), now)
	})
}

// Approve records the headmaster's approval.
func (s *InspectionService) Approve(ctx context.Context, actor models.Actor, id string, req dto.HeadmasterDecisionRequest) (*models.Inspection, error) {
	return s.apply(ctx, actor, id, func(current *models.Inspection, now time.Time) (*workflow.Transition, error) {
		return workflow.ApproveAsHeadmaster(current, actor, req.Comments, now)
	})
}

// Reject records the headmaster's rejection and hands the work back to the team.
func (s *InspectionService) Reject(ctx context.Context, actor models.Actor, id string, req dto.HeadmasterDecisionRequest) (*models.Inspection, error) {
	return s.apply(ctx, actor, id, func(current *models.Inspection, now time.Time) (*workflow.Transition, error) {
		return workflow.RejectAsHeadmaster(current, actor, req.Comments, now)
	})
}

// Review records the government review. An escalating review opens an
// escalation in the same transaction unless an unresolved one already exists.
func (s *InspectionService) Review(ctx context.Context, actor models.Actor, id string, req dto.GovtReviewRequest) (*dto.ReviewOutcome, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	tr, err := workflow.ReviewAsGovernment(current, actor, workflow.ReviewInput{
		ReviewStatus:     req.ReviewStatus,
		ReviewComments:   req.ReviewComments,
		EscalationReason: req.EscalationReason,
		ActionItems:      req.ActionItems,
	}, now)
	if err != nil {
		return nil, err
	}
	if tr.To != models.InspectionStatusEscalated {
		if err := s.persist(ctx, nil, tr.Inspection); err != nil {
			return nil, err
		}
		s.recordTransition(ctx, actor, tr)
		return &dto.ReviewOutcome{Inspection: tr.Inspection}, nil
	}

	existing, err := s.escalations.FindUnresolvedByInspection(ctx, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load escalation")
	}
	var opened *models.Escalation
	if existing == nil {
		opened, err = workflow.OpenEscalation(tr.Inspection, actor, workflow.OpenEscalationInput{
			Severity:    req.Severity,
			Description: req.Description,
		}, now)
		if err != nil {
			return nil, err
		}
	}

	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.persist(ctx, tx, tr.Inspection); err != nil {
			return err
		}
		if opened == nil {
			return nil
		}
		if err := s.escalations.Create(ctx, tx, opened); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create escalation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, actor, tr)
	if opened == nil {
		return &dto.ReviewOutcome{Inspection: tr.Inspection, Escalation: existing}, nil
	}
	s.logger.Info("escalation opened",
		zap.String("escalation_id", opened.ID),
		zap.String("inspection_id", opened.InspectionID),
		zap.String("severity", string(opened.Severity)),
		zap.String("actor", actor.UserID),
	)
	if s.metrics != nil {
		s.metrics.ObserveTransition("escalation", "", string(opened.Status))
	}
	return &dto.ReviewOutcome{Inspection: tr.Inspection, Escalation: opened}, nil
}

// Override forces a status and writes an audit record.
func (s *InspectionService) Override(ctx context.Context, actor models.Actor, id string, req dto.OverrideStatusRequest) (*models.Inspection, error) {
	var previous models.InspectionStatus
	insp, err := s.apply(ctx, actor, id, func(current *models.Inspection, now time.Time) (*workflow.Transition, error) {
		previous = current.Status
		return workflow.OverrideStatus(current, actor, workflow.OverrideInput{Target: req.Status, Reason: req.Reason}, now)
	})
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, actor, models.AuditActionStatusOverride, id,
		map[string]string{"status": string(previous)},
		map[string]string{"status": string(insp.Status), "reason": strings.TrimSpace(req.Reason)})
	return insp, nil
}

// Reassign moves the inspection to another team of the same school.
func (s *InspectionService) Reassign(ctx context.Context, actor models.Actor, id string, req dto.ReassignRequest) (*models.Inspection, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reassign payload")
	}
	team, err := s.lookups.Teams.FindByID(ctx, req.TeamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "team not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
	}
	var previous string
	insp, err := s.apply(ctx, actor, id, func(current *models.Inspection, now time.Time) (*workflow.Transition, error) {
		previous = current.TeamID
		return workflow.Reassign(current, actor, team, now)
	})
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, actor, models.AuditActionReassign, id,
		map[string]string{"team_id": previous},
		map[string]string{"team_id": team.ID})
	return insp, nil
}

func (s *InspectionService) apply(ctx context.Context, actor models.Actor, id string, step func(*models.Inspection, time.Time) (*workflow.Transition, error)) (*models.Inspection, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := step(current, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, nil, tr.Inspection); err != nil {
		return nil, err
	}
	s.recordTransition(ctx, actor, tr)
	return tr.Inspection, nil
}

func (s *InspectionService) load(ctx context.Context, id string) (*models.Inspection, error) {
	insp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "inspection not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load inspection")
	}
	return insp, nil
}

func (s *InspectionService) persist(ctx context.Context, exec sqlx.ExtContext, insp *models.Inspection) error {
	if err := s.repo.Update(ctx, exec, insp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConcurrentUpdate, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update inspection")
	}
	return nil
}

func (s *InspectionService) recordTransition(ctx context.Context, actor models.Actor, tr *workflow.Transition) {
	s.logger.Info("inspection transition",
		zap.String("inspection_id", tr.Inspection.ID),
		zap.String("from", string(tr.From)),
		zap.String("to", string(tr.To)),
		zap.String("actor", actor.UserID),
	)
	if s.metrics != nil {
		s.metrics.ObserveTransition("inspection", string(tr.From), string(tr.To))
	}
	if s.notifier != nil {
		s.notifier.Dispatch(ctx, tr.Intent)
	}
}

func (s *InspectionService) emitAudit(ctx context.Context, actor models.Actor, action, resourceID string, oldValues, newValues interface{}) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "inspection",
		ResourceID: optionalString(resourceID),
		UserID:     optionalString(actor.UserID),
		IPAddress:  "system",
		UserAgent:  "inspection-service",
		CreatedAt:  s.now().UTC(),
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to create inspection audit", zap.String("action", action), zap.Error(err))
	}
}

func (s *InspectionService) ensureSchool(ctx context.Context, id string) error {
	school, err := s.lookups.Schools.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	if !school.Active {
		return appErrors.Clone(appErrors.ErrValidation, "school is not active")
	}
	return nil
}

func (s *InspectionService) ensureOffice(ctx context.Context, id string) error {
	office, err := s.lookups.Offices.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "office not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load office")
	}
	if !office.Active {
		return appErrors.Clone(appErrors.ErrValidation, "office is not active")
	}
	return nil
}

func (s *InspectionService) ensureTemplate(ctx context.Context, id string) error {
	tpl, err := s.lookups.Templates.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	if !tpl.Active {
		return appErrors.Clone(appErrors.ErrValidation, "template is not active")
	}
	return nil
}

func (s *InspectionService) schoolTeam(ctx context.Context, teamID, schoolID string) (*models.Team, error) {
	team, err := s.lookups.Teams.FindByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "team not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
	}
	if !team.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "team is not active")
	}
	if team.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "team does not belong to the school")
	}
	return team, nil
}

func responseInput(req dto.OfficeResponseRequest) workflow.ResponseInput {
	return workflow.ResponseInput{
		ResponseText: req.ResponseText,
		ActionTaken:  req.ActionTaken,
		Remarks:      req.Remarks,
	}
}

func canRead(actor models.Actor, insp *models.Inspection) bool {
	switch actor.Role {
	case models.RoleStudent:
		return actor.TeamID != "" && actor.TeamID == insp.TeamID
	case models.RoleOffice:
		return actor.OfficeID != "" && actor.OfficeID == insp.OfficeID
	}
	return true
}
