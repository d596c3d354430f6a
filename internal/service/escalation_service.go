package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/civica-api/internal/dto"
	"github.com/noah-isme/civica-api/internal/models"
	"github.com/noah-isme/civica-api/internal/workflow"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
)

type escalationStore interface {
	FindByID(ctx context.Context, id string) (*models.Escalation, error)
	Update(ctx context.Context, exec sqlx.ExtContext, esc *models.Escalation) error
	List(ctx context.Context, filter models.EscalationFilter) ([]models.Escalation, int, error)
}

type inspectionCloser interface {
	FindByID(ctx context.Context, id string) (*models.Inspection, error)
	Update(ctx context.Context, exec sqlx.ExtContext, insp *models.Inspection) error
}

// EscalationService manages follow-up, resolution and re-escalation of
// escalated inspections.
type EscalationService struct {
	repo        escalationStore
	inspections inspectionCloser
	tx          txProvider
	notifier    NotificationDispatcher
	metrics     transitionObserver
	logger      *zap.Logger
	now         func() time.Time
}

// NewEscalationService constructs the service.
func NewEscalationService(repo escalationStore, inspections inspectionCloser, tx txProvider, notifier NotificationDispatcher, metrics transitionObserver, logger *zap.Logger) *EscalationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationService{
		repo:        repo,
		inspections: inspections,
		tx:          tx,
		notifier:    notifier,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// List returns escalations; office users only see their own office.
func (s *EscalationService) List(ctx context.Context, actor models.Actor, filter models.EscalationFilter) ([]models.Escalation, *models.Pagination, error) {
	filter.Page, filter.PageSize = models.NormalisePage(filter.Page, filter.PageSize, 20, 200)
	if actor.Role == models.RoleOffice {
		filter.OfficeID = actor.OfficeID
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list escalations")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one escalation.
func (s *EscalationService) Get(ctx context.Context, actor models.Actor, id string) (*models.Escalation, error) {
	esc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleOffice && actor.OfficeID != esc.OfficeID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "escalation belongs to another office")
	}
	return esc, nil
}

// AddFollowUp appends a follow-up entry.
func (s *EscalationService) AddFollowUp(ctx context.Context, actor models.Actor, id string, req dto.FollowUpRequest) (*models.Escalation, error) {
	return s.apply(ctx, actor, id, func(current *models.Escalation, now time.Time) (*workflow.EscalationTransition, error) {
		return workflow.AddFollowUp(current, actor, workflow.FollowUpInput{Notes: req.Notes, ActionTaken: req.ActionTaken}, now)
	})
}

// ReEscalate raises the escalation to another authority.
func (s *EscalationService) ReEscalate(ctx context.Context, actor models.Actor, id string, req dto.ReEscalateRequest) (*models.Escalation, error) {
	return s.apply(ctx, actor, id, func(current *models.Escalation, now time.Time) (*workflow.EscalationTransition, error) {
		return workflow.ReEscalate(current, actor, workflow.ReEscalateInput{Reason: req.Reason, EscalateTo: req.EscalateTo}, now)
	})
}

// Resolve closes the escalation and forces its inspection to closed in the
// same transaction.
func (s *EscalationService) Resolve(ctx context.Context, actor models.Actor, id string, req dto.ResolveEscalationRequest) (*models.Escalation, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	tr, err := workflow.Resolve(current, actor, req.ResolutionNotes, now)
	if err != nil {
		return nil, err
	}

	var closed *workflow.Transition
	if tr.CloseInspection {
		insp, err := s.inspections.FindByID(ctx, current.InspectionID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			s.logger.Warn("escalated inspection missing", zap.String("escalation_id", id), zap.String("inspection_id", current.InspectionID))
		case err != nil:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load inspection")
		default:
			closed = workflow.CloseForResolution(insp, now)
		}
	}

	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.persist(ctx, tx, tr.Escalation); err != nil {
			return err
		}
		if closed == nil {
			return nil
		}
		if err := s.inspections.Update(ctx, tx, closed.Inspection); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConcurrentUpdate, "")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close inspection")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, actor, tr)
	if closed != nil {
		s.logger.Info("inspection transition",
			zap.String("inspection_id", closed.Inspection.ID),
			zap.String("from", string(closed.From)),
			zap.String("to", string(closed.To)),
			zap.String("actor", actor.UserID),
		)
		if s.metrics != nil {
			s.metrics.ObserveTransition("inspection", string(closed.From), string(closed.To))
		}
	}
	return tr.Escalation, nil
}

func (s *EscalationService) apply(ctx context.Context, actor models.Actor, id string, step func(*models.Escalation, time.Time) (*workflow.EscalationTransition, error)) (*models.Escalation, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := step(current, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, nil, tr.Escalation); err != nil {
		return nil, err
	}
	s.recordTransition(ctx, actor, tr)
	return tr.Escalation, nil
}

func (s *EscalationService) load(ctx context.Context, id string) (*models.Escalation, error) {
	esc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "escalation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load escalation")
	}
	return esc, nil
}

func (s *EscalationService) persist(ctx context.Context, exec sqlx.ExtContext, esc *models.Escalation) error {
	if err := s.repo.Update(ctx, exec, esc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConcurrentUpdate, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update escalation")
	}
	return nil
}

func (s *EscalationService) recordTransition(ctx context.Context, actor models.Actor, tr *workflow.EscalationTransition) {
	s.logger.Info("escalation transition",
		zap.String("escalation_id", tr.Escalation.ID),
		zap.String("inspection_id", tr.Escalation.InspectionID),
		zap.String("from", string(tr.From)),
		zap.String("to", string(tr.To)),
		zap.String("actor", actor.UserID),
	)
	if s.metrics != nil {
		s.metrics.ObserveTransition("escalation", string(tr.From), string(tr.To))
	}
	if s.notifier != nil {
		s.notifier.Dispatch(ctx, tr.Intent)
	}
}
