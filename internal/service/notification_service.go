package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/civica-api/internal/models"
	appErrors "github.com/noah-isme/civica-api/pkg/errors"
	"github.com/noah-isme/civica-api/pkg/jobs"
)

// NotificationJobType tags queue jobs carrying a models.NotificationIntent.
const NotificationJobType = "notification_intent"

type notificationStore interface {
	CreateBatch(ctx context.Context, notifications []models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type recipientDirectory interface {
	ActiveIDs(ctx context.Context, role models.UserRole, column, value string) ([]string, error)
}

type intentPublisher interface {
	Publish(ctx context.Context, v interface{}) (int64, error)
}

// NotificationDispatcher is the port the workflow services emit intents through.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, intent models.NotificationIntent)
}

// NotificationService queues workflow intents and serves per-user notification reads.
type NotificationService struct {
	store  notificationStore
	queue  jobDispatcher
	logger *zap.Logger
}

// NewNotificationService constructs the service. A nil queue disables delivery.
func NewNotificationService(store notificationStore, queue jobDispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{store: store, queue: queue, logger: logger}
}

// Dispatch hands the intent to the delivery queue. Failures are logged and
// never surface to the caller since the originating transition is committed.
func (s *NotificationService) Dispatch(ctx context.Context, intent models.NotificationIntent) {
	if s == nil || s.queue == nil || intent.Type == "" {
		return
	}
	job := jobs.Job{ID: intent.InspectionID, Type: NotificationJobType, Payload: intent}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("type", string(intent.Type)),
			zap.String("inspection_id", intent.InspectionID),
			zap.Error(err),
		)
	}
}

// List returns the caller's notifications.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	filter.Page, filter.PageSize = models.NormalisePage(filter.Page, filter.PageSize, 20, 100)
	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// UnreadCount returns the caller's unread total.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead flags one notification owned by the caller.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.store.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	return nil
}

// MarkAllRead flags every unread notification of the caller.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	updated, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notifications")
	}
	return updated, nil
}

// PublishedIntent is the message broadcast on the notification channel.
type PublishedIntent struct {
	models.NotificationIntent
	Recipients []string `json:"recipients"`
}

// NotificationWorker resolves intents to users, persists and publishes them.
type NotificationWorker struct {
	store     notificationStore
	directory recipientDirectory
	publisher intentPublisher
	logger    *zap.Logger
}

// NewNotificationWorker constructs a worker. A nil publisher skips fan-out.
func NewNotificationWorker(store notificationStore, directory recipientDirectory, publisher intentPublisher, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{store: store, directory: directory, publisher: publisher, logger: logger}
}

// Handle processes a queue job.
func (w *NotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	intent, ok := job.Payload.(models.NotificationIntent)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	return w.Deliver(ctx, intent)
}

// Deliver stores one notification per recipient and publishes the intent.
func (w *NotificationWorker) Deliver(ctx context.Context, intent models.NotificationIntent) error {
	recipients, err := w.resolve(ctx, intent.Recipient)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		w.logger.Debug("notification has no recipients",
			zap.String("type", string(intent.Type)),
			zap.String("recipient_kind", string(intent.Recipient.Kind)),
		)
		return nil
	}

	rows := make([]models.Notification, 0, len(recipients))
	for _, userID := range recipients {
		rows = append(rows, models.Notification{
			UserID:       userID,
			Type:         intent.Type,
			Title:        intent.Title,
			Message:      intent.Message,
			InspectionID: optionalString(intent.InspectionID),
			EscalationID: optionalString(intent.EscalationID),
			CreatedAt:    intent.OccurredAt,
		})
	}
	if err := w.store.CreateBatch(ctx, rows); err != nil {
		return err
	}

	if w.publisher != nil {
		if _, err := w.publisher.Publish(ctx, PublishedIntent{NotificationIntent: intent, Recipients: recipients}); err != nil {
			w.logger.Warn("failed to publish notification", zap.String("type", string(intent.Type)), zap.Error(err))
		}
	}
	return nil
}

func (w *NotificationWorker) resolve(ctx context.Context, to models.Recipient) ([]string, error) {
	switch to.Kind {
	case models.RecipientUser:
		if to.ID == "" {
			return nil, nil
		}
		return []string{to.ID}, nil
	case models.RecipientTeam:
		return w.directory.ActiveIDs(ctx, models.RoleStudent, "team_id", to.ID)
	case models.RecipientOffice:
		return w.directory.ActiveIDs(ctx, models.RoleOffice, "office_id", to.ID)
	case models.RecipientSchool:
		return w.directory.ActiveIDs(ctx, models.RoleHeadmaster, "school_id", to.ID)
	case models.RecipientResponders:
		return w.directory.ActiveIDs(ctx, models.RoleResponder, "", "")
	}
	return nil, fmt.Errorf("unknown recipient kind %q", to.Kind)
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
