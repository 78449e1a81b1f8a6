package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ctp-api/internal/models"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
	"github.com/noah-isme/ctp-api/pkg/jobs"
)

type notificationRepository interface {
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	MarkSent(ctx context.Context, id string, at time.Time, attempts int) error
	MarkFailed(ctx context.Context, id string, attempts int) error
}

// NotificationSender delivers one notification to its recipient. The
// portal treats delivery as a best-effort collaborator.
type NotificationSender interface {
	Send(ctx context.Context, n *models.Notification) error
}

// LogSender writes notifications to the application log instead of an
// outbound channel. Used when no mail transport is configured.
type LogSender struct {
	SenderName string
	Logger     *zap.Logger
}

// Send logs the notification payload.
func (s *LogSender) Send(_ context.Context, n *models.Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("notification dispatched",
		zap.String("sender", s.SenderName),
		zap.String("recipient", n.RecipientEmail),
		zap.String("subject", n.Subject),
	)
	return nil
}

// NotificationService persists notification records and feeds the
// delivery queue. Students read their notifications by polling.
type NotificationService struct {
	repo    notificationRepository
	queue   jobDispatcher
	enabled bool
	logger  *zap.Logger
}

// NewNotificationService constructs the notification service.
func NewNotificationService(repo notificationRepository, queue jobDispatcher, enabled bool, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, queue: queue, enabled: enabled, logger: logger}
}

// List returns notifications with pagination metadata.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	notifications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return notifications, pagination, nil
}

// NotifySelection records a selection notice per recipient and enqueues
// delivery. Failures are logged and tolerated; the caller's selection
// write is never reversed by a notification failure.
func (s *NotificationService) NotifySelection(ctx context.Context, event *models.PlacementEvent, selections []models.EventSelection) {
	if !s.enabled || event == nil {
		return
	}
	subject := fmt.Sprintf("Selected: %s", event.Title)
	if event.Company.CompanyName != "" {
		subject = fmt.Sprintf("Selected: %s (%s)", event.Title, event.Company.CompanyName)
	}
	for _, sel := range selections {
		n := &models.Notification{
			RecipientEmail: sel.Email,
			EventID:        &event.ID,
			Subject:        subject,
			Body: fmt.Sprintf("Congratulations %s, you have been selected in %s. Check the placement portal for next steps.",
				sel.FullName, event.Title),
		}
		if err := s.repo.Create(ctx, n); err != nil {
			s.logger.Warn("failed to record selection notification",
				zap.String("event_id", event.ID), zap.String("recipient", sel.Email), zap.Error(err))
			continue
		}
		if err := s.queue.Enqueue(jobs.Job{ID: n.ID, Type: "notification"}); err != nil {
			s.logger.Warn("failed to enqueue selection notification",
				zap.String("notification_id", n.ID), zap.Error(err))
		}
	}
}

// NotificationWorker drains the delivery queue.
type NotificationWorker struct {
	repo       notificationRepository
	sender     NotificationSender
	maxRetries int
	logger     *zap.Logger
}

// NewNotificationWorker constructs a worker.
func NewNotificationWorker(repo notificationRepository, sender NotificationSender, maxRetries int, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &NotificationWorker{repo: repo, sender: sender, maxRetries: maxRetries, logger: logger}
}

// Handle delivers one queued notification.
func (w *NotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	n, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			w.logger.Warn("notification vanished before delivery", zap.String("notification_id", job.ID))
			return nil
		}
		return err
	}
	if n.Status == models.NotificationStatusSent {
		return nil
	}
	attempts := job.Attempt + 1
	if err := w.sender.Send(ctx, n); err != nil {
		if job.Attempt >= w.maxRetries {
			if markErr := w.repo.MarkFailed(ctx, n.ID, attempts); markErr != nil {
				w.logger.Warn("failed to mark notification failed", zap.String("notification_id", n.ID), zap.Error(markErr))
			}
		}
		return err
	}
	if err := w.repo.MarkSent(ctx, n.ID, time.Now().UTC(), attempts); err != nil {
		w.logger.Warn("failed to mark notification sent", zap.String("notification_id", n.ID), zap.Error(err))
		return err
	}
	return nil
}
