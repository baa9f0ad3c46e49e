package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/medcampus/sims-api/internal/dto"
	"github.com/medcampus/sims-api/internal/models"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
	"github.com/medcampus/sims-api/pkg/jobs"
)

// NotificationFanoutJobType labels queued notification fan-outs.
const NotificationFanoutJobType = "notification_fanout"

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	UpdateStatus(ctx context.Context, id string, from, to models.NotificationStatus) (bool, error)
	IncrementFailureCount(ctx context.Context, id string) error
	UpsertInbox(ctx context.Context, entry *models.NotificationInbox) (bool, error)
	ListInbox(ctx context.Context, userID string, limit int) ([]models.NotificationInbox, error)
	MarkRead(ctx context.Context, entryID, userID string) error
	AppendDeliveryLog(ctx context.Context, entry *models.NotificationDeliveryLog) error
}

type audienceResolver interface {
	UserIDsByAudience(ctx context.Context, programID, batchID, groupID string, studentIDs []string) ([]string, error)
}

type roleResolver interface {
	FindByRoles(ctx context.Context, roles []models.Role) ([]string, error)
}

// NotificationService drafts notifications and fans them out to per-user
// inbox copies through the background queue.
type NotificationService struct {
	notifications notificationStore
	students      audienceResolver
	users         roleResolver
	queue         commitEnqueuer
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewNotificationService constructs a NotificationService instance. The queue
// may be nil; Send then fans out inline.
func NewNotificationService(
	notifications notificationStore,
	students audienceResolver,
	users roleResolver,
	queue commitEnqueuer,
	validate *validator.Validate,
	logger *zap.Logger,
) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &NotificationService{
		notifications: notifications,
		students:      students,
		users:         users,
		queue:         queue,
		validator:     validate,
		logger:        logger,
	}
}

// Create drafts a notification.
func (s *NotificationService) Create(ctx context.Context, req dto.CreateNotificationRequest, actorID string) (*models.Notification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification payload")
	}

	audienceJSON, err := json.Marshal(req.Audience)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode audience")
	}

	notification := &models.Notification{
		Title:        req.Title,
		Body:         req.Body,
		AudienceJSON: audienceJSON,
		Status:       models.NotificationDraft,
		PublishAt:    req.PublishAt,
		ExpiresAt:    req.ExpiresAt,
		CreatedBy:    &actorID,
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}
	return notification, nil
}

// Send queues the fan-out for a drafted notification.
func (s *NotificationService) Send(ctx context.Context, id string) (*dto.SendNotificationResponse, error) {
	moved, err := s.notifications.UpdateStatus(ctx, id, models.NotificationDraft, models.NotificationQueued)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue notification")
	}
	if !moved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "notification is not in DRAFT state")
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(jobs.Job{ID: id, Type: NotificationFanoutJobType, Payload: id}); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue fan-out")
		}
	} else if err := s.RunFanout(ctx, id); err != nil {
		return nil, err
	}

	return &dto.SendNotificationResponse{NotificationID: id, Status: string(models.NotificationQueued)}, nil
}

// Cancel stops a notification before fan-out. Once SENT it cannot be
// withdrawn.
func (s *NotificationService) Cancel(ctx context.Context, id string) error {
	for _, from := range []models.NotificationStatus{models.NotificationDraft, models.NotificationQueued} {
		moved, err := s.notifications.UpdateStatus(ctx, id, from, models.NotificationCancelled)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel notification")
		}
		if moved {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrConflict, "notification was already sent or cancelled")
}

// SetQueue attaches the background queue. The queue's handler references this
// service, so it is wired after construction.
func (s *NotificationService) SetQueue(queue commitEnqueuer) {
	s.queue = queue
}

// HandleFanoutJob adapts RunFanout to the queue handler signature.
func (s *NotificationService) HandleFanoutJob(ctx context.Context, job jobs.Job) error {
	id, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	return s.RunFanout(ctx, id)
}

// RunFanout expands the audience into deduplicated inbox rows. A cancel that
// landed before the worker picked the job up is honoured. Re-running is
// idempotent through the (notification, user) unique constraint.
func (s *NotificationService) RunFanout(ctx context.Context, id string) error {
	notification, err := s.notifications.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("notification %s vanished before fan-out", id)
		}
		return err
	}
	if notification.Status == models.NotificationCancelled {
		s.logger.Info("fan-out skipped for cancelled notification", zap.String("notification_id", id))
		return nil
	}
	if notification.Status != models.NotificationQueued {
		return fmt.Errorf("notification %s is %s, expected QUEUED", id, notification.Status)
	}

	var audience models.Audience
	if err := json.Unmarshal(notification.AudienceJSON, &audience); err != nil {
		return fmt.Errorf("decode audience: %w", err)
	}

	recipients := make(map[string]struct{})
	userIDs, err := s.students.UserIDsByAudience(ctx, audience.ProgramID, audience.BatchID, audience.GroupID, audience.StudentIDs)
	if err != nil {
		return fmt.Errorf("resolve student audience: %w", err)
	}
	for _, userID := range userIDs {
		recipients[userID] = struct{}{}
	}
	if len(audience.Roles) > 0 {
		roleUserIDs, err := s.users.FindByRoles(ctx, audience.Roles)
		if err != nil {
			return fmt.Errorf("resolve role audience: %w", err)
		}
		for _, userID := range roleUserIDs {
			recipients[userID] = struct{}{}
		}
	}

	delivered := 0
	failed := 0
	now := time.Now().UTC()
	for userID := range recipients {
		created, err := s.notifications.UpsertInbox(ctx, &models.NotificationInbox{
			NotificationID: id,
			UserID:         userID,
			DeliveredAt:    &now,
		})
		success := err == nil
		if success {
			if created {
				delivered++
			}
		} else {
			failed++
			s.logger.Warn("inbox delivery failed",
				zap.String("notification_id", id),
				zap.String("user_id", userID),
				zap.Error(err))
			if countErr := s.notifications.IncrementFailureCount(ctx, id); countErr != nil {
				s.logger.Warn("failure count update failed", zap.Error(countErr))
			}
		}

		var errText *string
		if err != nil {
			text := err.Error()
			errText = &text
		}
		if logErr := s.notifications.AppendDeliveryLog(ctx, &models.NotificationDeliveryLog{
			NotificationID: id,
			UserID:         userID,
			Channel:        models.ChannelInApp,
			Success:        success,
			Error:          errText,
		}); logErr != nil {
			s.logger.Warn("delivery log append failed", zap.Error(logErr))
		}
	}

	if _, err := s.notifications.UpdateStatus(ctx, id, models.NotificationQueued, models.NotificationSent); err != nil {
		return err
	}
	if failed == 0 && delivered > 0 {
		if _, err := s.notifications.UpdateStatus(ctx, id, models.NotificationSent, models.NotificationDelivered); err != nil {
			s.logger.Warn("delivered status update failed", zap.Error(err))
		}
	}

	s.logger.Info("notification fanned out",
		zap.String("notification_id", id),
		zap.Int("recipients", len(recipients)),
		zap.Int("delivered", delivered),
		zap.Int("failed", failed))
	return nil
}

// Inbox returns the caller's visible notifications.
func (s *NotificationService) Inbox(ctx context.Context, userID string, limit int) ([]models.NotificationInbox, error) {
	entries, err := s.notifications.ListInbox(ctx, userID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list inbox")
	}
	return entries, nil
}

// MarkRead stamps an inbox entry; repeated calls keep the first timestamp.
func (s *NotificationService) MarkRead(ctx context.Context, entryID, userID string) error {
	if err := s.notifications.MarkRead(ctx, entryID, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark read")
	}
	return nil
}
