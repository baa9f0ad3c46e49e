package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medcampus/sims-api/internal/models"
)

// NotificationRepository handles notifications, per-user inbox copies, and
// the delivery log.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, title, body, audience, status, publish_at, expires_at, failure_count, created_by, created_at, updated_at`

// Create persists a notification.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.Status == "" {
		notification.Status = models.NotificationDraft
	}
	now := time.Now().UTC()
	notification.CreatedAt = now
	notification.UpdatedAt = now
	const query = `INSERT INTO notifications (id, title, body, audience, status, publish_at, expires_at, failure_count, created_by, created_at, updated_at)
        VALUES (:id, :title, :body, :audience, :status, :publish_at, :expires_at, :failure_count, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// FindByID returns a notification by id.
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	query := fmt.Sprintf("SELECT %s FROM notifications WHERE id = $1", notificationColumns)
	var notification models.Notification
	if err := r.db.GetContext(ctx, &notification, query, id); err != nil {
		return nil, err
	}
	return &notification, nil
}

// UpdateStatus moves the notification through its lifecycle. The expected
// state guards against racing a cancel with the fan-out worker; returns false
// when the row was not in the expected state.
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id string, from, to models.NotificationStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE notifications SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2",
		id, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update notification status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update notification status: %w", err)
	}
	return affected == 1, nil
}

// IncrementFailureCount bumps the failure tally after a delivery attempt
// fails.
func (r *NotificationRepository) IncrementFailureCount(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE notifications SET failure_count = failure_count + 1, updated_at = $2 WHERE id = $1",
		id, time.Now().UTC()); err != nil {
		return fmt.Errorf("increment failure count: %w", err)
	}
	return nil
}

// UpsertInbox writes one recipient copy. The (notification, user) unique
// constraint makes repeated fan-out idempotent; returns false when the copy
// already existed.
func (r *NotificationRepository) UpsertInbox(ctx context.Context, entry *models.NotificationInbox) (bool, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	const query = `INSERT INTO notification_inbox (id, notification_id, user_id, delivered_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (notification_id, user_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, entry.ID, entry.NotificationID, entry.UserID, entry.DeliveredAt)
	if err != nil {
		return false, fmt.Errorf("upsert inbox entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert inbox entry: %w", err)
	}
	return affected == 1, nil
}

// ListInbox returns a user's inbox, newest first, restricted to
// notifications that are published and not expired.
func (r *NotificationRepository) ListInbox(ctx context.Context, userID string, limit int) ([]models.NotificationInbox, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT i.id, i.notification_id, i.user_id, i.delivered_at, i.read_at, n.title, n.body
        FROM notification_inbox i
        JOIN notifications n ON n.id = i.notification_id
        WHERE i.user_id = $1
          AND n.status IN ('SENT', 'DELIVERED')
          AND (n.publish_at IS NULL OR n.publish_at <= NOW())
          AND (n.expires_at IS NULL OR n.expires_at > NOW())
        ORDER BY n.created_at DESC LIMIT %d`, limit)
	var entries []models.NotificationInbox
	if err := r.db.SelectContext(ctx, &entries, query, userID); err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	return entries, nil
}

// MarkRead stamps read_at on an inbox entry. Re-reading keeps the original
// timestamp.
func (r *NotificationRepository) MarkRead(ctx context.Context, entryID, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE notification_inbox SET read_at = $3 WHERE id = $1 AND user_id = $2 AND read_at IS NULL",
		entryID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark inbox read: %w", err)
	}
	return nil
}

// AppendDeliveryLog records one delivery attempt.
func (r *NotificationRepository) AppendDeliveryLog(ctx context.Context, entry *models.NotificationDeliveryLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO notification_delivery_logs (id, notification_id, user_id, channel, success, error, created_at)
        VALUES (:id, :notification_id, :user_id, :channel, :success, :error, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append delivery log: %w", err)
	}
	return nil
}
