package dto

import (
	"time"

	"github.com/medcampus/sims-api/internal/models"
)

// CreateNotificationRequest drafts a notification for an audience.
type CreateNotificationRequest struct {
	Title     string          `json:"title" validate:"required"`
	Body      string          `json:"body" validate:"required"`
	Audience  models.Audience `json:"audience"`
	PublishAt *time.Time      `json:"publish_at,omitempty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// SendNotificationResponse reports the queue handoff.
type SendNotificationResponse struct {
	NotificationID string `json:"notification_id"`
	Status         string `json:"status"`
}
