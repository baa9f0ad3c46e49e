package models

import "time"

// NotificationStatus is the delivery lifecycle of a notification.
type NotificationStatus string

const (
	NotificationDraft     NotificationStatus = "DRAFT"
	NotificationQueued    NotificationStatus = "QUEUED"
	NotificationSent      NotificationStatus = "SENT"
	NotificationDelivered NotificationStatus = "DELIVERED"
	NotificationCancelled NotificationStatus = "CANCELLED"
)

// DeliveryChannel names a delivery transport.
type DeliveryChannel string

const (
	ChannelInApp DeliveryChannel = "in_app"
	ChannelEmail DeliveryChannel = "email"
)

// Audience selects recipients; any combination of the axes may be set, and
// StudentIDs adds explicit students.
type Audience struct {
	ProgramID  string   `json:"program_id,omitempty"`
	BatchID    string   `json:"batch_id,omitempty"`
	GroupID    string   `json:"group_id,omitempty"`
	StudentIDs []string `json:"student_ids,omitempty"`
	Roles      []Role   `json:"roles,omitempty"`
}

// Notification is a message fanned out to an audience.
type Notification struct {
	ID           string             `db:"id" json:"id"`
	Title        string             `db:"title" json:"title"`
	Body         string             `db:"body" json:"body"`
	AudienceJSON []byte             `db:"audience" json:"-"`
	Status       NotificationStatus `db:"status" json:"status"`
	PublishAt    *time.Time         `db:"publish_at" json:"publish_at,omitempty"`
	ExpiresAt    *time.Time         `db:"expires_at" json:"expires_at,omitempty"`
	FailureCount int                `db:"failure_count" json:"failure_count"`
	CreatedBy    *string            `db:"created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updated_at"`
}

// NotificationInbox is one recipient's copy; unique on
// (notification_id, user_id) so fan-out stays idempotent.
type NotificationInbox struct {
	ID             string     `db:"id" json:"id"`
	NotificationID string     `db:"notification_id" json:"notification_id"`
	UserID         string     `db:"user_id" json:"user_id"`
	DeliveredAt    *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	ReadAt         *time.Time `db:"read_at" json:"read_at,omitempty"`

	Title string `db:"title" json:"title,omitempty"`
	Body  string `db:"body" json:"body,omitempty"`
}

// NotificationDeliveryLog records a per-channel delivery attempt.
type NotificationDeliveryLog struct {
	ID             string          `db:"id" json:"id"`
	NotificationID string          `db:"notification_id" json:"notification_id"`
	UserID         string          `db:"user_id" json:"user_id"`
	Channel        DeliveryChannel `db:"channel" json:"channel"`
	Success        bool            `db:"success" json:"success"`
	Error          *string         `db:"error" json:"error,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}
