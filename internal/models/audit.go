package models

import "time"

// AuditAction classifies the kind of state change behind a write.
type AuditAction string

const (
	AuditCreate          AuditAction = "create"
	AuditUpdate          AuditAction = "update"
	AuditDelete          AuditAction = "delete"
	AuditStateTransition AuditAction = "state_transition"
	AuditSpecialAction   AuditAction = "special_action"
)

// AuditLog is an append-only audit trail record. The actor is nullable so
// records survive user deletion.
type AuditLog struct {
	ID         string      `db:"id" json:"id"`
	ActorID    *string     `db:"actor_id" json:"actor_id,omitempty"`
	Method     string      `db:"method" json:"method"`
	Path       string      `db:"path" json:"path"`
	StatusCode int         `db:"status_code" json:"status_code"`
	Entity     string      `db:"entity" json:"entity"`
	EntityID   *string     `db:"entity_id" json:"entity_id,omitempty"`
	Action     AuditAction `db:"action" json:"action"`
	Summary    string      `db:"summary" json:"summary"`
	Metadata   []byte      `db:"metadata" json:"metadata,omitempty"`
	IPAddress  string      `db:"ip_address" json:"ip_address"`
	UserAgent  string      `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}
