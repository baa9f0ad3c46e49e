package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResultStatus is the workflow state of a result header.
type ResultStatus string

const (
	ResultDraft     ResultStatus = "DRAFT"
	ResultVerified  ResultStatus = "VERIFIED"
	ResultPublished ResultStatus = "PUBLISHED"
	ResultFrozen    ResultStatus = "FROZEN"
)

// Valid reports whether the status is a known workflow state.
func (s ResultStatus) Valid() bool {
	switch s {
	case ResultDraft, ResultVerified, ResultPublished, ResultFrozen:
		return true
	default:
		return false
	}
}

// Outcome is the computed pass state for a result or component.
type Outcome string

const (
	OutcomePass    Outcome = "PASS"
	OutcomeFail    Outcome = "FAIL"
	OutcomePending Outcome = "PENDING"
	// OutcomeNA marks a component the student has no entry for.
	OutcomeNA Outcome = "NA"
)

// ResultHeader aggregates per-(exam, student) results and owns its component
// entries.
type ResultHeader struct {
	ID            string          `db:"id" json:"id"`
	ExamID        string          `db:"exam_id" json:"exam_id"`
	StudentID     string          `db:"student_id" json:"student_id"`
	TotalObtained decimal.Decimal `db:"total_obtained" json:"total_obtained"`
	TotalMax      decimal.Decimal `db:"total_max" json:"total_max"`
	FinalOutcome  Outcome         `db:"final_outcome" json:"final_outcome"`
	Status        ResultStatus    `db:"status" json:"status"`
	CreatedBy     *string         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`

	Entries []ResultComponentEntry `db:"-" json:"entries,omitempty"`
}

// ResultComponentEntry is the per-component score under a header.
type ResultComponentEntry struct {
	ID               string          `db:"id" json:"id"`
	HeaderID         string          `db:"header_id" json:"header_id"`
	ComponentID      string          `db:"component_id" json:"component_id"`
	MarksObtained    decimal.Decimal `db:"marks_obtained" json:"marks_obtained"`
	ComponentOutcome Outcome         `db:"component_outcome" json:"component_outcome"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// PendingChangeStatus is the review state of a pending change request.
type PendingChangeStatus string

const (
	PendingChangeOpen     PendingChangeStatus = "pending"
	PendingChangeApproved PendingChangeStatus = "approved"
	PendingChangeRejected PendingChangeStatus = "rejected"
)

// PendingChange captures a proposed mutation to a PUBLISHED result awaiting
// approval.
type PendingChange struct {
	ID          string              `db:"id" json:"id"`
	HeaderID    string              `db:"header_id" json:"header_id"`
	ComponentID *string             `db:"component_id" json:"component_id,omitempty"`
	NewGrade    decimal.Decimal     `db:"new_grade" json:"new_grade"`
	Reason      string              `db:"reason" json:"reason"`
	Status      PendingChangeStatus `db:"status" json:"status"`
	RequestedBy string              `db:"requested_by" json:"requested_by"`
	DecidedBy   *string             `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt   *time.Time          `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt   time.Time           `db:"created_at" json:"created_at"`
}

// ResultFilter scopes result listing queries.
type ResultFilter struct {
	ExamID    string
	StudentID string
	Status    ResultStatus
	// StudentUserID restricts rows to students linked to the given user; used
	// by the tenancy layer.
	StudentUserID string
	Page          int
	PageSize      int
}
