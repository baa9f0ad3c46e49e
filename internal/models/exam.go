package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PassingMode selects how an exam's final outcome is computed.
type PassingMode string

const (
	PassingTotalOnly     PassingMode = "TOTAL_ONLY"
	PassingComponentWise PassingMode = "COMPONENT_WISE"
	PassingHybrid        PassingMode = "HYBRID"
)

// Valid reports whether the mode is supported.
func (m PassingMode) Valid() bool {
	switch m {
	case PassingTotalOnly, PassingComponentWise, PassingHybrid:
		return true
	default:
		return false
	}
}

// Exam defines an assessment with its passing policy. Threshold comparisons
// are inclusive and use two-place fixed-point decimals.
type Exam struct {
	ID                     string           `db:"id" json:"id"`
	PeriodID               string           `db:"period_id" json:"period_id"`
	BlockID                *string          `db:"block_id" json:"block_id,omitempty"`
	Title                  string           `db:"title" json:"title"`
	PassingMode            PassingMode      `db:"passing_mode" json:"passing_mode"`
	PassTotalMarks         *decimal.Decimal `db:"pass_total_marks" json:"pass_total_marks,omitempty"`
	PassTotalPercent       *decimal.Decimal `db:"pass_total_percent" json:"pass_total_percent,omitempty"`
	FailIfAnyComponentFail bool             `db:"fail_if_any_component_fail" json:"fail_if_any_component_fail"`
	HeldOn                 *time.Time       `db:"held_on" json:"held_on,omitempty"`
	CreatedAt              time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time        `db:"updated_at" json:"updated_at"`

	Components []ExamComponent `db:"-" json:"components,omitempty"`
}

// ExamComponent is a sub-weighted part of an exam with its own pass criteria.
type ExamComponent struct {
	ID                string           `db:"id" json:"id"`
	ExamID            string           `db:"exam_id" json:"exam_id"`
	Name              string           `db:"name" json:"name"`
	MaxMarks          decimal.Decimal  `db:"max_marks" json:"max_marks"`
	PassMarks         *decimal.Decimal `db:"pass_marks" json:"pass_marks,omitempty"`
	PassPercent       *decimal.Decimal `db:"pass_percent" json:"pass_percent,omitempty"`
	IsMandatoryToPass bool             `db:"is_mandatory_to_pass" json:"is_mandatory_to_pass"`
	Position          int              `db:"position" json:"position"`
}
