package dto

import "github.com/medcampus/sims-api/internal/models"

// ExamComponentPayload defines or updates one component.
type ExamComponentPayload struct {
	Name              string  `json:"name" validate:"required"`
	MaxMarks          string  `json:"max_marks" validate:"required"`
	PassMarks         *string `json:"pass_marks,omitempty"`
	PassPercent       *string `json:"pass_percent,omitempty"`
	IsMandatoryToPass bool    `json:"is_mandatory_to_pass"`
	Position          int     `json:"position"`
}

// CreateExamRequest defines an exam and its passing policy.
type CreateExamRequest struct {
	PeriodID               string                 `json:"period_id" validate:"required"`
	BlockID                *string                `json:"block_id,omitempty"`
	Title                  string                 `json:"title" validate:"required"`
	PassingMode            models.PassingMode     `json:"passing_mode" validate:"required"`
	PassTotalMarks         *string                `json:"pass_total_marks,omitempty"`
	PassTotalPercent       *string                `json:"pass_total_percent,omitempty"`
	FailIfAnyComponentFail bool                   `json:"fail_if_any_component_fail"`
	HeldOn                 *string                `json:"held_on,omitempty"`
	Components             []ExamComponentPayload `json:"components" validate:"dive"`
}

// UpdateExamRequest rewrites an exam. The passing policy fields are locked
// for roles without policy authority.
type UpdateExamRequest struct {
	Title                  string             `json:"title" validate:"required"`
	PassingMode            models.PassingMode `json:"passing_mode" validate:"required"`
	PassTotalMarks         *string            `json:"pass_total_marks,omitempty"`
	PassTotalPercent       *string            `json:"pass_total_percent,omitempty"`
	FailIfAnyComponentFail bool               `json:"fail_if_any_component_fail"`
	HeldOn                 *string            `json:"held_on,omitempty"`
}
