package dto

import "github.com/medcampus/sims-api/internal/models"

// CreateResultRequest opens a result header for a student on an exam.
type CreateResultRequest struct {
	ExamID    string `json:"exam_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
}

// UpsertEntryRequest writes one component score.
type UpsertEntryRequest struct {
	ComponentID   string `json:"component_id" validate:"required"`
	MarksObtained string `json:"marks_obtained" validate:"required"`
}

// TransitionRequest moves a result through the workflow.
type TransitionRequest struct {
	To models.ResultStatus `json:"to" validate:"required"`
}

// PendingChangeRequest proposes a correction to a published result.
type PendingChangeRequest struct {
	ComponentID *string `json:"component_id,omitempty"`
	NewGrade    string  `json:"new_grade" validate:"required"`
	Reason      string  `json:"reason" validate:"required"`
}

// DecideChangeRequest approves or rejects a pending change.
type DecideChangeRequest struct {
	Approve bool `json:"approve"`
}
