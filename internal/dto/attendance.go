package dto

import "github.com/medcampus/sims-api/internal/models"

// AttendanceEntry is one student's status in a bulk payload.
type AttendanceEntry struct {
	StudentID string                  `json:"student_id" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required"`
	Notes     *string                 `json:"notes,omitempty"`
}

// MarkAttendanceRequest toggles one student in the interactive grid. Date
// names the day the operator believes they are editing and must match the
// session date.
type MarkAttendanceRequest struct {
	Date      string                  `json:"date" validate:"required"`
	StudentID string                  `json:"student_id" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required"`
	Notes     *string                 `json:"notes,omitempty"`
}

// BulkAttendanceRequest submits a full grid for a session.
type BulkAttendanceRequest struct {
	Date    string            `json:"date" validate:"required"`
	Entries []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// ScannedEntry is one row transcribed from a scanned paper sheet, keyed by
// registration number. UNKNOWN rows must be resolved before submission.
type ScannedEntry struct {
	RegNo  string                  `json:"reg_no" validate:"required"`
	Status models.AttendanceStatus `json:"status" validate:"required"`
}

// ScannedSheetRequest submits a transcribed sheet for a session.
type ScannedSheetRequest struct {
	Date    string         `json:"date" validate:"required"`
	Entries []ScannedEntry `json:"entries" validate:"required,min=1,dive"`
}
