package dto

// CreateTimetableRequest opens a draft weekly timetable.
type CreateTimetableRequest struct {
	BatchID   string `json:"batch_id" validate:"required"`
	PeriodID  string `json:"period_id" validate:"required"`
	WeekStart string `json:"week_start" validate:"required"`
}

// TimetableCellRequest writes one cell of the grid.
type TimetableCellRequest struct {
	DayOfWeek int     `json:"day_of_week" validate:"min=0,max=5"`
	TimeSlot  string  `json:"time_slot" validate:"required"`
	Line1     string  `json:"line1"`
	Line2     *string `json:"line2,omitempty"`
}

// PublishValidationError lists the days failing the three-period rule.
type PublishValidationError struct {
	Days []string `json:"days"`
}
