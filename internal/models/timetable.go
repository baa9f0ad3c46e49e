package models

import "time"

// TimetableStatus is the publication state of a weekly timetable.
type TimetableStatus string

const (
	TimetableDraft     TimetableStatus = "DRAFT"
	TimetablePublished TimetableStatus = "PUBLISHED"
)

// RequiredPeriodsPerDay is the number of non-empty periods each teaching day
// must carry before a timetable can be published.
const RequiredPeriodsPerDay = 3

// WeeklyTimetable is a Monday–Saturday grid of teaching cells for one batch
// for one week. WeekStart must be a Monday.
type WeeklyTimetable struct {
	ID        string          `db:"id" json:"id"`
	BatchID   string          `db:"batch_id" json:"batch_id"`
	PeriodID  string          `db:"period_id" json:"period_id"`
	WeekStart time.Time       `db:"week_start" json:"week_start"`
	Status    TimetableStatus `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`

	Cells []TimetableCell `db:"-" json:"cells,omitempty"`
}

// TimetableCell addresses one slot of the grid. DayOfWeek runs 0 (Monday)
// through 5 (Saturday).
type TimetableCell struct {
	ID          string  `db:"id" json:"id"`
	TimetableID string  `db:"timetable_id" json:"timetable_id"`
	DayOfWeek   int     `db:"day_of_week" json:"day_of_week"`
	TimeSlot    string  `db:"time_slot" json:"time_slot"`
	Line1       string  `db:"line1" json:"line1"`
	Line2       *string `db:"line2" json:"line2,omitempty"`
}
