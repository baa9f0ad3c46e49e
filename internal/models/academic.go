package models

import "time"

// BlockType distinguishes the two curricular block shapes.
type BlockType string

const (
	BlockIntegrated BlockType = "INTEGRATED_BLOCK"
	BlockRotation   BlockType = "ROTATION_BLOCK"
)

// Program is a degree programme (e.g. MBBS, BDS).
type Program struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      *string   `db:"code" json:"code,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AcademicPeriod is a logical time window (year, term, block) in which
// sessions and enrollments live.
type AcademicPeriod struct {
	ID        string     `db:"id" json:"id"`
	ProgramID string     `db:"program_id" json:"program_id"`
	Name      string     `db:"name" json:"name"`
	StartsOn  *time.Time `db:"starts_on" json:"starts_on,omitempty"`
	EndsOn    *time.Time `db:"ends_on" json:"ends_on,omitempty"`
	Closed    bool       `db:"closed" json:"closed"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Track is a study track within an academic period.
type Track struct {
	ID       string `db:"id" json:"id"`
	PeriodID string `db:"period_id" json:"period_id"`
	Name     string `db:"name" json:"name"`
}

// LearningBlock lives at (period, track). Rotation blocks require a primary
// department; the optional sub-department must be a child of it.
type LearningBlock struct {
	ID              string    `db:"id" json:"id"`
	PeriodID        string    `db:"period_id" json:"period_id"`
	TrackID         string    `db:"track_id" json:"track_id"`
	Name            string    `db:"name" json:"name"`
	BlockType       BlockType `db:"block_type" json:"block_type"`
	DepartmentID    *string   `db:"department_id" json:"department_id,omitempty"`
	SubDepartmentID *string   `db:"sub_department_id" json:"sub_department_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// BlockModule is an ordered module inside an integrated block.
type BlockModule struct {
	ID       string `db:"id" json:"id"`
	BlockID  string `db:"block_id" json:"block_id"`
	Name     string `db:"name" json:"name"`
	Position int    `db:"position" json:"position"`
}

// Batch is an intake cohort of a program.
type Batch struct {
	ID        string    `db:"id" json:"id"`
	ProgramID string    `db:"program_id" json:"program_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Group is a subdivision of a batch; the roster unit for sessions.
type Group struct {
	ID        string    `db:"id" json:"id"`
	BatchID   string    `db:"batch_id" json:"batch_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Department is an organisational unit; ParentID forms the hierarchy.
type Department struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	ParentID  *string   `db:"parent_id" json:"parent_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Session is a single scheduled teaching occurrence; the unit over which
// attendance is recorded. starts_at < ends_at.
type Session struct {
	ID           string    `db:"id" json:"id"`
	PeriodID     string    `db:"period_id" json:"period_id"`
	GroupID      string    `db:"group_id" json:"group_id"`
	FacultyID    string    `db:"faculty_id" json:"faculty_id"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	Topic        *string   `db:"topic" json:"topic,omitempty"`
	StartsAt     time.Time `db:"starts_at" json:"starts_at"`
	EndsAt       time.Time `db:"ends_at" json:"ends_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
