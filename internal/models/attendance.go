package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceExcused AttendanceStatus = "EXCUSED"

	// AttendanceUnknown is produced by the scanned-sheet adapter before the
	// operator resolves each row; it is never persisted.
	AttendanceUnknown AttendanceStatus = "UNKNOWN"
)

// Valid returns true when the status is a persistable value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	default:
		return false
	}
}

// CountsAttended reports whether the status counts toward the attended tally.
func (s AttendanceStatus) CountsAttended() bool {
	return s == AttendancePresent || s == AttendanceLate
}

// Attendance is one record per (session, student). Uniqueness on the pair is
// enforced at the storage layer.
type Attendance struct {
	ID        string           `db:"id" json:"id"`
	SessionID string           `db:"session_id" json:"session_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Status    AttendanceStatus `db:"status" json:"status"`
	MarkedBy  *string          `db:"marked_by" json:"marked_by,omitempty"`
	MarkedAt  time.Time        `db:"marked_at" json:"marked_at"`
	Notes     *string          `db:"notes" json:"notes,omitempty"`
}

// AttendanceRecord is a normalized input row produced by one of the input
// adapters and consumed by the unified upsert path.
type AttendanceRecord struct {
	StudentID string           `json:"student_id"`
	RegNo     string           `json:"reg_no,omitempty"`
	Status    AttendanceStatus `json:"status"`
	Notes     *string          `json:"notes,omitempty"`
}

// RosterEntry pairs a student with any existing attendance row for a session.
type RosterEntry struct {
	StudentID string            `db:"student_id" json:"student_id"`
	RegNo     string            `db:"reg_no" json:"reg_no"`
	FullName  string            `db:"full_name" json:"full_name"`
	Status    *AttendanceStatus `db:"status" json:"status,omitempty"`
	MarkedAt  *time.Time        `db:"marked_at" json:"marked_at,omitempty"`
}

// AttendanceUpsertSummary reports the outcome of a commit.
type AttendanceUpsertSummary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Total   int `json:"total"`
	Absent  int `json:"absent"`
}

// RowIssue is a structured per-row error.
type RowIssue struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

// AttendanceCSVPreview is the dry-run result for an uploaded attendance CSV.
type AttendanceCSVPreview struct {
	Matched    int        `json:"matched"`
	Unknown    []string   `json:"unknown"`
	Duplicates []string   `json:"duplicates"`
	Errors     []RowIssue `json:"errors"`
}

// AttendanceSummary summarises counts for a student across sessions.
type AttendanceSummary struct {
	Attended int     `json:"attended"`
	Total    int     `json:"total"`
	Percent  float64 `json:"percent"`
	Eligible bool    `json:"eligible"`
}
