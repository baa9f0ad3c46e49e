package models

import "time"

// StudentStatus is the enrolment lifecycle state of a student.
type StudentStatus string

const (
	StudentActive    StudentStatus = "active"
	StudentInactive  StudentStatus = "inactive"
	StudentGraduated StudentStatus = "graduated"
	StudentSuspended StudentStatus = "suspended"
	StudentOnLeave   StudentStatus = "on_leave"
)

// Valid reports whether the status is one of the supported values.
func (s StudentStatus) Valid() bool {
	switch s {
	case StudentActive, StudentInactive, StudentGraduated, StudentSuspended, StudentOnLeave:
		return true
	default:
		return false
	}
}

// Student is the subject record used throughout the academic, attendance,
// finance, and results subsystems. The user link is optional; either side of
// the pairing may be missing.
type Student struct {
	ID          string        `db:"id" json:"id"`
	RegNo       string        `db:"reg_no" json:"reg_no"`
	FullName    string        `db:"full_name" json:"full_name"`
	ProgramID   string        `db:"program_id" json:"program_id"`
	BatchID     string        `db:"batch_id" json:"batch_id"`
	GroupID     string        `db:"group_id" json:"group_id"`
	UserID      *string       `db:"user_id" json:"user_id,omitempty"`
	Status      StudentStatus `db:"status" json:"status"`
	Email       *string       `db:"email" json:"email,omitempty"`
	Phone       *string       `db:"phone" json:"phone,omitempty"`
	DateOfBirth *time.Time    `db:"date_of_birth" json:"date_of_birth,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentDetail joins organisational names onto the student row.
type StudentDetail struct {
	Student
	ProgramName string `db:"program_name" json:"program_name"`
	BatchName   string `db:"batch_name" json:"batch_name"`
	GroupName   string `db:"group_name" json:"group_name"`
}

// StudentFilter scopes student listing queries.
type StudentFilter struct {
	Search    string
	UserID    string
	ProgramID string
	BatchID   string
	GroupID   string
	Status    StudentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Faculty is a teaching staff member. Name is the natural key used by the
// bulk importer.
type Faculty struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	DepartmentID *string   `db:"department_id" json:"department_id,omitempty"`
	UserID       *string   `db:"user_id" json:"user_id,omitempty"`
	Designation  *string   `db:"designation" json:"designation,omitempty"`
	Email        *string   `db:"email" json:"email,omitempty"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Guardian is a student's parent or guardian contact.
type Guardian struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Name      string    `db:"name" json:"name"`
	Relation  *string   `db:"relation" json:"relation,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	UserID    *string   `db:"user_id" json:"user_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
