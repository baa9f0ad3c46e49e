package models

import "time"

// ImportKind selects the target entity of a bulk import.
type ImportKind string

const (
	ImportStudents ImportKind = "students"
	ImportFaculty  ImportKind = "faculty"
)

// ImportMode controls upsert-vs-create semantics.
type ImportMode string

const (
	ImportCreateOnly ImportMode = "CREATE_ONLY"
	ImportUpsert     ImportMode = "UPSERT"
)

// Valid reports whether the mode is supported.
func (m ImportMode) Valid() bool {
	return m == ImportCreateOnly || m == ImportUpsert
}

// ImportJobStatus is the lifecycle of one preview-commit cycle.
type ImportJobStatus string

const (
	ImportPending   ImportJobStatus = "PENDING"
	ImportPreviewed ImportJobStatus = "PREVIEWED"
	ImportCommitted ImportJobStatus = "COMMITTED"
	ImportFailed    ImportJobStatus = "FAILED"
)

// RowAction is the decision recorded for a previewed row.
type RowAction string

const (
	RowCreate RowAction = "CREATE"
	RowUpdate RowAction = "UPDATE"
	RowSkip   RowAction = "SKIP"
)

// RowError is a column-scoped validation failure.
type RowError struct {
	Column  string `json:"column"`
	Message string `json:"message"`
}

// ImportRow is one previewed CSV row. The full set is snapshotted on the job
// so commit is deterministic.
type ImportRow struct {
	RowNumber int               `json:"row_number"`
	Action    RowAction         `json:"action"`
	Errors    []RowError        `json:"errors,omitempty"`
	Data      map[string]string `json:"data"`
}

// Valid reports whether the row carries no errors.
func (r ImportRow) Valid() bool {
	return len(r.Errors) == 0
}

// ImportDuplicateFilter scopes the duplicate-file lookup to the same actor
// and mode. CommittedOnly restricts the match to committed jobs; otherwise
// previewed jobs also count, which is what the preview-time warning wants.
type ImportDuplicateFilter struct {
	FileHash      string
	CreatedBy     string
	Mode          ImportMode
	ExcludeID     string
	Since         time.Time
	CommittedOnly bool
}

// ImportJob is the record of one preview-commit cycle, keyed by UUID.
type ImportJob struct {
	ID              string          `db:"id" json:"id"`
	Kind            ImportKind      `db:"kind" json:"kind"`
	Mode            ImportMode      `db:"mode" json:"mode"`
	Status          ImportJobStatus `db:"status" json:"status"`
	FileHash        string          `db:"file_hash" json:"file_hash"`
	FilePath        string          `db:"file_path" json:"file_path"`
	ErrorReportPath *string         `db:"error_report_path" json:"error_report_path,omitempty"`
	AutoCreate      bool            `db:"auto_create" json:"auto_create"`
	TotalRows       int             `db:"total_rows" json:"total_rows"`
	ValidRows       int             `db:"valid_rows" json:"valid_rows"`
	InvalidRows     int             `db:"invalid_rows" json:"invalid_rows"`
	CreatedCount    int             `db:"created_count" json:"created_count"`
	UpdatedCount    int             `db:"updated_count" json:"updated_count"`
	FailedCount     int             `db:"failed_count" json:"failed_count"`
	RowsJSON        []byte          `db:"rows" json:"-"`
	FailureSummary  *string         `db:"failure_summary" json:"failure_summary,omitempty"`
	CreatedBy       string          `db:"created_by" json:"created_by"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}
