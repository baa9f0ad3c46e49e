package dto

import "github.com/medcampus/sims-api/internal/models"

// ImportUploadOptions accompanies an uploaded CSV.
type ImportUploadOptions struct {
	Mode       models.ImportMode `form:"mode" validate:"required"`
	AutoCreate bool              `form:"auto_create"`
}

// ImportCommitRequest confirms a previewed job. ConfirmDuplicate acknowledges
// the duplicate-file warning and lets the commit proceed anyway.
type ImportCommitRequest struct {
	ConfirmDuplicate bool `json:"confirm_duplicate"`
}

// ImportPreviewResponse summarises a previewed job.
type ImportPreviewResponse struct {
	JobID            string             `json:"job_id"`
	Status           string             `json:"status"`
	TotalRows        int                `json:"total_rows"`
	ValidRows        int                `json:"valid_rows"`
	InvalidRows      int                `json:"invalid_rows"`
	DuplicateOfJobID string             `json:"duplicate_of_job_id,omitempty"`
	Rows             []models.ImportRow `json:"rows"`
	ErrorReportPath  string             `json:"error_report_path,omitempty"`
}

// ImportCommitResponse reports commit tallies. Async is true when the commit
// was queued instead of executed inline.
type ImportCommitResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Async   bool   `json:"async"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Failed  int    `json:"failed"`
}
