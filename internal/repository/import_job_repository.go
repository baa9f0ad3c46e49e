package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medcampus/sims-api/internal/models"
)

// ImportJobRepository handles the records of preview-commit import cycles.
type ImportJobRepository struct {
	db *sqlx.DB
}

// NewImportJobRepository constructs the repository.
func NewImportJobRepository(db *sqlx.DB) *ImportJobRepository {
	return &ImportJobRepository{db: db}
}

const importJobColumns = `id, kind, mode, status, file_hash, file_path, error_report_path, auto_create,
        total_rows, valid_rows, invalid_rows, created_count, updated_count, failed_count, rows, failure_summary,
        created_by, created_at, updated_at`

// Create persists a new job in PENDING state.
func (r *ImportJobRepository) Create(ctx context.Context, job *models.ImportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ImportPending
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	const query = `INSERT INTO import_jobs (id, kind, mode, status, file_hash, file_path, error_report_path, auto_create,
        total_rows, valid_rows, invalid_rows, created_count, updated_count, failed_count, rows, failure_summary,
        created_by, created_at, updated_at)
        VALUES (:id, :kind, :mode, :status, :file_hash, :file_path, :error_report_path, :auto_create,
        :total_rows, :valid_rows, :invalid_rows, :created_count, :updated_count, :failed_count, :rows, :failure_summary,
        :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create import job: %w", err)
	}
	return nil
}

// FindByID returns a job with its row snapshot.
func (r *ImportJobRepository) FindByID(ctx context.Context, id string) (*models.ImportJob, error) {
	query := fmt.Sprintf("SELECT %s FROM import_jobs WHERE id = $1", importJobColumns)
	var job models.ImportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// FindRecentByHash looks for another job by the same actor, in the same
// mode, with the same file fingerprint inside the duplicate warning window;
// nil when none exists.
func (r *ImportJobRepository) FindRecentByHash(ctx context.Context, filter models.ImportDuplicateFilter) (*models.ImportJob, error) {
	statuses := "('PREVIEWED', 'COMMITTED')"
	if filter.CommittedOnly {
		statuses = "('COMMITTED')"
	}
	query := fmt.Sprintf(`SELECT %s FROM import_jobs
        WHERE file_hash = $1 AND created_by = $2 AND mode = $3 AND id <> $4
        AND status IN %s AND created_at >= $5
        ORDER BY created_at DESC LIMIT 1`, importJobColumns, statuses)
	var job models.ImportJob
	err := r.db.GetContext(ctx, &job, query, filter.FileHash, filter.CreatedBy, filter.Mode, filter.ExcludeID, filter.Since)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find import job by hash: %w", err)
	}
	return &job, nil
}

// SavePreview stores the previewed row snapshot and tallies, moving the job
// to PREVIEWED.
func (r *ImportJobRepository) SavePreview(ctx context.Context, job *models.ImportJob) error {
	job.Status = models.ImportPreviewed
	job.UpdatedAt = time.Now().UTC()
	const query = `UPDATE import_jobs SET status = :status, rows = :rows, total_rows = :total_rows,
        valid_rows = :valid_rows, invalid_rows = :invalid_rows, error_report_path = :error_report_path,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("save import preview: %w", err)
	}
	return nil
}

// MarkCommitted records the commit tallies and finishes the job.
func (r *ImportJobRepository) MarkCommitted(ctx context.Context, job *models.ImportJob) error {
	job.Status = models.ImportCommitted
	job.UpdatedAt = time.Now().UTC()
	const query = `UPDATE import_jobs SET status = :status, created_count = :created_count,
        updated_count = :updated_count, failed_count = :failed_count, error_report_path = :error_report_path,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("mark import committed: %w", err)
	}
	return nil
}

// MarkFailed records the failure summary and finishes the job.
func (r *ImportJobRepository) MarkFailed(ctx context.Context, id, summary string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE import_jobs SET status = 'FAILED', failure_summary = $2, updated_at = $3 WHERE id = $1",
		id, summary, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark import failed: %w", err)
	}
	return nil
}

// ClaimForCommit atomically moves a PREVIEWED job to PENDING commit work so
// the same job cannot be committed twice; returns false when the job was not
// in PREVIEWED state.
func (r *ImportJobRepository) ClaimForCommit(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE import_jobs SET status = 'PENDING', updated_at = $2 WHERE id = $1 AND status = 'PREVIEWED'",
		id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("claim import for commit: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim import for commit: %w", err)
	}
	return affected == 1, nil
}

// List returns jobs newest first.
func (r *ImportJobRepository) List(ctx context.Context, kind models.ImportKind, limit int) ([]models.ImportJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM import_jobs`, importJobColumns)
	args := []interface{}{}
	if kind != "" {
		query += " WHERE kind = $1"
		args = append(args, kind)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)
	var jobs []models.ImportJob
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}
	return jobs, nil
}
