package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medcampus/sims-api/internal/models"
)

// ResultRepository handles persistence of result headers, component entries,
// and pending change requests.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository constructs the repository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

const resultColumns = `id, exam_id, student_id, total_obtained, total_max, final_outcome, status, created_by, created_at, updated_at`

// FindByID returns a result header with its component entries.
func (r *ResultRepository) FindByID(ctx context.Context, id string) (*models.ResultHeader, error) {
	query := fmt.Sprintf("SELECT %s FROM result_headers WHERE id = $1", resultColumns)
	var header models.ResultHeader
	if err := r.db.GetContext(ctx, &header, query, id); err != nil {
		return nil, err
	}
	entries, err := r.Entries(ctx, id)
	if err != nil {
		return nil, err
	}
	header.Entries = entries
	return &header, nil
}

// FindForUpdateTx loads a header inside the caller's transaction with a row
// lock, serialising concurrent workflow transitions.
func (r *ResultRepository) FindForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.ResultHeader, error) {
	query := fmt.Sprintf("SELECT %s FROM result_headers WHERE id = $1 FOR UPDATE", resultColumns)
	var header models.ResultHeader
	if err := tx.GetContext(ctx, &header, query, id); err != nil {
		return nil, err
	}
	return &header, nil
}

// List returns headers matching the filter with a total count.
func (r *ResultRepository) List(ctx context.Context, filter models.ResultFilter) ([]models.ResultHeader, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.ExamID != "" {
		args = append(args, filter.ExamID)
		conditions = append(conditions, fmt.Sprintf("rh.exam_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("rh.student_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("rh.status = $%d", len(args)))
	}
	if filter.StudentUserID != "" {
		args = append(args, filter.StudentUserID)
		conditions = append(conditions, fmt.Sprintf("rh.student_id IN (SELECT id FROM students WHERE user_id = $%d)", len(args)))
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM result_headers rh WHERE %s", where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count results: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	args = append(args, pageSize, (page-1)*pageSize)
	query := fmt.Sprintf(`SELECT rh.id, rh.exam_id, rh.student_id, rh.total_obtained, rh.total_max, rh.final_outcome,
        rh.status, rh.created_by, rh.created_at, rh.updated_at
        FROM result_headers rh WHERE %s ORDER BY rh.updated_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))

	var headers []models.ResultHeader
	if err := r.db.SelectContext(ctx, &headers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	return headers, total, nil
}

// Entries lists the component entries under a header.
func (r *ResultRepository) Entries(ctx context.Context, headerID string) ([]models.ResultComponentEntry, error) {
	const query = `SELECT e.id, e.header_id, e.component_id, e.marks_obtained, e.component_outcome, e.updated_at
        FROM result_component_entries e
        JOIN exam_components c ON c.id = e.component_id
        WHERE e.header_id = $1 ORDER BY c.position`
	var entries []models.ResultComponentEntry
	if err := r.db.SelectContext(ctx, &entries, query, headerID); err != nil {
		return nil, fmt.Errorf("list result entries: %w", err)
	}
	return entries, nil
}

// Create persists a header.
func (r *ResultRepository) Create(ctx context.Context, header *models.ResultHeader) error {
	if header.ID == "" {
		header.ID = uuid.NewString()
	}
	if header.Status == "" {
		header.Status = models.ResultDraft
	}
	now := time.Now().UTC()
	header.CreatedAt = now
	header.UpdatedAt = now
	const query = `INSERT INTO result_headers (id, exam_id, student_id, total_obtained, total_max, final_outcome, status, created_by, created_at, updated_at)
        VALUES (:id, :exam_id, :student_id, :total_obtained, :total_max, :final_outcome, :status, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, header); err != nil {
		return fmt.Errorf("create result header: %w", err)
	}
	return nil
}

// UpdateTotals rewrites the scored fields of a header after a recompute.
func (r *ResultRepository) UpdateTotals(ctx context.Context, header *models.ResultHeader) error {
	header.UpdatedAt = time.Now().UTC()
	const query = `UPDATE result_headers SET total_obtained = :total_obtained, total_max = :total_max,
        final_outcome = :final_outcome, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, header); err != nil {
		return fmt.Errorf("update result totals: %w", err)
	}
	return nil
}

// UpdateStatusTx flips the workflow state inside the caller's transaction.
func (r *ResultRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.ResultStatus) error {
	if _, err := tx.ExecContext(ctx, "UPDATE result_headers SET status = $2, updated_at = $3 WHERE id = $1", id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update result status: %w", err)
	}
	return nil
}

// UpsertEntry writes one component entry, keyed on (header, component).
func (r *ResultRepository) UpsertEntry(ctx context.Context, entry *models.ResultComponentEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO result_component_entries (id, header_id, component_id, marks_obtained, component_outcome, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (header_id, component_id)
        DO UPDATE SET marks_obtained = EXCLUDED.marks_obtained, component_outcome = EXCLUDED.component_outcome, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, entry.ID, entry.HeaderID, entry.ComponentID, entry.MarksObtained, entry.ComponentOutcome, entry.UpdatedAt); err != nil {
		return fmt.Errorf("upsert result entry: %w", err)
	}
	return nil
}

// UpdateEntryOutcomes rewrites the computed outcomes after a recompute.
func (r *ResultRepository) UpdateEntryOutcomes(ctx context.Context, entries []models.ResultComponentEntry) error {
	for i := range entries {
		if _, err := r.db.ExecContext(ctx,
			"UPDATE result_component_entries SET component_outcome = $2 WHERE id = $1",
			entries[i].ID, entries[i].ComponentOutcome); err != nil {
			return fmt.Errorf("update entry outcome: %w", err)
		}
	}
	return nil
}

// CreatePendingChange records a proposed mutation to a published result.
func (r *ResultRepository) CreatePendingChange(ctx context.Context, change *models.PendingChange) error {
	if change.ID == "" {
		change.ID = uuid.NewString()
	}
	if change.Status == "" {
		change.Status = models.PendingChangeOpen
	}
	change.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO result_pending_changes (id, header_id, component_id, new_grade, reason, status, requested_by, created_at)
        VALUES (:id, :header_id, :component_id, :new_grade, :reason, :status, :requested_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, change); err != nil {
		return fmt.Errorf("create pending change: %w", err)
	}
	return nil
}

// FindPendingChange returns one pending change.
func (r *ResultRepository) FindPendingChange(ctx context.Context, id string) (*models.PendingChange, error) {
	const query = `SELECT id, header_id, component_id, new_grade, reason, status, requested_by, decided_by, decided_at, created_at
        FROM result_pending_changes WHERE id = $1`
	var change models.PendingChange
	if err := r.db.GetContext(ctx, &change, query, id); err != nil {
		return nil, err
	}
	return &change, nil
}

// ListPendingChanges returns open changes for a header, oldest first.
func (r *ResultRepository) ListPendingChanges(ctx context.Context, headerID string) ([]models.PendingChange, error) {
	const query = `SELECT id, header_id, component_id, new_grade, reason, status, requested_by, decided_by, decided_at, created_at
        FROM result_pending_changes WHERE header_id = $1 AND status = 'pending' ORDER BY created_at`
	var changes []models.PendingChange
	if err := r.db.SelectContext(ctx, &changes, query, headerID); err != nil {
		return nil, fmt.Errorf("list pending changes: %w", err)
	}
	return changes, nil
}

// DecidePendingChange closes a pending change with a verdict.
func (r *ResultRepository) DecidePendingChange(ctx context.Context, id string, status models.PendingChangeStatus, decidedBy string) error {
	const query = `UPDATE result_pending_changes SET status = $2, decided_by = $3, decided_at = $4
        WHERE id = $1 AND status = 'pending'`
	result, err := r.db.ExecContext(ctx, query, id, status, decidedBy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("decide pending change: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("decide pending change: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("pending change %s already decided", id)
	}
	return nil
}
