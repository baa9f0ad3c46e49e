package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medcampus/sims-api/internal/models"
)

// TimetableRepository handles persistence of weekly timetables and cells.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// FindByID returns a timetable with its cells loaded.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.WeeklyTimetable, error) {
	const query = `SELECT id, batch_id, period_id, week_start, status, created_at, updated_at
        FROM weekly_timetables WHERE id = $1`
	var timetable models.WeeklyTimetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		return nil, err
	}
	cells, err := r.Cells(ctx, id)
	if err != nil {
		return nil, err
	}
	timetable.Cells = cells
	return &timetable, nil
}

// Cells lists the cells of a timetable ordered by day and slot.
func (r *TimetableRepository) Cells(ctx context.Context, timetableID string) ([]models.TimetableCell, error) {
	const query = `SELECT id, timetable_id, day_of_week, time_slot, line1, line2
        FROM timetable_cells WHERE timetable_id = $1 ORDER BY day_of_week, time_slot`
	var cells []models.TimetableCell
	if err := r.db.SelectContext(ctx, &cells, query, timetableID); err != nil {
		return nil, fmt.Errorf("list timetable cells: %w", err)
	}
	return cells, nil
}

// Create persists a timetable header.
func (r *TimetableRepository) Create(ctx context.Context, timetable *models.WeeklyTimetable) error {
	if timetable.ID == "" {
		timetable.ID = uuid.NewString()
	}
	if timetable.Status == "" {
		timetable.Status = models.TimetableDraft
	}
	now := time.Now().UTC()
	timetable.CreatedAt = now
	timetable.UpdatedAt = now
	const query = `INSERT INTO weekly_timetables (id, batch_id, period_id, week_start, status, created_at, updated_at)
        VALUES (:id, :batch_id, :period_id, :week_start, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, timetable); err != nil {
		return fmt.Errorf("create timetable: %w", err)
	}
	return nil
}

// UpsertCell writes one cell, keyed on (timetable, day, slot).
func (r *TimetableRepository) UpsertCell(ctx context.Context, cell *models.TimetableCell) error {
	if cell.ID == "" {
		cell.ID = uuid.NewString()
	}
	const query = `INSERT INTO timetable_cells (id, timetable_id, day_of_week, time_slot, line1, line2)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (timetable_id, day_of_week, time_slot)
        DO UPDATE SET line1 = EXCLUDED.line1, line2 = EXCLUDED.line2`
	if _, err := r.db.ExecContext(ctx, query, cell.ID, cell.TimetableID, cell.DayOfWeek, cell.TimeSlot, cell.Line1, cell.Line2); err != nil {
		return fmt.Errorf("upsert timetable cell: %w", err)
	}
	return nil
}

// UpdateStatus flips the publication state.
func (r *TimetableRepository) UpdateStatus(ctx context.Context, id string, status models.TimetableStatus) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE weekly_timetables SET status = $2, updated_at = $3 WHERE id = $1", id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update timetable status: %w", err)
	}
	return nil
}
