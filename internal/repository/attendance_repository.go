package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medcampus/sims-api/internal/models"
)

// AttendanceRepository handles persistence of attendance rows. Uniqueness on
// (session_id, student_id) is enforced by the storage layer.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// UpsertTx writes one attendance row inside the caller's transaction,
// creating it if absent or overwriting status, marked_by, and marked_at if
// present. Returns true when a row was created.
func (r *AttendanceRepository) UpsertTx(ctx context.Context, tx *sqlx.Tx, record *models.Attendance) (bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.MarkedAt.IsZero() {
		record.MarkedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance (id, session_id, student_id, status, marked_by, marked_at, notes)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (session_id, student_id)
        DO UPDATE SET status = EXCLUDED.status, marked_by = EXCLUDED.marked_by, marked_at = EXCLUDED.marked_at, notes = EXCLUDED.notes
        RETURNING (xmax = 0) AS inserted`
	var inserted bool
	if err := tx.GetContext(ctx, &inserted, query,
		record.ID, record.SessionID, record.StudentID, record.Status, record.MarkedBy, record.MarkedAt, record.Notes); err != nil {
		return false, fmt.Errorf("upsert attendance: %w", err)
	}
	return inserted, nil
}

// ListBySession returns the attendance rows of a session.
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Attendance, error) {
	const query = `SELECT id, session_id, student_id, status, marked_by, marked_at, notes
        FROM attendance WHERE session_id = $1 ORDER BY student_id`
	var rows []models.Attendance
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session attendance: %w", err)
	}
	return rows, nil
}

// StudentSummary tallies attended vs total sessions for a student within an
// academic period. PRESENT and LATE count toward the attended tally.
func (r *AttendanceRepository) StudentSummary(ctx context.Context, studentID, periodID string) (attended, total int, err error) {
	const query = `SELECT
        COUNT(*) FILTER (WHERE a.status IN ('PRESENT', 'LATE')) AS attended,
        COUNT(*) AS total
        FROM attendance a JOIN sessions se ON se.id = a.session_id
        WHERE a.student_id = $1 AND se.period_id = $2`
	row := r.db.QueryRowxContext(ctx, query, studentID, periodID)
	if err := row.Scan(&attended, &total); err != nil {
		return 0, 0, fmt.Errorf("attendance summary: %w", err)
	}
	return attended, total, nil
}
