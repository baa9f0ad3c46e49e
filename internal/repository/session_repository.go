package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medcampus/sims-api/internal/models"
)

// SessionRepository handles persistence of teaching sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// FindByID returns a session by primary key.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	const query = `SELECT id, period_id, group_id, faculty_id, department_id, topic, starts_at, ends_at, created_at
        FROM sessions WHERE id = $1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// Create persists a session.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO sessions (id, period_id, group_id, faculty_id, department_id, topic, starts_at, ends_at, created_at)
        VALUES (:id, :period_id, :group_id, :faculty_id, :department_id, :topic, :starts_at, :ends_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// ListByFaculty returns sessions taught by a faculty member, newest first.
// This is the tenancy cut for the FACULTY role.
func (r *SessionRepository) ListByFaculty(ctx context.Context, facultyID string, limit int) ([]models.Session, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, period_id, group_id, faculty_id, department_id, topic, starts_at, ends_at, created_at
        FROM sessions WHERE faculty_id = $1 ORDER BY starts_at DESC LIMIT %d`, limit)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, facultyID); err != nil {
		return nil, fmt.Errorf("list faculty sessions: %w", err)
	}
	return sessions, nil
}

// Roster returns the ordered list of students in the session's group joined
// with any existing attendance rows.
func (r *SessionRepository) Roster(ctx context.Context, sessionID string) ([]models.RosterEntry, error) {
	const query = `SELECT s.id AS student_id, s.reg_no, s.full_name, a.status, a.marked_at
        FROM sessions se
        JOIN students s ON s.group_id = se.group_id AND s.status = 'active'
        LEFT JOIN attendance a ON a.session_id = se.id AND a.student_id = s.id
        WHERE se.id = $1
        ORDER BY s.reg_no`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, sessionID); err != nil {
		return nil, fmt.Errorf("session roster: %w", err)
	}
	return roster, nil
}
