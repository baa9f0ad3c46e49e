package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medcampus/sims-api/internal/models"
)

// FacultyRepository handles persistence of faculty members.
type FacultyRepository struct {
	db *sqlx.DB
}

// NewFacultyRepository constructs the repository.
func NewFacultyRepository(db *sqlx.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

const facultyColumns = `id, name, department_id, user_id, designation, email, phone, active, created_at, updated_at`

// FindByID returns a faculty member by primary key.
func (r *FacultyRepository) FindByID(ctx context.Context, id string) (*models.Faculty, error) {
	query := fmt.Sprintf("SELECT %s FROM faculty WHERE id = $1", facultyColumns)
	var faculty models.Faculty
	if err := r.db.GetContext(ctx, &faculty, query, id); err != nil {
		return nil, err
	}
	return &faculty, nil
}

// FindByUserID returns the faculty member linked to a user.
func (r *FacultyRepository) FindByUserID(ctx context.Context, userID string) (*models.Faculty, error) {
	query := fmt.Sprintf("SELECT %s FROM faculty WHERE user_id = $1", facultyColumns)
	var faculty models.Faculty
	if err := r.db.GetContext(ctx, &faculty, query, userID); err != nil {
		return nil, err
	}
	return &faculty, nil
}

// FindNames returns the subset of the given names that already exist, mapped
// to faculty IDs. Name is the importer's natural key.
func (r *FacultyRepository) FindNames(ctx context.Context, names []string) (map[string]string, error) {
	if len(names) == 0 {
		return map[string]string{}, nil
	}
	rows, err := r.db.QueryxContext(ctx, "SELECT name, id FROM faculty WHERE name = ANY($1)", pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("find faculty names: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	existing := make(map[string]string)
	for rows.Next() {
		var name, id string
		if err := rows.Scan(&name, &id); err != nil {
			return nil, fmt.Errorf("scan faculty name: %w", err)
		}
		existing[name] = id
	}
	return existing, rows.Err()
}

// CreateTx inserts a faculty member inside the caller's transaction.
func (r *FacultyRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, faculty *models.Faculty) error {
	if faculty.ID == "" {
		faculty.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if faculty.CreatedAt.IsZero() {
		faculty.CreatedAt = now
	}
	faculty.UpdatedAt = now
	const query = `INSERT INTO faculty (id, name, department_id, user_id, designation, email, phone, active, created_at, updated_at)
        VALUES (:id, :name, :department_id, :user_id, :designation, :email, :phone, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, faculty); err != nil {
		return fmt.Errorf("create faculty: %w", err)
	}
	return nil
}

// UpdateByNameTx updates a faculty member addressed by its natural key.
func (r *FacultyRepository) UpdateByNameTx(ctx context.Context, tx *sqlx.Tx, faculty *models.Faculty) error {
	faculty.UpdatedAt = time.Now().UTC()
	const query = `UPDATE faculty SET department_id = :department_id, designation = :designation, email = :email,
        phone = :phone, active = :active, updated_at = :updated_at WHERE name = :name`
	if _, err := tx.NamedExecContext(ctx, query, faculty); err != nil {
		return fmt.Errorf("update faculty %s: %w", faculty.Name, err)
	}
	return nil
}
