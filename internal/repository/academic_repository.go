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

// AcademicRepository handles the organisational axes (programs, batches,
// groups, departments) and the curricular hierarchy.
type AcademicRepository struct {
	db *sqlx.DB
}

// NewAcademicRepository constructs the repository.
func NewAcademicRepository(db *sqlx.DB) *AcademicRepository {
	return &AcademicRepository{db: db}
}

// lookupID resolves a name to an id in one of the axis tables.
func (r *AcademicRepository) lookupID(ctx context.Context, q sqlx.QueryerContext, table, name string, scope map[string]string) (string, error) {
	query := fmt.Sprintf("SELECT id FROM %s WHERE name = $1", table)
	args := []interface{}{name}
	for column, value := range scope {
		query += fmt.Sprintf(" AND %s = $%d", column, len(args)+1)
		args = append(args, value)
	}
	var id string
	err := sqlx.GetContext(ctx, q, &id, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup %s %q: %w", table, name, err)
	}
	return id, nil
}

// ProgramIDByName resolves a program name; empty when absent.
func (r *AcademicRepository) ProgramIDByName(ctx context.Context, name string) (string, error) {
	return r.lookupID(ctx, r.db, "programs", name, nil)
}

// BatchIDByName resolves a batch within a program; empty when absent.
func (r *AcademicRepository) BatchIDByName(ctx context.Context, programID, name string) (string, error) {
	return r.lookupID(ctx, r.db, "batches", name, map[string]string{"program_id": programID})
}

// GroupIDByName resolves a group within a batch; empty when absent.
func (r *AcademicRepository) GroupIDByName(ctx context.Context, batchID, name string) (string, error) {
	return r.lookupID(ctx, r.db, "groups", name, map[string]string{"batch_id": batchID})
}

// DepartmentIDByName resolves a department name; empty when absent.
func (r *AcademicRepository) DepartmentIDByName(ctx context.Context, name string) (string, error) {
	return r.lookupID(ctx, r.db, "departments", name, nil)
}

// EnsureProgramTx resolves or creates a program by name within a transaction.
func (r *AcademicRepository) EnsureProgramTx(ctx context.Context, tx *sqlx.Tx, name string) (string, error) {
	id, err := r.lookupID(ctx, tx, "programs", name, nil)
	if err != nil || id != "" {
		return id, err
	}
	id = uuid.NewString()
	if _, err := tx.ExecContext(ctx, "INSERT INTO programs (id, name, created_at) VALUES ($1, $2, $3)", id, name, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("create program %q: %w", name, err)
	}
	return id, nil
}

// EnsureBatchTx resolves or creates a batch by name within its program.
func (r *AcademicRepository) EnsureBatchTx(ctx context.Context, tx *sqlx.Tx, programID, name string) (string, error) {
	id, err := r.lookupID(ctx, tx, "batches", name, map[string]string{"program_id": programID})
	if err != nil || id != "" {
		return id, err
	}
	id = uuid.NewString()
	if _, err := tx.ExecContext(ctx, "INSERT INTO batches (id, program_id, name, created_at) VALUES ($1, $2, $3, $4)", id, programID, name, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("create batch %q: %w", name, err)
	}
	return id, nil
}

// EnsureGroupTx resolves or creates a group by name within its batch.
func (r *AcademicRepository) EnsureGroupTx(ctx context.Context, tx *sqlx.Tx, batchID, name string) (string, error) {
	id, err := r.lookupID(ctx, tx, "groups", name, map[string]string{"batch_id": batchID})
	if err != nil || id != "" {
		return id, err
	}
	id = uuid.NewString()
	if _, err := tx.ExecContext(ctx, "INSERT INTO groups (id, batch_id, name, created_at) VALUES ($1, $2, $3, $4)", id, batchID, name, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("create group %q: %w", name, err)
	}
	return id, nil
}

// EnsureDepartmentTx resolves or creates a department by name.
func (r *AcademicRepository) EnsureDepartmentTx(ctx context.Context, tx *sqlx.Tx, name string) (string, error) {
	id, err := r.lookupID(ctx, tx, "departments", name, nil)
	if err != nil || id != "" {
		return id, err
	}
	id = uuid.NewString()
	if _, err := tx.ExecContext(ctx, "INSERT INTO departments (id, name, created_at) VALUES ($1, $2, $3)", id, name, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("create department %q: %w", name, err)
	}
	return id, nil
}

// DepartmentParent returns the parent id of a department (nil at the root).
func (r *AcademicRepository) DepartmentParent(ctx context.Context, id string) (*string, error) {
	var parent *string
	if err := r.db.GetContext(ctx, &parent, "SELECT parent_id FROM departments WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("department parent: %w", err)
	}
	return parent, nil
}

// CreateLearningBlock persists a learning block.
func (r *AcademicRepository) CreateLearningBlock(ctx context.Context, block *models.LearningBlock) error {
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	if block.CreatedAt.IsZero() {
		block.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO learning_blocks (id, period_id, track_id, name, block_type, department_id, sub_department_id, created_at)
        VALUES (:id, :period_id, :track_id, :name, :block_type, :department_id, :sub_department_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, block); err != nil {
		return fmt.Errorf("create learning block: %w", err)
	}
	return nil
}

// CreateBlockModule appends an ordered module to an integrated block.
func (r *AcademicRepository) CreateBlockModule(ctx context.Context, module *models.BlockModule) error {
	if module.ID == "" {
		module.ID = uuid.NewString()
	}
	const query = `INSERT INTO block_modules (id, block_id, name, position) VALUES (:id, :block_id, :name, :position)`
	if _, err := r.db.NamedExecContext(ctx, query, module); err != nil {
		return fmt.Errorf("create block module: %w", err)
	}
	return nil
}

// ListBlockModules returns a block's modules in order.
func (r *AcademicRepository) ListBlockModules(ctx context.Context, blockID string) ([]models.BlockModule, error) {
	var modules []models.BlockModule
	if err := r.db.SelectContext(ctx, &modules, "SELECT id, block_id, name, position FROM block_modules WHERE block_id = $1 ORDER BY position", blockID); err != nil {
		return nil, fmt.Errorf("list block modules: %w", err)
	}
	return modules, nil
}

// StudentConsistency verifies the (program, batch, group) triple is
// referentially consistent: the batch belongs to the program and the group to
// the batch.
func (r *AcademicRepository) StudentConsistency(ctx context.Context, programID, batchID, groupID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM groups g JOIN batches b ON b.id = g.batch_id
        WHERE g.id = $1 AND g.batch_id = $2 AND b.program_id = $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, groupID, batchID, programID); err != nil {
		return false, fmt.Errorf("check student consistency: %w", err)
	}
	return count == 1, nil
}
