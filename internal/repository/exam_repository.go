package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medcampus/sims-api/internal/models"
)

// ExamRepository handles persistence of exams and their components.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs the repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

const examColumns = `id, period_id, block_id, title, passing_mode, pass_total_marks, pass_total_percent, fail_if_any_component_fail, held_on, created_at, updated_at`

// FindByID returns an exam with components loaded.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	query := fmt.Sprintf("SELECT %s FROM exams WHERE id = $1", examColumns)
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	components, err := r.Components(ctx, id)
	if err != nil {
		return nil, err
	}
	exam.Components = components
	return &exam, nil
}

// Components lists an exam's components in position order.
func (r *ExamRepository) Components(ctx context.Context, examID string) ([]models.ExamComponent, error) {
	const query = `SELECT id, exam_id, name, max_marks, pass_marks, pass_percent, is_mandatory_to_pass, position
        FROM exam_components WHERE exam_id = $1 ORDER BY position`
	var components []models.ExamComponent
	if err := r.db.SelectContext(ctx, &components, query, examID); err != nil {
		return nil, fmt.Errorf("list exam components: %w", err)
	}
	return components, nil
}

// FindComponent returns one component.
func (r *ExamRepository) FindComponent(ctx context.Context, id string) (*models.ExamComponent, error) {
	const query = `SELECT id, exam_id, name, max_marks, pass_marks, pass_percent, is_mandatory_to_pass, position
        FROM exam_components WHERE id = $1`
	var component models.ExamComponent
	if err := r.db.GetContext(ctx, &component, query, id); err != nil {
		return nil, err
	}
	return &component, nil
}

// Create persists an exam.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	exam.CreatedAt = now
	exam.UpdatedAt = now
	const query = `INSERT INTO exams (id, period_id, block_id, title, passing_mode, pass_total_marks, pass_total_percent, fail_if_any_component_fail, held_on, created_at, updated_at)
        VALUES (:id, :period_id, :block_id, :title, :passing_mode, :pass_total_marks, :pass_total_percent, :fail_if_any_component_fail, :held_on, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an exam.
func (r *ExamRepository) Update(ctx context.Context, exam *models.Exam) error {
	exam.UpdatedAt = time.Now().UTC()
	const query = `UPDATE exams SET title = :title, passing_mode = :passing_mode, pass_total_marks = :pass_total_marks,
        pass_total_percent = :pass_total_percent, fail_if_any_component_fail = :fail_if_any_component_fail,
        held_on = :held_on, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("update exam: %w", err)
	}
	return nil
}

// CreateComponent persists a component.
func (r *ExamRepository) CreateComponent(ctx context.Context, component *models.ExamComponent) error {
	if component.ID == "" {
		component.ID = uuid.NewString()
	}
	const query = `INSERT INTO exam_components (id, exam_id, name, max_marks, pass_marks, pass_percent, is_mandatory_to_pass, position)
        VALUES (:id, :exam_id, :name, :max_marks, :pass_marks, :pass_percent, :is_mandatory_to_pass, :position)`
	if _, err := r.db.NamedExecContext(ctx, query, component); err != nil {
		return fmt.Errorf("create exam component: %w", err)
	}
	return nil
}

// UpdateComponent rewrites a component.
func (r *ExamRepository) UpdateComponent(ctx context.Context, component *models.ExamComponent) error {
	const query = `UPDATE exam_components SET name = :name, max_marks = :max_marks, pass_marks = :pass_marks,
        pass_percent = :pass_percent, is_mandatory_to_pass = :is_mandatory_to_pass, position = :position WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, component); err != nil {
		return fmt.Errorf("update exam component: %w", err)
	}
	return nil
}
