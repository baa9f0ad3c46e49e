package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medcampus/sims-api/internal/models"
)

// StudentRepository handles persistence of students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `s.id, s.reg_no, s.full_name, s.program_id, s.batch_id, s.group_id, s.user_id, s.status, s.email, s.phone, s.date_of_birth, s.created_at, s.updated_at`

// List returns students filtered by the provided criteria.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := `FROM students s
LEFT JOIN programs p ON p.id = s.program_id
LEFT JOIN batches b ON b.id = s.batch_id
LEFT JOIN groups g ON g.id = s.group_id`
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(s.full_name ILIKE $%d OR s.reg_no ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("s.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("s.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("s.batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if filter.GroupID != "" {
		conditions = append(conditions, fmt.Sprintf("s.group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"reg_no":     "s.reg_no",
		"name":       "s.full_name",
		"created_at": "s.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "s.reg_no"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query := fmt.Sprintf(`SELECT %s, COALESCE(p.name, '') AS program_name, COALESCE(b.name, '') AS batch_name, COALESCE(g.name, '') AS group_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, studentColumns, base+clause, orderBy, order, size, (page-1)*size)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base+clause), args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns a student by primary key.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students s WHERE s.id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByUserID returns the student linked to a user, or nil when unlinked.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students s WHERE s.user_id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find student by user: %w", err)
	}
	return &student, nil
}

// FindRegNos returns the subset of the given reg_nos that already exist,
// mapped to student IDs.
func (r *StudentRepository) FindRegNos(ctx context.Context, regNos []string) (map[string]string, error) {
	if len(regNos) == 0 {
		return map[string]string{}, nil
	}
	rows, err := r.db.QueryxContext(ctx, "SELECT reg_no, id FROM students WHERE reg_no = ANY($1)", pq.Array(regNos))
	if err != nil {
		return nil, fmt.Errorf("find reg_nos: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	existing := make(map[string]string)
	for rows.Next() {
		var regNo, id string
		if err := rows.Scan(&regNo, &id); err != nil {
			return nil, fmt.Errorf("scan reg_no: %w", err)
		}
		existing[regNo] = id
	}
	return existing, rows.Err()
}

// CreateTx inserts a student inside the caller's transaction.
func (r *StudentRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, student *models.Student) error {
	prepareStudent(student)
	const query = `INSERT INTO students (id, reg_no, full_name, program_id, batch_id, group_id, user_id, status, email, phone, date_of_birth, created_at, updated_at)
        VALUES (:id, :reg_no, :full_name, :program_id, :batch_id, :group_id, :user_id, :status, :email, :phone, :date_of_birth, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// UpdateByRegNoTx updates the mutable fields of a student addressed by its
// natural key, inside the caller's transaction.
func (r *StudentRepository) UpdateByRegNoTx(ctx context.Context, tx *sqlx.Tx, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET full_name = :full_name, program_id = :program_id, batch_id = :batch_id, group_id = :group_id,
        status = :status, email = :email, phone = :phone, date_of_birth = :date_of_birth, updated_at = :updated_at
        WHERE reg_no = :reg_no`
	if _, err := tx.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student %s: %w", student.RegNo, err)
	}
	return nil
}

// Create inserts a student outside a bulk transaction.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	prepareStudent(student)
	const query = `INSERT INTO students (id, reg_no, full_name, program_id, batch_id, group_id, user_id, status, email, phone, date_of_birth, created_at, updated_at)
        VALUES (:id, :reg_no, :full_name, :program_id, :batch_id, :group_id, :user_id, :status, :email, :phone, :date_of_birth, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// UserIDsByAudience returns the distinct linked user IDs of active students
// matching the organisational scope or the explicit student set.
func (r *StudentRepository) UserIDsByAudience(ctx context.Context, programID, batchID, groupID string, studentIDs []string) ([]string, error) {
	conditions := []string{"user_id IS NOT NULL", "status = 'active'"}
	var args []interface{}

	if programID != "" {
		args = append(args, programID)
		conditions = append(conditions, fmt.Sprintf("program_id = $%d", len(args)))
	}
	if batchID != "" {
		args = append(args, batchID)
		conditions = append(conditions, fmt.Sprintf("batch_id = $%d", len(args)))
	}
	if groupID != "" {
		args = append(args, groupID)
		conditions = append(conditions, fmt.Sprintf("group_id = $%d", len(args)))
	}

	scoped := programID != "" || batchID != "" || groupID != ""
	where := strings.Join(conditions, " AND ")
	if len(studentIDs) > 0 {
		args = append(args, pq.Array(studentIDs))
		if scoped {
			where = fmt.Sprintf("user_id IS NOT NULL AND status = 'active' AND (%s OR id = ANY($%d))",
				strings.Join(conditions[2:], " AND "), len(args))
		} else {
			where += fmt.Sprintf(" AND id = ANY($%d)", len(args))
		}
	} else if !scoped {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT DISTINCT user_id FROM students WHERE %s", where)
	var userIDs []string
	if err := r.db.SelectContext(ctx, &userIDs, query, args...); err != nil {
		return nil, fmt.Errorf("audience user ids: %w", err)
	}
	return userIDs, nil
}

// StudentIDsByAudience returns active student IDs matching the scope or the
// explicit set; used by ledger fan-out.
func (r *StudentRepository) StudentIDsByAudience(ctx context.Context, programID, batchID, groupID string, studentIDs []string) ([]string, error) {
	if len(studentIDs) > 0 {
		var ids []string
		if err := r.db.SelectContext(ctx, &ids, "SELECT id FROM students WHERE id = ANY($1) AND status = 'active'", pq.Array(studentIDs)); err != nil {
			return nil, fmt.Errorf("audience student ids: %w", err)
		}
		return ids, nil
	}

	conditions := []string{"status = 'active'"}
	var args []interface{}
	if programID != "" {
		args = append(args, programID)
		conditions = append(conditions, fmt.Sprintf("program_id = $%d", len(args)))
	}
	if batchID != "" {
		args = append(args, batchID)
		conditions = append(conditions, fmt.Sprintf("batch_id = $%d", len(args)))
	}
	if groupID != "" {
		args = append(args, groupID)
		conditions = append(conditions, fmt.Sprintf("group_id = $%d", len(args)))
	}
	if len(args) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT id FROM students WHERE %s", strings.Join(conditions, " AND "))
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("audience student ids: %w", err)
	}
	return ids, nil
}

func prepareStudent(student *models.Student) {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.Status == "" {
		student.Status = models.StudentActive
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
}
