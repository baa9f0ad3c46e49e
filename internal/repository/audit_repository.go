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

// AuditRepository persists the append-only audit trail. It deliberately has
// no update or delete methods.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends one audit record.
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, actor_id, method, path, status_code, entity, entity_id, action, summary, metadata, ip_address, user_agent, created_at)
        VALUES (:id, :actor_id, :method, :path, :status_code, :entity, :entity_id, :action, :summary, :metadata, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// AuditFilter scopes audit listing queries.
type AuditFilter struct {
	ActorID  string
	Entity   string
	EntityID string
	Page     int
	PageSize int
}

// List returns audit records newest first.
func (r *AuditRepository) List(ctx context.Context, filter AuditFilter) ([]models.AuditLog, int, error) {
	var conditions []string
	var args []interface{}

	if filter.ActorID != "" {
		conditions = append(conditions, fmt.Sprintf("actor_id = $%d", len(args)+1))
		args = append(args, filter.ActorID)
	}
	if filter.Entity != "" {
		conditions = append(conditions, fmt.Sprintf("entity = $%d", len(args)+1))
		args = append(args, filter.Entity)
	}
	if filter.EntityID != "" {
		conditions = append(conditions, fmt.Sprintf("entity_id = $%d", len(args)+1))
		args = append(args, filter.EntityID)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query := fmt.Sprintf(`SELECT id, actor_id, method, path, status_code, entity, entity_id, action, summary, metadata, ip_address, user_agent, created_at
        FROM audit_logs%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, clause, size, (page-1)*size)

	var logs []models.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM audit_logs"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}
	return logs, total, nil
}
