package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/medcampus/sims-api/internal/models"
)

// FinanceRepository handles charge templates, charges, the per-student
// ledger, challans, and the append-only payment log.
type FinanceRepository struct {
	db *sqlx.DB
}

// NewFinanceRepository constructs the repository.
func NewFinanceRepository(db *sqlx.DB) *FinanceRepository {
	return &FinanceRepository{db: db}
}

// CreateTemplate persists a charge template.
func (r *FinanceRepository) CreateTemplate(ctx context.Context, template *models.ChargeTemplate) error {
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	template.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO charge_templates (id, title_template, default_amount, frequency_unit, frequency_interval, auto_generate_mode, created_at)
        VALUES (:id, :title_template, :default_amount, :frequency_unit, :frequency_interval, :auto_generate_mode, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, template); err != nil {
		return fmt.Errorf("create charge template: %w", err)
	}
	return nil
}

// FindTemplate returns a charge template by id.
func (r *FinanceRepository) FindTemplate(ctx context.Context, id string) (*models.ChargeTemplate, error) {
	const query = `SELECT id, title_template, default_amount, frequency_unit, frequency_interval, auto_generate_mode, created_at
        FROM charge_templates WHERE id = $1`
	var template models.ChargeTemplate
	if err := r.db.GetContext(ctx, &template, query, id); err != nil {
		return nil, err
	}
	return &template, nil
}

// ListTemplates returns all charge templates.
func (r *FinanceRepository) ListTemplates(ctx context.Context) ([]models.ChargeTemplate, error) {
	const query = `SELECT id, title_template, default_amount, frequency_unit, frequency_interval, auto_generate_mode, created_at
        FROM charge_templates ORDER BY created_at DESC`
	var templates []models.ChargeTemplate
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("list charge templates: %w", err)
	}
	return templates, nil
}

// CreateCharge persists a charge.
func (r *FinanceRepository) CreateCharge(ctx context.Context, charge *models.Charge) error {
	if charge.ID == "" {
		charge.ID = uuid.NewString()
	}
	charge.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO charges (id, template_id, title, amount, due_date, created_by, created_at)
        VALUES (:id, :template_id, :title, :amount, :due_date, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, charge); err != nil {
		return fmt.Errorf("create charge: %w", err)
	}
	return nil
}

// FindCharge returns a charge by id.
func (r *FinanceRepository) FindCharge(ctx context.Context, id string) (*models.Charge, error) {
	const query = `SELECT id, template_id, title, amount, due_date, created_by, created_at FROM charges WHERE id = $1`
	var charge models.Charge
	if err := r.db.GetContext(ctx, &charge, query, id); err != nil {
		return nil, err
	}
	return &charge, nil
}

// CreateLedgerItemTx inserts one ledger row inside the caller's transaction.
// The (student, charge) unique constraint makes ledger generation idempotent;
// returns false when the row already existed.
func (r *FinanceRepository) CreateLedgerItemTx(ctx context.Context, tx *sqlx.Tx, item *models.StudentLedgerItem) (bool, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = models.LedgerPending
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	const query = `INSERT INTO student_ledger_items (id, student_id, charge_id, amount_total, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (student_id, charge_id) DO NOTHING`
	result, err := tx.ExecContext(ctx, query, item.ID, item.StudentID, item.ChargeID, item.AmountTotal, item.Status, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("create ledger item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create ledger item: %w", err)
	}
	return affected == 1, nil
}

// FindLedgerItem returns one ledger row.
func (r *FinanceRepository) FindLedgerItem(ctx context.Context, id string) (*models.StudentLedgerItem, error) {
	const query = `SELECT id, student_id, charge_id, amount_total, status, created_at, updated_at
        FROM student_ledger_items WHERE id = $1`
	var item models.StudentLedgerItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListLedger returns ledger rows matching the filter with a total count.
func (r *FinanceRepository) ListLedger(ctx context.Context, filter models.LedgerFilter) ([]models.StudentLedgerItem, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("li.student_id = $%d", len(args)))
	}
	if filter.ChargeID != "" {
		args = append(args, filter.ChargeID)
		conditions = append(conditions, fmt.Sprintf("li.charge_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("li.status = $%d", len(args)))
	}
	if filter.StudentUserID != "" {
		args = append(args, filter.StudentUserID)
		conditions = append(conditions, fmt.Sprintf("li.student_id IN (SELECT id FROM students WHERE user_id = $%d)", len(args)))
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM student_ledger_items li WHERE %s", where), args...); err != nil {
		return nil, 0, fmt.Errorf("count ledger: %w", err)
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
	query := fmt.Sprintf(`SELECT li.id, li.student_id, li.charge_id, li.amount_total, li.status, li.created_at, li.updated_at
        FROM student_ledger_items li WHERE %s ORDER BY li.created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))

	var items []models.StudentLedgerItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list ledger: %w", err)
	}
	return items, total, nil
}

// UpdateLedgerStatus flips a ledger row's lifecycle state.
func (r *FinanceRepository) UpdateLedgerStatus(ctx context.Context, id string, status models.LedgerStatus) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE student_ledger_items SET status = $2, updated_at = $3 WHERE id = $1", id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update ledger status: %w", err)
	}
	return nil
}

// NextChallanNoTx reserves the next challan number for a year inside the
// caller's transaction. The counter row is locked so numbers stay unique and
// monotonic under concurrency.
func (r *FinanceRepository) NextChallanNoTx(ctx context.Context, tx *sqlx.Tx, year int) (string, error) {
	const query = `INSERT INTO challan_counters (year, last_seq) VALUES ($1, 1)
        ON CONFLICT (year) DO UPDATE SET last_seq = challan_counters.last_seq + 1
        RETURNING last_seq`
	var seq int64
	if err := tx.GetContext(ctx, &seq, query, year); err != nil {
		return "", fmt.Errorf("next challan number: %w", err)
	}
	return fmt.Sprintf("CH-%d-%06d", year, seq), nil
}

// CreateChallanTx persists a challan inside the caller's transaction.
func (r *FinanceRepository) CreateChallanTx(ctx context.Context, tx *sqlx.Tx, challan *models.Challan) error {
	if challan.ID == "" {
		challan.ID = uuid.NewString()
	}
	if challan.IssuedAt.IsZero() {
		challan.IssuedAt = time.Now().UTC()
	}
	const query = `INSERT INTO challans (id, challan_no, ledger_item_id, student_id, amount_total, issued_at, due_date)
        VALUES (:id, :challan_no, :ledger_item_id, :student_id, :amount_total, :issued_at, :due_date)`
	if _, err := tx.NamedExecContext(ctx, query, challan); err != nil {
		return fmt.Errorf("create challan: %w", err)
	}
	return nil
}

// FindChallan returns a challan by id.
func (r *FinanceRepository) FindChallan(ctx context.Context, id string) (*models.Challan, error) {
	const query = `SELECT id, challan_no, ledger_item_id, student_id, amount_total, issued_at, due_date FROM challans WHERE id = $1`
	var challan models.Challan
	if err := r.db.GetContext(ctx, &challan, query, id); err != nil {
		return nil, err
	}
	return &challan, nil
}

// CreatePaymentTx appends a payment log entry inside the caller's
// transaction. Payment rows are never updated or deleted.
func (r *FinanceRepository) CreatePaymentTx(ctx context.Context, tx *sqlx.Tx, payment *models.PaymentLog) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.ReceivedAt.IsZero() {
		payment.ReceivedAt = time.Now().UTC()
	}
	const query = `INSERT INTO payment_logs (id, challan_id, amount, method, reference, received_by, received_at)
        VALUES (:id, :challan_id, :amount, :method, :reference, :received_by, :received_at)`
	if _, err := tx.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// PaymentSumTx totals payments recorded against a challan inside the
// caller's transaction.
func (r *FinanceRepository) PaymentSumTx(ctx context.Context, tx *sqlx.Tx, challanID string) (decimal.Decimal, error) {
	var raw sql.NullString
	if err := tx.GetContext(ctx, &raw, "SELECT SUM(amount) FROM payment_logs WHERE challan_id = $1", challanID); err != nil {
		return decimal.Zero, fmt.Errorf("sum payments: %w", err)
	}
	if !raw.Valid {
		return decimal.Zero, nil
	}
	sum, err := decimal.NewFromString(raw.String)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum payments: %w", err)
	}
	return sum, nil
}

// ListPayments returns the payment history of a challan, oldest first.
func (r *FinanceRepository) ListPayments(ctx context.Context, challanID string) ([]models.PaymentLog, error) {
	const query = `SELECT id, challan_id, amount, method, reference, received_by, received_at
        FROM payment_logs WHERE challan_id = $1 ORDER BY received_at`
	var payments []models.PaymentLog
	if err := r.db.SelectContext(ctx, &payments, query, challanID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// LedgerItemByChargeAndStudentTx looks up a ledger row by its natural key
// inside the caller's transaction; nil when absent.
func (r *FinanceRepository) LedgerItemByChargeAndStudentTx(ctx context.Context, tx *sqlx.Tx, studentID, chargeID string) (*models.StudentLedgerItem, error) {
	const query = `SELECT id, student_id, charge_id, amount_total, status, created_at, updated_at
        FROM student_ledger_items WHERE student_id = $1 AND charge_id = $2`
	var item models.StudentLedgerItem
	err := tx.GetContext(ctx, &item, query, studentID, chargeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find ledger item: %w", err)
	}
	return &item, nil
}
