package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/medcampus/sims-api/internal/dto"
	"github.com/medcampus/sims-api/internal/models"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
	"github.com/medcampus/sims-api/pkg/export"
)

type financeStore interface {
	CreateTemplate(ctx context.Context, template *models.ChargeTemplate) error
	FindTemplate(ctx context.Context, id string) (*models.ChargeTemplate, error)
	ListTemplates(ctx context.Context) ([]models.ChargeTemplate, error)
	CreateCharge(ctx context.Context, charge *models.Charge) error
	FindCharge(ctx context.Context, id string) (*models.Charge, error)
	CreateLedgerItemTx(ctx context.Context, tx *sqlx.Tx, item *models.StudentLedgerItem) (bool, error)
	FindLedgerItem(ctx context.Context, id string) (*models.StudentLedgerItem, error)
	ListLedger(ctx context.Context, filter models.LedgerFilter) ([]models.StudentLedgerItem, int, error)
	UpdateLedgerStatus(ctx context.Context, id string, status models.LedgerStatus) error
	NextChallanNoTx(ctx context.Context, tx *sqlx.Tx, year int) (string, error)
	CreateChallanTx(ctx context.Context, tx *sqlx.Tx, challan *models.Challan) error
	FindChallan(ctx context.Context, id string) (*models.Challan, error)
	CreatePaymentTx(ctx context.Context, tx *sqlx.Tx, payment *models.PaymentLog) error
	PaymentSumTx(ctx context.Context, tx *sqlx.Tx, challanID string) (decimal.Decimal, error)
	ListPayments(ctx context.Context, challanID string) ([]models.PaymentLog, error)
}

type financeStudentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
	StudentIDsByAudience(ctx context.Context, programID, batchID, groupID string, studentIDs []string) ([]string, error)
}

// FinanceService runs the charge pipeline: template, charge, per-student
// ledger, challan, and the append-only payment log.
type FinanceService struct {
	finance   financeStore
	students  financeStudentStore
	tx        transactor
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFinanceService constructs a FinanceService instance.
func NewFinanceService(finance financeStore, students financeStudentStore, tx transactor, validate *validator.Validate, logger *zap.Logger) *FinanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &FinanceService{
		finance:   finance,
		students:  students,
		tx:        tx,
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
	}
}

// CreateTemplate defines a recurring charge.
func (s *FinanceService) CreateTemplate(ctx context.Context, req dto.ChargeTemplateRequest) (*models.ChargeTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template payload")
	}
	amount, err := decimal.NewFromString(req.DefaultAmount)
	if err != nil || amount.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "default_amount must be a non-negative number")
	}

	template := &models.ChargeTemplate{
		TitleTemplate:     req.TitleTemplate,
		DefaultAmount:     amount,
		FrequencyUnit:     req.FrequencyUnit,
		FrequencyInterval: req.FrequencyInterval,
		AutoGenerateMode:  req.AutoGenerateMode,
	}
	if err := s.finance.CreateTemplate(ctx, template); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create template")
	}
	return template, nil
}

// ListTemplates returns all charge templates.
func (s *FinanceService) ListTemplates(ctx context.Context) ([]models.ChargeTemplate, error) {
	templates, err := s.finance.ListTemplates(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list templates")
	}
	return templates, nil
}

// CreateCharge materialises a charge, optionally from a template.
func (s *FinanceService) CreateCharge(ctx context.Context, req dto.ChargeRequest, actorID string) (*models.Charge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid charge payload")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be a non-negative number")
	}

	charge := &models.Charge{
		TemplateID: req.TemplateID,
		Title:      req.Title,
		Amount:     amount,
		CreatedBy:  &actorID,
	}
	if req.TemplateID != nil {
		if _, err := s.finance.FindTemplate(ctx, *req.TemplateID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
		}
	}
	if req.DueDate != nil {
		dueDate, err := time.Parse("2006-01-02", *req.DueDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "due_date must be YYYY-MM-DD")
		}
		charge.DueDate = &dueDate
	}

	if err := s.finance.CreateCharge(ctx, charge); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create charge")
	}
	return charge, nil
}

// GenerateLedger fans a charge out to the selected students. The unique
// (student, charge) constraint makes reruns idempotent.
func (s *FinanceService) GenerateLedger(ctx context.Context, req dto.GenerateLedgerRequest) (*dto.GenerateLedgerResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ledger payload")
	}

	charge, err := s.finance.FindCharge(ctx, req.ChargeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "charge not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load charge")
	}

	studentIDs, err := s.students.StudentIDsByAudience(ctx, req.ProgramID, req.BatchID, req.GroupID, req.StudentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve students")
	}
	if len(studentIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no students match the given scope")
	}

	resp := &dto.GenerateLedgerResponse{}
	err = s.tx.RunInTx(ctx, func(tx *sqlx.Tx) error {
		for _, studentID := range studentIDs {
			created, err := s.finance.CreateLedgerItemTx(ctx, tx, &models.StudentLedgerItem{
				StudentID:   studentID,
				ChargeID:    charge.ID,
				AmountTotal: charge.Amount,
				Status:      models.LedgerPending,
			})
			if err != nil {
				return err
			}
			if created {
				resp.Created++
			} else {
				resp.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate ledger")
	}

	s.logger.Info("ledger generated",
		zap.String("charge_id", charge.ID),
		zap.Int("created", resp.Created),
		zap.Int("skipped", resp.Skipped))
	return resp, nil
}

// ListLedger returns ledger rows. Student callers only see their own rows.
func (s *FinanceService) ListLedger(ctx context.Context, filter models.LedgerFilter, claims *models.JWTClaims) ([]models.StudentLedgerItem, int, error) {
	if claims.HasRole(models.RoleStudent) && !claims.HasAnyRole(models.RoleAdmin, models.RoleFinance) {
		filter.StudentUserID = claims.UserID
		filter.StudentID = ""
	}
	items, total, err := s.finance.ListLedger(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ledger")
	}
	return items, total, nil
}

// SetLedgerStatus waives or cancels a ledger row. Both verbs are admin-level
// actions; PAID is only ever derived from payments.
func (s *FinanceService) SetLedgerStatus(ctx context.Context, id string, status models.LedgerStatus, claims *models.JWTClaims) error {
	if status != models.LedgerWaived && status != models.LedgerCancelled {
		return appErrors.Clone(appErrors.ErrValidation, "status must be WAIVED or CANCELLED")
	}
	if !claims.HasRole(models.RoleAdmin) {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators can waive or cancel ledger items")
	}

	item, err := s.finance.FindLedgerItem(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "ledger item not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger item")
	}
	if item.Status != models.LedgerPending {
		return appErrors.Clone(appErrors.ErrConflict, "only pending ledger items can be waived or cancelled")
	}

	if err := s.finance.UpdateLedgerStatus(ctx, id, status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update ledger status")
	}
	return nil
}

// IssueChallan creates a numbered payment slip for a pending ledger item.
func (s *FinanceService) IssueChallan(ctx context.Context, ledgerItemID string) (*models.Challan, error) {
	item, err := s.finance.FindLedgerItem(ctx, ledgerItemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ledger item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger item")
	}
	if item.Status != models.LedgerPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "challans can only be issued for pending ledger items")
	}

	var challan *models.Challan
	err = s.tx.RunInTx(ctx, func(tx *sqlx.Tx) error {
		challanNo, err := s.finance.NextChallanNoTx(ctx, tx, time.Now().UTC().Year())
		if err != nil {
			return err
		}
		challan = &models.Challan{
			ChallanNo:    challanNo,
			LedgerItemID: item.ID,
			StudentID:    item.StudentID,
			AmountTotal:  item.AmountTotal,
		}
		return s.finance.CreateChallanTx(ctx, tx, challan)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue challan")
	}
	return challan, nil
}

// RecordPayment appends a payment against a challan. The ledger row flips to
// PAID once the payment sum reaches the total.
func (s *FinanceService) RecordPayment(ctx context.Context, challanID string, req dto.PaymentRequest, actorID string) (*models.PaymentLog, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be a positive number")
	}

	challan, err := s.finance.FindChallan(ctx, challanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "challan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load challan")
	}

	payment := &models.PaymentLog{
		ChallanID:  challan.ID,
		Amount:     amount,
		Method:     req.Method,
		Reference:  req.Reference,
		ReceivedBy: &actorID,
	}
	err = s.tx.RunInTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.finance.CreatePaymentTx(ctx, tx, payment); err != nil {
			return err
		}
		sum, err := s.finance.PaymentSumTx(ctx, tx, challan.ID)
		if err != nil {
			return err
		}
		if sum.GreaterThanOrEqual(challan.AmountTotal) {
			if _, err := tx.ExecContext(ctx,
				"UPDATE student_ledger_items SET status = $2, updated_at = $3 WHERE id = $1 AND status = 'PENDING'",
				challan.LedgerItemID, models.LedgerPaid, time.Now().UTC()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}
	return payment, nil
}

// ChallanPDF renders a challan as a printable slip.
func (s *FinanceService) ChallanPDF(ctx context.Context, challanID string) ([]byte, error) {
	challan, err := s.finance.FindChallan(ctx, challanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "challan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load challan")
	}
	student, err := s.students.FindByID(ctx, challan.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	payments, err := s.finance.ListPayments(ctx, challan.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}

	doc := export.Document{
		Title: "Fee Challan " + challan.ChallanNo,
		Meta: []export.KV{
			{Label: "Challan No", Value: challan.ChallanNo},
			{Label: "Student", Value: student.FullName},
			{Label: "Reg No", Value: student.RegNo},
			{Label: "Amount", Value: challan.AmountTotal.StringFixed(2)},
			{Label: "Issued", Value: challan.IssuedAt.Format("2006-01-02")},
		},
		Footer: "Payable at any designated bank branch.",
	}
	if len(payments) > 0 {
		table := export.Dataset{Headers: []string{"received_at", "amount", "method", "reference"}}
		for _, p := range payments {
			row := map[string]string{
				"received_at": p.ReceivedAt.Format("2006-01-02"),
				"amount":      p.Amount.StringFixed(2),
			}
			if p.Method != nil {
				row["method"] = *p.Method
			}
			if p.Reference != nil {
				row["reference"] = *p.Reference
			}
			table.Rows = append(table.Rows, row)
		}
		doc.Table = table
	}
	return s.pdf.Render(doc)
}
