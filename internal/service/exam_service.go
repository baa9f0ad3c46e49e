package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/medcampus/sims-api/internal/dto"
	"github.com/medcampus/sims-api/internal/models"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
)

type examStore interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	Components(ctx context.Context, examID string) ([]models.ExamComponent, error)
	FindComponent(ctx context.Context, id string) (*models.ExamComponent, error)
	Create(ctx context.Context, exam *models.Exam) error
	Update(ctx context.Context, exam *models.Exam) error
	CreateComponent(ctx context.Context, component *models.ExamComponent) error
	UpdateComponent(ctx context.Context, component *models.ExamComponent) error
}

// ExamService manages exams, components, and the passing policy fields.
type ExamService struct {
	exams     examStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamService constructs an ExamService instance.
func NewExamService(exams examStore, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ExamService{exams: exams, validator: validate, logger: logger}
}

// Get returns an exam with components.
func (s *ExamService) Get(ctx context.Context, id string) (*models.Exam, error) {
	exam, err := s.exams.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	return exam, nil
}

// Create defines an exam and its components.
func (s *ExamService) Create(ctx context.Context, req dto.CreateExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	if !req.PassingMode.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "passing_mode must be TOTAL_ONLY, COMPONENT_WISE, or HYBRID")
	}

	exam := &models.Exam{
		PeriodID:               req.PeriodID,
		BlockID:                req.BlockID,
		Title:                  req.Title,
		PassingMode:            req.PassingMode,
		FailIfAnyComponentFail: req.FailIfAnyComponentFail,
	}
	var err error
	if exam.PassTotalMarks, err = parseOptionalDecimal(req.PassTotalMarks, "pass_total_marks"); err != nil {
		return nil, err
	}
	if exam.PassTotalPercent, err = parseOptionalDecimal(req.PassTotalPercent, "pass_total_percent"); err != nil {
		return nil, err
	}
	if req.HeldOn != nil {
		heldOn, err := time.Parse("2006-01-02", *req.HeldOn)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "held_on must be YYYY-MM-DD")
		}
		exam.HeldOn = &heldOn
	}

	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}

	for i, payload := range req.Components {
		component, err := s.buildComponent(exam.ID, payload, i)
		if err != nil {
			return nil, err
		}
		if err := s.exams.CreateComponent(ctx, component); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create component")
		}
		exam.Components = append(exam.Components, *component)
	}
	return exam, nil
}

// Update rewrites an exam. Callers without policy authority (OFFICE_ASSISTANT)
// may change descriptive fields but not the passing policy.
func (s *ExamService) Update(ctx context.Context, id string, req dto.UpdateExamRequest, claims *models.JWTClaims) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}

	exam, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	passTotalMarks, err := parseOptionalDecimal(req.PassTotalMarks, "pass_total_marks")
	if err != nil {
		return nil, err
	}
	passTotalPercent, err := parseOptionalDecimal(req.PassTotalPercent, "pass_total_percent")
	if err != nil {
		return nil, err
	}

	if !claims.HasAnyRole(models.RoleAdmin, models.RoleCoordinator) {
		if req.PassingMode != exam.PassingMode ||
			req.FailIfAnyComponentFail != exam.FailIfAnyComponentFail ||
			!decimalPtrEqual(passTotalMarks, exam.PassTotalMarks) ||
			!decimalPtrEqual(passTotalPercent, exam.PassTotalPercent) {
			return nil, appErrors.Clone(appErrors.ErrPolicyFieldLocked, "")
		}
	}

	exam.Title = req.Title
	exam.PassingMode = req.PassingMode
	exam.PassTotalMarks = passTotalMarks
	exam.PassTotalPercent = passTotalPercent
	exam.FailIfAnyComponentFail = req.FailIfAnyComponentFail
	if req.HeldOn != nil {
		heldOn, err := time.Parse("2006-01-02", *req.HeldOn)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "held_on must be YYYY-MM-DD")
		}
		exam.HeldOn = &heldOn
	}

	if err := s.exams.Update(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam")
	}
	return exam, nil
}

// AddComponent appends a component to an exam. Pass criteria on components
// are policy fields.
func (s *ExamService) AddComponent(ctx context.Context, examID string, req dto.ExamComponentPayload, claims *models.JWTClaims) (*models.ExamComponent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid component payload")
	}
	if !claims.HasAnyRole(models.RoleAdmin, models.RoleCoordinator) {
		return nil, appErrors.Clone(appErrors.ErrPolicyFieldLocked, "")
	}
	if _, err := s.Get(ctx, examID); err != nil {
		return nil, err
	}

	component, err := s.buildComponent(examID, req, req.Position)
	if err != nil {
		return nil, err
	}
	if err := s.exams.CreateComponent(ctx, component); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create component")
	}
	return component, nil
}

func (s *ExamService) buildComponent(examID string, payload dto.ExamComponentPayload, position int) (*models.ExamComponent, error) {
	maxMarks, err := decimal.NewFromString(payload.MaxMarks)
	if err != nil || !maxMarks.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "max_marks must be a positive number")
	}
	component := &models.ExamComponent{
		ExamID:            examID,
		Name:              payload.Name,
		MaxMarks:          maxMarks,
		IsMandatoryToPass: payload.IsMandatoryToPass,
		Position:          position,
	}
	if component.PassMarks, err = parseOptionalDecimal(payload.PassMarks, "pass_marks"); err != nil {
		return nil, err
	}
	if component.PassPercent, err = parseOptionalDecimal(payload.PassPercent, "pass_percent"); err != nil {
		return nil, err
	}
	if component.PassMarks != nil && component.PassMarks.GreaterThan(maxMarks) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "pass_marks cannot exceed max_marks")
	}
	return component, nil
}

func parseOptionalDecimal(raw *string, field string) (*decimal.Decimal, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	value, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, field+" must be a number")
	}
	return &value, nil
}

func decimalPtrEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
