package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/medcampus/sims-api/internal/dto"
	"github.com/medcampus/sims-api/internal/models"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
)

type resultStore interface {
	FindByID(ctx context.Context, id string) (*models.ResultHeader, error)
	FindForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.ResultHeader, error)
	List(ctx context.Context, filter models.ResultFilter) ([]models.ResultHeader, int, error)
	Entries(ctx context.Context, headerID string) ([]models.ResultComponentEntry, error)
	Create(ctx context.Context, header *models.ResultHeader) error
	UpdateTotals(ctx context.Context, header *models.ResultHeader) error
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.ResultStatus) error
	UpsertEntry(ctx context.Context, entry *models.ResultComponentEntry) error
	UpdateEntryOutcomes(ctx context.Context, entries []models.ResultComponentEntry) error
	CreatePendingChange(ctx context.Context, change *models.PendingChange) error
	FindPendingChange(ctx context.Context, id string) (*models.PendingChange, error)
	ListPendingChanges(ctx context.Context, headerID string) ([]models.PendingChange, error)
	DecidePendingChange(ctx context.Context, id string, status models.PendingChangeStatus, decidedBy string) error
}

type resultExamLookup interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
}

type resultStudentLookup interface {
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
}

// ResultService owns the result lifecycle: score entry, outcome recompute,
// the publication workflow, and the pending-change path for published rows.
type ResultService struct {
	results   resultStore
	exams     resultExamLookup
	students  resultStudentLookup
	tx        transactor
	validator *validator.Validate
	logger    *zap.Logger
}

// NewResultService constructs a ResultService instance.
func NewResultService(results resultStore, exams resultExamLookup, students resultStudentLookup, tx transactor, validate *validator.Validate, logger *zap.Logger) *ResultService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ResultService{results: results, exams: exams, students: students, tx: tx, validator: validate, logger: logger}
}

// Create opens a DRAFT header for a student on an exam.
func (s *ResultService) Create(ctx context.Context, req dto.CreateResultRequest, actorID string) (*models.ResultHeader, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid result payload")
	}

	exam, err := s.exams.FindByID(ctx, req.ExamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}

	totalMax := decimal.Zero
	for _, component := range exam.Components {
		totalMax = totalMax.Add(component.MaxMarks)
	}

	header := &models.ResultHeader{
		ExamID:        req.ExamID,
		StudentID:     req.StudentID,
		TotalObtained: decimal.Zero,
		TotalMax:      totalMax,
		FinalOutcome:  models.OutcomePending,
		Status:        models.ResultDraft,
		CreatedBy:     &actorID,
	}
	if err := s.results.Create(ctx, header); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create result")
	}
	return header, nil
}

/// Get returns a header with entries, applying the student tenancy cut:
// student callers only see their own published results.
func (s *ResultService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.ResultHeader, error) {
	header, err := s.results.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}

	if s.studentOnly(claims) {
		student, err := s.students.FindByUserID(ctx, claims.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
		}
		if student == nil || student.ID != header.StudentID || header.Status != models.ResultPublished {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
	}
	return header, nil
}

// List returns headers under the caller's visibility.
func (s *ResultService) List(ctx context.Context, filter models.ResultFilter, claims *models.JWTClaims) ([]models.ResultHeader, int, error) {
	if s.studentOnly(claims) {
		filter.StudentUserID = claims.UserID
		filter.Status = models.ResultPublished
	}
	headers, total, err := s.results.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}
	return headers, total, nil
}

// UpsertEntry writes one component score and recomputes outcomes. Published
// headers must go through a pending change; frozen headers reject outright.
func (s *ResultService) UpsertEntry(ctx context.Context, headerID string, req dto.UpsertEntryRequest, claims *models.JWTClaims) (*models.ResultHeader, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid entry payload")
	}

	header, err := s.results.FindByID(ctx, headerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}

	switch header.Status {
	case models.ResultFrozen:
		return nil, appErrors.Clone(appErrors.ErrResultFrozen, "")
	case models.ResultPublished:
		return nil, appErrors.Clone(appErrors.ErrResultPublished, "")
	case models.ResultVerified:
		if !claims.HasAnyRole(models.RoleAdmin, models.RoleCoordinator) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "verified results can only be corrected by a coordinator or admin")
		}
	}

	marks, err := decimal.NewFromString(req.MarksObtained)
	if err != nil || marks.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "marks_obtained must be a non-negative number")
	}

	exam, err := s.exams.FindByID(ctx, header.ExamID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	var target *models.ExamComponent
	for i := range exam.Components {
		if exam.Components[i].ID == req.ComponentID {
			target = &exam.Components[i]
			break
		}
	}
	if target == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "component does not belong to this exam")
	}
	if marks.GreaterThan(target.MaxMarks) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "marks exceed the component maximum")
	}

	entry := &models.ResultComponentEntry{
		HeaderID:         headerID,
		ComponentID:      req.ComponentID,
		MarksObtained:    marks,
		ComponentOutcome: models.OutcomePending,
	}
	if err := s.results.UpsertEntry(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save entry")
	}

	return s.recompute(ctx, header, exam)
}

// Transition moves a result through the workflow under a row lock.
func (s *ResultService) Transition(ctx context.Context, headerID string, to models.ResultStatus, claims *models.JWTClaims) (*models.ResultHeader, error) {
	if !to.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown target state")
	}

	err := s.tx.RunInTx(ctx, func(tx *sqlx.Tx) error {
		header, err := s.results.FindForUpdateTx(ctx, tx, headerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "result not found")
			}
			return err
		}
		if !CanTransitionWorkflowState(claims.Roles, header.Status, to) {
			if header.Status == models.ResultFrozen {
				return appErrors.Clone(appErrors.ErrResultFrozen, "")
			}
			return appErrors.Clone(appErrors.ErrIllegalTransition, "")
		}
		if header.Status == to {
			return nil
		}
		return s.results.UpdateStatusTx(ctx, tx, headerID, to)
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition result")
	}

	header, err := s.results.FindByID(ctx, headerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload result")
	}
	return header, nil
}

// RequestChange opens a pending change against a published result.
func (s *ResultService) RequestChange(ctx context.Context, headerID string, req dto.PendingChangeRequest, claims *models.JWTClaims) (*models.PendingChange, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change payload")
	}

	header, err := s.results.FindByID(ctx, headerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}
	if header.Status == models.ResultFrozen {
		return nil, appErrors.Clone(appErrors.ErrResultFrozen, "")
	}
	if header.Status != models.ResultPublished {
		return nil, appErrors.Clone(appErrors.ErrConflict, "pending changes apply to published results; edit the draft directly")
	}

	newGrade, err := decimal.NewFromString(req.NewGrade)
	if err != nil || newGrade.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "new_grade must be a non-negative number")
	}

	change := &models.PendingChange{
		HeaderID:    headerID,
		ComponentID: req.ComponentID,
		NewGrade:    newGrade,
		Reason:      req.Reason,
		RequestedBy: claims.UserID,
	}
	if err := s.results.CreatePendingChange(ctx, change); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create pending change")
	}
	return change, nil
}

// ListChanges returns the open pending changes on a header.
func (s *ResultService) ListChanges(ctx context.Context, headerID string) ([]models.PendingChange, error) {
	changes, err := s.results.ListPendingChanges(ctx, headerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending changes")
	}
	return changes, nil
}

// DecideChange approves or rejects a pending change. Approval applies the new
// grade and recomputes outcomes.
func (s *ResultService) DecideChange(ctx context.Context, changeID string, approve bool, claims *models.JWTClaims) error {
	change, err := s.results.FindPendingChange(ctx, changeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "pending change not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending change")
	}
	if change.Status != models.PendingChangeOpen {
		return appErrors.Clone(appErrors.ErrConflict, "pending change already decided")
	}

	verdict := models.PendingChangeRejected
	if approve {
		verdict = models.PendingChangeApproved
	}
	if err := s.results.DecidePendingChange(ctx, changeID, verdict, claims.UserID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decide pending change")
	}
	if !approve {
		return nil
	}

	header, err := s.results.FindByID(ctx, change.HeaderID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}
	exam, err := s.exams.FindByID(ctx, header.ExamID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}

	var totalOverride *decimal.Decimal
	if change.ComponentID != nil {
		entry := &models.ResultComponentEntry{
			HeaderID:         change.HeaderID,
			ComponentID:      *change.ComponentID,
			MarksObtained:    change.NewGrade,
			ComponentOutcome: models.OutcomePending,
		}
		if err := s.results.UpsertEntry(ctx, entry); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply change")
		}
	} else {
		totalOverride = &change.NewGrade
	}

	if _, err := s.recomputeTotal(ctx, header, exam, totalOverride); err != nil {
		return err
	}
	s.logger.Info("pending change applied",
		zap.String("change_id", changeID),
		zap.String("header_id", change.HeaderID),
		zap.String("decided_by", claims.UserID))
	return nil
}

// recompute derives entry outcomes, totals, and the final outcome from the
// exam's passing policy, then persists them.
func (s *ResultService) recompute(ctx context.Context, header *models.ResultHeader, exam *models.Exam) (*models.ResultHeader, error) {
	return s.recomputeTotal(ctx, header, exam, nil)
}

// recomputeTotal is recompute with an optional total override; an approved
// header-level grade change replaces the entry sum instead of being derived
// from it.
func (s *ResultService) recomputeTotal(ctx context.Context, header *models.ResultHeader, exam *models.Exam, override *decimal.Decimal) (*models.ResultHeader, error) {
	entries, err := s.results.Entries(ctx, header.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load entries")
	}

	totalObtained := decimal.Zero
	for _, entry := range entries {
		totalObtained = totalObtained.Add(entry.MarksObtained)
	}
	if override != nil {
		totalObtained = *override
	}
	totalMax := decimal.Zero
	for _, component := range exam.Components {
		totalMax = totalMax.Add(component.MaxMarks)
	}

	passing := ComputePassing(exam, exam.Components, totalObtained, totalMax, entries)
	for i := range entries {
		if outcome, ok := passing.ComponentOutcomes[entries[i].ComponentID]; ok {
			entries[i].ComponentOutcome = outcome
		}
	}
	if err := s.results.UpdateEntryOutcomes(ctx, entries); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save outcomes")
	}

	header.TotalObtained = totalObtained
	header.TotalMax = totalMax
	header.FinalOutcome = passing.FinalOutcome
	if err := s.results.UpdateTotals(ctx, header); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save totals")
	}
	header.Entries = entries
	return header, nil
}

func (s *ResultService) studentOnly(claims *models.JWTClaims) bool {
	return claims.HasRole(models.RoleStudent) &&
		!claims.HasAnyRole(models.RoleAdmin, models.RoleCoordinator, models.RoleFaculty, models.RoleOfficeAssistant)
}
