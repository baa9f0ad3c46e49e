package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/medcampus/sims-api/internal/models"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
)

type studentStore interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
}

// StudentService exposes student reads with the STUDENT tenancy cut and the
// single-record create path used outside bulk imports.
type StudentService struct {
	students  studentStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService instance.
func NewStudentService(students studentStore, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{students: students, validator: validate, logger: logger}
}

// List returns students. Student callers get only their own record.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter, claims *models.JWTClaims) ([]models.StudentDetail, int, error) {
	if s.selfOnly(claims) {
		filter.UserID = claims.UserID
		filter.Search = ""
	}
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, total, nil
}

// Get returns one student. Student callers may only read themselves.
func (s *StudentService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if s.selfOnly(claims) {
		if student.UserID == nil || *student.UserID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
	}
	return student, nil
}

// Create registers a single student outside the bulk import path.
func (s *StudentService) Create(ctx context.Context, student *models.Student) (*models.Student, error) {
	if student.RegNo == "" || student.FullName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reg_no and full_name are required")
	}
	if student.Status != "" && !student.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown student status")
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

func (s *StudentService) selfOnly(claims *models.JWTClaims) bool {
	return claims.HasRole(models.RoleStudent) &&
		!claims.HasAnyRole(models.RoleAdmin, models.RoleCoordinator, models.RoleFaculty, models.RoleOfficeAssistant, models.RoleFinance)
}
