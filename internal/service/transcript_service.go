package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/medcampus/sims-api/internal/models"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
	"github.com/medcampus/sims-api/pkg/export"
	"github.com/medcampus/sims-api/pkg/sign"
)

type transcriptStudentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
}

type transcriptResultStore interface {
	List(ctx context.Context, filter models.ResultFilter) ([]models.ResultHeader, int, error)
}

// TranscriptVerification is the public verification result for a scanned
// transcript token.
type TranscriptVerification struct {
	Valid   bool   `json:"valid"`
	Reason  string `json:"reason,omitempty"`
	RegNo   string `json:"reg_no,omitempty"`
	Student string `json:"student,omitempty"`
}

// TranscriptService renders signed transcripts and verifies their tokens.
type TranscriptService struct {
	students  transcriptStudentStore
	results   transcriptResultStore
	exams     resultExamLookup
	signer    *sign.TokenSigner
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTranscriptService constructs a TranscriptService instance.
func NewTranscriptService(
	students transcriptStudentStore,
	results transcriptResultStore,
	exams resultExamLookup,
	signer *sign.TokenSigner,
	validate *validator.Validate,
	logger *zap.Logger,
) *TranscriptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TranscriptService{
		students:  students,
		results:   results,
		exams:     exams,
		signer:    signer,
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
	}
}

// Generate renders a student's transcript over their published results and
// embeds a signed verification token. Student callers may only fetch their
// own transcript.
func (s *TranscriptService) Generate(ctx context.Context, studentID string, claims *models.JWTClaims) ([]byte, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if claims.HasRole(models.RoleStudent) && !claims.HasAnyRole(models.RoleAdmin, models.RoleCoordinator, models.RoleOfficeAssistant) {
		own, err := s.students.FindByUserID(ctx, claims.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
		}
		if own == nil || own.ID != student.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "transcripts are limited to the student's own record")
		}
	}

	headers, _, err := s.results.List(ctx, models.ResultFilter{
		StudentID: studentID,
		Status:    models.ResultPublished,
		PageSize:  100,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load results")
	}

	table := export.Dataset{Headers: []string{"exam", "obtained", "max", "outcome"}}
	for _, header := range headers {
		title := header.ExamID
		if exam, err := s.exams.FindByID(ctx, header.ExamID); err == nil {
			title = exam.Title
		}
		table.Rows = append(table.Rows, map[string]string{
			"exam":     title,
			"obtained": header.TotalObtained.StringFixed(2),
			"max":      header.TotalMax.StringFixed(2),
			"outcome":  string(header.FinalOutcome),
		})
	}

	token, err := s.signer.Generate(student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign transcript")
	}

	doc := export.Document{
		Title: "Academic Transcript",
		Meta: []export.KV{
			{Label: "Student", Value: student.FullName},
			{Label: "Reg No", Value: student.RegNo},
			{Label: "Status", Value: string(student.Status)},
		},
		Table:  table,
		Footer: "Verification token: " + token,
	}
	return s.pdf.Render(doc)
}

// Verify checks a scanned transcript token and, when valid, returns the
// student it was issued for. The endpoint is public; invalid tokens leak no
// detail beyond the rejection reason.
func (s *TranscriptService) Verify(ctx context.Context, token string) (*TranscriptVerification, error) {
	verification := s.signer.Verify(token)
	if !verification.Valid {
		return &TranscriptVerification{Valid: false, Reason: verification.Reason}, nil
	}

	student, err := s.students.FindByID(ctx, verification.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &TranscriptVerification{Valid: false, Reason: "student not found"}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return &TranscriptVerification{
		Valid:   true,
		RegNo:   student.RegNo,
		Student: student.FullName,
	}, nil
}
