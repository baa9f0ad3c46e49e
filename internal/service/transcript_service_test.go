package service

import (
	"bytes"
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcampus/sims-api/internal/models"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
	"github.com/medcampus/sims-api/pkg/sign"
)

type mockTranscriptStudents struct {
	student *models.Student
	own     *models.Student
}

func (m *mockTranscriptStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if m.student == nil {
		return nil, sql.ErrNoRows
	}
	return m.student, nil
}

func (m *mockTranscriptStudents) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	return m.own, nil
}

type mockTranscriptResults struct {
	headers []models.ResultHeader
}

func (m *mockTranscriptResults) List(ctx context.Context, filter models.ResultFilter) ([]models.ResultHeader, int, error) {
	return m.headers, len(m.headers), nil
}

func transcriptFixture() (*TranscriptService, *mockTranscriptStudents, *sign.TokenSigner) {
	signer := sign.NewTokenSigner("sims-secret", time.Hour)
	students := &mockTranscriptStudents{student: &models.Student{
		ID:       "stu-1",
		RegNo:    "R-001",
		FullName: "Ayesha Malik",
		Status:   models.StudentActive,
	}}
	results := &mockTranscriptResults{headers: []models.ResultHeader{{
		ID:            "res-1",
		ExamID:        "exam-1",
		TotalObtained: decimal.NewFromInt(60),
		TotalMax:      decimal.NewFromInt(100),
		FinalOutcome:  models.OutcomePass,
	}}}
	svc := NewTranscriptService(students, results, &mockResultExamLookup{exam: totalOnlyExam()}, signer, nil, nil)
	return svc, students, signer
}

func TestTranscriptGenerateRendersPDF(t *testing.T) {
	svc, _, _ := transcriptFixture()

	pdf, err := svc.Generate(context.Background(), "stu-1", adminClaims())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestTranscriptGenerateForbiddenForOtherStudent(t *testing.T) {
	svc, students, _ := transcriptFixture()
	students.own = &models.Student{ID: "stu-9"}

	_, err := svc.Generate(context.Background(), "stu-1", studentClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTranscriptVerifyRoundTrip(t *testing.T) {
	svc, _, signer := transcriptFixture()

	token, err := signer.Generate("stu-1")
	require.NoError(t, err)

	verification, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, verification.Valid)
	assert.Equal(t, "R-001", verification.RegNo)
	assert.Equal(t, "Ayesha Malik", verification.Student)
}

func TestTranscriptVerifyRejectsTamperedToken(t *testing.T) {
	svc, _, signer := transcriptFixture()

	token, err := signer.Generate("stu-1")
	require.NoError(t, err)

	verification, err := svc.Verify(context.Background(), token+"x")
	require.NoError(t, err)
	assert.False(t, verification.Valid)
	assert.Equal(t, sign.ReasonTampered, verification.Reason)
}
