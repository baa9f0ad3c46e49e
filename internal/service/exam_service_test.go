package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcampus/sims-api/internal/dto"
	"github.com/medcampus/sims-api/internal/models"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
)

type mockExamStore struct {
	exam       *models.Exam
	components []models.ExamComponent
}

func (m *mockExamStore) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	return m.exam, nil
}

func (m *mockExamStore) Components(ctx context.Context, examID string) ([]models.ExamComponent, error) {
	return m.components, nil
}

func (m *mockExamStore) FindComponent(ctx context.Context, id string) (*models.ExamComponent, error) {
	for i := range m.components {
		if m.components[i].ID == id {
			return &m.components[i], nil
		}
	}
	return nil, nil
}

func (m *mockExamStore) Create(ctx context.Context, exam *models.Exam) error {
	exam.ID = "exam-1"
	m.exam = exam
	return nil
}

func (m *mockExamStore) Update(ctx context.Context, exam *models.Exam) error {
	m.exam = exam
	return nil
}

func (m *mockExamStore) CreateComponent(ctx context.Context, component *models.ExamComponent) error {
	component.ID = "comp-new"
	m.components = append(m.components, *component)
	return nil
}

func (m *mockExamStore) UpdateComponent(ctx context.Context, component *models.ExamComponent) error {
	return nil
}

func officeAssistantClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "oa-1", Roles: []models.Role{models.RoleOfficeAssistant}}
}

func TestExamCreateValidatesPolicy(t *testing.T) {
	svc := NewExamService(&mockExamStore{}, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateExamRequest{
		PeriodID:    "period-1",
		Title:       "Block 1 Midterm",
		PassingMode: models.PassingMode("BEST_EFFORT"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	passMarks := "120"
	_, err = svc.Create(context.Background(), dto.CreateExamRequest{
		PeriodID:    "period-1",
		Title:       "Block 1 Midterm",
		PassingMode: models.PassingComponentWise,
		Components: []dto.ExamComponentPayload{
			{Name: "Theory", MaxMarks: "100", PassMarks: &passMarks},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pass_marks cannot exceed max_marks")
}

func TestExamCreateBuildsComponents(t *testing.T) {
	store := &mockExamStore{}
	svc := NewExamService(store, nil, nil)
	passTotal := "50"

	exam, err := svc.Create(context.Background(), dto.CreateExamRequest{
		PeriodID:       "period-1",
		Title:          "Block 1 Midterm",
		PassingMode:    models.PassingTotalOnly,
		PassTotalMarks: &passTotal,
		Components: []dto.ExamComponentPayload{
			{Name: "Theory", MaxMarks: "70"},
			{Name: "Viva", MaxMarks: "30"},
		},
	})
	require.NoError(t, err)
	require.Len(t, exam.Components, 2)
	assert.Equal(t, 0, exam.Components[0].Position)
	assert.Equal(t, 1, exam.Components[1].Position)
	require.NotNil(t, exam.PassTotalMarks)
	assert.Equal(t, "50", exam.PassTotalMarks.String())
}

func TestExamUpdatePolicyFieldsLocked(t *testing.T) {
	store := &mockExamStore{exam: totalOnlyExam()}
	svc := NewExamService(store, nil, nil)
	passTotal := "50"

	// Touching the passing mode without policy authority is rejected.
	_, err := svc.Update(context.Background(), "exam-1", dto.UpdateExamRequest{
		Title:          "Block 1 Midterm",
		PassingMode:    models.PassingHybrid,
		PassTotalMarks: &passTotal,
	}, officeAssistantClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPolicyFieldLocked.Code, appErrors.FromError(err).Code)

	// Descriptive edits with the policy left untouched go through.
	exam, err := svc.Update(context.Background(), "exam-1", dto.UpdateExamRequest{
		Title:          "Block 1 Midterm (Retake)",
		PassingMode:    models.PassingTotalOnly,
		PassTotalMarks: &passTotal,
	}, officeAssistantClaims())
	require.NoError(t, err)
	assert.Equal(t, "Block 1 Midterm (Retake)", exam.Title)
}

func TestExamUpdatePolicyAllowedForCoordinator(t *testing.T) {
	store := &mockExamStore{exam: totalOnlyExam()}
	svc := NewExamService(store, nil, nil)
	passPercent := "60"

	exam, err := svc.Update(context.Background(), "exam-1", dto.UpdateExamRequest{
		Title:            "Block 1 Midterm",
		PassingMode:      models.PassingHybrid,
		PassTotalPercent: &passPercent,
	}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.PassingHybrid, exam.PassingMode)
}

func TestAddComponentRequiresPolicyAuthority(t *testing.T) {
	store := &mockExamStore{exam: totalOnlyExam()}
	svc := NewExamService(store, nil, nil)
	payload := dto.ExamComponentPayload{Name: "OSPE", MaxMarks: "20", Position: 1}

	_, err := svc.AddComponent(context.Background(), "exam-1", payload, officeAssistantClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPolicyFieldLocked.Code, appErrors.FromError(err).Code)

	component, err := svc.AddComponent(context.Background(), "exam-1", payload, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, "OSPE", component.Name)
	assert.Equal(t, 1, component.Position)
}
