package service

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcampus/sims-api/internal/dto"
	"github.com/medcampus/sims-api/internal/models"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
)

type mockResultStore struct {
	header    *models.ResultHeader
	entries   []models.ResultComponentEntry
	change    *models.PendingChange
	statusSet models.ResultStatus
}

func (m *mockResultStore) FindByID(ctx context.Context, id string) (*models.ResultHeader, error) {
	return m.header, nil
}

func (m *mockResultStore) FindForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.ResultHeader, error) {
	return m.header, nil
}

func (m *mockResultStore) List(ctx context.Context, filter models.ResultFilter) ([]models.ResultHeader, int, error) {
	return nil, 0, nil
}

func (m *mockResultStore) Entries(ctx context.Context, headerID string) ([]models.ResultComponentEntry, error) {
	return m.entries, nil
}

func (m *mockResultStore) Create(ctx context.Context, header *models.ResultHeader) error {
	header.ID = "res-1"
	m.header = header
	return nil
}

func (m *mockResultStore) UpdateTotals(ctx context.Context, header *models.ResultHeader) error {
	return nil
}

func (m *mockResultStore) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.ResultStatus) error {
	m.statusSet = status
	m.header.Status = status
	return nil
}

func (m *mockResultStore) UpsertEntry(ctx context.Context, entry *models.ResultComponentEntry) error {
	for i := range m.entries {
		if m.entries[i].ComponentID == entry.ComponentID {
			m.entries[i].MarksObtained = entry.MarksObtained
			return nil
		}
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockResultStore) UpdateEntryOutcomes(ctx context.Context, entries []models.ResultComponentEntry) error {
	m.entries = entries
	return nil
}

func (m *mockResultStore) CreatePendingChange(ctx context.Context, change *models.PendingChange) error {
	change.ID = "chg-1"
	change.Status = models.PendingChangeOpen
	m.change = change
	return nil
}

func (m *mockResultStore) FindPendingChange(ctx context.Context, id string) (*models.PendingChange, error) {
	return m.change, nil
}

func (m *mockResultStore) ListPendingChanges(ctx context.Context, headerID string) ([]models.PendingChange, error) {
	if m.change == nil {
		return nil, nil
	}
	return []models.PendingChange{*m.change}, nil
}

func (m *mockResultStore) DecidePendingChange(ctx context.Context, id string, status models.PendingChangeStatus, decidedBy string) error {
	m.change.Status = status
	return nil
}

type mockResultExamLookup struct {
	exam *models.Exam
}

func (m *mockResultExamLookup) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	return m.exam, nil
}

type mockResultStudentLookup struct {
	student *models.Student
}

func (m *mockResultStudentLookup) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	return m.student, nil
}

func totalOnlyExam() *models.Exam {
	pass := "50"
	passDec, _ := decimal.NewFromString(pass)
	return &models.Exam{
		ID:             "exam-1",
		Title:          "Block 1 Midterm",
		PassingMode:    models.PassingTotalOnly,
		PassTotalMarks: &passDec,
		Components: []models.ExamComponent{
			{ID: "c1", ExamID: "exam-1", Name: "Theory", MaxMarks: decimal.NewFromInt(100)},
		},
	}
}

func resultFixture(status models.ResultStatus) (*ResultService, *mockResultStore) {
	store := &mockResultStore{header: &models.ResultHeader{
		ID:        "res-1",
		ExamID:    "exam-1",
		StudentID: "stu-1",
		Status:    status,
	}}
	exams := &mockResultExamLookup{exam: totalOnlyExam()}
	svc := NewResultService(store, exams, &mockResultStudentLookup{}, fakeTransactor{}, nil, nil)
	return svc, store
}

func TestResultCreateSumsComponentMax(t *testing.T) {
	store := &mockResultStore{}
	exam := totalOnlyExam()
	exam.Components = append(exam.Components, models.ExamComponent{ID: "c2", MaxMarks: decimal.NewFromInt(40)})
	svc := NewResultService(store, &mockResultExamLookup{exam: exam}, &mockResultStudentLookup{}, fakeTransactor{}, nil, nil)

	header, err := svc.Create(context.Background(), dto.CreateResultRequest{ExamID: "exam-1", StudentID: "stu-1"}, "actor-1")
	require.NoError(t, err)
	assert.Equal(t, models.ResultDraft, header.Status)
	assert.Equal(t, models.OutcomePending, header.FinalOutcome)
	assert.True(t, header.TotalMax.Equal(decimal.NewFromInt(140)))
}

func TestUpsertEntryRecomputesOutcome(t *testing.T) {
	svc, store := resultFixture(models.ResultDraft)

	header, err := svc.UpsertEntry(context.Background(), "res-1", dto.UpsertEntryRequest{
		ComponentID:   "c1",
		MarksObtained: "60",
	}, adminClaims())
	require.NoError(t, err)
	assert.True(t, header.TotalObtained.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, models.OutcomePass, header.FinalOutcome)
	require.Len(t, store.entries, 1)
}

func TestUpsertEntryBlockedByStatus(t *testing.T) {
	svc, _ := resultFixture(models.ResultFrozen)
	_, err := svc.UpsertEntry(context.Background(), "res-1", dto.UpsertEntryRequest{ComponentID: "c1", MarksObtained: "10"}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrResultFrozen.Code, appErrors.FromError(err).Code)

	svc, _ = resultFixture(models.ResultPublished)
	_, err = svc.UpsertEntry(context.Background(), "res-1", dto.UpsertEntryRequest{ComponentID: "c1", MarksObtained: "10"}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrResultPublished.Code, appErrors.FromError(err).Code)
}

func TestUpsertEntryVerifiedNeedsCoordinator(t *testing.T) {
	svc, _ := resultFixture(models.ResultVerified)

	_, err := svc.UpsertEntry(context.Background(), "res-1", dto.UpsertEntryRequest{ComponentID: "c1", MarksObtained: "10"}, facultyClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.UpsertEntry(context.Background(), "res-1", dto.UpsertEntryRequest{ComponentID: "c1", MarksObtained: "10"}, adminClaims())
	require.NoError(t, err)
}

func TestUpsertEntryRejectsMarksOverMax(t *testing.T) {
	svc, _ := resultFixture(models.ResultDraft)
	_, err := svc.UpsertEntry(context.Background(), "res-1", dto.UpsertEntryRequest{ComponentID: "c1", MarksObtained: "101"}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTransitionFollowsWorkflowOrder(t *testing.T) {
	svc, store := resultFixture(models.ResultDraft)

	header, err := svc.Transition(context.Background(), "res-1", models.ResultVerified, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.ResultVerified, header.Status)
	assert.Equal(t, models.ResultVerified, store.statusSet)

	_, err = svc.Transition(context.Background(), "res-1", models.ResultFrozen, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIllegalTransition.Code, appErrors.FromError(err).Code)
}

func TestTransitionDeniedForFaculty(t *testing.T) {
	svc, _ := resultFixture(models.ResultDraft)
	_, err := svc.Transition(context.Background(), "res-1", models.ResultVerified, facultyClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIllegalTransition.Code, appErrors.FromError(err).Code)
}

func TestTransitionFrozenIsTerminal(t *testing.T) {
	svc, _ := resultFixture(models.ResultFrozen)
	_, err := svc.Transition(context.Background(), "res-1", models.ResultPublished, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrResultFrozen.Code, appErrors.FromError(err).Code)
}

func TestRequestChangeOnlyOnPublished(t *testing.T) {
	svc, _ := resultFixture(models.ResultDraft)
	req := dto.PendingChangeRequest{NewGrade: "80", Reason: "tabulation error"}

	_, err := svc.RequestChange(context.Background(), "res-1", req, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	svc, store := resultFixture(models.ResultPublished)
	change, err := svc.RequestChange(context.Background(), "res-1", req, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.PendingChangeOpen, change.Status)
	assert.Equal(t, "chg-1", store.change.ID)
}

func TestDecideChangeApprovalAppliesGrade(t *testing.T) {
	svc, store := resultFixture(models.ResultPublished)
	componentID := "c1"
	store.entries = []models.ResultComponentEntry{{HeaderID: "res-1", ComponentID: "c1", MarksObtained: decimal.NewFromInt(40)}}
	store.change = &models.PendingChange{
		ID:          "chg-1",
		HeaderID:    "res-1",
		ComponentID: &componentID,
		NewGrade:    decimal.NewFromInt(80),
		Status:      models.PendingChangeOpen,
	}

	err := svc.DecideChange(context.Background(), "chg-1", true, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.PendingChangeApproved, store.change.Status)
	assert.True(t, store.entries[0].MarksObtained.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, models.OutcomePass, store.header.FinalOutcome)
}

func TestDecideChangeHeaderGradeOverridesEntrySum(t *testing.T) {
	svc, store := resultFixture(models.ResultPublished)
	store.entries = []models.ResultComponentEntry{{HeaderID: "res-1", ComponentID: "c1", MarksObtained: decimal.NewFromInt(40)}}
	store.change = &models.PendingChange{
		ID:       "chg-1",
		HeaderID: "res-1",
		NewGrade: decimal.NewFromInt(80),
		Status:   models.PendingChangeOpen,
	}

	err := svc.DecideChange(context.Background(), "chg-1", true, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.PendingChangeApproved, store.change.Status)
	assert.True(t, store.header.TotalObtained.Equal(decimal.NewFromInt(80)),
		"approved total must survive the recompute, got %s", store.header.TotalObtained)
	assert.Equal(t, models.OutcomePass, store.header.FinalOutcome)
}

func TestDecideChangeRejectsTwice(t *testing.T) {
	svc, store := resultFixture(models.ResultPublished)
	store.change = &models.PendingChange{ID: "chg-1", HeaderID: "res-1", Status: models.PendingChangeApproved}

	err := svc.DecideChange(context.Background(), "chg-1", false, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
