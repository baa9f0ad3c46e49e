package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcampus/sims-api/internal/models"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
)

type mockStudentStore struct {
	lastFilter models.StudentFilter
	students   []models.StudentDetail
	byID       map[string]*models.Student
}

func (m *mockStudentStore) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	m.lastFilter = filter
	return m.students, len(m.students), nil
}

func (m *mockStudentStore) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if student, ok := m.byID[id]; ok {
		return student, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentStore) Create(ctx context.Context, student *models.Student) error {
	return nil
}

func studentClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-9", Roles: []models.Role{models.RoleStudent}}
}

func TestStudentListScopedToOwnUserID(t *testing.T) {
	store := &mockStudentStore{}
	svc := NewStudentService(store, nil, nil)

	_, _, err := svc.List(context.Background(), models.StudentFilter{Search: "STU1"}, studentClaims())
	require.NoError(t, err)

	assert.Equal(t, "user-9", store.lastFilter.UserID, "student callers must be pinned to their own user id")
	assert.Empty(t, store.lastFilter.Search, "fuzzy search must not widen the tenancy cut")
}

func TestStudentListKeepsFiltersForStaff(t *testing.T) {
	store := &mockStudentStore{}
	svc := NewStudentService(store, nil, nil)

	_, _, err := svc.List(context.Background(), models.StudentFilter{Search: "STU1"}, adminClaims())
	require.NoError(t, err)

	assert.Empty(t, store.lastFilter.UserID)
	assert.Equal(t, "STU1", store.lastFilter.Search)
}

func TestStudentGetHidesOtherStudents(t *testing.T) {
	otherUser := "user-2"
	store := &mockStudentStore{byID: map[string]*models.Student{
		"stu-2": {ID: "stu-2", RegNo: "STU2", UserID: &otherUser},
	}}
	svc := NewStudentService(store, nil, nil)

	_, err := svc.Get(context.Background(), "stu-2", studentClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
