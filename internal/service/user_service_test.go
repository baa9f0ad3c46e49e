package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/medcampus/sims-api/internal/dto"
	"github.com/medcampus/sims-api/internal/models"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
)

type mockUserAdminRepo struct {
	users        map[string]*models.User
	otherAdmins  int
	revokedUsers []string
	setActive    map[string]bool
}

func (m *mockUserAdminRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return m.users[id], nil
}

func (m *mockUserAdminRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = "user-new"
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserAdminRepo) ReplaceRoles(ctx context.Context, userID string, roles []models.Role) error {
	m.users[userID].Roles = roles
	return nil
}

func (m *mockUserAdminRepo) CountActiveAdmins(ctx context.Context, excludeID string) (int, error) {
	return m.otherAdmins, nil
}

func (m *mockUserAdminRepo) SetActive(ctx context.Context, id string, active bool) error {
	if m.setActive == nil {
		m.setActive = make(map[string]bool)
	}
	m.setActive[id] = active
	return nil
}

func (m *mockUserAdminRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedUsers = append(m.revokedUsers, userID)
	return nil
}

func TestUserCreateHashesPassword(t *testing.T) {
	repo := &mockUserAdminRepo{}
	svc := NewUserService(repo, nil, nil)

	user, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Username: "drkhan",
		Email:    "khan@example.edu",
		Password: "correct-horse",
		FullName: "Dr. Khan",
		Roles:    []models.Role{models.RoleFaculty},
	})
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct-horse")))
	assert.True(t, user.Active)
}

func TestReplaceRolesGuardsLastAdmin(t *testing.T) {
	repo := &mockUserAdminRepo{
		users: map[string]*models.User{
			"admin-1": {ID: "admin-1", Active: true, Roles: []models.Role{models.RoleAdmin}},
		},
		otherAdmins: 0,
	}
	svc := NewUserService(repo, nil, nil)

	err := svc.ReplaceRoles(context.Background(), "admin-1", []models.Role{models.RoleFaculty})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrLastAdmin.Code, appErrors.FromError(err).Code)

	repo.otherAdmins = 1
	err = svc.ReplaceRoles(context.Background(), "admin-1", []models.Role{models.RoleFaculty})
	require.NoError(t, err)
	assert.Equal(t, []models.Role{models.RoleFaculty}, repo.users["admin-1"].Roles)
}

func TestSetActiveGuardsLastAdminAndRevokesTokens(t *testing.T) {
	repo := &mockUserAdminRepo{
		users: map[string]*models.User{
			"admin-1": {ID: "admin-1", Active: true, Roles: []models.Role{models.RoleAdmin}},
			"fac-1":   {ID: "fac-1", Active: true, Roles: []models.Role{models.RoleFaculty}},
		},
		otherAdmins: 0,
	}
	svc := NewUserService(repo, nil, nil)

	err := svc.SetActive(context.Background(), "admin-1", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrLastAdmin.Code, appErrors.FromError(err).Code)

	err = svc.SetActive(context.Background(), "fac-1", false)
	require.NoError(t, err)
	assert.False(t, repo.setActive["fac-1"])
	assert.Contains(t, repo.revokedUsers, "fac-1")
}
