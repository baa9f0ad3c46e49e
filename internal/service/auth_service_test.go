package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/medcampus/sims-api/internal/models"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
)

type mockAuthRepo struct {
	user    *models.User
	tokens  map[string]*models.RefreshToken
	revoked []string
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.user == nil || m.user.Username != username {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.user == nil || m.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.tokens == nil {
		m.tokens = make(map[string]*models.RefreshToken)
	}
	m.tokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := m.tokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return stored, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revoked = append(m.revoked, id)
	for _, stored := range m.tokens {
		if stored.ID == id {
			stored.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	return nil
}

func authFixture(t *testing.T) (*AuthService, *mockAuthRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockAuthRepo{user: &models.User{
		ID:           "user-1",
		Username:     "drkhan",
		PasswordHash: string(hash),
		Active:       true,
		Roles:        []models.Role{models.RoleFaculty},
	}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "sims-api",
	})
	return svc, repo
}

func TestLoginIssuesValidTokenPair(t *testing.T) {
	svc, repo := authFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "drkhan", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Contains(t, repo.tokens, resp.RefreshToken)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, []models.Role{models.RoleFaculty}, claims.Roles)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	svc, _ := authFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "drkhan", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	svc, repo := authFixture(t)
	repo.user.Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "drkhan", Password: "correct-horse"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, repo := authFixture(t)
	repo.tokens = map[string]*models.RefreshToken{
		"old-token": {ID: "rt-1", UserID: "user-1", Token: "old-token", ExpiresAt: time.Now().UTC().Add(time.Hour)},
	}

	resp, err := svc.Refresh(context.Background(), "old-token")
	require.NoError(t, err)
	assert.NotEqual(t, "old-token", resp.RefreshToken)
	assert.Contains(t, repo.revoked, "rt-1")

	// The used token cannot be replayed.
	_, err = svc.Refresh(context.Background(), "old-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	svc, repo := authFixture(t)
	repo.tokens = map[string]*models.RefreshToken{
		"stale": {ID: "rt-1", UserID: "user-1", Token: "stale", ExpiresAt: time.Now().UTC().Add(-time.Minute)},
	}

	_, err := svc.Refresh(context.Background(), "stale")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsForgedSignature(t *testing.T) {
	svc, _ := authFixture(t)
	other := NewAuthService(&mockAuthRepo{}, nil, nil, AuthConfig{
		AccessTokenSecret: "other-secret",
		AccessTokenExpiry: time.Minute,
	})
	token, err := other.generateAccessToken(&models.User{ID: "user-1"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestLogoutChecksTokenOwnership(t *testing.T) {
	svc, repo := authFixture(t)
	repo.tokens = map[string]*models.RefreshToken{
		"tok": {ID: "rt-1", UserID: "user-1", Token: "tok", ExpiresAt: time.Now().UTC().Add(time.Hour)},
	}

	err := svc.Logout(context.Background(), "tok", "someone-else")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Logout(context.Background(), "tok", "user-1"))
	assert.Contains(t, repo.revoked, "rt-1")
}
