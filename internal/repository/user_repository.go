package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medcampus/sims-api/internal/models"
)

// UserRepository handles persistence of users, role memberships, and refresh
// tokens.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByUsername returns a user with roles loaded.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	const query = `SELECT id, username, email, password_hash, full_name, active, last_login, created_at, updated_at
        FROM users WHERE username = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		return nil, err
	}
	if err := r.loadRoles(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID returns a user with roles loaded.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, username, email, password_hash, full_name, active, last_login, created_at, updated_at
        FROM users WHERE id = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	if err := r.loadRoles(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) loadRoles(ctx context.Context, user *models.User) error {
	var roles []models.Role
	if err := r.db.SelectContext(ctx, &roles, "SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role", user.ID); err != nil {
		return fmt.Errorf("load roles: %w", err)
	}
	user.Roles = roles
	return nil
}

// Create persists a user and its role memberships.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	const query = `INSERT INTO users (id, username, email, password_hash, full_name, active, created_at, updated_at)
        VALUES (:id, :username, :email, :password_hash, :full_name, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return r.ReplaceRoles(ctx, user.ID, user.Roles)
}

// ReplaceRoles rewrites the role memberships for a user.
func (r *UserRepository) ReplaceRoles(ctx context.Context, userID string, roles []models.Role) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("clear roles: %w", err)
	}
	for _, role := range roles {
		if _, err := r.db.ExecContext(ctx, "INSERT INTO user_roles (user_id, role) VALUES ($1, $2)", userID, role); err != nil {
			return fmt.Errorf("assign role %s: %w", role, err)
		}
	}
	return nil
}

// CountActiveAdmins counts active users holding ADMIN, optionally excluding
// one user. Guards the last-admin invariant.
func (r *UserRepository) CountActiveAdmins(ctx context.Context, excludeID string) (int, error) {
	query := `SELECT COUNT(*) FROM users u JOIN user_roles ur ON ur.user_id = u.id
        WHERE ur.role = $1 AND u.active = TRUE`
	args := []interface{}{models.RoleAdmin}
	if excludeID != "" {
		query += " AND u.id <> $2"
		args = append(args, excludeID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}

// SetActive toggles the active flag.
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE users SET active = $2, updated_at = $3 WHERE id = $1", id, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	return nil
}

// UpdateLastLogin stamps the login time.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE users SET last_login = $2 WHERE id = $1", id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// FindByRoles lists active user IDs holding any of the given roles.
func (r *UserRepository) FindByRoles(ctx context.Context, roles []models.Role) ([]string, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	raw := make([]string, len(roles))
	for i, role := range roles {
		raw[i] = string(role)
	}
	const query = `SELECT DISTINCT u.id FROM users u JOIN user_roles ur ON ur.user_id = u.id
        WHERE u.active = TRUE AND ur.role = ANY($1)`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, pq.Array(raw)); err != nil {
		return nil, fmt.Errorf("find users by roles: %w", err)
	}
	return ids, nil
}

// CreateRefreshToken stores a refresh token.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, revoked_at, created_at)
        VALUES (:id, :user_id, :token, :expires_at, :revoked_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken looks a token up by its opaque value.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, revoked_at, created_at FROM refresh_tokens WHERE token = $1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		return nil, err
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE refresh_tokens SET revoked_at = $2 WHERE id = $1", id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes every live token for a user.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL", userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}
