package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role represents the available roles for the RBAC system.
type Role string

const (
	RoleAdmin           Role = "ADMIN"
	RoleCoordinator     Role = "COORDINATOR"
	RoleFaculty         Role = "FACULTY"
	RoleFinance         Role = "FINANCE"
	RoleStudent         Role = "STUDENT"
	RoleOfficeAssistant Role = "OFFICE_ASSISTANT"
)

// User represents an authenticated principal stored in the users table.
// Roles come from the user_roles join table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`

	Roles []Role `db:"-" json:"roles"`
}

// HasRole reports membership in a single role.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// JWTClaims is the token payload attached to authenticated requests.
type JWTClaims struct {
	UserID string `json:"uid"`
	Roles  []Role `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims include the role.
func (c *JWTClaims) HasRole(role Role) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the claims include at least one of the roles.
func (c *JWTClaims) HasAnyRole(roles ...Role) bool {
	for _, role := range roles {
		if c.HasRole(role) {
			return true
		}
	}
	return false
}

// RefreshToken is a persisted refresh token.
type RefreshToken struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Token     string     `db:"token" json:"-"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      Role
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// LoginRequest is the credentials payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries issued tokens and the authenticated user.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         *User  `json:"user"`
}
