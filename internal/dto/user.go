package dto

import "github.com/medcampus/sims-api/internal/models"

// CreateUserRequest provisions an account.
type CreateUserRequest struct {
	Username string        `json:"username" validate:"required,min=3,max=64"`
	Email    string        `json:"email" validate:"required,email"`
	Password string        `json:"password" validate:"required,min=8"`
	FullName string        `json:"full_name" validate:"required"`
	Roles    []models.Role `json:"roles" validate:"required,min=1"`
}

// ReplaceRolesRequest rewrites a user's role set.
type ReplaceRolesRequest struct {
	Roles []models.Role `json:"roles" validate:"required,min=1"`
}

// SetActiveRequest toggles an account.
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// RefreshRequest exchanges a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}
