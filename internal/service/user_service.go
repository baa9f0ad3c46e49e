package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/medcampus/sims-api/internal/dto"
	"github.com/medcampus/sims-api/internal/models"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
)

type userAdminRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	ReplaceRoles(ctx context.Context, userID string, roles []models.Role) error
	CountActiveAdmins(ctx context.Context, excludeID string) (int, error)
	SetActive(ctx context.Context, id string, active bool) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

// UserService manages accounts and role assignments.
type UserService struct {
	repo      userAdminRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService instance.
func NewUserService(repo userAdminRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// Create provisions a new account with its role memberships.
func (s *UserService) Create(ctx context.Context, req dto.CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Active:       true,
		Roles:        req.Roles,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	return user, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// ReplaceRoles rewrites a user's role set. Removing ADMIN from the last
// remaining active administrator is rejected.
func (s *UserService) ReplaceRoles(ctx context.Context, userID string, roles []models.Role) error {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	if user.HasRole(models.RoleAdmin) && !containsRole(roles, models.RoleAdmin) {
		remaining, err := s.repo.CountActiveAdmins(ctx, userID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count administrators")
		}
		if remaining == 0 {
			return appErrors.Clone(appErrors.ErrLastAdmin, "cannot remove ADMIN from the last administrator")
		}
	}

	if err := s.repo.ReplaceRoles(ctx, userID, roles); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update roles")
	}
	return nil
}

// SetActive toggles an account. Deactivating the last active administrator is
// rejected, and deactivation revokes the user's refresh tokens.
func (s *UserService) SetActive(ctx context.Context, userID string, active bool) error {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	if !active && user.HasRole(models.RoleAdmin) {
		remaining, err := s.repo.CountActiveAdmins(ctx, userID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count administrators")
		}
		if remaining == 0 {
			return appErrors.Clone(appErrors.ErrLastAdmin, "")
		}
	}

	if err := s.repo.SetActive(ctx, userID, active); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account state")
	}

	if !active {
		if err := s.repo.RevokeUserRefreshTokens(ctx, userID); err != nil {
			s.logger.Warn("failed to revoke tokens for deactivated user", zap.Error(err))
		}
	}
	return nil
}

func containsRole(roles []models.Role, role models.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
