package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/inventra-labs/inventra/common/logging"
	"github.com/inventra-labs/inventra/gateway/internal/models"
	"github.com/inventra-labs/inventra/gateway/internal/repository"
)

// EnsureAdmin makes email an admin account. An existing account is promoted
// and keeps its password; otherwise one is created with password. The
// returned bool reports whether an account was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password, name string) (*models.User, bool, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role == models.RoleAdmin {
			return existing, false, nil
		}
		user, err := s.repo.UpdateUserRole(ctx, existing.ID, models.RoleAdmin, s.now().UTC())
		if err != nil {
			return nil, false, fmt.Errorf("failed to promote user: %w", err)
		}
		s.logger.InfoContext(ctx, "Promoted existing account to admin", logging.UserID(user.ID), logging.Email(email))
		return user, false, nil
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, false, fmt.Errorf("failed to load user: %w", err)
	}

	if err := validatePassword(password); err != nil {
		return nil, false, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := &models.User{
		ID:           uuid.Must(uuid.NewV7()).String(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, false, fmt.Errorf("failed to create admin: %w", err)
	}
	s.logger.InfoContext(ctx, "Created admin account", logging.UserID(user.ID), logging.Email(email))
	return user, true, nil
}
