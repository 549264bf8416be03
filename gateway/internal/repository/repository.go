package repository

import (
	"context"
	"errors"
	"time"

	"github.com/inventra-labs/inventra/gateway/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token revoked")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
)

// Repository is the identity store. Emails are expected in normalized
// (lower-case) form.
type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUserRole(ctx context.Context, id string, role models.Role, at time.Time) (*models.User, error)

	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error

	// ConsumeRefreshToken revokes an active token and returns its record. It is
	// a compare-and-set: of any number of concurrent calls for one token, at
	// most one succeeds. Failures are ErrRefreshTokenNotFound,
	// ErrRefreshTokenRevoked or ErrRefreshTokenExpired.
	ConsumeRefreshToken(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error)

	// RevokeRefreshToken is ConsumeRefreshToken without the returned record.
	RevokeRefreshToken(ctx context.Context, tokenHash string, now time.Time) error

	Ping(ctx context.Context) error
	Close()
}

// classifyRefreshToken turns a token that could not be consumed into its error.
func classifyRefreshToken(token *models.RefreshToken, now time.Time) error {
	switch token.State(now) {
	case models.RefreshTokenRevoked:
		return ErrRefreshTokenRevoked
	case models.RefreshTokenExpired:
		return ErrRefreshTokenExpired
	default:
		return nil
	}
}
