package repository

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inventra-labs/inventra/gateway/internal/models"
)

var baseTime = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func newUser(t *testing.T) *models.User {
	t.Helper()
	return &models.User{
		ID:           uuid.Must(uuid.NewV7()).String(),
		Email:        strings.ToLower(gofakeit.Email()),
		Name:         gofakeit.Name(),
		PasswordHash: "$2a$10$" + gofakeit.LetterN(53),
		Role:         models.RoleUser,
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}
}

func newRefreshToken(userID string, expiresAt time.Time) *models.RefreshToken {
	return &models.RefreshToken{
		TokenHash: gofakeit.LetterN(64),
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: baseTime,
	}
}

// testRepository exercises the behavior every Repository must share.
func testRepository(t *testing.T, repo Repository) {
	ctx := context.Background()

	t.Run("create and fetch user", func(t *testing.T) {
		u := newUser(t)
		require.NoError(t, repo.CreateUser(ctx, u))

		byEmail, err := repo.GetUserByEmail(ctx, u.Email)
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)
		assert.Equal(t, u.Name, byEmail.Name)
		assert.Equal(t, u.PasswordHash, byEmail.PasswordHash)
		assert.Equal(t, models.RoleUser, byEmail.Role)

		byID, err := repo.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.Email, byID.Email)
	})

	t.Run("duplicate email", func(t *testing.T) {
		u := newUser(t)
		require.NoError(t, repo.CreateUser(ctx, u))

		dup := newUser(t)
		dup.Email = u.Email
		assert.ErrorIs(t, repo.CreateUser(ctx, dup), ErrUserExists)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := repo.GetUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)

		_, err = repo.GetUserByID(ctx, uuid.Must(uuid.NewV7()).String())
		assert.ErrorIs(t, err, ErrUserNotFound)

		_, err = repo.UpdateUserRole(ctx, uuid.Must(uuid.NewV7()).String(), models.RoleAdmin, baseTime)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("update role", func(t *testing.T) {
		u := newUser(t)
		require.NoError(t, repo.CreateUser(ctx, u))

		later := baseTime.Add(time.Hour)
		updated, err := repo.UpdateUserRole(ctx, u.ID, models.RoleManager, later)
		require.NoError(t, err)
		assert.Equal(t, models.RoleManager, updated.Role)
		assert.True(t, later.Equal(updated.UpdatedAt))

		fetched, err := repo.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleManager, fetched.Role)
	})

	t.Run("consume refresh token once", func(t *testing.T) {
		u := newUser(t)
		require.NoError(t, repo.CreateUser(ctx, u))
		tok := newRefreshToken(u.ID, baseTime.Add(24*time.Hour))
		require.NoError(t, repo.CreateRefreshToken(ctx, tok))

		now := baseTime.Add(time.Minute)
		consumed, err := repo.ConsumeRefreshToken(ctx, tok.TokenHash, now)
		require.NoError(t, err)
		assert.Equal(t, u.ID, consumed.UserID)
		require.NotNil(t, consumed.RevokedAt)

		_, err = repo.ConsumeRefreshToken(ctx, tok.TokenHash, now)
		assert.ErrorIs(t, err, ErrRefreshTokenRevoked)
	})

	t.Run("refresh token failures", func(t *testing.T) {
		u := newUser(t)
		require.NoError(t, repo.CreateUser(ctx, u))

		_, err := repo.ConsumeRefreshToken(ctx, "missing", baseTime)
		assert.ErrorIs(t, err, ErrRefreshTokenNotFound)

		expiring := newRefreshToken(u.ID, baseTime.Add(time.Hour))
		require.NoError(t, repo.CreateRefreshToken(ctx, expiring))
		_, err = repo.ConsumeRefreshToken(ctx, expiring.TokenHash, baseTime.Add(time.Hour))
		assert.ErrorIs(t, err, ErrRefreshTokenExpired, "expiry is exclusive")

		revoked := newRefreshToken(u.ID, baseTime.Add(time.Hour))
		require.NoError(t, repo.CreateRefreshToken(ctx, revoked))
		require.NoError(t, repo.RevokeRefreshToken(ctx, revoked.TokenHash, baseTime))
		_, err = repo.ConsumeRefreshToken(ctx, revoked.TokenHash, baseTime.Add(2*time.Hour))
		assert.ErrorIs(t, err, ErrRefreshTokenRevoked, "revoked wins over expired")
	})

	t.Run("concurrent consume has one winner", func(t *testing.T) {
		u := newUser(t)
		require.NoError(t, repo.CreateUser(ctx, u))
		tok := newRefreshToken(u.ID, baseTime.Add(time.Hour))
		require.NoError(t, repo.CreateRefreshToken(ctx, tok))

		const callers = 16
		var wins, revoked atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := repo.ConsumeRefreshToken(ctx, tok.TokenHash, baseTime)
				switch {
				case err == nil:
					wins.Add(1)
				case assert.ErrorIs(t, err, ErrRefreshTokenRevoked):
					revoked.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(callers-1), revoked.Load())
	})
}
