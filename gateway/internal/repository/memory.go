package repository

import (
	"context"
	"sync"
	"time"

	"github.com/inventra-labs/inventra/gateway/internal/models"
)

// InMemoryRepository keeps accounts and refresh tokens in process memory.
// Records are copied in and out so callers never share state with the store.
type InMemoryRepository struct {
	users         map[string]*models.User
	usersByEmail  map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	mu            sync.RWMutex
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users:         make(map[string]*models.User),
		usersByEmail:  make(map[string]*models.User),
		refreshTokens: make(map[string]*models.RefreshToken),
	}
}

func (r *InMemoryRepository) CreateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.usersByEmail[user.Email]; exists {
		return ErrUserExists
	}
	if _, exists := r.users[user.ID]; exists {
		return ErrUserExists
	}

	stored := *user
	r.users[user.ID] = &stored
	r.usersByEmail[user.Email] = &stored
	return nil
}

func (r *InMemoryRepository) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.usersByEmail[email]
	if !exists {
		return nil, ErrUserNotFound
	}
	out := *user
	return &out, nil
}

func (r *InMemoryRepository) GetUserByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, ErrUserNotFound
	}
	out := *user
	return &out, nil
}

func (r *InMemoryRepository) UpdateUserRole(_ context.Context, id string, role models.Role, at time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[id]
	if !exists {
		return nil, ErrUserNotFound
	}
	user.Role = role
	user.UpdatedAt = at

	out := *user
	return &out, nil
}

func (r *InMemoryRepository) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *token
	r.refreshTokens[token.TokenHash] = &stored
	return nil
}

func (r *InMemoryRepository) ConsumeRefreshToken(_ context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, exists := r.refreshTokens[tokenHash]
	if !exists {
		return nil, ErrRefreshTokenNotFound
	}
	if err := classifyRefreshToken(token, now); err != nil {
		return nil, err
	}

	revokedAt := now
	token.RevokedAt = &revokedAt

	out := *token
	return &out, nil
}

func (r *InMemoryRepository) RevokeRefreshToken(ctx context.Context, tokenHash string, now time.Time) error {
	_, err := r.ConsumeRefreshToken(ctx, tokenHash, now)
	return err
}

func (r *InMemoryRepository) Ping(context.Context) error { return nil }

func (r *InMemoryRepository) Close() {}
