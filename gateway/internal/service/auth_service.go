// Package service implements account and session operations behind the
// gateway's auth endpoints.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/inventra-labs/inventra/common/logging"
	"github.com/inventra-labs/inventra/common/messaging"
	"github.com/inventra-labs/inventra/gateway/internal/authz"
	"github.com/inventra-labs/inventra/gateway/internal/events"
	"github.com/inventra-labs/inventra/gateway/internal/idp"
	"github.com/inventra-labs/inventra/gateway/internal/metrics"
	"github.com/inventra-labs/inventra/gateway/internal/models"
	"github.com/inventra-labs/inventra/gateway/internal/repository"
	"github.com/inventra-labs/inventra/gateway/internal/tokens"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDuplicateEmail     = errors.New("email is already registered")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidRole        = errors.New("invalid role")
	ErrUserNotFound       = errors.New("user not found")
	ErrFederatedDisabled  = errors.New("federated sign-in is not configured")

	ErrRefreshTokenNotFound = repository.ErrRefreshTokenNotFound
	ErrRefreshTokenRevoked  = repository.ErrRefreshTokenRevoked
	ErrRefreshTokenExpired  = repository.ErrRefreshTokenExpired
)

const (
	MinPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	MaxPasswordBytes  = 72
	MaxNameLength     = 100

	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// RequestMeta describes the caller of an operation for audit events.
type RequestMeta struct {
	IP string
}

type AuthService struct {
	repo       repository.Repository
	tokens     *tokens.Manager
	idp        idp.Verifier
	events     *events.Emitter
	logger     *logging.Logger
	refreshTTL time.Duration
	bcryptCost int
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

type Option func(*AuthService)

func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *AuthService) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

func WithBcryptCost(cost int) Option {
	return func(s *AuthService) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// WithIdentityProvider enables GoogleLogin.
func WithIdentityProvider(v idp.Verifier) Option {
	return func(s *AuthService) { s.idp = v }
}

func WithEvents(e *events.Emitter) Option {
	return func(s *AuthService) { s.events = e }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *AuthService) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

func NewAuthService(repo repository.Repository, tm *tokens.Manager, opts ...Option) *AuthService {
	s := &AuthService{
		repo:       repo,
		tokens:     tm,
		refreshTTL: DefaultRefreshTTL,
		bcryptCost: bcrypt.DefaultCost,
		logger:     logging.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FederatedEnabled reports whether an identity provider is configured.
func (s *AuthService) FederatedEnabled() bool {
	return s.idp != nil
}

func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest, meta RequestMeta) (*models.TokenResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, s.fail("register", err)
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, s.fail("register", err)
	}
	name := strings.TrimSpace(req.Name)
	if len(name) > MaxNameLength {
		return nil, s.fail("register", fmt.Errorf("%w: name must be at most %d characters", ErrValidation, MaxNameLength))
	}
	if !s.tokens.Configured() {
		return nil, s.fail("register", tokens.ErrServerMisconfigured)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, s.fail("register", fmt.Errorf("failed to hash password: %w", err))
	}

	now := s.now().UTC()
	user := &models.User{
		ID:           uuid.Must(uuid.NewV7()).String(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         models.DefaultRole,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, s.fail("register", ErrDuplicateEmail)
		}
		return nil, s.fail("register", fmt.Errorf("failed to create user: %w", err))
	}

	resp, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, s.fail("register", err)
	}

	s.events.Emit(ctx, messaging.SubjectAuthRegistered, events.Event{
		ActorID: user.ID,
		Email:   user.Email,
		IP:      meta.IP,
		Details: map[string]string{"method": "password"},
	})
	s.logger.InfoContext(ctx, "User registered", logging.UserID(user.ID), logging.Email(user.Email))
	metrics.AuthOperations.WithLabelValues("register", "success").Inc()
	return resp, nil
}

// Login checks an email and password. Unknown emails and wrong passwords
// fail identically, and both pay for one bcrypt comparison.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest, meta RequestMeta) (*models.TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, s.fail("login", fmt.Errorf("%w: email and password are required", ErrValidation))
	}
	if !s.tokens.Configured() {
		return nil, s.fail("login", tokens.ErrServerMisconfigured)
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		s.compareDummy(req.Password)
		return nil, s.loginFailed(ctx, email, meta, "unknown email")
	case err != nil:
		return nil, s.fail("login", fmt.Errorf("failed to load user: %w", err))
	}

	if !user.HasPassword() {
		s.compareDummy(req.Password)
		return nil, s.loginFailed(ctx, email, meta, "account has no password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, s.loginFailed(ctx, email, meta, "wrong password")
	}

	resp, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, s.fail("login", err)
	}
	metrics.AuthOperations.WithLabelValues("login", "success").Inc()
	return resp, nil
}

// Refresh rotates a refresh token. The presented token is consumed whether
// or not a new session can be issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*models.TokenResponse, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, s.fail("refresh", fmt.Errorf("%w: refresh_token is required", ErrValidation))
	}
	if !s.tokens.Configured() {
		return nil, s.fail("refresh", tokens.ErrServerMisconfigured)
	}

	hash := tokens.HashRefreshToken(refreshToken)
	record, err := s.repo.ConsumeRefreshToken(ctx, hash, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenRevoked) {
			s.logger.WarnContext(ctx, "Revoked refresh token presented", logging.IP(meta.IP))
			s.events.Emit(ctx, messaging.SubjectAuthRefreshReused, events.Event{
				IP:      meta.IP,
				Details: map[string]string{"token_hash_prefix": hash[:12]},
			})
		}
		return nil, s.fail("refresh", err)
	}

	user, err := s.repo.GetUserByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, s.fail("refresh", ErrRefreshTokenNotFound)
		}
		return nil, s.fail("refresh", fmt.Errorf("failed to load user: %w", err))
	}

	resp, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, s.fail("refresh", err)
	}
	metrics.AuthOperations.WithLabelValues("refresh", "success").Inc()
	return resp, nil
}

// Logout revokes a refresh token. Revoking a token that is already revoked
// or expired succeeds.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return s.fail("logout", fmt.Errorf("%w: refresh_token is required", ErrValidation))
	}

	err := s.repo.RevokeRefreshToken(ctx, tokens.HashRefreshToken(refreshToken), s.now().UTC())
	switch {
	case err == nil,
		errors.Is(err, repository.ErrRefreshTokenRevoked),
		errors.Is(err, repository.ErrRefreshTokenExpired):
		metrics.AuthOperations.WithLabelValues("logout", "success").Inc()
		return nil
	default:
		return s.fail("logout", err)
	}
}

// SetRole changes a user's role. Only admins may call it. The change is
// visible to Me immediately and to access credentials issued afterwards.
func (s *AuthService) SetRole(ctx context.Context, actor *models.Identity, targetID, role string, meta RequestMeta) (*models.User, error) {
	if d := authz.RequireRoles(actor, models.RoleAdmin); !d.Allowed() {
		return nil, s.fail("set_role", ErrForbidden)
	}

	newRole, err := models.ParseRole(role)
	if err != nil {
		return nil, s.fail("set_role", fmt.Errorf("%w: %v", ErrInvalidRole, err))
	}

	user, err := s.repo.UpdateUserRole(ctx, targetID, newRole, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, s.fail("set_role", ErrUserNotFound)
		}
		return nil, s.fail("set_role", fmt.Errorf("failed to update role: %w", err))
	}

	s.events.Emit(ctx, messaging.SubjectUsersRoleChanged, events.Event{
		ActorID:  actor.SubjectID,
		TargetID: user.ID,
		Email:    user.Email,
		IP:       meta.IP,
		Details:  map[string]string{"role": string(newRole)},
	})
	s.logger.InfoContext(ctx, "User role changed",
		logging.UserID(user.ID),
		logging.Role(string(newRole)),
		"actor_id", actor.SubjectID,
	)
	metrics.AuthOperations.WithLabelValues("set_role", "success").Inc()
	return user, nil
}

// Me returns the stored account of the caller.
func (s *AuthService) Me(ctx context.Context, identity *models.Identity) (*models.User, error) {
	if identity == nil {
		return nil, tokens.ErrUnauthenticated
	}
	user, err := s.repo.GetUserByID(ctx, identity.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// GoogleLogin signs in with a Google id token. The verified email selects
// the local account; a first sign-in creates one with the default role.
func (s *AuthService) GoogleLogin(ctx context.Context, idToken string, meta RequestMeta) (*models.TokenResponse, error) {
	if s.idp == nil {
		return nil, s.fail("google_login", ErrFederatedDisabled)
	}
	if strings.TrimSpace(idToken) == "" {
		return nil, s.fail("google_login", fmt.Errorf("%w: idToken is required", ErrValidation))
	}
	if !s.tokens.Configured() {
		return nil, s.fail("google_login", tokens.ErrServerMisconfigured)
	}

	claims, err := s.idp.Verify(ctx, idToken)
	if err != nil {
		s.logger.WarnContext(ctx, "Google id token rejected", logging.IP(meta.IP), logging.Error(err))
		return nil, s.fail("google_login", ErrInvalidCredentials)
	}

	user, err := s.federatedUser(ctx, claims, meta)
	if err != nil {
		return nil, s.fail("google_login", err)
	}

	resp, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, s.fail("google_login", err)
	}
	metrics.AuthOperations.WithLabelValues("google_login", "success").Inc()
	return resp, nil
}

func (s *AuthService) federatedUser(ctx context.Context, claims *idp.Claims, meta RequestMeta) (*models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, claims.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	now := s.now().UTC()
	user = &models.User{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Email:     claims.Email,
		Name:      claims.Name,
		Role:      models.DefaultRole,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		// A concurrent first sign-in won the insert.
		if errors.Is(err, repository.ErrUserExists) {
			return s.repo.GetUserByEmail(ctx, claims.Email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.events.Emit(ctx, messaging.SubjectAuthRegistered, events.Event{
		ActorID: user.ID,
		Email:   user.Email,
		IP:      meta.IP,
		Details: map[string]string{"method": "google"},
	})
	s.logger.InfoContext(ctx, "User registered via Google", logging.UserID(user.ID), logging.Email(user.Email))
	return user, nil
}

func (s *AuthService) issueSession(ctx context.Context, user *models.User) (*models.TokenResponse, error) {
	access, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	refresh, err := tokens.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.repo.CreateRefreshToken(ctx, &models.RefreshToken{
		TokenHash: tokens.HashRefreshToken(refresh),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &models.TokenResponse{
		Token:        access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.tokens.AccessTTL().Seconds()),
		TokenType:    "Bearer",
	}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email string, meta RequestMeta, reason string) error {
	s.logger.InfoContext(ctx, "Login failed", logging.Email(email), logging.IP(meta.IP), "reason", reason)
	s.events.Emit(ctx, messaging.SubjectAuthLoginFailed, events.Event{
		Email:   email,
		IP:      meta.IP,
		Details: map[string]string{"reason": reason},
	})
	return s.fail("login", ErrInvalidCredentials)
}

func (s *AuthService) compareDummy(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("inventra-dummy-password"), s.bcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}

func (s *AuthService) fail(operation string, err error) error {
	metrics.AuthOperations.WithLabelValues(operation, resultLabel(err)).Inc()
	return err
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidRole):
		return "invalid"
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrRefreshTokenNotFound),
		errors.Is(err, ErrRefreshTokenRevoked),
		errors.Is(err, ErrRefreshTokenExpired):
		return "rejected"
	case errors.Is(err, ErrDuplicateEmail):
		return "conflict"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrUserNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: email is not a valid address", ErrValidation)
	}
	return email, nil
}

func validatePassword(password string) error {
	switch {
	case len(password) < MinPasswordLength:
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	case len(password) > MaxPasswordBytes:
		return fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, MaxPasswordBytes)
	}
	return nil
}
