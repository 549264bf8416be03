// Package tokens issues and verifies gateway credentials.
//
// Access credentials are HS256 JWTs carrying the caller's subject, email and
// role. Refresh tokens are opaque random strings; only their SHA-256 hash is
// ever stored.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/inventra-labs/inventra/gateway/internal/models"
)

var (
	ErrMissingCredential   = errors.New("missing bearer credential")
	ErrUnauthenticated     = errors.New("invalid credential")
	ErrCredentialExpired   = errors.New("credential expired")
	ErrServerMisconfigured = errors.New("token signing secret is not configured")
)

const (
	DefaultIssuer    = "inventra-gateway"
	DefaultAccessTTL = time.Hour
)

type Claims struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Manager signs and verifies access credentials with a shared secret.
// It is safe for concurrent use.
type Manager struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	now       func() time.Time
}

type Option func(*Manager)

// WithIssuer sets the iss claim of issued credentials. Verify does not check
// it, so changing the issuer keeps outstanding credentials valid.
func WithIssuer(issuer string) Option {
	return func(m *Manager) { m.issuer = issuer }
}

func WithAccessTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.accessTTL = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(secret string, opts ...Option) *Manager {
	m := &Manager{
		secret:    []byte(secret),
		issuer:    DefaultIssuer,
		accessTTL: DefaultAccessTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Configured reports whether a signing secret is present.
func (m *Manager) Configured() bool {
	return len(m.secret) > 0
}

func (m *Manager) AccessTTL() time.Duration {
	return m.accessTTL
}

// Issue signs a credential for user valid for the access TTL.
func (m *Manager) Issue(user *models.User) (string, error) {
	if !m.Configured() {
		return "", ErrServerMisconfigured
	}

	now := m.now()
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign credential: %w", err)
	}
	return signed, nil
}

// Verify validates credential and returns the identity it carries.
//
// Failures are ErrMissingCredential, ErrServerMisconfigured, ErrCredentialExpired
// (signature valid, now >= exp) or ErrUnauthenticated for anything else.
func (m *Manager) Verify(credential string) (*models.Identity, error) {
	if credential == "" {
		return nil, ErrMissingCredential
	}
	if !m.Configured() {
		return nil, ErrServerMisconfigured
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(credential, &claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrCredentialExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: missing subject or unknown role", ErrUnauthenticated)
	}

	identity := &models.Identity{
		SubjectID: claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	return identity, nil
}

// BearerToken extracts the credential from an "Authorization: Bearer" header.
// It returns "" when the header is absent or uses another scheme.
func BearerToken(r *http.Request) string {
	scheme, value, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}

// NewRefreshToken returns 32 random bytes, base64url encoded.
func NewRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashRefreshToken returns the storage key for a refresh token.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
