package models

import "time"

// RefreshToken is the stored record of an opaque refresh token. Only the SHA-256
// hash of the token is persisted.
type RefreshToken struct {
	TokenHash string     `json:"-"`
	UserID    string     `json:"user_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// RefreshTokenState is the lifecycle position of a refresh token.
// Revoked and Expired are terminal.
type RefreshTokenState int

const (
	RefreshTokenActive RefreshTokenState = iota
	RefreshTokenRevoked
	RefreshTokenExpired
)

func (s RefreshTokenState) String() string {
	switch s {
	case RefreshTokenActive:
		return "active"
	case RefreshTokenRevoked:
		return "revoked"
	case RefreshTokenExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// State evaluates the token at now. Revocation takes precedence over expiry.
func (t *RefreshToken) State(now time.Time) RefreshTokenState {
	if t.RevokedAt != nil {
		return RefreshTokenRevoked
	}
	if !now.Before(t.ExpiresAt) {
		return RefreshTokenExpired
	}
	return RefreshTokenActive
}
