package models

import "time"

// Identity is the verified caller of a single request. It is derived from a
// credential and never stored.
type Identity struct {
	SubjectID string    `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
