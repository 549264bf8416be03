// Package idp verifies identity tokens issued by external identity providers.
package idp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

// GoogleIssuer is the issuer of Google Sign-In id tokens.
const GoogleIssuer = "https://accounts.google.com"

var (
	ErrInvalidIDToken   = errors.New("invalid id token")
	ErrEmailNotVerified = errors.New("id token email is not verified")
)

// Claims are the verified facts taken from an id token.
type Claims struct {
	Subject string
	Email   string
	Name    string
}

// Verifier checks an id token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) (*Claims, error)
}

// GoogleVerifier validates Google id tokens for one OAuth client ID.
type GoogleVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewGoogleVerifier discovers Google's signing keys. The key set is fetched
// lazily and cached by the provider.
func NewGoogleVerifier(ctx context.Context, clientID string) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, errors.New("google client id is required")
	}
	provider, err := oidc.NewProvider(ctx, GoogleIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover google provider: %w", err)
	}
	return &GoogleVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// NewVerifierWithKeySet builds a verifier from a fixed issuer and key set.
func NewVerifierWithKeySet(issuer, clientID string, keys oidc.KeySet, now func() time.Time) *GoogleVerifier {
	return &GoogleVerifier{verifier: oidc.NewVerifier(issuer, keys, &oidc.Config{
		ClientID: clientID,
		Now:      now,
	})}
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func (g *GoogleVerifier) Verify(ctx context.Context, rawIDToken string) (*Claims, error) {
	if strings.TrimSpace(rawIDToken) == "" {
		return nil, ErrInvalidIDToken
	}

	token, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}

	var c googleClaims
	if err := token.Claims(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}
	if c.Email == "" {
		return nil, fmt.Errorf("%w: no email claim", ErrInvalidIDToken)
	}
	if !c.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	return &Claims{
		Subject: token.Subject,
		Email:   strings.ToLower(c.Email),
		Name:    c.Name,
	}, nil
}
