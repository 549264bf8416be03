package idp

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "inventra-web.apps.googleusercontent.com"

var testNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func signIDToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return tok
}

func baseClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            GoogleIssuer,
		"aud":            testClientID,
		"sub":            "1098765432",
		"email":          "Rina@Example.com",
		"email_verified": true,
		"name":           "Rina",
		"iat":            testNow.Add(-time.Minute).Unix(),
		"exp":            testNow.Add(time.Hour).Unix(),
	}
}

func newTestVerifier(t *testing.T) (*GoogleVerifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keys := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	return NewVerifierWithKeySet(GoogleIssuer, testClientID, keys, func() time.Time { return testNow }), key
}

func TestGoogleVerifier_Valid(t *testing.T) {
	v, key := newTestVerifier(t)

	claims, err := v.Verify(context.Background(), signIDToken(t, key, baseClaims()))
	require.NoError(t, err)
	assert.Equal(t, "1098765432", claims.Subject)
	assert.Equal(t, "rina@example.com", claims.Email)
	assert.Equal(t, "Rina", claims.Name)
}

func TestGoogleVerifier_Rejects(t *testing.T) {
	v, key := newTestVerifier(t)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   func() string
		wantErr error
	}{
		{"empty", func() string { return "" }, ErrInvalidIDToken},
		{"garbage", func() string { return "a.b.c" }, ErrInvalidIDToken},
		{"wrong audience", func() string {
			c := baseClaims()
			c["aud"] = "someone-else"
			return signIDToken(t, key, c)
		}, ErrInvalidIDToken},
		{"wrong issuer", func() string {
			c := baseClaims()
			c["iss"] = "https://evil.example.com"
			return signIDToken(t, key, c)
		}, ErrInvalidIDToken},
		{"expired", func() string {
			c := baseClaims()
			c["exp"] = testNow.Add(-time.Minute).Unix()
			return signIDToken(t, key, c)
		}, ErrInvalidIDToken},
		{"unknown key", func() string { return signIDToken(t, otherKey, baseClaims()) }, ErrInvalidIDToken},
		{"no email", func() string {
			c := baseClaims()
			delete(c, "email")
			return signIDToken(t, key, c)
		}, ErrInvalidIDToken},
		{"unverified email", func() string {
			c := baseClaims()
			c["email_verified"] = false
			return signIDToken(t, key, c)
		}, ErrEmailNotVerified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
