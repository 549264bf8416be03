package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/inventra-labs/inventra/common/httputil"
	"github.com/inventra-labs/inventra/common/logging"
	"github.com/inventra-labs/inventra/gateway/internal/authz"
	"github.com/inventra-labs/inventra/gateway/internal/models"
	"github.com/inventra-labs/inventra/gateway/internal/tokens"
)

type contextKey string

const identityKey contextKey = "identity"

// Verifier turns a bearer credential into an identity.
type Verifier interface {
	Verify(credential string) (*models.Identity, error)
}

// WithIdentity stores a verified identity in ctx.
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity set by RequireAuth, or nil.
func IdentityFromContext(ctx context.Context) *models.Identity {
	identity, _ := ctx.Value(identityKey).(*models.Identity)
	return identity
}

type AuthMiddleware struct {
	verifier Verifier
	logger   *logging.Logger
}

func NewAuthMiddleware(verifier Verifier, logger *logging.Logger) *AuthMiddleware {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuthMiddleware{verifier: verifier, logger: logger}
}

// Authenticate verifies the bearer credential of r. On failure the error
// response has already been written and the returned identity is nil.
func (m *AuthMiddleware) Authenticate(w http.ResponseWriter, r *http.Request) *models.Identity {
	identity, err := m.verifier.Verify(tokens.BearerToken(r))
	if err != nil {
		if errors.Is(err, tokens.ErrServerMisconfigured) {
			m.logger.ErrorContext(r.Context(), "Token secret is not configured, rejecting request",
				logging.Path(r.URL.Path))
		} else {
			m.logger.DebugContext(r.Context(), "Credential rejected",
				logging.Path(r.URL.Path), logging.Error(err))
		}
		WriteVerifyError(w, err)
		return nil
	}
	return identity
}

func (m *AuthMiddleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := m.Authenticate(w, r)
		if identity == nil {
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	}
}

// RequireRole admits only identities holding one of roles.
func (m *AuthMiddleware) RequireRole(roles ...models.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			d := authz.RequireRoles(identity, roles...)
			if !d.Allowed() {
				m.logger.InfoContext(r.Context(), "Request denied",
					logging.UserID(identity.SubjectID),
					logging.Role(identity.Role.String()),
					logging.Path(r.URL.Path),
					slog.String("reason", d.Reason),
				)
				WriteDecision(w, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteVerifyError maps a token verification error to its JSON:API response.
func WriteVerifyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tokens.ErrMissingCredential):
		httputil.WriteJSONAPIError(w, http.StatusUnauthorized, "missing_credential", "Unauthorized",
			"Authorization header with a Bearer credential is required")
	case errors.Is(err, tokens.ErrCredentialExpired):
		httputil.WriteJSONAPIError(w, http.StatusUnauthorized, "credential_expired", "Unauthorized",
			"Credential has expired")
	case errors.Is(err, tokens.ErrServerMisconfigured):
		httputil.WriteJSONAPIError(w, http.StatusInternalServerError, "server_misconfigured",
			"Internal Server Error", "Authentication is not configured on the server")
	default:
		httputil.WriteJSONAPIError(w, http.StatusUnauthorized, "unauthenticated", "Unauthorized",
			"Credential is invalid")
	}
}

// WriteDecision writes the response for a non-Allow decision. The reason is
// kept out of the response.
func WriteDecision(w http.ResponseWriter, d authz.Decision) {
	switch d.Outcome {
	case authz.Unauthenticated:
		httputil.WriteJSONAPIError(w, http.StatusUnauthorized, "unauthenticated", "Unauthorized",
			"Authentication required")
	default:
		httputil.WriteForbiddenError(w, "Your role does not permit this request")
	}
}
