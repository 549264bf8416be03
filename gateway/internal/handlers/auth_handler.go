package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/inventra-labs/inventra/common/httputil"
	"github.com/inventra-labs/inventra/common/logging"
	"github.com/inventra-labs/inventra/gateway/internal/middleware"
	"github.com/inventra-labs/inventra/gateway/internal/models"
	"github.com/inventra-labs/inventra/gateway/internal/service"
	"github.com/inventra-labs/inventra/gateway/internal/tokens"
)

type AuthHandler struct {
	service *service.AuthService
	logger  *logging.Logger
}

func NewAuthHandler(svc *service.AuthService, logger *logging.Logger) *AuthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuthHandler{service: svc, logger: logger}
}

// Register handles POST /register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	resp, err := h.service.Register(r.Context(), &req, requestMeta(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	resp, err := h.service.Login(r.Context(), &req, requestMeta(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshTokenRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	resp, err := h.service.Refresh(r.Context(), req.RefreshToken, requestMeta(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Logout handles POST /logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshTokenRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GoogleLogin handles POST /auth/google.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.GoogleLoginRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	resp, err := h.service.GoogleLogin(r.Context(), req.IDToken, requestMeta(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Me handles GET /me. It must run behind RequireAuth.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Me(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user.ToResponse())
}

// SetRole handles PATCH /users/{id}/role. It must run behind RequireAuth.
func (h *AuthHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req models.SetRoleRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	actor := middleware.IdentityFromContext(r.Context())
	user, err := h.service.SetRole(r.Context(), actor, r.PathValue("id"), req.Role, requestMeta(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user.ToResponse())
}

func requestMeta(r *http.Request) service.RequestMeta {
	return service.RequestMeta{IP: httputil.GetClientIP(r)}
}

var roleList = func() string {
	names := make([]string, 0, len(models.Roles()))
	for _, role := range models.Roles() {
		names = append(names, string(role))
	}
	return strings.Join(names, ", ")
}()

// writeServiceError translates service errors into JSON:API responses.
// Unexpected errors are logged and answered with a generic 500.
func (h *AuthHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		httputil.WriteValidationError(w, strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": "))
	case errors.Is(err, service.ErrInvalidRole):
		httputil.WriteValidationError(w, "role must be one of "+roleList)
	case errors.Is(err, service.ErrInvalidCredentials):
		httputil.WriteJSONAPIError(w, http.StatusUnauthorized, "invalid_credentials", "Unauthorized",
			"Invalid email or password")
	case errors.Is(err, service.ErrDuplicateEmail):
		httputil.WriteJSONAPIError(w, http.StatusConflict, "duplicate_email", "Conflict",
			"An account with this email already exists")
	case errors.Is(err, service.ErrForbidden):
		httputil.WriteForbiddenError(w, "Only administrators can change roles")
	case errors.Is(err, service.ErrUserNotFound):
		httputil.WriteNotFoundError(w, "User not found")
	case errors.Is(err, service.ErrFederatedDisabled):
		httputil.WriteNotFoundError(w, "Google sign-in is not enabled")
	case errors.Is(err, service.ErrRefreshTokenNotFound):
		httputil.WriteJSONAPIError(w, http.StatusUnauthorized, "refresh_token_not_found", "Unauthorized",
			"Refresh token is not recognized")
	case errors.Is(err, service.ErrRefreshTokenRevoked):
		httputil.WriteJSONAPIError(w, http.StatusUnauthorized, "refresh_token_revoked", "Unauthorized",
			"Refresh token has been revoked")
	case errors.Is(err, service.ErrRefreshTokenExpired):
		httputil.WriteJSONAPIError(w, http.StatusUnauthorized, "refresh_token_expired", "Unauthorized",
			"Refresh token has expired")
	case errors.Is(err, tokens.ErrServerMisconfigured),
		errors.Is(err, tokens.ErrUnauthenticated):
		middleware.WriteVerifyError(w, err)
	default:
		h.logger.ErrorContext(r.Context(), "Auth request failed",
			logging.Method(r.Method),
			logging.Path(r.URL.Path),
			logging.Error(err),
		)
		httputil.WriteInternalError(w)
	}
}
