// Package server assembles the gateway's HTTP surface.
package server

import (
	"net/http"
	"time"

	"github.com/inventra-labs/inventra/common/logging"
	"github.com/inventra-labs/inventra/common/middleware"
	"github.com/inventra-labs/inventra/gateway/internal/handlers"
	"github.com/inventra-labs/inventra/gateway/internal/metrics"
	gwmiddleware "github.com/inventra-labs/inventra/gateway/internal/middleware"
	"github.com/inventra-labs/inventra/gateway/internal/models"
	"github.com/inventra-labs/inventra/gateway/internal/ratelimit"
	"github.com/inventra-labs/inventra/gateway/internal/routes"
)

// RouterConfig holds dependencies needed to configure routes.
type RouterConfig struct {
	AuthHandler    *handlers.AuthHandler
	HealthHandler  *handlers.HealthHandler
	RestockHandler *handlers.RestockHandler // nil leaves smart restock unmounted
	AuthMiddleware *gwmiddleware.AuthMiddleware
	Routes         *routes.Table
	Proxy          http.Handler
	Frontend       http.Handler

	// Limiter guards the credential endpoints; nil disables rate limiting.
	Limiter         ratelimit.Limiter
	RateLimitWindow time.Duration

	CORS     middleware.CORSConfig
	Security middleware.SecurityConfig
	Logger   *logging.Logger
}

// NewRouter constructs the gateway handler. Explicit endpoints are matched
// first; every other path goes to the front controller, which proxies
// route-table prefixes and hands the rest to the frontend.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	limit := func(scope string, h http.HandlerFunc) http.HandlerFunc {
		if cfg.Limiter == nil {
			return h
		}
		return ratelimit.Middleware(cfg.Limiter, scope, cfg.RateLimitWindow, cfg.Logger)(h)
	}

	mux := http.NewServeMux()

	// Auth endpoints
	mux.HandleFunc("POST /register", limit("register", cfg.AuthHandler.Register))
	mux.HandleFunc("POST /login", limit("login", cfg.AuthHandler.Login))
	mux.HandleFunc("POST /refresh", limit("refresh", cfg.AuthHandler.Refresh))
	mux.HandleFunc("POST /logout", limit("logout", cfg.AuthHandler.Logout))
	mux.HandleFunc("POST /auth/google", limit("google", cfg.AuthHandler.GoogleLogin))
	mux.HandleFunc("GET /me", cfg.AuthMiddleware.RequireAuth(cfg.AuthHandler.Me))
	mux.HandleFunc("PATCH /users/{id}/role", cfg.AuthMiddleware.RequireAuth(cfg.AuthHandler.SetRole))

	if cfg.RestockHandler != nil {
		mux.HandleFunc("POST /api/smart-restock",
			cfg.AuthMiddleware.RequireRole(models.RoleAdmin, models.RoleManager)(cfg.RestockHandler.SmartRestock))
	}

	mux.HandleFunc("GET /health", cfg.HealthHandler.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.Handle("/", &frontController{routes: cfg.Routes, proxy: cfg.Proxy, frontend: cfg.Frontend})

	var handler http.Handler = mux
	handler = middleware.CORS(cfg.CORS)(handler)
	handler = middleware.SecurityHeaders(cfg.Security)(handler)
	handler = middleware.AccessLog(cfg.Logger.Logger)(handler)
	handler = middleware.RequestID(handler)
	return handler
}

// CORSConfig is the CORS policy for the frontend origins.
func CORSConfig(origins []string) middleware.CORSConfig {
	return middleware.CORSConfig{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           600,
	}
}

type frontController struct {
	routes   *routes.Table
	proxy    http.Handler
	frontend http.Handler
}

func (f *frontController) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.routes != nil {
		if _, ok := f.routes.Match(r.URL.EscapedPath()); ok {
			f.proxy.ServeHTTP(w, r)
			return
		}
	}
	f.frontend.ServeHTTP(w, r)
}
