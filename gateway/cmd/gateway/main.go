package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/inventra-labs/inventra/common/audit"
	"github.com/inventra-labs/inventra/common/logging"
	"github.com/inventra-labs/inventra/common/messaging"
	natsclient "github.com/inventra-labs/inventra/common/messaging/nats"
	"github.com/inventra-labs/inventra/common/middleware"
	"github.com/inventra-labs/inventra/gateway/internal/config"
	"github.com/inventra-labs/inventra/gateway/internal/database"
	"github.com/inventra-labs/inventra/gateway/internal/events"
	"github.com/inventra-labs/inventra/gateway/internal/handlers"
	"github.com/inventra-labs/inventra/gateway/internal/idp"
	gwmiddleware "github.com/inventra-labs/inventra/gateway/internal/middleware"
	"github.com/inventra-labs/inventra/gateway/internal/proxy"
	"github.com/inventra-labs/inventra/gateway/internal/ratelimit"
	"github.com/inventra-labs/inventra/gateway/internal/restock"
	"github.com/inventra-labs/inventra/gateway/internal/routes"
	"github.com/inventra-labs/inventra/gateway/internal/server"
	"github.com/inventra-labs/inventra/gateway/internal/service"
	"github.com/inventra-labs/inventra/gateway/internal/tokens"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("gateway"))
	logging.SetDefault(logger)

	slog.Info("Starting gateway",
		slog.String("version", version),
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}

	// The gateway keeps serving without a secret so the frontend and health
	// checks stay up; every credential operation answers 500.
	if cfg.Auth.JWTSecret == "" {
		slog.Error("CRITICAL: auth.jwt_secret (JWT_SECRET) is not set; authenticated requests will fail")
	}

	ctx := context.Background()

	repo, err := database.OpenRepository(ctx, cfg.Database, true, logger)
	if err != nil {
		slog.Error("Failed to open identity store", logging.Error(err))
		os.Exit(1)
	}
	defer repo.Close()

	table, err := loadRoutes(cfg, logger)
	if err != nil {
		slog.Error("Invalid route table", logging.Error(err))
		os.Exit(1)
	}

	limiter := newLimiter(cfg)
	if limiter != nil {
		defer limiter.Close()
	}

	publisher := newPublisher(cfg)
	defer publisher.Close()
	emitter := events.NewEmitter(publisher, audit.NewEventSigner(cfg.NATS.SigningSecret), logger)

	tm := tokens.NewManager(cfg.Auth.JWTSecret,
		tokens.WithIssuer(cfg.Auth.Issuer),
		tokens.WithAccessTTL(cfg.Auth.AccessTokenTTL),
	)

	svcOpts := []service.Option{
		service.WithRefreshTTL(cfg.Auth.RefreshTokenTTL),
		service.WithBcryptCost(cfg.Auth.BcryptCost),
		service.WithEvents(emitter),
		service.WithLogger(logger),
	}
	if cfg.Google.ClientID != "" {
		verifier, err := idp.NewGoogleVerifier(ctx, cfg.Google.ClientID)
		if err != nil {
			slog.Warn("Google sign-in disabled", logging.Error(err))
		} else {
			svcOpts = append(svcOpts, service.WithIdentityProvider(verifier))
			slog.Info("Google sign-in enabled")
		}
	}
	authService := service.NewAuthService(repo, tm, svcOpts...)

	transport := proxy.NewTransport()
	dispatcher := proxy.NewDispatcher(table, tm, proxy.WithTransport(transport), proxy.WithLogger(logger))

	frontend := handlers.NewSPAHandler(cfg.Static.Dir)
	if !frontend.Available() {
		slog.Warn("Frontend build not found, unmatched paths will return 404",
			slog.String("static_dir", cfg.Static.Dir))
	}

	router := server.NewRouter(server.RouterConfig{
		AuthHandler:     handlers.NewAuthHandler(authService, logger),
		HealthHandler:   handlers.NewHealthHandler(repo, publisher, table.Len(), version),
		RestockHandler:  newRestockHandler(cfg, table, transport, logger),
		AuthMiddleware:  gwmiddleware.NewAuthMiddleware(tm, logger),
		Routes:          table,
		Proxy:           dispatcher,
		Frontend:        frontend,
		Limiter:         limiter,
		RateLimitWindow: cfg.RateLimit.Window,
		CORS:            server.CORSConfig(cfg.CORS.AllowedOrigins),
		Security:        middleware.SecurityConfig{HSTS: cfg.Security.HSTS},
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Gateway listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", logging.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", logging.Error(err))
		return
	}
	transport.CloseIdleConnections()

	slog.Info("Server stopped gracefully")
}

// loadRoutes builds the route table. A table left empty because every
// optional upstream is unset is allowed; the gateway then only serves auth
// and the frontend.
func loadRoutes(cfg *config.Config, logger *logging.Logger) (*routes.Table, error) {
	descs, err := cfg.RouteDescriptors()
	if err != nil {
		return nil, err
	}
	table, err := routes.Load(descs, routes.LoadOptions{Logger: logger.Logger})
	if errors.Is(err, routes.ErrNoRoutes) {
		logger.Warn("No upstream routes configured, proxying is disabled")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.CheckRouteTimeouts(table); err != nil {
		return nil, err
	}
	for _, r := range table.Routes() {
		logger.Info("Route loaded",
			logging.Route(r.Name),
			slog.String("prefix", r.Prefix),
			logging.Upstream(r.Upstream.String()),
			slog.Any("roles", r.RoleNames()),
		)
	}
	return table, nil
}

func newLimiter(cfg *config.Config) ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		slog.Info("Rate limiting disabled")
		return nil
	}
	if cfg.Redis.Enabled {
		limiter, err := ratelimit.NewRedisLimiter(cfg.Redis.URL, cfg.RateLimit.Attempts, cfg.RateLimit.Window)
		if err == nil {
			slog.Info("Rate limiting via Redis",
				slog.Int("attempts", cfg.RateLimit.Attempts),
				slog.Duration("window", cfg.RateLimit.Window))
			return limiter
		}
		slog.Warn("Redis unavailable, falling back to in-process rate limiting", logging.Error(err))
	}
	return ratelimit.NewLocalLimiter(cfg.RateLimit.Attempts, cfg.RateLimit.Window)
}

func newPublisher(cfg *config.Config) messaging.Publisher {
	if !cfg.NATS.Enabled {
		return messaging.NoopPublisher{}
	}
	natsCfg := natsclient.DefaultConfig()
	natsCfg.URL = cfg.NATS.URL
	client, err := natsclient.NewClient(natsCfg)
	if err != nil {
		slog.Warn("NATS unavailable, auth events will not be published", logging.Error(err))
		return messaging.NoopPublisher{}
	}
	slog.Info("Publishing auth events to NATS", slog.String("url", cfg.NATS.URL))
	return client
}

// newRestockHandler wires smart restock to the upstreams of the configured
// stock and prediction routes. It returns nil when either is missing.
func newRestockHandler(cfg *config.Config, table *routes.Table, transport http.RoundTripper, logger *logging.Logger) *handlers.RestockHandler {
	if !cfg.Restock.Enabled {
		return nil
	}
	stock, okStock := table.Lookup(cfg.Restock.StockRoute)
	prediction, okPrediction := table.Lookup(cfg.Restock.PredictionRoute)
	if !okStock || !okPrediction {
		logger.Warn("Smart restock disabled, stock or prediction route is not configured",
			slog.String("stock_route", cfg.Restock.StockRoute),
			slog.String("prediction_route", cfg.Restock.PredictionRoute),
		)
		return nil
	}

	client := restock.NewClient(restock.Config{
		StockURL:        stock.Upstream,
		PredictionURL:   prediction.Upstream,
		Timeout:         cfg.Restock.Timeout,
		BreakerFailures: cfg.Restock.BreakerFailures,
		BreakerTimeout:  cfg.Restock.BreakerTimeout,
	}, &http.Client{Transport: transport}, logger)
	return handlers.NewRestockHandler(client, logger)
}
