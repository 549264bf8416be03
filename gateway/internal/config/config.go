package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/inventra-labs/inventra/gateway/internal/routes"
)

// WriteTimeoutHeadroom is the time kept between an upstream timeout and the
// server write deadline for writing the error response.
const WriteTimeoutHeadroom = time.Second

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Google    GoogleConfig    `mapstructure:"google"`
	Routes    RoutesConfig    `mapstructure:"routes"`
	Restock   RestockConfig   `mapstructure:"restock"`
	Static    StaticConfig    `mapstructure:"static"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	Issuer          string        `mapstructure:"issuer"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	BcryptCost      int           `mapstructure:"bcrypt_cost"`
}

type DatabaseConfig struct {
	Type       string         `mapstructure:"type"`
	Migrations string         `mapstructure:"migrations"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	// URL takes precedence over the individual fields when set.
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString returns the pgx connection URL.
func (p PostgresConfig) ConnString() string {
	if p.URL != "" {
		return p.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.Database,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Attempts int           `mapstructure:"attempts"`
	Window   time.Duration `mapstructure:"window"`
}

type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SigningSecret string `mapstructure:"signing_secret"`
}

type GoogleConfig struct {
	ClientID string `mapstructure:"client_id"`
}

// RoutesConfig points at a routes file or lists routes inline. With
// neither, the built-in inventory routes are used.
type RoutesConfig struct {
	File    string              `mapstructure:"file"`
	Entries []routes.Descriptor `mapstructure:"entries"`
}

type RestockConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	StockRoute      string        `mapstructure:"stock_route"`
	PredictionRoute string        `mapstructure:"prediction_route"`
	Timeout         time.Duration `mapstructure:"timeout"`
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type StaticConfig struct {
	Dir string `mapstructure:"dir"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type SecurityConfig struct {
	HSTS bool `mapstructure:"hsts"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "inventra-gateway")
	v.SetDefault("auth.access_token_ttl", "1h")
	v.SetDefault("auth.refresh_token_ttl", "168h")
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("database.type", "memory")
	v.SetDefault("database.migrations", "file://migrations")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "inventra")
	v.SetDefault("database.postgres.user", "inventra")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.attempts", 10)
	v.SetDefault("ratelimit.window", "1m")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.signing_secret", "")

	v.SetDefault("google.client_id", "")

	v.SetDefault("routes.file", "")

	v.SetDefault("restock.enabled", true)
	v.SetDefault("restock.stock_route", "stock")
	v.SetDefault("restock.prediction_route", "predict")
	v.SetDefault("restock.timeout", "10s")
	v.SetDefault("restock.breaker_failures", 5)
	v.SetDefault("restock.breaker_timeout", "30s")

	v.SetDefault("static.dir", "./frontend/dist")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("security.hsts", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads configuration from configPath (or config.yaml in the working
// directory or /etc/inventra/gateway) and GATEWAY_* environment variables.
// A few settings also honor the bare variable names used by the
// docker-compose deployment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/inventra/gateway")
	}

	v.SetEnvPrefix("GATEWAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, names := range map[string][]string{
		"auth.jwt_secret":       {"GATEWAY_AUTH_JWT_SECRET", "JWT_SECRET"},
		"google.client_id":      {"GATEWAY_GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_ID"},
		"database.postgres.url": {"GATEWAY_DATABASE_POSTGRES_URL", "DATABASE_URL"},
		"cors.allowed_origins":  {"GATEWAY_CORS_ALLOWED_ORIGINS", "FRONTEND_URL"},
		"server.port":           {"GATEWAY_SERVER_PORT", "PORT"},
	} {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the process cannot start with. An empty JWT
// secret is not rejected here; the gateway starts and refuses requests.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Database.Type {
	case "memory", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.type must be memory or postgres, got %q", c.Database.Type))
	}
	if c.Auth.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("auth.access_token_ttl must be positive"))
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("auth.refresh_token_ttl must be positive"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.Attempts <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("ratelimit.attempts and ratelimit.window must be positive"))
	}
	if c.Routes.File != "" && len(c.Routes.Entries) > 0 {
		errs = append(errs, errors.New("routes.file and routes.entries are mutually exclusive"))
	}
	if c.Restock.Enabled {
		if err := c.checkUpstreamTimeout("restock.timeout", c.Restock.Timeout); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// CheckRouteTimeouts rejects routes whose upstream timeout would outlive the
// server write deadline, which would drop the connection instead of
// answering 504. Route timeouts are only known once the table is loaded, so
// this runs after routes.Load rather than in Validate.
func (c *Config) CheckRouteTimeouts(table *routes.Table) error {
	var errs []error
	for _, r := range table.Routes() {
		if err := c.checkUpstreamTimeout(fmt.Sprintf("route %s timeout", r.Name), r.Timeout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// An upstream timeout must end at least WriteTimeoutHeadroom before the
// write deadline. A zero write timeout means no deadline.
func (c *Config) checkUpstreamTimeout(name string, d time.Duration) error {
	limit := c.Server.WriteTimeout - WriteTimeoutHeadroom
	if c.Server.WriteTimeout <= 0 || d <= limit {
		return nil
	}
	return fmt.Errorf("%s %s must be at most %s (server.write_timeout %s minus %s)",
		name, d, limit, c.Server.WriteTimeout, WriteTimeoutHeadroom)
}

// RouteDescriptors returns the configured route descriptors.
func (c *Config) RouteDescriptors() ([]routes.Descriptor, error) {
	switch {
	case c.Routes.File != "":
		return routes.LoadFile(c.Routes.File)
	case len(c.Routes.Entries) > 0:
		return c.Routes.Entries, nil
	default:
		return routes.Defaults(), nil
	}
}
