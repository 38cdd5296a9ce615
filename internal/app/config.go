package app

import (
	"errors"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/worktrack/worktrack/internal/token"
	"github.com/worktrack/worktrack/internal/tokenstore"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	StorageSecret string        `envconfig:"STORAGE_SECRET" required:"true"`
	StorageTTL    time.Duration `envconfig:"STORAGE_TTL" default:"720h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	BackendURL     string        `envconfig:"BACKEND_URL" default:"http://127.0.0.1:8081"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"10s"`

	TokenCookieTTL  time.Duration `envconfig:"TOKEN_COOKIE_TTL" default:"24h"`
	TokenRequireExp bool          `envconfig:"TOKEN_REQUIRE_EXP" default:"true"`
	TokenLeeway     time.Duration `envconfig:"TOKEN_LEEWAY" default:"0s"`
	TokenVerifyKey  string        `envconfig:"TOKEN_VERIFY_KEY"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.StorageSecret == "" {
		return nil, errors.New("storage secret must be provided")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	if strings.TrimSpace(cfg.BackendURL) == "" {
		return nil, errors.New("backend url must be provided")
	}
	if cfg.TokenLeeway < 0 {
		return nil, errors.New("token leeway must not be negative")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// ValidatorOptions maps the TOKEN_* settings.
func (c *Config) ValidatorOptions() token.Options {
	opts := token.Options{RequireExp: c.TokenRequireExp, Leeway: c.TokenLeeway}
	if c.TokenVerifyKey != "" {
		opts.VerifyKey = []byte(c.TokenVerifyKey)
	}
	return opts
}

// CookieOptions maps the token cookie settings.
func (c *Config) CookieOptions() tokenstore.Options {
	return tokenstore.Options{TTL: c.TokenCookieTTL, Secure: c.IsProduction()}
}
