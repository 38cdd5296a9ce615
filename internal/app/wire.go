package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/worktrack/worktrack/internal/auth"
	"github.com/worktrack/worktrack/internal/authctx"
	"github.com/worktrack/worktrack/internal/backend"
	"github.com/worktrack/worktrack/internal/jobs"
	"github.com/worktrack/worktrack/internal/members"
	"github.com/worktrack/worktrack/internal/observability"
	"github.com/worktrack/worktrack/internal/routeguard"
	"github.com/worktrack/worktrack/internal/shared"
	"github.com/worktrack/worktrack/internal/token"
	"github.com/worktrack/worktrack/internal/view"
)

// BrowserCookieName names the cookie carrying the browser storage id.
const BrowserCookieName = "worktrack_browser"

// Build assembles every handler and returns the root http.Handler.
func Build(cfg *Config, logger *slog.Logger, redisClient *redis.Client, metrics *observability.Metrics) (http.Handler, error) {
	templates, err := view.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}

	validator := token.NewValidator(cfg.ValidatorOptions())
	storage := shared.NewStorageManager(redisClient, BrowserCookieName, cfg.StorageSecret, cfg.StorageTTL, cfg.IsProduction())
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)
	client := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)

	rules := routeguard.DefaultRules()
	guard := &authctx.Guard{Validator: validator, Logger: logger, LoginPath: rules.LoginPath}
	var recorder routeguard.Recorder
	if metrics != nil {
		guard.Recorder = metrics
		recorder = metrics
	}

	authService := auth.NewService(client, validator, cfg.TokenCookieTTL)
	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		StorageManager: storage,
		CSRFManager:    csrf,
		Validator:      validator,
		RouteGuard:     routeguard.New(rules, validator, logger, recorder),
		AuthHandler:    auth.NewHandler(logger, authService, templates, csrf, rules.LandingPath),
		JobsHandler:    jobs.NewHandler(logger, client, templates, csrf, guard),
		MembersHandler: members.NewHandler(logger, members.NewService(client), templates, csrf, guard),
		Metrics:        metrics,
	}), nil
}
