package app

import (
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/worktrack/worktrack/internal/auth"
	"github.com/worktrack/worktrack/internal/authctx"
	"github.com/worktrack/worktrack/internal/jobs"
	"github.com/worktrack/worktrack/internal/members"
	"github.com/worktrack/worktrack/internal/observability"
	"github.com/worktrack/worktrack/internal/platform/httpx"
	"github.com/worktrack/worktrack/internal/routeguard"
	"github.com/worktrack/worktrack/internal/shared"
	"github.com/worktrack/worktrack/internal/token"
	"github.com/worktrack/worktrack/internal/tokenstore"
	"github.com/worktrack/worktrack/internal/view"
	"github.com/worktrack/worktrack/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	StorageManager *shared.StorageManager
	CSRFManager    *shared.CSRFManager
	Validator      *token.Validator
	RouteGuard     *routeguard.Guard
	AuthHandler    *auth.Handler
	JobsHandler    *jobs.Handler
	MembersHandler *members.Handler
	Metrics        *observability.Metrics
}

type sessionView struct {
	IsAuthenticated bool             `json:"isAuthenticated"`
	User            *authctx.Profile `json:"user,omitempty"`
	Roles           []string         `json:"roles"`
	ExpiresAt       *time.Time       `json:"expiresAt,omitempty"`
}

// NewRouter constructs the chi.Router with WorkTrack defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		StorageManager: params.StorageManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	var cookies tokenstore.Options
	if params.Config != nil {
		cookies = params.Config.CookieOptions()
	}
	r.Use(authctx.Provider{Validator: params.Validator, Cookies: cookies, Logger: params.Logger}.Middleware)
	if params.RouteGuard != nil {
		r.Use(params.RouteGuard.Middleware)
	}
	if params.CSRFManager != nil {
		r.Use(CSRFMiddleware(params.Logger, params.CSRFManager))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	page := func(name, title string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			data := view.Page(r, params.CSRFManager, title, nil)
			if err := params.Templates.Render(w, name, data); err != nil {
				params.Logger.Error("render page", slog.String("template", name), slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}
	}
	r.Get("/", page("pages/home.html", "WorkTrack"))
	r.Get("/about", page("pages/about.html", "About"))

	r.Get("/api/session", func(w http.ResponseWriter, r *http.Request) {
		state, err := authctx.FromContext(r.Context())
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		out := sessionView{
			IsAuthenticated: state.IsAuthenticated(),
			User:            state.User(),
			Roles:           state.Roles().Slice(),
		}
		jar := tokenstore.FromContext(r.Context())
		if raw, ok := jar.Get(); ok {
			ms, found := jar.ExpiresAt()
			if !found {
				var err error
				ms, err = params.Validator.ExpiresAtMillis(raw)
				found = err == nil
			}
			if found {
				at := time.UnixMilli(ms).UTC()
				out.ExpiresAt = &at
			}
		}
		httpx.JSON(w, http.StatusOK, out)
	})

	if params.AuthHandler != nil {
		params.AuthHandler.MountRoutes(r)
	}
	if params.JobsHandler != nil {
		params.JobsHandler.MountRoutes(r)
	}
	if params.MembersHandler != nil {
		params.MembersHandler.MountRoutes(r)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler caches static assets in the browser for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
