package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/worktrack/worktrack/internal/authctx"
	"github.com/worktrack/worktrack/internal/backend"
	"github.com/worktrack/worktrack/internal/shared"
	"github.com/worktrack/worktrack/internal/tokenstore"
	"github.com/worktrack/worktrack/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	validator   *validator.Validate
	landingPath string
}

// NewHandler constructs a Handler instance. landingPath is where a fresh
// sign-in lands.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, landingPath string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		service:     service,
		templates:   templates,
		csrfManager: csrf,
		validator:   validator.New(),
		landingPath: landingPath,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Get("/register", h.showRegister)
	r.Post("/register", h.handleRegister)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Username string `validate:"required,min=3,max=64"`
	Password string `validate:"required,min=6"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

type registerForm struct {
	FullName string `validate:"required,max=120"`
	Username string `validate:"required,min=3,max=64,alphanum"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

type registerPageData struct {
	Form   registerForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/login.html", "Sign in", loginPageData{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	form := loginForm{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	errs := h.validate(form)

	if len(errs) == 0 {
		signed, err := h.service.SignIn(ctx, form.Username, form.Password)
		switch {
		case err == nil:
			state, stateErr := authctx.FromContext(ctx)
			if stateErr != nil {
				h.logger.Error("login without auth provider", slog.Any("error", stateErr))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			jar := tokenstore.FromContext(ctx)
			jar.Set(signed.Token, signed.ExpiresAtMillis)
			jar.SetRoles(signed.Roles.Slice())
			state.SetUser(signed.Profile)
			state.SetRoles(signed.Roles)
			shared.StorageFromContext(ctx).AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: "Welcome back, " + signed.Profile.DisplayName()})
			h.logger.Info("signed in", slog.Int64("user_id", signed.Profile.ID))
			http.Redirect(w, r, h.landingPath, http.StatusSeeOther)
			return
		case errors.Is(err, shared.ErrInvalidCredentials), errors.Is(err, ErrTokenRejected):
			errs["general"] = "Invalid username or password"
		case errors.Is(err, backend.ErrUnavailable):
			h.logger.Warn("sign in backend unavailable", slog.Any("error", err))
			errs["general"] = "The server is unavailable, please try again"
		default:
			h.logger.Error("sign in", slog.Any("error", err))
			errs["general"] = "Sign in failed, please try again"
		}
	}

	form.Password = ""
	h.render(w, r, http.StatusBadRequest, "pages/login.html", "Sign in", loginPageData{Form: form, Errors: errs})
}

func (h *Handler) showRegister(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/register.html", "Register", registerPageData{})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	form := registerForm{
		FullName: r.PostFormValue("full_name"),
		Username: r.PostFormValue("username"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	errs := h.validate(form)
	if len(errs) == 0 {
		err := h.service.Register(ctx, backend.Registration{
			Username: form.Username,
			Email:    form.Email,
			FullName: form.FullName,
			Password: form.Password,
		})
		if err == nil {
			shared.StorageFromContext(ctx).AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: "Account created, please sign in"})
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			errs["general"] = apiErr.Message
		} else {
			h.logger.Warn("register", slog.Any("error", err))
			errs["general"] = "Registration failed, please try again"
		}
	}
	form.Password = ""
	h.render(w, r, http.StatusBadRequest, "pages/register.html", "Register", registerPageData{Form: form, Errors: errs})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if raw, ok := tokenstore.FromContext(ctx).Get(); ok {
		if err := h.service.SignOut(ctx, raw); err != nil {
			h.logger.Warn("backend logout", slog.Any("error", err))
		}
	}
	if state, err := authctx.FromContext(ctx); err == nil {
		state.Logout()
	}
	st := shared.StorageFromContext(ctx)
	st.Reset()
	st.AddFlash(shared.FlashMessage{Kind: shared.FlashInfo, Message: "You have been signed out"})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) validate(form any) map[string]string {
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				errs[fieldErr.Field()] = fieldErr.Error()
			}
		}
	}
	return errs
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	viewData := view.Page(r, h.csrfManager, title, data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, name, viewData); err != nil {
		h.logger.Error("render", slog.String("template", name), slog.Any("error", err))
	}
}
