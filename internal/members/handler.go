// Package members serves the administrator-only staff directory.
package members

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/worktrack/worktrack/internal/authctx"
	"github.com/worktrack/worktrack/internal/backend"
	"github.com/worktrack/worktrack/internal/shared"
	"github.com/worktrack/worktrack/internal/token"
	"github.com/worktrack/worktrack/internal/view"
)

// Handler manages member endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	guard     *authctx.Guard
	roles     authctx.RoleMiddleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, guard *authctx.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		guard:     guard,
		roles:     authctx.RoleMiddleware{Logger: logger},
	}
}

// MountRoutes registers member routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require)
		r.Use(h.roles.RequireAny(token.RoleAdmin))
		r.Get("/members", h.list)
		r.Post("/members/{id}/delete", h.remove)
	})
}

type listPageData struct {
	Members []Member
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var data listPageData
	err := h.guard.Do(w, r, "members.list", func(ctx context.Context, sess authctx.Session) error {
		members, err := h.service.ListMembers(ctx, sess.Token)
		data.Members = members
		return err
	})
	if errors.Is(err, authctx.ErrSessionExpired) {
		return
	}
	status := http.StatusOK
	if err != nil {
		h.logger.Error("list members failed", slog.Any("error", err))
		h.flash(r, shared.FlashError, backend.UserMessage(err))
		if errors.Is(err, backend.ErrForbidden) {
			status = http.StatusForbidden
		}
	}
	h.render(w, r, status, data)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return
	}
	var actorID int64
	if state, stateErr := authctx.FromContext(r.Context()); stateErr == nil && state.User() != nil {
		actorID = state.User().ID
	}
	err = h.guard.Do(w, r, "members.delete", func(ctx context.Context, sess authctx.Session) error {
		return h.service.RemoveMember(ctx, sess.Token, actorID, id)
	})
	switch {
	case err == nil:
		h.logger.Info("member removed", slog.Int64("member_id", id), slog.Int64("actor_id", actorID))
		h.flash(r, shared.FlashSuccess, "Member removed")
	case errors.Is(err, authctx.ErrSessionExpired):
		return
	case errors.Is(err, ErrSelfRemoval):
		h.flash(r, shared.FlashError, "You cannot remove your own account")
	default:
		h.logger.Warn("remove member", slog.Any("error", err))
		h.flash(r, shared.FlashError, backend.UserMessage(err))
	}
	http.Redirect(w, r, "/members", http.StatusSeeOther)
}

func (h *Handler) flash(r *http.Request, kind, msg string) {
	shared.StorageFromContext(r.Context()).AddFlash(shared.FlashMessage{Kind: kind, Message: msg})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data listPageData) {
	viewData := view.Page(r, h.csrf, "Members", data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/members.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}
