package authctx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/worktrack/worktrack/internal/shared"
	"github.com/worktrack/worktrack/internal/token"
	"github.com/worktrack/worktrack/internal/tokenstore"
)

// ErrSessionExpired is returned when no usable session token is available.
var ErrSessionExpired = shared.ErrSessionExpired

// ExpiredNotice is the flash shown after a forced sign-out.
const ExpiredNotice = "Your session has expired. Please sign in again."

// Session is a token that passed the expiry check.
type Session struct {
	Token     string
	Roles     token.RoleSet
	ExpiresAt time.Time
}

// ExpiryRecorder observes forced sign-outs.
type ExpiryRecorder interface {
	SessionExpired(source string)
}

// Guard acquires a valid session before state-changing actions and page data
// fetches, and turns failures into sign-out plus redirect.
type Guard struct {
	Validator *token.Validator
	Logger    *slog.Logger
	LoginPath string
	Recorder  ExpiryRecorder
}

type sessionContextKey struct{}

// SessionFromContext returns the session acquired by Require.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(Session)
	return s, ok
}

// Acquire returns the current session or ErrSessionExpired.
func (g *Guard) Acquire(ctx context.Context) (Session, error) {
	raw, ok := tokenstore.FromContext(ctx).Get()
	if !ok || g.Validator.IsExpired(raw) {
		return Session{}, ErrSessionExpired
	}
	sess := Session{Token: raw, Roles: g.Validator.DecodeRoles(raw)}
	if ms, err := g.Validator.ExpiresAtMillis(raw); err == nil {
		sess.ExpiresAt = time.UnixMilli(ms)
	}
	return sess, nil
}

// Expire signs the browser out, queues the notice and redirects to login.
func (g *Guard) Expire(w http.ResponseWriter, r *http.Request, source string) {
	ctx := r.Context()
	if state, err := FromContext(ctx); err == nil {
		state.Logout()
	} else {
		tokenstore.FromContext(ctx).Clear()
	}
	shared.StorageFromContext(ctx).AddFlash(shared.FlashMessage{Kind: shared.FlashError, Message: ExpiredNotice})
	if g.Logger != nil {
		g.Logger.Info("session expired", slog.String("source", source), slog.String("path", r.URL.Path))
	}
	if g.Recorder != nil {
		g.Recorder.SessionExpired(source)
	}
	http.Redirect(w, r, g.loginPath(), http.StatusSeeOther)
}

// Do runs fn with a valid session. When no session can be acquired, or fn
// reports ErrSessionExpired, the browser is signed out and redirected; the
// returned error then wraps ErrSessionExpired and nothing more may be written.
func (g *Guard) Do(w http.ResponseWriter, r *http.Request, source string, fn func(ctx context.Context, sess Session) error) error {
	sess, err := g.Acquire(r.Context())
	if err != nil {
		g.Expire(w, r, source)
		return err
	}
	ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
	if err := fn(ctx, sess); err != nil {
		if errors.Is(err, ErrSessionExpired) {
			g.Expire(w, r, source)
		}
		return err
	}
	return nil
}

// Require gates a handler behind Acquire and exposes the session through
// SessionFromContext.
func (g *Guard) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := g.Acquire(r.Context())
		if err != nil {
			g.Expire(w, r, "page")
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Guard) loginPath() string {
	if g.LoginPath == "" {
		return "/login"
	}
	return g.LoginPath
}
