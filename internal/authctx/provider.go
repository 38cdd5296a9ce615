package authctx

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/worktrack/worktrack/internal/shared"
	"github.com/worktrack/worktrack/internal/token"
	"github.com/worktrack/worktrack/internal/tokenstore"
)

// Provider installs the token jar and a freshly hydrated State on every
// request. It must run after the browser storage middleware.
type Provider struct {
	Validator *token.Validator
	Cookies   tokenstore.Options
	Logger    *slog.Logger
}

// Middleware returns the provider middleware.
func (p Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		st := shared.StorageFromContext(ctx)
		jar := tokenstore.New(w, r, st, p.Cookies)
		state := New(StorageProfiles{Storage: st}, jar)

		raw, ok := jar.Get()
		switch {
		case ok:
			roles := p.Validator.DecodeRoles(raw)
			state.SetRoles(roles)
			// The role cookie is a cache of the token claim; rewrite it when
			// it has drifted so pages reading it agree with the guard.
			if cached, found := jar.Roles(); !found || !slices.Equal(token.NewRoleSet(cached...).Slice(), roles.Slice()) {
				jar.SetRoles(roles.Slice())
			}
		case state.IsAuthenticated():
			// The cookie jar is authoritative: a cached profile without a
			// token cookie belongs to a session that is gone.
			if p.Logger != nil {
				p.Logger.Debug("dropping cached profile without token", slog.String("path", r.URL.Path))
			}
			state.SetUser(nil)
		}

		ctx = tokenstore.ContextWithJar(ctx, jar)
		ctx = WithState(ctx, state)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
