package authctx

import (
	"log/slog"
	"net/http"
	"strings"
)

// RoleMiddleware gates handlers on roles held by the current State.
type RoleMiddleware struct {
	Logger *slog.Logger
}

// RequireAny ensures the current user holds at least one of the given roles.
func (m RoleMiddleware) RequireAny(roles ...string) func(http.Handler) http.Handler {
	normalized := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			state, err := FromContext(r.Context())
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("role check without provider", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			for _, role := range normalized {
				if state.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func normalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		if role = strings.TrimSpace(role); role != "" {
			out = append(out, role)
		}
	}
	return out
}
