package routeguard_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worktrack/worktrack/internal/routeguard"
	"github.com/worktrack/worktrack/internal/token"
	"github.com/worktrack/worktrack/internal/tokenstore"
)

type decisions map[string]int

func (d decisions) GuardDecision(class, outcome string) { d[class+"/"+outcome]++ }

func signed(t *testing.T, roles ...string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp":   time.Now().Add(time.Hour).Unix(),
		"roles": roles,
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	return raw
}

func newGuard(rec routeguard.Recorder) *routeguard.Guard {
	return routeguard.New(routeguard.DefaultRules(), token.NewValidator(token.Options{RequireExp: true}), nil, rec)
}

func run(t *testing.T, g *routeguard.Guard, path, raw string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if raw != "" {
		req.AddCookie(&http.Cookie{Name: tokenstore.KeyAccessToken, Value: raw})
	}
	rec := httptest.NewRecorder()
	g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})).ServeHTTP(rec, req)
	return rec
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, to string) {
	t.Helper()
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, to, rec.Header().Get("Location"))
}

func assertPassThrough(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestMembersWithoutTokenRedirectsToLogin(t *testing.T) {
	assertRedirect(t, run(t, newGuard(nil), "/members", ""), "/login")
}

func TestMembersAsPlainUserRedirectsHome(t *testing.T) {
	assertRedirect(t, run(t, newGuard(nil), "/members", signed(t, token.RoleUser)), "/")
}

func TestMembersAsAdminPassesThrough(t *testing.T) {
	assertPassThrough(t, run(t, newGuard(nil), "/members", signed(t, token.RoleAdmin)))
}

func TestMembersWithUndecodableTokenRedirectsHome(t *testing.T) {
	assertRedirect(t, run(t, newGuard(nil), "/members/12", "garbage"), "/")
}

func TestLoginWithTokenRedirectsToLanding(t *testing.T) {
	assertRedirect(t, run(t, newGuard(nil), "/login", "anything"), "/jobs/over-due-date")
	assertRedirect(t, run(t, newGuard(nil), "/register", "anything"), "/jobs/over-due-date")
	assertPassThrough(t, run(t, newGuard(nil), "/login", ""))
}

func TestJobEditShape(t *testing.T) {
	g := newGuard(nil)
	assertRedirect(t, run(t, g, "/jobs/42/edit", ""), "/login")
	assertPassThrough(t, run(t, g, "/jobs/42/edit", signed(t, token.RoleUser)))
	assertPassThrough(t, run(t, g, "/jobs/abc/edit", ""))
}

func TestPublicPathsPassThrough(t *testing.T) {
	g := newGuard(nil)
	assertPassThrough(t, run(t, g, "/about", ""))
	assertPassThrough(t, run(t, g, "/about", signed(t, token.RoleUser)))
	assertPassThrough(t, run(t, g, "/", ""))
}

func TestClassify(t *testing.T) {
	g := newGuard(nil)
	tests := map[string]routeguard.Class{
		"/jobs/list":          routeguard.ClassPrivate,
		"/jobs/list?page=2":   routeguard.ClassPrivate,
		"/jobs/over-due-date": routeguard.ClassPrivate,
		"/jobs/7/edit":        routeguard.ClassPrivate,
		"/jobs/7/edit/":       routeguard.ClassPrivate,
		"/members":            routeguard.ClassPrivate,
		"/login":              routeguard.ClassAuthOnly,
		"/register":           routeguard.ClassAuthOnly,
		"/loginx":             routeguard.ClassPublic,
		"/jobs/7":             routeguard.ClassPublic,
		"/about":              routeguard.ClassPublic,
	}
	for path, want := range tests {
		assert.Equal(t, want, g.Classify(path), path)
	}
}

func TestRecorderSeesDecisions(t *testing.T) {
	rec := decisions{}
	g := newGuard(rec)
	run(t, g, "/members", "")
	run(t, g, "/members", signed(t, token.RoleUser))
	run(t, g, "/about", "")
	assert.Equal(t, 1, rec["private/redirect_login"])
	assert.Equal(t, 1, rec["private/redirect_home"])
	assert.Equal(t, 1, rec["public/allow"])
}

func TestDecideIsStateless(t *testing.T) {
	g := newGuard(nil)
	admin := signed(t, token.RoleAdmin)
	assert.True(t, g.Decide("/members", admin, true).Allowed())
	assert.False(t, g.Decide("/members", "", false).Allowed())
	assert.True(t, g.Decide("/members", admin, true).Allowed())
}
