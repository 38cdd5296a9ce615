package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worktrack/worktrack/internal/auth"
	"github.com/worktrack/worktrack/internal/authctx"
	"github.com/worktrack/worktrack/internal/backend"
	"github.com/worktrack/worktrack/internal/shared"
	"github.com/worktrack/worktrack/internal/token"
	"github.com/worktrack/worktrack/internal/tokenstore"
	"github.com/worktrack/worktrack/internal/view"
	_ "github.com/worktrack/worktrack/testing"
)

type stubBackend struct {
	token      string
	signUpErr  error
	logoutWith string
}

func (s *stubBackend) SignIn(ctx context.Context, creds backend.Credentials) (*backend.SignInResult, error) {
	if creds.Password != "correctpass" {
		return nil, shared.ErrInvalidCredentials
	}
	return &backend.SignInResult{AccessToken: s.token}, nil
}

func (s *stubBackend) SignUp(ctx context.Context, reg backend.Registration) error {
	return s.signUpErr
}

func (s *stubBackend) Logout(ctx context.Context, bearer string) error {
	s.logoutWith = bearer
	return nil
}

func (s *stubBackend) Me(ctx context.Context, bearer string) (*backend.Account, error) {
	return &backend.Account{ID: 11, Username: "joko", FullName: "Joko Widodo"}, nil
}

func issue(t *testing.T, exp time.Time, roles ...string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix(), "roles": roles}).SignedString([]byte("k"))
	require.NoError(t, err)
	return raw
}

type fixture struct {
	router  http.Handler
	storage *shared.Storage
}

func newFixture(t *testing.T, b auth.Backend) *fixture {
	t.Helper()
	validator := token.NewValidator(token.Options{RequireExp: true})
	templates, err := view.NewEngine()
	require.NoError(t, err)
	handler := auth.NewHandler(nil, auth.NewService(b, validator, time.Hour), templates, shared.NewCSRFManager("csrf"), "/jobs/over-due-date")

	f := &fixture{storage: &shared.Storage{}}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(shared.ContextWithStorage(r.Context(), f.storage)))
		})
	})
	r.Use(authctx.Provider{Validator: validator}.Middleware)
	handler.MountRoutes(r)
	f.router = r
	return f
}

func (f *fixture) post(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func cookieMap(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestLoginPage(t *testing.T) {
	f := newFixture(t, &stubBackend{})
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<form")
	assert.NotEmpty(t, f.storage.Get(shared.CSRFStorageKey))
}

func TestLoginSuccessStoresTokenAndProfile(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour)
	raw := issue(t, exp, token.RoleAdmin)
	f := newFixture(t, &stubBackend{token: raw})

	rec := f.post("/login", url.Values{"username": {"joko"}, "password": {"correctpass"}})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/jobs/over-due-date", rec.Header().Get("Location"))
	cookies := cookieMap(rec)
	require.Contains(t, cookies, tokenstore.KeyAccessToken)
	assert.Equal(t, raw, cookies[tokenstore.KeyAccessToken].Value)
	require.Contains(t, cookies, tokenstore.KeyUserRoles)

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		next.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	roles, ok := tokenstore.New(httptest.NewRecorder(), next, nil, tokenstore.Options{}).Roles()
	require.True(t, ok)
	assert.Equal(t, []string{token.RoleAdmin}, roles)
	assert.Equal(t, raw, f.storage.Get(tokenstore.KeyAccessToken))
	assert.Contains(t, f.storage.Get(authctx.StorageKeyUser), `"username":"joko"`)

	flash := f.storage.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Welcome back, Joko Widodo", flash.Message)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t, &stubBackend{token: issue(t, time.Now().Add(time.Hour))})
	rec := f.post("/login", url.Values{"username": {"joko"}, "password": {"wrongpass"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid username or password")
	assert.NotContains(t, cookieMap(rec), tokenstore.KeyAccessToken)
}

func TestLoginRejectsExpiredIssuedToken(t *testing.T) {
	f := newFixture(t, &stubBackend{token: issue(t, time.Now().Add(-time.Hour))})
	rec := f.post("/login", url.Values{"username": {"joko"}, "password": {"correctpass"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginValidation(t *testing.T) {
	f := newFixture(t, &stubBackend{})
	rec := f.post("/login", url.Values{"username": {""}, "password": {"x"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "field-error")
}

func TestLogoutClearsEverything(t *testing.T) {
	raw := issue(t, time.Now().Add(time.Hour), token.RoleUser)
	b := &stubBackend{}
	f := newFixture(t, b)
	f.storage.Set(authctx.StorageKeyUser, `{"id":11,"username":"joko"}`)
	f.storage.Set(tokenstore.KeyAccessToken, raw)
	f.storage.Set(shared.CSRFStorageKey, "seed")

	rec := f.post("/logout", url.Values{}, &http.Cookie{Name: tokenstore.KeyAccessToken, Value: raw})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Equal(t, raw, b.logoutWith)
	assert.Empty(t, f.storage.Get(authctx.StorageKeyUser))
	assert.Empty(t, f.storage.Get(tokenstore.KeyAccessToken))
	assert.Empty(t, f.storage.Get(shared.CSRFStorageKey))
	flash := f.storage.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "You have been signed out", flash.Message)
	cookies := cookieMap(rec)
	require.Contains(t, cookies, tokenstore.KeyAccessToken)
	assert.Negative(t, cookies[tokenstore.KeyAccessToken].MaxAge)
}

func TestRegisterShowsBackendMessage(t *testing.T) {
	f := newFixture(t, &stubBackend{signUpErr: &backend.APIError{StatusCode: http.StatusConflict, Message: "username taken"}})
	rec := f.post("/register", url.Values{
		"full_name": {"Sri Mulyani"},
		"username":  {"sri"},
		"email":     {"sri@example.com"},
		"password":  {"longenough"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "username taken")
}

func TestRegisterSuccessRedirectsToLogin(t *testing.T) {
	f := newFixture(t, &stubBackend{})
	rec := f.post("/register", url.Values{
		"full_name": {"Sri Mulyani"},
		"username":  {"sri"},
		"email":     {"sri@example.com"},
		"password":  {"longenough"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}
