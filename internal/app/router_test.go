package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worktrack/worktrack/internal/backend"
	"github.com/worktrack/worktrack/internal/observability"
	"github.com/worktrack/worktrack/internal/token"
	"github.com/worktrack/worktrack/internal/tokenstore"
	_ "github.com/worktrack/worktrack/testing"
)

var csrfField = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

type stack struct {
	server  *httptest.Server
	client  *http.Client
	metrics *observability.Metrics
	token   string
}

func fakeBackend(t *testing.T, raw string) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/api/auth/signin", func(w http.ResponseWriter, r *http.Request) {
		var creds backend.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "correctpass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(backend.SignInResult{AccessToken: raw, TokenType: "Bearer"})
	})
	r.Get("/api/account/me", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(backend.Account{ID: 8, Username: "dewi", FullName: "Dewi Lestari"})
	})
	r.Get("/api/jobs/over-due-date", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+raw {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode([]backend.Job{{ID: 3, Title: "Service generator"}})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newStack(t *testing.T, exp time.Time, roles ...string) *stack {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix(), "roles": roles}).SignedString([]byte("k"))
	require.NoError(t, err)

	cfg := &Config{
		AppEnv:            "test",
		AppRequestTimeout: 5 * time.Second,
		StorageSecret:     "storage",
		StorageTTL:        time.Hour,
		CSRFSecret:        "csrf",
		BackendURL:        fakeBackend(t, raw).URL,
		BackendTimeout:    time.Second,
		TokenCookieTTL:    time.Hour,
		TokenRequireExp:   true,
	}
	metrics := observability.NewMetrics()
	handler, err := Build(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), rdb, metrics)
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &stack{server: srv, client: client, metrics: metrics, token: raw}
}

func (s *stack) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := s.client.Get(s.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (s *stack) login(t *testing.T) *http.Response {
	t.Helper()
	_, page := s.get(t, "/login")
	m := csrfField.FindStringSubmatch(page)
	require.Len(t, m, 2, "login page must carry a csrf token")

	resp, err := s.client.PostForm(s.server.URL+"/login", url.Values{
		"csrf_token": {m[1]},
		"username":   {"dewi"},
		"password":   {"correctpass"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestHealthz(t *testing.T) {
	s := newStack(t, time.Now().Add(time.Hour))
	resp, body := s.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestPrivatePageRedirectsAnonymous(t *testing.T) {
	s := newStack(t, time.Now().Add(time.Hour))
	resp, _ := s.get(t, "/jobs/list")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestPostWithoutCSRFIsForbidden(t *testing.T) {
	s := newStack(t, time.Now().Add(time.Hour))
	resp, err := s.client.PostForm(s.server.URL+"/login", url.Values{"username": {"dewi"}, "password": {"correctpass"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAnonymousPostIsRedirectedBeforeCSRF(t *testing.T) {
	s := newStack(t, time.Now().Add(time.Hour))
	for _, path := range []string{"/jobs/42/edit", "/members/5/delete"} {
		resp, err := s.client.PostForm(s.server.URL+path, url.Values{"title": {"x"}})
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
		assert.Equal(t, "/login", resp.Header.Get("Location"), path)
	}
}

func TestFormTokenOnlyFitsItsForm(t *testing.T) {
	s := newStack(t, time.Now().Add(time.Hour))
	_, page := s.get(t, "/login")
	m := csrfField.FindStringSubmatch(page)
	require.Len(t, m, 2)

	resp, err := s.client.PostForm(s.server.URL+"/register", url.Values{
		"csrf_token": {m[1]},
		"full_name":  {"Dewi Lestari"},
		"username":   {"dewi"},
		"email":      {"dewi@example.com"},
		"password":   {"longenough"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLoginFlow(t *testing.T) {
	s := newStack(t, time.Now().Add(time.Hour), token.RoleUser)

	resp := s.login(t)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/jobs/over-due-date", resp.Header.Get("Location"))

	resp, body := s.get(t, "/jobs/over-due-date")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Service generator")
	assert.Contains(t, body, "Welcome back, Dewi Lestari")

	resp, body = s.get(t, "/api/session")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var view sessionView
	require.NoError(t, json.Unmarshal([]byte(body), &view))
	assert.True(t, view.IsAuthenticated)
	assert.Equal(t, "dewi", view.User.Username)
	assert.Equal(t, []string{token.RoleUser}, view.Roles)
	assert.NotNil(t, view.ExpiresAt)

	resp, _ = s.get(t, "/login")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/jobs/over-due-date", resp.Header.Get("Location"))

	resp, _ = s.get(t, "/members")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestExpiredSessionIsSignedOut(t *testing.T) {
	s := newStack(t, time.Now().Add(-time.Minute), token.RoleUser)
	u, err := url.Parse(s.server.URL)
	require.NoError(t, err)
	s.client.Jar.SetCookies(u, []*http.Cookie{{Name: tokenstore.KeyAccessToken, Value: s.token, Path: "/"}})

	resp, _ := s.get(t, "/jobs/over-due-date")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	for _, c := range s.client.Jar.Cookies(u) {
		assert.NotEqual(t, tokenstore.KeyAccessToken, c.Name, "token cookie must be cleared")
	}

	_, body := s.get(t, "/login")
	assert.Contains(t, body, "Your session has expired")

	_, metrics := s.get(t, "/metrics")
	assert.True(t, strings.Contains(metrics, `worktrack_session_expired_total{source="jobs.overdue"} 1`))
}

func TestAnonymousSessionView(t *testing.T) {
	s := newStack(t, time.Now().Add(time.Hour))
	_, body := s.get(t, "/api/session")
	assert.JSONEq(t, `{"isAuthenticated":false,"roles":[]}`, body)
}
