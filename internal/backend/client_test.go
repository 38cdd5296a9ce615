package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worktrack/worktrack/internal/backend"
	"github.com/worktrack/worktrack/internal/shared"
)

func newServer(t *testing.T, mount func(r chi.Router)) *backend.Client {
	t.Helper()
	r := chi.NewRouter()
	mount(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return backend.NewClient(srv.URL+"/", time.Second)
}

func TestSignIn(t *testing.T) {
	client := newServer(t, func(r chi.Router) {
		r.Post("/api/auth/signin", func(w http.ResponseWriter, r *http.Request) {
			var creds backend.Credentials
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			if creds.Password != "secret123" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(backend.SignInResult{AccessToken: "tok", Roles: []string{"ROLE_USER"}})
		})
	})

	res, err := client.SignIn(context.Background(), backend.Credentials{Username: "u", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "tok", res.AccessToken)

	_, err = client.SignIn(context.Background(), backend.Credentials{Username: "u", Password: "nope"})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestBearerAndErrorMapping(t *testing.T) {
	client := newServer(t, func(r chi.Router) {
		r.Get("/api/account/me", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer good" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(backend.Account{ID: 4, Username: "sari"})
		})
		r.Get("/api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		r.Get("/api/jobs/over-due-date", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		r.Put("/api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"title required"}`))
		})
		r.Delete("/api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
	})
	ctx := context.Background()

	acct, err := client.Me(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "sari", acct.Username)

	_, err = client.Me(ctx, "bad")
	assert.ErrorIs(t, err, backend.ErrUnauthorized)
	assert.ErrorIs(t, err, shared.ErrSessionExpired)

	_, err = client.GetJob(ctx, "good", 9)
	assert.ErrorIs(t, err, backend.ErrNotFound)

	_, err = client.OverdueJobs(ctx, "good")
	assert.ErrorIs(t, err, backend.ErrUnavailable)

	err = client.UpdateJob(ctx, "good", 1, backend.JobInput{})
	var apiErr *backend.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "title required", apiErr.Message)

	assert.ErrorIs(t, client.DeleteUser(ctx, "good", 3), backend.ErrForbidden)
}

func TestListJobsQuery(t *testing.T) {
	client := newServer(t, func(r chi.Router) {
		r.Get("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			assert.Equal(t, "pump", r.URL.Query().Get("search"))
			_ = json.NewEncoder(w).Encode([]backend.Job{{ID: 1, Title: "Fix pump"}})
		})
	})
	jobs, err := client.ListJobs(context.Background(), "t", backend.JobFilter{Page: 2, Search: "pump"})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Fix pump", jobs[0].Title)
}

func TestTransportFailure(t *testing.T) {
	client := backend.NewClient("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := client.ListCategories(context.Background(), "t")
	assert.ErrorIs(t, err, backend.ErrUnavailable)
}
