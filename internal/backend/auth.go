package backend

import (
	"context"
	"errors"
	"net/http"

	"github.com/worktrack/worktrack/internal/shared"
)

// Credentials is the sign-in payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignInResult is the sign-in answer.
type SignInResult struct {
	AccessToken string   `json:"accessToken"`
	TokenType   string   `json:"tokenType,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// Registration is the sign-up payload.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

// Account is the profile of the token owner.
type Account struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

// SignIn exchanges credentials for a session token.
func (c *Client) SignIn(ctx context.Context, creds Credentials) (*SignInResult, error) {
	var out SignInResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/signin", "", creds, &out); err != nil {
		var apiErr *APIError
		if errors.Is(err, ErrUnauthorized) || (errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, shared.ErrInvalidCredentials
	}
	return &out, nil
}

// SignUp registers a new account.
func (c *Client) SignUp(ctx context.Context, reg Registration) error {
	return c.do(ctx, http.MethodPost, "/api/auth/signup", "", reg, nil)
}

// Logout revokes the token on the backend.
func (c *Client) Logout(ctx context.Context, bearer string) error {
	return c.do(ctx, http.MethodDelete, "/api/auth/logout", bearer, nil, nil)
}

// Me returns the account owning bearer.
func (c *Client) Me(ctx context.Context, bearer string) (*Account, error) {
	var out Account
	if err := c.do(ctx, http.MethodGet, "/api/account/me", bearer, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
