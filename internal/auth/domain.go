package auth

import (
	"context"

	"github.com/worktrack/worktrack/internal/authctx"
	"github.com/worktrack/worktrack/internal/backend"
	"github.com/worktrack/worktrack/internal/token"
)

// Backend is the part of the REST API the auth flows need.
type Backend interface {
	SignIn(ctx context.Context, creds backend.Credentials) (*backend.SignInResult, error)
	SignUp(ctx context.Context, reg backend.Registration) error
	Logout(ctx context.Context, bearer string) error
	Me(ctx context.Context, bearer string) (*backend.Account, error)
}

// SignedIn is everything the login flow stores after a successful sign-in.
type SignedIn struct {
	Token           string
	ExpiresAtMillis int64
	Roles           token.RoleSet
	Profile         *authctx.Profile
}

var _ Backend = (*backend.Client)(nil)
