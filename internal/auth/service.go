package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/worktrack/worktrack/internal/authctx"
	"github.com/worktrack/worktrack/internal/backend"
	"github.com/worktrack/worktrack/internal/shared"
	"github.com/worktrack/worktrack/internal/token"
)

// ErrTokenRejected reports a freshly issued token that is already unusable.
var ErrTokenRejected = errors.New("auth: issued token is expired or malformed")

// Service wraps the sign-in, sign-up and sign-out rules.
type Service struct {
	backend   Backend
	validator *token.Validator
	cookieTTL time.Duration
	now       func() time.Time
}

// NewService constructs a new Service. cookieTTL is the fallback expiry for
// tokens without an exp claim when those are accepted.
func NewService(b Backend, validator *token.Validator, cookieTTL time.Duration) *Service {
	return &Service{backend: b, validator: validator, cookieTTL: cookieTTL, now: time.Now}
}

// SignIn validates credentials with the backend and loads the profile.
func (s *Service) SignIn(ctx context.Context, username, password string) (*SignedIn, error) {
	res, err := s.backend.SignIn(ctx, backend.Credentials{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	if s.validator.IsExpired(res.AccessToken) {
		return nil, ErrTokenRejected
	}

	expiresAt, err := s.validator.ExpiresAtMillis(res.AccessToken)
	if err != nil {
		if !errors.Is(err, token.ErrNoExpiry) {
			return nil, fmt.Errorf("%w: %v", ErrTokenRejected, err)
		}
		expiresAt = s.now().Add(s.cookieTTL).UnixMilli()
	}

	roles := s.validator.DecodeRoles(res.AccessToken)
	if roles.Len() == 0 {
		roles = token.NewRoleSet(res.Roles...)
	}

	acct, err := s.backend.Me(ctx, res.AccessToken)
	if err != nil {
		if errors.Is(err, shared.ErrSessionExpired) {
			return nil, ErrTokenRejected
		}
		return nil, fmt.Errorf("auth: load profile: %w", err)
	}

	return &SignedIn{
		Token:           res.AccessToken,
		ExpiresAtMillis: expiresAt,
		Roles:           roles,
		Profile: &authctx.Profile{
			ID:       acct.ID,
			Username: acct.Username,
			Email:    acct.Email,
			FullName: acct.FullName,
		},
	}, nil
}

// Register creates an account on the backend.
func (s *Service) Register(ctx context.Context, reg backend.Registration) error {
	return s.backend.SignUp(ctx, reg)
}

// SignOut revokes the token on the backend. Local state is the caller's.
func (s *Service) SignOut(ctx context.Context, bearer string) error {
	if bearer == "" {
		return nil
	}
	return s.backend.Logout(ctx, bearer)
}
