// Package token inspects session tokens issued by the backend without a
// network round trip.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed reports a token whose payload cannot be decoded.
	ErrMalformed = errors.New("token: malformed")
	// ErrNoExpiry reports a token without an exp claim.
	ErrNoExpiry = errors.New("token: missing exp claim")
)

// Claims is the decoded payload of a session token.
type Claims struct {
	jwt.RegisteredClaims

	Roles RoleList `json:"roles,omitempty"`
}

// Options tunes the Validator.
type Options struct {
	// RequireExp treats tokens without an exp claim as expired.
	RequireExp bool
	// Leeway absorbs clock skew against the issuer.
	Leeway time.Duration
	// VerifyKey enables HMAC signature checks. Empty means payload-only decoding;
	// the backend still verifies every token it receives.
	VerifyKey []byte
	// Now overrides the wall clock, mainly for tests.
	Now func() time.Time
}

// Validator decodes tokens and answers expiry and role questions.
type Validator struct {
	opts   Options
	parser *jwt.Parser
}

// NewValidator constructs a Validator.
func NewValidator(opts Options) *Validator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512", "RS256", "RS384", "RS512", "ES256", "ES384", "EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	return &Validator{opts: opts, parser: parser}
}

// Decode returns the token claims. Expiry is not judged here.
func (v *Validator) Decode(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMalformed
	}
	claims := &Claims{}
	if len(v.opts.VerifyKey) == 0 {
		if _, _, err := v.parser.ParseUnverified(raw, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return claims, nil
	}
	_, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return v.opts.VerifyKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return claims, nil
}

// ExpiresAtMillis returns the exp claim in epoch milliseconds.
func (v *Validator) ExpiresAtMillis(raw string) (int64, error) {
	claims, err := v.Decode(raw)
	if err != nil {
		return 0, err
	}
	if claims.ExpiresAt == nil {
		return 0, ErrNoExpiry
	}
	return claims.ExpiresAt.Unix() * 1000, nil
}

// IsExpired reports whether the token can no longer be used. Absent and
// undecodable tokens are expired.
func (v *Validator) IsExpired(raw string) bool {
	exp, err := v.ExpiresAtMillis(raw)
	if err != nil {
		if errors.Is(err, ErrNoExpiry) {
			return v.opts.RequireExp
		}
		return true
	}
	now := v.opts.Now().Add(-v.opts.Leeway).UnixMilli()
	return now >= exp
}

// DecodeRoles returns the roles claim, or an empty set on any failure.
func (v *Validator) DecodeRoles(raw string) (roles RoleSet) {
	defer func() {
		if recover() != nil {
			roles = RoleSet{}
		}
	}()
	claims, err := v.Decode(raw)
	if err != nil {
		return RoleSet{}
	}
	return NewRoleSet(claims.Roles...)
}
