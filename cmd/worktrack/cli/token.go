package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/worktrack/worktrack/internal/token"
)

// TokenReport is what Inspect learns from a session token without a backend.
type TokenReport struct {
	Subject   string
	Roles     []string
	ExpiresAt time.Time
	HasExpiry bool
	Expired   bool
	IsAdmin   bool
}

// TokenCLI inspects session tokens the same way the web process does.
type TokenCLI struct {
	validator *token.Validator
}

// NewTokenCLI builds a TokenCLI around validator.
func NewTokenCLI(validator *token.Validator) *TokenCLI {
	return &TokenCLI{validator: validator}
}

// Inspect decodes raw and evaluates expiry and roles.
func (c *TokenCLI) Inspect(raw string) (*TokenReport, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if raw == "" {
		return nil, errors.New("token cli: empty token")
	}
	claims, err := c.validator.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("token cli: %w", err)
	}
	roles := c.validator.DecodeRoles(raw)
	report := &TokenReport{
		Subject: claims.Subject,
		Roles:   roles.Slice(),
		Expired: c.validator.IsExpired(raw),
		IsAdmin: roles.Has(token.RoleAdmin),
	}
	if ms, err := c.validator.ExpiresAtMillis(raw); err == nil {
		report.ExpiresAt = time.UnixMilli(ms).UTC()
		report.HasExpiry = true
	}
	return report, nil
}

// Print writes report in a human readable form.
func (r *TokenReport) Print(w io.Writer) {
	fmt.Fprintf(w, "subject:  %s\n", r.Subject)
	fmt.Fprintf(w, "roles:    %s\n", strings.Join(r.Roles, ", "))
	if r.HasExpiry {
		fmt.Fprintf(w, "expires:  %s\n", r.ExpiresAt.Format(time.RFC3339))
	} else {
		fmt.Fprintln(w, "expires:  (no exp claim)")
	}
	fmt.Fprintf(w, "expired:  %t\n", r.Expired)
	fmt.Fprintf(w, "admin:    %t\n", r.IsAdmin)
}
