// Package routeguard decides, before any page handler runs, whether a
// navigation may proceed or must be redirected.
package routeguard

import (
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/worktrack/worktrack/internal/token"
	"github.com/worktrack/worktrack/internal/tokenstore"
)

// Class partitions request paths.
type Class int

const (
	ClassPublic Class = iota
	ClassPrivate
	ClassAuthOnly
)

func (c Class) String() string {
	switch c {
	case ClassPrivate:
		return "private"
	case ClassAuthOnly:
		return "auth_only"
	default:
		return "public"
	}
}

// Rules is the static path classification.
type Rules struct {
	PrivatePrefixes []string
	PrivateShapes   []*regexp.Regexp
	AdminPrefixes   []string
	AuthOnlyPaths   []string
	AdminRole       string

	LoginPath   string
	HomePath    string
	LandingPath string
}

var jobEditShape = regexp.MustCompile(`^/jobs/\d+/edit/?$`)

// DefaultRules returns the application's route table.
func DefaultRules() Rules {
	return Rules{
		PrivatePrefixes: []string{"/jobs/list", "/jobs/over-due-date", "/jobs/new", "/members"},
		PrivateShapes:   []*regexp.Regexp{jobEditShape},
		AdminPrefixes:   []string{"/members"},
		AuthOnlyPaths:   []string{"/login", "/register"},
		AdminRole:       token.RoleAdmin,
		LoginPath:       "/login",
		HomePath:        "/",
		LandingPath:     "/jobs/over-due-date",
	}
}

// Outcomes reported to the Recorder.
const (
	OutcomeAllow           = "allow"
	OutcomeRedirectLogin   = "redirect_login"
	OutcomeRedirectHome    = "redirect_home"
	OutcomeRedirectLanding = "redirect_landing"
)

// Decision is the outcome for one navigation.
type Decision struct {
	Class    Class
	Outcome  string
	Redirect string
	Reason   string
}

// Allowed reports whether the navigation proceeds unmodified.
func (d Decision) Allowed() bool {
	return d.Redirect == ""
}

// Recorder observes guard decisions.
type Recorder interface {
	GuardDecision(class, outcome string)
}

// Guard applies Rules. It keeps no per-request state.
type Guard struct {
	rules     Rules
	validator *token.Validator
	logger    *slog.Logger
	recorder  Recorder
}

// New constructs a Guard. logger and recorder may be nil.
func New(rules Rules, validator *token.Validator, logger *slog.Logger, recorder Recorder) *Guard {
	return &Guard{rules: rules, validator: validator, logger: logger, recorder: recorder}
}

// Classify places path into exactly one class.
func (g *Guard) Classify(path string) Class {
	for _, prefix := range g.rules.PrivatePrefixes {
		if strings.HasPrefix(path, prefix) {
			return ClassPrivate
		}
	}
	for _, shape := range g.rules.PrivateShapes {
		if shape.MatchString(path) {
			return ClassPrivate
		}
	}
	for _, p := range g.rules.AuthOnlyPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return ClassAuthOnly
		}
	}
	return ClassPublic
}

// Decide evaluates one navigation from the path and the inbound token.
func (g *Guard) Decide(path, raw string, present bool) Decision {
	class := g.Classify(path)
	switch class {
	case ClassPrivate:
		if !present {
			return Decision{Class: class, Outcome: OutcomeRedirectLogin, Redirect: g.rules.LoginPath, Reason: "no token"}
		}
		if g.isAdminPath(path) {
			if err := g.requireAdmin(raw); err != nil {
				return Decision{Class: class, Outcome: OutcomeRedirectHome, Redirect: g.rules.HomePath, Reason: err.Error()}
			}
		}
	case ClassAuthOnly:
		if present {
			return Decision{Class: class, Outcome: OutcomeRedirectLanding, Redirect: g.rules.LandingPath, Reason: "already signed in"}
		}
	}
	return Decision{Class: class, Outcome: OutcomeAllow}
}

// Middleware enforces Decide on every request. The cookie jar is the only
// token source it reads.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, present := tokenstore.TokenFromRequest(r)
		d := g.Decide(r.URL.Path, raw, present)
		if g.recorder != nil {
			g.recorder.GuardDecision(d.Class.String(), d.Outcome)
		}
		if d.Allowed() {
			next.ServeHTTP(w, r)
			return
		}
		if g.logger != nil {
			g.logger.Debug("route guard redirect",
				slog.String("path", r.URL.Path),
				slog.String("to", d.Redirect),
				slog.String("reason", d.Reason))
		}
		http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
	})
}

func (g *Guard) isAdminPath(path string) bool {
	for _, prefix := range g.rules.AdminPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// requireAdmin is the explicit deny branch: decode failures, including a
// panicking decoder, deny the same way a missing role does.
func (g *Guard) requireAdmin(raw string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("decode roles: %v", rec)
		}
	}()
	if _, err := g.validator.Decode(raw); err != nil {
		return err
	}
	if !g.validator.DecodeRoles(raw).Has(g.rules.AdminRole) {
		return fmt.Errorf("missing role %s", g.rules.AdminRole)
	}
	return nil
}
