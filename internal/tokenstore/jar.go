// Package tokenstore keeps the bearer token in the browser cookie jar.
//
// The cookie copy is authoritative. Every write is also mirrored into the
// browser storage for compatibility with pages that read it there; the mirror
// is best effort and is never consulted by the route guard.
package tokenstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Cookie and storage keys shared with the browser.
const (
	KeyAccessToken = "accessToken"
	KeyExpiresAt   = "accessTokenExpiresAt"
	KeyUserRoles   = "userRoles"
)

// DefaultTTL bounds the lifetime of every token cookie.
const DefaultTTL = 24 * time.Hour

// Mirror is the secondary, derived copy of the token.
type Mirror interface {
	Set(key, value string)
	Delete(key string)
}

// Options configures cookie attributes.
type Options struct {
	TTL    time.Duration
	Secure bool
}

// Jar reads token cookies from one request and writes them to its response.
// A nil Jar, or one without a request or writer, is inert.
type Jar struct {
	w       http.ResponseWriter
	r       *http.Request
	mirror  Mirror
	opts    Options
	pending map[string]*http.Cookie
}

// New binds a Jar to a request/response pair. mirror may be nil.
func New(w http.ResponseWriter, r *http.Request, mirror Mirror, opts Options) *Jar {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Jar{w: w, r: r, mirror: mirror, opts: opts, pending: make(map[string]*http.Cookie)}
}

func (j *Jar) available() bool {
	return j != nil && j.w != nil && j.r != nil
}

// Set stores the token and its expiry in epoch milliseconds.
func (j *Jar) Set(token string, expiresAtMillis int64) {
	if !j.available() {
		return
	}
	expires := strconv.FormatInt(expiresAtMillis, 10)
	j.write(KeyAccessToken, token)
	j.write(KeyExpiresAt, expires)
	if j.mirror != nil {
		j.mirror.Set(KeyAccessToken, token)
		j.mirror.Set(KeyExpiresAt, expires)
	}
}

// SetRoles caches the role list as a JSON array cookie. The JSON is
// query-escaped so its quotes survive cookie serialisation.
func (j *Jar) SetRoles(roles []string) {
	if !j.available() {
		return
	}
	if roles == nil {
		roles = []string{}
	}
	data, err := json.Marshal(roles)
	if err != nil {
		return
	}
	j.write(KeyUserRoles, url.QueryEscape(string(data)))
}

// Get returns the token, if any.
func (j *Jar) Get() (string, bool) {
	return j.read(KeyAccessToken)
}

// ExpiresAt returns the stored expiry in epoch milliseconds.
func (j *Jar) ExpiresAt() (int64, bool) {
	raw, ok := j.read(KeyExpiresAt)
	if !ok {
		return 0, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}

// Roles returns the cached role list. Undecodable values read as absent.
func (j *Jar) Roles() ([]string, bool) {
	raw, ok := j.read(KeyUserRoles)
	if !ok {
		return nil, false
	}
	return decodeRoles(raw)
}

func decodeRoles(raw string) ([]string, bool) {
	unescaped, err := url.QueryUnescape(raw)
	if err != nil {
		return nil, false
	}
	var roles []string
	if err := json.Unmarshal([]byte(unescaped), &roles); err != nil {
		return nil, false
	}
	return roles, true
}

// Clear removes the token, its expiry and the role cache from both copies.
func (j *Jar) Clear() {
	if !j.available() {
		return
	}
	for _, key := range []string{KeyAccessToken, KeyExpiresAt, KeyUserRoles} {
		j.expire(key)
	}
	if j.mirror != nil {
		j.mirror.Delete(KeyAccessToken)
		j.mirror.Delete(KeyExpiresAt)
	}
}

func (j *Jar) write(name, value string) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(j.opts.TTL / time.Second),
		Expires:  time.Now().Add(j.opts.TTL),
		HttpOnly: true,
		Secure:   j.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	j.pending[name] = c
	http.SetCookie(j.w, c)
}

func (j *Jar) expire(name string) {
	c := &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   j.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	j.pending[name] = c
	http.SetCookie(j.w, c)
}

func (j *Jar) read(name string) (string, bool) {
	if !j.available() {
		return "", false
	}
	if c, ok := j.pending[name]; ok {
		if c.MaxAge < 0 || c.Value == "" {
			return "", false
		}
		return c.Value, true
	}
	c, err := j.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

type jarContextKey struct{}

// ContextWithJar stores the jar in context.
func ContextWithJar(ctx context.Context, j *Jar) context.Context {
	return context.WithValue(ctx, jarContextKey{}, j)
}

// FromContext extracts the jar from context; nil when absent, which is inert.
func FromContext(ctx context.Context) *Jar {
	j, _ := ctx.Value(jarContextKey{}).(*Jar)
	return j
}

// TokenFromRequest reads the token cookie without binding a Jar.
func TokenFromRequest(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	c, err := r.Cookie(KeyAccessToken)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
