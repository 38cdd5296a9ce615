package shared

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"path"

	"github.com/google/uuid"
)

const (
	// CSRFStorageKey holds the per-browser seed every form token derives from.
	CSRFStorageKey = "csrf_seed"
	// CSRFFormField is the form field name carrying the CSRF token.
	CSRFFormField = "csrf_token"
	// CSRFHeader carries the token on script-driven posts.
	CSRFHeader = "X-CSRF-Token"
)

// CSRFManager derives per-form tokens. A token signs the browser storage id,
// a random seed kept in that storage and the path the form posts to, so a
// token taken from one form does not verify against another.
type CSRFManager struct {
	secret []byte
}

// NewCSRFManager returns a CSRFManager using the provided secret key.
func NewCSRFManager(secret string) *CSRFManager {
	return &CSRFManager{secret: []byte(secret)}
}

// Prepare seeds the browser storage. It must run before the response header
// is written, otherwise the seed is not committed with the page.
func (m *CSRFManager) Prepare(st *Storage) error {
	if st == nil {
		return ErrCSRFTokenMissing
	}
	if st.Get(CSRFStorageKey) == "" {
		st.Set(CSRFStorageKey, uuid.NewString())
	}
	return nil
}

// TokenFor returns the token for a form posting to action. It is empty when
// the storage is unavailable or was never prepared.
func (m *CSRFManager) TokenFor(st *Storage, action string) string {
	if m == nil || st == nil {
		return ""
	}
	seed := st.Get(CSRFStorageKey)
	if seed == "" {
		return ""
	}
	return m.sign(st.ID, seed, action)
}

// Verify checks a token submitted to action.
func (m *CSRFManager) Verify(st *Storage, action, token string) error {
	if token == "" {
		return ErrCSRFTokenMissing
	}
	expected := m.TokenFor(st, action)
	if expected == "" {
		return ErrCSRFTokenMissing
	}
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return ErrCSRFTokenMismatch
	}
	return nil
}

func (m *CSRFManager) sign(storageID, seed, action string) string {
	mac := hmac.New(sha256.New, m.secret)
	for _, part := range []string{storageID, seed, path.Clean("/" + action)} {
		_, _ = mac.Write([]byte(part))
		_, _ = mac.Write([]byte{0})
	}
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
