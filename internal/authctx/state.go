// Package authctx holds the authentication state shared by every page
// rendered for a browser: the current user, its roles, and logout.
package authctx

import (
	"encoding/json"
	"sync"

	"github.com/worktrack/worktrack/internal/shared"
	"github.com/worktrack/worktrack/internal/token"
)

// StorageKeyUser is the browser storage key holding the cached profile.
const StorageKeyUser = "user"

// Profile is the cached account profile of the signed-in user.
type Profile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName,omitempty"`
}

// DisplayName returns the best human readable name.
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.FullName != "" {
		return p.FullName
	}
	return p.Username
}

// ProfileStore persists the cached profile.
type ProfileStore interface {
	LoadProfile() (*Profile, bool)
	SaveProfile(p *Profile)
	RemoveProfile()
}

// TokenClearer drops the stored session token.
type TokenClearer interface {
	Clear()
}

// State is the authentication state for one browser. Setters never fail.
type State struct {
	mu       sync.RWMutex
	user     *Profile
	roles    token.RoleSet
	profiles ProfileStore
	tokens   TokenClearer
}

// New hydrates a State from the profile store. Roles start empty; they are
// populated explicitly by whoever knows the session token.
func New(profiles ProfileStore, tokens TokenClearer) *State {
	s := &State{profiles: profiles, tokens: tokens}
	if profiles != nil {
		if p, ok := profiles.LoadProfile(); ok {
			s.user = p
		}
	}
	return s
}

// User returns the cached profile or nil.
func (s *State) User() *Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Roles returns the in-memory role set, nil when unknown.
func (s *State) Roles() token.RoleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roles
}

// IsAuthenticated reports whether a user is cached. Token expiry is checked
// by Guard at the call sites that act on the session.
func (s *State) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// HasRole reports whether the current roles include role.
func (s *State) HasRole(role string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roles.Has(role)
}

// IsAdmin reports whether the current roles include the admin role.
func (s *State) IsAdmin() bool {
	return s.HasRole(token.RoleAdmin)
}

// SetUser replaces the cached profile and mirrors it to storage.
func (s *State) SetUser(p *Profile) {
	s.mu.Lock()
	s.user = p
	s.mu.Unlock()
	if s.profiles == nil {
		return
	}
	if p == nil {
		s.profiles.RemoveProfile()
		return
	}
	s.profiles.SaveProfile(p)
}

// SetRoles replaces the in-memory roles. Storage is not touched.
func (s *State) SetRoles(roles token.RoleSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles = roles
}

// Logout clears the user, the roles and the stored token. Redirecting is the
// caller's job.
func (s *State) Logout() {
	s.SetUser(nil)
	s.SetRoles(nil)
	if s.tokens != nil {
		s.tokens.Clear()
	}
}

// StorageProfiles adapts browser storage to ProfileStore.
type StorageProfiles struct {
	Storage *shared.Storage
}

// LoadProfile decodes the cached profile; corrupt entries read as absent.
func (sp StorageProfiles) LoadProfile() (*Profile, bool) {
	raw := sp.Storage.Get(StorageKeyUser)
	if raw == "" {
		return nil, false
	}
	var p Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, false
	}
	return &p, true
}

// SaveProfile stores the profile as JSON.
func (sp StorageProfiles) SaveProfile(p *Profile) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	sp.Storage.Set(StorageKeyUser, string(data))
}

// RemoveProfile deletes the cached profile.
func (sp StorageProfiles) RemoveProfile() {
	sp.Storage.Delete(StorageKeyUser)
}
