package token

import (
	"encoding/json"
	"slices"
	"strings"
)

// Well-known role labels issued by the backend.
const (
	RoleAdmin = "ROLE_ADMIN"
	RoleUser  = "ROLE_USER"
)

// RoleSet is an unordered set of role labels.
type RoleSet map[string]struct{}

// NewRoleSet builds a RoleSet, skipping blank entries.
func NewRoleSet(roles ...string) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		set[r] = struct{}{}
	}
	return set
}

// Has reports whether role is in the set. Safe on a nil set.
func (s RoleSet) Has(role string) bool {
	_, ok := s[role]
	return ok
}

// Len returns the number of roles.
func (s RoleSet) Len() int {
	return len(s)
}

// Slice returns the roles sorted.
func (s RoleSet) Slice() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// RoleList is the roles claim as carried in the token payload. Anything other
// than an array decodes to an empty list, and non-string entries are skipped,
// so a bad roles claim never fails the whole token.
type RoleList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *RoleList) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		*l = RoleList{}
		return nil
	}
	out := make(RoleList, 0, len(items))
	for _, item := range items {
		var role string
		if json.Unmarshal(item, &role) == nil {
			out = append(out, role)
		}
	}
	*l = out
	return nil
}
