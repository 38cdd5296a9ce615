package members

import (
	"context"
	"sort"
	"strings"
)

// Service handles member management logic.
type Service struct {
	dir Directory
}

// NewService builds Service instance.
func NewService(dir Directory) *Service {
	return &Service{dir: dir}
}

// ListMembers returns all members ordered by username.
func (s *Service) ListMembers(ctx context.Context, bearer string) ([]Member, error) {
	members, err := s.dir.ListUsers(ctx, bearer)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(members, func(i, j int) bool {
		return strings.ToLower(members[i].Username) < strings.ToLower(members[j].Username)
	})
	return members, nil
}

// RemoveMember deletes member id on behalf of actorID.
func (s *Service) RemoveMember(ctx context.Context, bearer string, actorID, id int64) error {
	if actorID != 0 && actorID == id {
		return ErrSelfRemoval
	}
	return s.dir.DeleteUser(ctx, bearer, id)
}
