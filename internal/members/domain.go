package members

import (
	"context"
	"errors"

	"github.com/worktrack/worktrack/internal/backend"
)

// ErrSelfRemoval is returned when an administrator tries to remove themself.
var ErrSelfRemoval = errors.New("members: cannot remove own account")

// Member is a staff account as shown on the members page.
type Member = backend.User

// Directory defines the backend calls for staff records.
type Directory interface {
	ListUsers(ctx context.Context, bearer string) ([]backend.User, error)
	DeleteUser(ctx context.Context, bearer string, id int64) error
}

var _ Directory = (*backend.Client)(nil)
