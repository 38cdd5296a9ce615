package authctx

import (
	"context"
	"errors"
)

// ErrNoProvider is returned when the auth state is read outside Provider.
var ErrNoProvider = errors.New("authctx: state read outside provider")

type stateContextKey struct{}

// WithState stores the state in context.
func WithState(ctx context.Context, s *State) context.Context {
	return context.WithValue(ctx, stateContextKey{}, s)
}

// FromContext returns the state installed by Provider.
func FromContext(ctx context.Context) (*State, error) {
	s, ok := ctx.Value(stateContextKey{}).(*State)
	if !ok || s == nil {
		return nil, ErrNoProvider
	}
	return s, nil
}

// MustFromContext is FromContext for code that cannot run without a provider.
func MustFromContext(ctx context.Context) *State {
	s, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return s
}
