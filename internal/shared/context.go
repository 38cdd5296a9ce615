package shared

import "context"

type storageContextKey struct{}

// ContextWithStorage stores the browser storage in context.
func ContextWithStorage(ctx context.Context, st *Storage) context.Context {
	return context.WithValue(ctx, storageContextKey{}, st)
}

// StorageFromContext extracts the browser storage from context.
func StorageFromContext(ctx context.Context) *Storage {
	st, _ := ctx.Value(storageContextKey{}).(*Storage)
	return st
}
