package guard

import (
	"context"

	"github.com/sarathmodify/admin-dashboard/pkg/authstate"
)

type contextKey string

const (
	stateKey contextKey = "authState"
	storeKey contextKey = "authStore"
)

// WithState stores the guarded auth state in ctx
func WithState(ctx context.Context, st authstate.State) context.Context {
	return context.WithValue(ctx, stateKey, st)
}

// StateFromContext returns the auth state set by a route guard
func StateFromContext(ctx context.Context) (authstate.State, bool) {
	st, ok := ctx.Value(stateKey).(authstate.State)
	return st, ok
}

func WithStore(ctx context.Context, store *authstate.Store) context.Context {
	return context.WithValue(ctx, storeKey, store)
}

// StoreFromContext returns the session store set by a route guard
func StoreFromContext(ctx context.Context) (*authstate.Store, bool) {
	store, ok := ctx.Value(storeKey).(*authstate.Store)
	return store, ok && store != nil
}
