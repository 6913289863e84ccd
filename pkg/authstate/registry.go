package authstate

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	"github.com/sarathmodify/admin-dashboard/pkg/session"
)

// EventSource delivers auth state changes
type EventSource interface {
	OnAuthStateChange(fn backend.AuthListener) *session.Subscription
}

// RegistryConfig bounds the number and lifetime of live stores
type RegistryConfig struct {
	MaxSessions int
	IdleTTL     time.Duration
}

// Registry owns one Store per browser session, keyed by session ID
type Registry struct {
	resolver Resolver
	stores   *lru.LRU[string, *Store]
	sub      *session.Subscription
	mu       sync.Mutex
}

// NewRegistry creates a registry and subscribes it to source. Call Close on shutdown.
func NewRegistry(source EventSource, r Resolver, cfg RegistryConfig) *Registry {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1000
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}

	reg := &Registry{resolver: r}
	reg.stores = lru.NewLRU[string, *Store](cfg.MaxSessions, func(id string, s *Store) {
		slog.Debug("Closing auth state store", "session_id", id)
		s.Close()
	}, cfg.IdleTTL)
	reg.sub = source.OnAuthStateChange(reg.handle)
	return reg
}

// Get returns the store of session, creating and initializing it on first use
func (reg *Registry) Get(s *backend.Session) *Store {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if store, ok := reg.stores.Get(s.ID); ok {
		return store
	}
	store := New(reg.resolver)
	store.Init(s)
	reg.stores.Add(s.ID, store)
	return store
}

// Lookup returns the store of sessionID without creating one
func (reg *Registry) Lookup(sessionID string) (*Store, bool) {
	return reg.stores.Peek(sessionID)
}

// Len returns the number of live stores
func (reg *Registry) Len() int {
	return reg.stores.Len()
}

// RefreshUser re-resolves every live store of userID and returns how many were refreshed
func (reg *Registry) RefreshUser(userID uuid.UUID) int {
	return reg.refreshWhere(func(st State) bool {
		return st.Session != nil && st.Session.User.ID == userID
	})
}

// RefreshRole re-resolves every live store whose resolved role is roleID
func (reg *Registry) RefreshRole(roleID uuid.UUID) int {
	return reg.refreshWhere(func(st State) bool {
		return st.Role != nil && st.Role.ID == roleID
	})
}

func (reg *Registry) refreshWhere(match func(State) bool) int {
	n := 0
	for _, store := range reg.stores.Values() {
		if match(store.Snapshot()) {
			store.RefreshUser()
			n++
		}
	}
	return n
}

// Close unsubscribes from the event source and closes every store
func (reg *Registry) Close() {
	reg.sub.Unsubscribe()
	reg.stores.Purge()
}

func (reg *Registry) handle(event backend.AuthEvent, s *backend.Session) {
	if s == nil || s.ID == "" {
		return
	}

	switch event {
	case backend.EventSignedIn:
		reg.mu.Lock()
		store, ok := reg.stores.Get(s.ID)
		if !ok {
			store = New(reg.resolver)
			reg.stores.Add(s.ID, store)
		}
		reg.mu.Unlock()
		store.HandleAuthEvent(event, s)
	case backend.EventSignedOut:
		if store, ok := reg.stores.Peek(s.ID); ok {
			store.HandleAuthEvent(event, s)
			// removal closes the store through the eviction callback
			reg.stores.Remove(s.ID)
		}
	case backend.EventTokenRefreshed, backend.EventUserUpdated:
		if store, ok := reg.stores.Get(s.ID); ok {
			store.HandleAuthEvent(event, s)
		}
	}
}
