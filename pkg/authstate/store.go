// Package authstate holds the per-session auth state: the resolved user,
// role and permissions, and the lifecycle that keeps them current.
package authstate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	"github.com/sarathmodify/admin-dashboard/pkg/resolver"
)

// Phase is the lifecycle position of a Store
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseResolving
	PhaseReady
	PhaseLoggedOut
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseResolving:
		return "resolving"
	case PhaseReady:
		return "ready"
	case PhaseLoggedOut:
		return "logged_out"
	}
	return "unknown"
}

// State is a snapshot of the auth state. Role and Permissions are only
// trustworthy when Loading is false.
type State struct {
	Phase       Phase
	User        *resolver.UserProfile
	Role        *backend.Role
	Permissions []string
	Session     *backend.Session
	Loading     bool
	Error       error
}

// Resolver resolves a user's profile, role and permissions
type Resolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, email string) (resolver.Result, error)
}

// UserPatch is a shallow update of the resolved user. Empty fields are left untouched.
type UserPatch struct {
	FullName  string
	Phone     *string
	AvatarURL *string
}

// Store is the single writer of one session's auth state
type Store struct {
	resolver Resolver

	mu      sync.RWMutex
	state   State
	gen     uint64
	cancel  context.CancelFunc
	settled chan struct{}
	subs    map[int]func(State)
	nextSub int
	closed  bool
}

// New creates a store in the uninitialized, loading state
func New(r Resolver) *Store {
	return &Store{
		resolver: r,
		state: State{
			Phase:       PhaseUninitialized,
			Permissions: []string{},
			Loading:     true,
		},
		settled: make(chan struct{}),
		subs:    make(map[int]func(State)),
	}
}

// Init runs the mount-time session check. A nil session settles the store as logged out.
func (s *Store) Init(session *backend.Session) {
	if session == nil {
		s.reset()
		return
	}
	s.resolve(session)
}

// HandleAuthEvent applies an auth state change. Every event carrying a
// session re-resolves, token refreshes included.
func (s *Store) HandleAuthEvent(event backend.AuthEvent, session *backend.Session) {
	switch event {
	case backend.EventSignedOut:
		s.reset()
	case backend.EventSignedIn, backend.EventTokenRefreshed, backend.EventUserUpdated:
		if session == nil {
			s.reset()
			return
		}
		s.resolve(session)
	default:
		slog.Warn("Ignoring unknown auth event", "event", event)
	}
}

// RefreshUser re-runs resolution for the current session's user
func (s *Store) RefreshUser() {
	s.mu.RLock()
	session := s.state.Session
	s.mu.RUnlock()
	if session == nil {
		return
	}
	s.resolve(session)
}

// UpdateUser shallow-merges patch into the user. Role, permissions and session are untouched.
func (s *Store) UpdateUser(patch UserPatch) {
	s.mu.Lock()
	if s.closed || s.state.User == nil {
		s.mu.Unlock()
		return
	}
	user := *s.state.User
	if err := copier.CopyWithOption(&user, &patch, copier.Option{IgnoreEmpty: true}); err != nil {
		s.mu.Unlock()
		slog.Error("Failed to merge user patch", "err", err)
		return
	}
	s.state.User = &user
	snapshot, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, snapshot)
}

// Snapshot returns a deep copy of the current state
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Wait blocks until the store is not loading or ctx is done, and returns the state
func (s *Store) Wait(ctx context.Context) State {
	s.mu.RLock()
	settled := s.settled
	s.mu.RUnlock()

	select {
	case <-settled:
	case <-ctx.Done():
	}
	return s.Snapshot()
}

// Subscribe registers fn for every state change. The returned function is idempotent.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Close cancels any in-flight resolution and drops subscribers
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.subs = make(map[int]func(State))
	s.settleLocked()
}

func (s *Store) resolve(session *backend.Session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	gen := s.beginLocked()
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.state.Phase = PhaseResolving
	s.state.Session = session
	s.state.Loading = true
	s.state.Error = nil
	snapshot, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, snapshot)
	go s.run(ctx, gen, session)
}

func (s *Store) run(ctx context.Context, gen uint64, session *backend.Session) {
	res, err := s.resolver.Resolve(ctx, session.User.ID, session.User.Email)

	s.mu.Lock()
	if gen != s.gen || ctx.Err() != nil {
		s.mu.Unlock()
		slog.Debug("Discarding superseded resolution", "user_id", session.User.ID)
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = State{
		Phase:       PhaseReady,
		User:        res.User,
		Role:        res.Role,
		Permissions: nonNil(res.Permissions),
		Session:     session,
		Loading:     false,
		Error:       err,
	}
	s.settleLocked()
	snapshot, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, snapshot)
}

func (s *Store) reset() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.beginLocked()
	s.state = State{
		Phase:       PhaseLoggedOut,
		Permissions: []string{},
		Loading:     false,
	}
	s.settleLocked()
	snapshot, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, snapshot)
}

// beginLocked supersedes any in-flight resolution and returns the new generation
func (s *Store) beginLocked() uint64 {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	select {
	case <-s.settled:
		s.settled = make(chan struct{})
	default:
	}
	return s.gen
}

func (s *Store) settleLocked() {
	select {
	case <-s.settled:
	default:
		close(s.settled)
	}
}

func (s *Store) snapshotLocked() State {
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	if st.Role != nil {
		r := *st.Role
		st.Role = &r
	}
	if st.Session != nil {
		sess := *st.Session
		st.Session = &sess
	}
	st.Permissions = append([]string{}, st.Permissions...)
	return st
}

func (s *Store) subscribersLocked() []func(State) {
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(State), st State) {
	for _, fn := range subs {
		fn(st)
	}
}

func nonNil(perms []string) []string {
	if perms == nil {
		return []string{}
	}
	return perms
}
