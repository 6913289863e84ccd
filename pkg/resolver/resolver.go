// Package resolver computes a user's profile, role and effective permission
// set from the relational backend.
//
// The joined single-query path is tried first. When the backend lacks the
// joins, or the joined read fails for a reason other than access denial or
// timeout, resolution falls back to three sequential queries: profile, role,
// role permissions. Both paths produce the same Result shape.
//
// Access-denied and timeout failures never surface as errors: the user gets a
// synthesized profile with no role and no permissions so the shell stays usable.
package resolver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
)

// Resolution paths and outcomes reported to the Recorder
const (
	PathJoined     = "joined"
	PathSequential = "sequential"

	OutcomeResolved    = "resolved"
	OutcomeProvisioned = "provisioned"
	OutcomeDegraded    = "degraded"
	OutcomeNoRole      = "no_role"
	OutcomeFailed      = "failed"
)

// UserProfile is the resolved user: auth identity plus profile attributes
type UserProfile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Phone     *string   `json:"phone"`
	AvatarURL *string   `json:"avatar_url"`
}

// Result is the outcome of a resolution
type Result struct {
	User        *UserProfile  `json:"user"`
	Role        *backend.Role `json:"role"`
	Permissions []string      `json:"permissions"`
}

// Recorder observes resolution outcomes
type Recorder interface {
	ObserveResolution(path, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveResolution(string, string) {}

// Config bounds the individual queries
type Config struct {
	ProfileTimeout    time.Duration
	RoleTimeout       time.Duration
	PermissionTimeout time.Duration
}

// DefaultConfig returns the default query timeouts
func DefaultConfig() Config {
	return Config{
		ProfileTimeout:    time.Second,
		RoleTimeout:       time.Second,
		PermissionTimeout: time.Second,
	}
}

// Resolver resolves users against a relational backend
type Resolver struct {
	repo     backend.Relational
	cfg      Config
	recorder Recorder
}

// Option configures the Resolver
type Option func(*Resolver)

// WithConfig overrides the query timeouts. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(r *Resolver) {
		if cfg.ProfileTimeout > 0 {
			r.cfg.ProfileTimeout = cfg.ProfileTimeout
		}
		if cfg.RoleTimeout > 0 {
			r.cfg.RoleTimeout = cfg.RoleTimeout
		}
		if cfg.PermissionTimeout > 0 {
			r.cfg.PermissionTimeout = cfg.PermissionTimeout
		}
	}
}

// WithRecorder reports outcomes to rec
func WithRecorder(rec Recorder) Option {
	return func(r *Resolver) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// New creates a Resolver
func New(repo backend.Relational, opts ...Option) *Resolver {
	r := &Resolver{
		repo:     repo,
		cfg:      DefaultConfig(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve produces the profile, role and permissions of userID.
//
// The returned Result is always usable. A non-nil error means either ctx was
// cancelled (the Result is then empty and must be discarded) or the profile
// could not be read or provisioned for a reason other than access denial or
// timeout, in which case Result holds the synthesized fallback.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID, email string) (Result, error) {
	qctx, cancel := context.WithTimeout(ctx, r.cfg.ProfileTimeout)
	access, err := r.repo.FetchUserAccess(qctx, userID)
	cancel()
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	if err == nil {
		res := Result{
			User:        newUserProfile(access.Profile, email),
			Role:        access.Role,
			Permissions: flatten(access.Grants),
		}
		if res.Role == nil {
			res.Permissions = []string{}
			r.recorder.ObserveResolution(PathJoined, OutcomeNoRole)
		} else {
			r.recorder.ObserveResolution(PathJoined, OutcomeResolved)
		}
		return res, nil
	}

	kind := apperrors.KindOf(err)
	if apperrors.IsDegradable(kind) {
		slog.Warn("Joined access query degraded", "user_id", userID, "kind", kind, "err", err)
		r.recorder.ObserveResolution(PathJoined, OutcomeDegraded)
		return synthesized(userID, email), nil
	}

	switch kind {
	case apperrors.KindMissingRelationship:
		slog.Debug("Backend lacks joins, using sequential resolution", "user_id", userID)
	case apperrors.KindNotFound:
		slog.Debug("No profile on joined path", "user_id", userID)
	default:
		slog.Warn("Joined access query failed, using sequential resolution", "user_id", userID, "kind", kind, "err", err)
	}
	return r.resolveSequential(ctx, userID, email)
}

func (r *Resolver) resolveSequential(ctx context.Context, userID uuid.UUID, email string) (Result, error) {
	profile, provisioned, err := r.loadProfile(ctx, userID, email)
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if err != nil {
		kind := apperrors.KindOf(err)
		if apperrors.IsDegradable(kind) {
			slog.Warn("Profile query degraded", "user_id", userID, "kind", kind, "err", err)
			r.recorder.ObserveResolution(PathSequential, OutcomeDegraded)
			return synthesized(userID, email), nil
		}
		slog.Error("Profile resolution failed", "user_id", userID, "kind", kind, "err", err)
		r.recorder.ObserveResolution(PathSequential, OutcomeFailed)
		return synthesized(userID, email), err
	}

	res := Result{
		User:        newUserProfile(profile, email),
		Permissions: []string{},
	}

	qctx, cancel := context.WithTimeout(ctx, r.cfg.RoleTimeout)
	role, err := r.repo.GetUserRole(qctx, userID)
	cancel()
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if err != nil {
		if kind := apperrors.KindOf(err); kind != apperrors.KindNotFound {
			slog.Warn("Role query failed", "user_id", userID, "kind", kind, "err", err)
		}
		r.observeSequential(provisioned, OutcomeNoRole)
		return res, nil
	}

	qctx, cancel = context.WithTimeout(ctx, r.cfg.PermissionTimeout)
	grants, err := r.repo.ListRolePermissions(qctx, role.ID)
	cancel()
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if err != nil {
		// a role whose permissions cannot be read is treated as no role at all
		slog.Warn("Role permission query failed", "user_id", userID, "role", role.Name, "kind", apperrors.KindOf(err), "err", err)
		r.observeSequential(provisioned, OutcomeNoRole)
		return res, nil
	}

	res.Role = &role
	res.Permissions = flatten(grants)
	r.observeSequential(provisioned, OutcomeResolved)
	return res, nil
}

func (r *Resolver) observeSequential(provisioned bool, outcome string) {
	if provisioned {
		outcome = OutcomeProvisioned
	}
	r.recorder.ObserveResolution(PathSequential, outcome)
}

// loadProfile reads the profile, provisioning it once when missing
func (r *Resolver) loadProfile(ctx context.Context, userID uuid.UUID, email string) (backend.Profile, bool, error) {
	profile, err := r.getProfile(ctx, userID)
	if err == nil || apperrors.KindOf(err) != apperrors.KindNotFound {
		return profile, false, err
	}

	slog.Info("Provisioning missing profile", "user_id", userID)
	qctx, cancel := context.WithTimeout(ctx, r.cfg.ProfileTimeout)
	_, err = r.repo.CreateProfile(qctx, backend.CreateProfileParams{ID: userID, FullName: LocalPart(email)})
	cancel()
	// a concurrent resolution may have created it first
	if err != nil && apperrors.KindOf(err) != apperrors.KindValidation {
		return backend.Profile{}, false, err
	}

	profile, err = r.getProfile(ctx, userID)
	return profile, err == nil, err
}

func (r *Resolver) getProfile(ctx context.Context, userID uuid.UUID) (backend.Profile, error) {
	qctx, cancel := context.WithTimeout(ctx, r.cfg.ProfileTimeout)
	defer cancel()
	return r.repo.GetProfile(qctx, userID)
}

// LocalPart returns the part of email before the last '@'
func LocalPart(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

func newUserProfile(p backend.Profile, email string) *UserProfile {
	return &UserProfile{
		ID:        p.ID,
		Email:     email,
		FullName:  p.FullName,
		Phone:     p.Phone,
		AvatarURL: p.AvatarURL,
	}
}

func synthesized(userID uuid.UUID, email string) Result {
	return Result{
		User: &UserProfile{
			ID:       userID,
			Email:    email,
			FullName: LocalPart(email),
		},
		Permissions: []string{},
	}
}

// flatten keeps named grants in order. Duplicates are kept.
func flatten(grants []backend.Grant) []string {
	names := make([]string, 0, len(grants))
	for _, g := range grants {
		if g.Name == nil || *g.Name == "" {
			continue
		}
		names = append(names, *g.Name)
	}
	return names
}
