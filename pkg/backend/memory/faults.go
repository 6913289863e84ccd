package memory

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
)

// Operation names accepted by Faults
const (
	OpGetProfile             = "profiles.get"
	OpCreateProfile          = "profiles.create"
	OpUpdateProfile          = "profiles.update"
	OpGetUserRole            = "user_roles.get"
	OpDeleteUserRoles        = "user_roles.delete"
	OpInsertUserRole         = "user_roles.insert"
	OpListRolePermissions    = "role_permissions.list"
	OpReplaceRolePermissions = "role_permissions.replace"
	OpFetchUserAccess        = "user_access.fetch"
	OpUpload                 = "storage.upload"
)

type fault struct {
	kind  apperrors.Kind
	fail  bool
	delay time.Duration
	once  bool
}

// Faults injects classified failures and latency into repository operations.
// A zero Faults injects nothing.
type Faults struct {
	mu     sync.Mutex
	byOp   map[string]fault
	counts map[string]int
}

// FailOn makes every call to op fail with kind until Clear is called
func (f *Faults) FailOn(op string, kind apperrors.Kind) {
	f.set(op, fault{kind: kind, fail: true})
}

// FailOnce makes the next call to op fail with kind
func (f *Faults) FailOnce(op string, kind apperrors.Kind) {
	f.set(op, fault{kind: kind, fail: true, once: true})
}

// Delay makes every call to op wait d before proceeding. A caller whose
// context expires first gets KindTimeout.
func (f *Faults) Delay(op string, d time.Duration) {
	f.set(op, fault{delay: d})
}

// Clear removes all injected faults
func (f *Faults) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byOp = nil
}

// Calls returns how many times op was invoked
func (f *Faults) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[op]
}

func (f *Faults) set(op string, ft fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byOp == nil {
		f.byOp = make(map[string]fault)
	}
	f.byOp[op] = ft
}

// apply must be called without holding the repository lock
func (f *Faults) apply(ctx context.Context, op string) error {
	f.mu.Lock()
	if f.counts == nil {
		f.counts = make(map[string]int)
	}
	f.counts[op]++
	ft, ok := f.byOp[op]
	if ok && ft.once {
		delete(f.byOp, op)
	}
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return classifyContext(err, op)
	}
	if !ok {
		return nil
	}

	if ft.delay > 0 {
		timer := time.NewTimer(ft.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return classifyContext(ctx.Err(), op)
		}
	}

	if ft.fail {
		return apperrors.Newf(ft.kind, "injected failure on %s", op)
	}
	return nil
}

func classifyContext(err error, op string) error {
	if err == context.DeadlineExceeded {
		return apperrors.Wrapf(err, apperrors.KindTimeout, "%s timed out", op)
	}
	return apperrors.Wrapf(err, apperrors.KindUnknown, "%s cancelled", op)
}
