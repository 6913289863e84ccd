package admin

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
)

// Matrix is the in-memory role x permission grid of the editor.
//
// Toggle flips a cell before persisting, so readers see the new value
// immediately. The persisted write replaces the role's full permission set,
// and a failed write puts the cell back.
type Matrix struct {
	svc *Service

	mu     sync.RWMutex
	grants map[uuid.UUID][]uuid.UUID
}

// LoadMatrix reads the permission set of every role
func (s *Service) LoadMatrix(ctx context.Context) (*Matrix, error) {
	grants, err := s.RolePermissionsMap(ctx)
	if err != nil {
		return nil, err
	}
	return &Matrix{svc: s, grants: grants}, nil
}

// Has reports whether roleID currently holds permissionID
func (m *Matrix) Has(roleID, permissionID uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return indexOf(m.grants[roleID], permissionID) >= 0
}

// Snapshot returns a copy of the grid
func (m *Matrix) Snapshot() map[uuid.UUID][]uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[uuid.UUID][]uuid.UUID, len(m.grants))
	for roleID, ids := range m.grants {
		out[roleID] = append([]uuid.UUID{}, ids...)
	}
	return out
}

// Toggle flips one role-permission cell and persists the role's full set.
// It returns the new state of the cell. A role missing from the grid is
// KindNotFound. On a failed write the cell is reverted. Validation and
// not-found errors keep their kind, anything else is KindMutationFailed.
func (m *Matrix) Toggle(ctx context.Context, roleID, permissionID uuid.UUID) (bool, error) {
	if permissionID == uuid.Nil {
		return false, apperrors.Validation("permission_id", "must not be empty")
	}

	m.svc.locks.Lock(roleID)
	defer m.svc.locks.Unlock(roleID)

	if !m.hasRole(roleID) {
		return false, apperrors.NotFound("role", roleID.String())
	}
	granted, next := m.flip(roleID, permissionID)

	err := m.svc.replaceLocked(ctx, roleID, next)
	if err != nil {
		m.flip(roleID, permissionID)
		slog.Error("Reverted permission toggle", "roleId", roleID, "permissionId", permissionID, "err", err)
		err = mutationFailed(err, OpTogglePermission)
	}
	m.svc.recorder.ObserveMutation(OpTogglePermission, err)
	if err != nil {
		return !granted, err
	}
	return granted, nil
}

func (m *Matrix) hasRole(roleID uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.grants[roleID]
	return ok
}

// flip toggles the cell and returns its new state and the role's resulting set
func (m *Matrix) flip(roleID, permissionID uuid.UUID) (bool, []uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.grants[roleID]
	var granted bool
	if i := indexOf(ids, permissionID); i >= 0 {
		ids = append(append([]uuid.UUID{}, ids[:i]...), ids[i+1:]...)
	} else {
		ids = append(append([]uuid.UUID{}, ids...), permissionID)
		granted = true
	}
	m.grants[roleID] = ids
	return granted, append([]uuid.UUID{}, ids...)
}

func indexOf(ids []uuid.UUID, id uuid.UUID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
