package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sarathmodify/admin-dashboard/pkg/backend/memory"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandle(t *testing.T) (*fixture, http.Handler) {
	f := newFixture(t)
	r := chi.NewRouter()
	r.Route("/api/admin", NewHandle(f.svc).Routes)
	return f, r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandle_AssignRole(t *testing.T) {
	f, h := setupHandle(t)

	w := do(h, http.MethodPut, "/api/admin/users/"+f.userID.String()+"/role", fmt.Sprintf(`{"role_id":%q}`, f.roles["manager"].ID))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(h, http.MethodGet, "/api/admin/users?q=jane", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list UserListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Users, 1)
	assert.Equal(t, "manager", list.Users[0].Role.Name)

	w = do(h, http.MethodDelete, "/api/admin/users/"+f.userID.String()+"/role", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHandle_Errors(t *testing.T) {
	f, h := setupHandle(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		kind   string
	}{
		{name: "bad user id", method: http.MethodPut, path: "/api/admin/users/nope/role", body: `{"role_id":"` + uuid.NewString() + `"}`, status: http.StatusBadRequest, kind: "VALIDATION_FAILED"},
		{name: "missing role id", method: http.MethodPut, path: "/api/admin/users/" + f.userID.String() + "/role", body: `{}`, status: http.StatusBadRequest, kind: "VALIDATION_FAILED"},
		{name: "malformed body", method: http.MethodPost, path: "/api/admin/roles", body: `{`, status: http.StatusBadRequest, kind: "VALIDATION_FAILED"},
		{name: "invalid role name", method: http.MethodPost, path: "/api/admin/roles", body: `{"name":"Super Admin"}`, status: http.StatusBadRequest, kind: "VALIDATION_FAILED"},
		{name: "toggle on unknown role", method: http.MethodPost, path: "/api/admin/matrix/toggle", body: fmt.Sprintf(`{"role_id":%q,"permission_id":%q}`, uuid.New(), f.perms[0].ID), status: http.StatusNotFound, kind: "NOT_FOUND"},
		{name: "unknown role", method: http.MethodPut, path: "/api/admin/users/" + f.userID.String() + "/role", body: `{"role_id":"` + uuid.NewString() + `"}`, status: http.StatusNotFound, kind: "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			var resp apperrors.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.kind, resp.Error)
		})
	}
}

func TestHandle_Matrix(t *testing.T) {
	f, h := setupHandle(t)
	roleID := f.roles["staff"].ID
	permID := f.perms[2].ID

	w := do(h, http.MethodGet, "/api/admin/matrix", "")
	require.Equal(t, http.StatusOK, w.Code)
	var matrix MatrixResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &matrix))
	assert.Len(t, matrix.Roles, 3)
	assert.Len(t, matrix.Permissions, 4)

	body := fmt.Sprintf(`{"role_id":%q,"permission_id":%q}`, roleID, permID)
	w = do(h, http.MethodPost, "/api/admin/matrix/toggle", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"granted":true}`, w.Body.String())

	w = do(h, http.MethodGet, "/api/admin/roles/"+roleID.String()+"/permissions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"permission_ids":[%q]}`, permID), w.Body.String())

	f.repo.Faults.FailOnce(memory.OpReplaceRolePermissions, apperrors.KindUnknown)
	w = do(h, http.MethodPost, "/api/admin/matrix/toggle", body)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "MUTATION_FAILED")

	w = do(h, http.MethodPut, "/api/admin/roles/"+roleID.String()+"/permissions", fmt.Sprintf(`{"permission_ids":[%q,%q]}`, f.perms[0].ID, f.perms[3].ID))
	assert.Equal(t, http.StatusNoContent, w.Code)
	ids, err := f.svc.RolePermissions(t.Context(), roleID)
	require.NoError(t, err)
	assert.ElementsMatch(t, f.permIDs(0, 3), ids)
}
