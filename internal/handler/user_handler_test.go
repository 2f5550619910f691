package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blgu-assess-go/internal/model"
)

func TestUserRoutes_LoginProfileLogout(t *testing.T) {
	f := newAPIFixture(t, 0)
	access, refresh := f.signup("brgy-poblacion", model.RoleBLGU)

	status, env := f.do(http.MethodGet, "/api/v1/users/me", access, nil)
	require.Equal(t, http.StatusOK, status)
	me := decode[model.User](t, env)
	assert.Equal(t, "brgy-poblacion", me.Username)
	assert.Equal(t, model.RoleBLGU, me.Role)

	status, env = f.do(http.MethodPost, "/api/v1/auth/refreshToken", "", RefreshTokenRequest{RefreshToken: refresh})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, decode[map[string]string](t, env)["token"])

	status, _ = f.do(http.MethodPost, "/api/v1/users/logout", access, nil)
	require.Equal(t, http.StatusOK, status)
	status, env = f.do(http.MethodGet, "/api/v1/users/me", access, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "token has been revoked", env.Message)
}

func TestUserRoutes_Errors(t *testing.T) {
	f := newAPIFixture(t, 0)
	_, refresh := f.signup("taken", model.RoleBLGU)

	status, _ := f.do(http.MethodPost, "/api/v1/users/register", "", RegisterRequest{Username: "taken", Password: "x"})
	assert.Equal(t, http.StatusConflict, status)
	status, _ = f.do(http.MethodPost, "/api/v1/users/register", "", map[string]string{"username": "nopass"})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = f.do(http.MethodPost, "/api/v1/users/login", "", LoginRequest{Username: "taken", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	// a refresh token is not accepted as an access token
	status, _ = f.do(http.MethodGet, "/api/v1/users/me", refresh, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAuthMiddleware_RejectsBadHeaders(t *testing.T) {
	f := newAPIFixture(t, 0)

	status, env := f.do(http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "missing Authorization header", env.Message)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	status, _ = f.do(http.MethodGet, "/api/v1/users/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAdminRoutes(t *testing.T) {
	f := newAPIFixture(t, 0)
	adminToken, _ := f.signup("mlgoo", model.RoleAdmin)
	userToken, _ := f.signup("brgy", model.RoleBLGU)

	status, _ := f.do(http.MethodGet, "/api/v1/admin/users/list", userToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env := f.do(http.MethodPost, "/api/v1/admin/governance-areas", adminToken, map[string]string{"code": "fa", "name": "Financial Administration"})
	require.Equal(t, http.StatusOK, status)
	area := decode[model.GovernanceArea](t, env)
	assert.Equal(t, "FA", area.Code)

	status, _ = f.do(http.MethodPost, "/api/v1/admin/governance-areas", adminToken, map[string]string{"code": "FA", "name": "dup"})
	assert.Equal(t, http.StatusConflict, status)
	status, _ = f.do(http.MethodPost, "/api/v1/admin/governance-areas", adminToken, map[string]string{"code": "X"})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = f.do(http.MethodDelete, "/api/v1/admin/governance-areas/999", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = f.do(http.MethodDelete, "/api/v1/admin/governance-areas/abc", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	// any signed-in user may list areas
	status, env = f.do(http.MethodGet, "/api/v1/governance-areas", userToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]model.GovernanceArea](t, env), 1)

	brgy, err := f.users.FindByUsername("brgy")
	require.NoError(t, err)
	status, _ = f.do(http.MethodPut, "/api/v1/admin/users/"+uintString(brgy.ID)+"/role", adminToken, AssignRoleRequest{Role: "ROOT"})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = f.do(http.MethodPut, "/api/v1/admin/users/"+uintString(brgy.ID)+"/role", adminToken, AssignRoleRequest{Role: model.RoleAssessor, GovernanceAreaID: &area.ID})
	require.Equal(t, http.StatusOK, status)

	status, env = f.do(http.MethodGet, "/api/v1/admin/users/list?page=1&size=10", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	page := decode[struct {
		TotalElements int64 `json:"totalElements"`
	}](t, env)
	assert.Equal(t, int64(2), page.TotalElements)
}
