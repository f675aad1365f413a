package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/scitech-admin-api/internal/httputil"
	"github.com/redmonkez12/scitech-admin-api/internal/user"
)

func identityEcho(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetUserIDFromContext(r.Context())
		require.True(t, ok)
		role, _ := GetUserRoleFromContext(r.Context())
		w.Header().Set("X-Test-User", id.String())
		w.Header().Set("X-Test-Role", string(role))
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAuth(t *testing.T) {
	tokens, err := NewPasetoService(testTokenKey)
	require.NoError(t, err)
	id := uuid.New()
	store := newMemStore()
	store.put(&user.User{ID: id, Email: "ana@scitech.io", Role: user.RoleStaff, IsApproved: true})

	mw := NewMiddleware(tokens, "X-User-ID", store)
	handler := mw.RequireAuth(identityEcho(t))

	valid, err := tokens.CreateToken(id, "ana@scitech.io", user.RoleStaff, time.Hour)
	require.NoError(t, err)
	expired, err := tokens.CreateToken(id, "ana@scitech.io", user.RoleStaff, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name     string
		setup    func(r *http.Request)
		status   int
		code     string
		wantRole user.Role
	}{
		{
			name:   "no credentials",
			setup:  func(r *http.Request) {},
			status: http.StatusUnauthorized,
			code:   httputil.CodeMissingAuth,
		},
		{
			name:     "bearer token",
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) },
			status:   http.StatusNoContent,
			wantRole: user.RoleStaff,
		},
		{
			name: "cookie token",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: "access_token", Value: valid})
			},
			status:   http.StatusNoContent,
			wantRole: user.RoleStaff,
		},
		{
			name:   "malformed header",
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "Token "+valid) },
			status: http.StatusUnauthorized,
			code:   httputil.CodeInvalidAuthHeader,
		},
		{
			name:   "expired token",
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) },
			status: http.StatusUnauthorized,
			code:   httputil.CodeTokenExpired,
		},
		{
			name:   "tampered token",
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid+"x") },
			status: http.StatusUnauthorized,
			code:   httputil.CodeInvalidToken,
		},
		{
			name: "gateway header takes role from the store",
			setup: func(r *http.Request) {
				r.Header.Set("X-User-ID", id.String())
				r.Header.Set("X-User-Role", "admin")
			},
			status:   http.StatusNoContent,
			wantRole: user.RoleStaff,
		},
		{
			name:   "gateway header with unknown user",
			setup:  func(r *http.Request) { r.Header.Set("X-User-ID", uuid.NewString()) },
			status: http.StatusUnauthorized,
			code:   httputil.CodeInvalidTokenUserID,
		},
		{
			name:   "gateway header with bad id",
			setup:  func(r *http.Request) { r.Header.Set("X-User-ID", "42") },
			status: http.StatusUnauthorized,
			code:   httputil.CodeInvalidTokenUserID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				assert.Contains(t, rec.Body.String(), `"code":"`+tt.code+`"`)
			}
			if tt.status == http.StatusNoContent {
				assert.Equal(t, id.String(), rec.Header().Get("X-Test-User"))
				assert.Equal(t, string(tt.wantRole), rec.Header().Get("X-Test-Role"))
			}
		})
	}
}

func TestRequireAuth_GatewayDisabledIgnoresHeader(t *testing.T) {
	tokens, err := NewPasetoService(testTokenKey)
	require.NoError(t, err)
	handler := NewMiddleware(tokens, "", newMemStore()).RequireAuth(identityEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("X-User-ID", uuid.NewString())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	tokens, err := NewPasetoService(testTokenKey)
	require.NoError(t, err)
	chain := NewMiddleware(tokens, "", newMemStore()).RequireAuth(RequireRole(user.RoleAdmin)(identityEcho(t)))

	for role, want := range map[user.Role]int{
		user.RoleAdmin:  http.StatusNoContent,
		user.RoleStaff:  http.StatusForbidden,
		user.RoleViewer: http.StatusForbidden,
	} {
		token, err := tokens.CreateToken(uuid.New(), "x@scitech.io", role, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPatch, "/users/1/approval", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)

		assert.Equal(t, want, rec.Code, "role %s", role)
	}
}

func TestRequireRole_GatewayRoleHeaderIsIgnored(t *testing.T) {
	tokens, err := NewPasetoService(testTokenKey)
	require.NoError(t, err)

	staff := uuid.New()
	store := newMemStore()
	store.put(&user.User{ID: staff, Email: "bo@scitech.io", Role: user.RoleStaff, IsApproved: true})

	chain := NewMiddleware(tokens, "X-User-ID", store).
		RequireAuth(RequireRole(user.RoleAdmin)(identityEcho(t)))

	req := httptest.NewRequest(http.MethodPatch, "/users/"+uuid.NewString()+"/approval", nil)
	req.Header.Set("X-User-ID", staff.String())
	req.Header.Set("X-User-Role", "admin")
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	// a random id claiming admin is not an account at all
	req = httptest.NewRequest(http.MethodPatch, "/users/"+uuid.NewString()+"/approval", nil)
	req.Header.Set("X-User-ID", uuid.NewString())
	req.Header.Set("X-User-Role", "admin")
	rec = httptest.NewRecorder()
	chain.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
