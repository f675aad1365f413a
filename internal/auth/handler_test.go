package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/scitech-admin-api/internal/httputil"
	"github.com/redmonkez12/scitech-admin-api/internal/ratelimit"
	"github.com/redmonkez12/scitech-admin-api/internal/user"
)

type handlerEnv struct {
	*testEnv
	router http.Handler
	redis  *miniredis.Miniredis
}

func newHandlerEnv(t *testing.T, ipLimit int, emailCooldown time.Duration, codes ...string) *handlerEnv {
	t.Helper()
	env := newTestEnv(t, codes...)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	limiter := ratelimit.NewLimiter(client, ipLimit, 15*time.Minute, emailCooldown)
	h := NewHandler(env.svc, limiter, false)
	mw := NewMiddleware(env.tokens, "", env.store)

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/verify-otp", h.VerifyOTP)
		r.Post("/reset-password", h.ResetPassword)
		r.With(mw.RequireAuth).Get("/me", h.Me)
	})

	return &handlerEnv{testEnv: env, router: r, redis: mr}
}

func (e *handlerEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHandler_Login(t *testing.T) {
	env := newHandlerEnv(t, 100, 0)
	env.addUser(t, "ana@scitech.io", "secret1", user.RoleStaff, true)
	env.addUser(t, "new@scitech.io", "secret1", user.RoleStaff, false)

	t.Run("success sets cookie and returns profile", func(t *testing.T) {
		rec := env.post(t, "/auth/login", LoginRequest{Email: "ana@scitech.io", Password: "secret1"})
		require.Equal(t, http.StatusOK, rec.Code)

		var cookie *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == "access_token" {
				cookie = c
			}
		}
		require.NotNil(t, cookie)
		assert.True(t, cookie.HttpOnly)
		assert.NotEmpty(t, cookie.Value)

		body := rec.Body.String()
		assert.Contains(t, body, `"email":"ana@scitech.io"`)
		assert.Contains(t, body, `"isApproved":true`)
		assert.NotContains(t, body, "argon2id")
	})

	tests := []struct {
		name   string
		req    LoginRequest
		status int
		code   string
		msg    string
	}{
		{"missing email", LoginRequest{Password: "secret1"}, http.StatusBadRequest, httputil.CodeInvalidInput, "email is required"},
		{"wrong password", LoginRequest{Email: "ana@scitech.io", Password: "nope-nope"}, http.StatusUnauthorized, httputil.CodeInvalidCredentials, ErrInvalidCredentials.Error()},
		{"unknown email", LoginRequest{Email: "ghost@scitech.io", Password: "secret1"}, http.StatusUnauthorized, httputil.CodeInvalidCredentials, ErrInvalidCredentials.Error()},
		{"pending approval", LoginRequest{Email: "new@scitech.io", Password: "secret1"}, http.StatusForbidden, httputil.CodePendingApproval, ErrPendingApproval.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.post(t, "/auth/login", tt.req)
			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.msg, resp.Error)
		})
	}
}

func TestHandler_InvalidBody(t *testing.T) {
	env := newHandlerEnv(t, 100, 0)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.CodeInvalidRequestBody, decodeError(t, rec).Code)
}

func TestHandler_PasswordResetFlow(t *testing.T) {
	env := newHandlerEnv(t, 100, 0)
	env.addUser(t, "ana@scitech.io", "secret1", user.RoleStaff, true)

	rec := env.post(t, "/auth/forgot-password", ForgotPasswordRequest{Email: "ana@scitech.io"})
	require.Equal(t, http.StatusOK, rec.Code)
	code := env.sender.next(t).code

	rec = env.post(t, "/auth/verify-otp", VerifyOTPRequest{Email: "ana@scitech.io", OTP: "0000"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.CodeCodeInvalid, decodeError(t, rec).Code)

	rec = env.post(t, "/auth/verify-otp", VerifyOTPRequest{Email: "ana@scitech.io", OTP: code})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.post(t, "/auth/reset-password", ResetPasswordRequest{Email: "ana@scitech.io", OTP: code, NewPassword: "12345"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.CodeWeakPassword, decodeError(t, rec).Code)

	rec = env.post(t, "/auth/reset-password", ResetPasswordRequest{Email: "ana@scitech.io", OTP: code, NewPassword: "newpass"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.post(t, "/auth/reset-password", ResetPasswordRequest{Email: "ana@scitech.io", OTP: code, NewPassword: "newpass"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.CodeNoCodeRequested, decodeError(t, rec).Code)

	rec = env.post(t, "/auth/login", LoginRequest{Email: "ana@scitech.io", Password: "newpass"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_ForgotPasswordWithCooldown(t *testing.T) {
	env := newHandlerEnv(t, 100, time.Minute)
	env.addUser(t, "ana@scitech.io", "secret1", user.RoleStaff, true)

	rec := env.post(t, "/auth/forgot-password", ForgotPasswordRequest{Email: "ghost@scitech.io"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, httputil.CodeNotFound, decodeError(t, rec).Code)

	rec = env.post(t, "/auth/forgot-password", ForgotPasswordRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.post(t, "/auth/forgot-password", ForgotPasswordRequest{Email: "ana@scitech.io"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.post(t, "/auth/forgot-password", ForgotPasswordRequest{Email: "ana@scitech.io"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, httputil.CodeCooldownActive, decodeError(t, rec).Code)

	env.redis.FastForward(61 * time.Second)
	rec = env.post(t, "/auth/forgot-password", ForgotPasswordRequest{Email: "ana@scitech.io"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_IPRateLimit(t *testing.T) {
	env := newHandlerEnv(t, 2, 0)

	for range 2 {
		rec := env.post(t, "/auth/login", LoginRequest{Email: "ghost@scitech.io", Password: "secret1"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := env.post(t, "/auth/login", LoginRequest{Email: "ghost@scitech.io", Password: "secret1"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, httputil.CodeTooManyRequests, decodeError(t, rec).Code)

	// purposes are counted separately
	rec = env.post(t, "/auth/verify-otp", VerifyOTPRequest{Email: "ghost@scitech.io", OTP: "1234"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_RegisterAndMe(t *testing.T) {
	env := newHandlerEnv(t, 100, 0)

	rec := env.post(t, "/auth/register", RegisterRequest{Email: "bo@scitech.io", Name: "Bo", Password: "secret1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"isApproved":false`)

	rec = env.post(t, "/auth/register", RegisterRequest{Email: "bo@scitech.io", Name: "Bo", Password: "secret1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, httputil.CodeEmailAlreadyExists, decodeError(t, rec).Code)

	admin := env.addUser(t, "root@scitech.io", "rootpass", user.RoleAdmin, true)
	rec = env.post(t, "/auth/login", LoginRequest{Email: "root@scitech.io", Password: "rootpass"})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	meRec := httptest.NewRecorder()
	env.router.ServeHTTP(meRec, req)

	require.Equal(t, http.StatusOK, meRec.Code)
	assert.Contains(t, meRec.Body.String(), admin.ID.String())

	rec = env.post(t, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestHandler_ForgotPasswordReissueInvalidatesPreviousCode(t *testing.T) {
	env := newHandlerEnv(t, 100, 0, "1111", "2222")
	env.addUser(t, "ana@scitech.io", "secret1", user.RoleStaff, true)

	rec := env.post(t, "/auth/forgot-password", ForgotPasswordRequest{Email: "ana@scitech.io"})
	require.Equal(t, http.StatusOK, rec.Code)
	first := env.sender.next(t).code

	rec = env.post(t, "/auth/forgot-password", ForgotPasswordRequest{Email: "ana@scitech.io"})
	require.Equal(t, http.StatusOK, rec.Code)
	second := env.sender.next(t).code
	require.NotEqual(t, first, second)

	rec = env.post(t, "/auth/verify-otp", VerifyOTPRequest{Email: "ana@scitech.io", OTP: first})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.CodeCodeInvalid, decodeError(t, rec).Code)

	rec = env.post(t, "/auth/verify-otp", VerifyOTPRequest{Email: "ana@scitech.io", OTP: second})
	assert.Equal(t, http.StatusOK, rec.Code)
}
