package auth

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/redmonkez12/scitech-admin-api/internal/httputil"
	"github.com/redmonkez12/scitech-admin-api/internal/logging"
	"github.com/redmonkez12/scitech-admin-api/internal/user"
)

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service      *Service
	rateLimiter  RateLimiter
	isProduction bool
}

func NewHandler(service *Service, rateLimiter RateLimiter, isProduction bool) *Handler {
	return &Handler{
		service:      service,
		rateLimiter:  rateLimiter,
		isProduction: isProduction,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest represents the reset code request
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// VerifyOTPRequest represents the reset code check
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// ResetPasswordRequest represents the password reset confirmation
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

// Register handles account registration
// @Summary      Register a new account
// @Description  Create a staff account. It cannot log in until an administrator approves it.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration details"
// @Success      201 {object} user.Profile
// @Failure      400 {object} httputil.ErrorResponse "Missing field, invalid email or weak password"
// @Failure      409 {object} httputil.ErrorResponse "Email already exists"
// @Router       /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allow(w, r, "register") {
		return
	}

	var req RegisterRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	newUser, err := h.service.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		respondAuthError(w, logger, "registration", err)
		return
	}

	logger.Info("user registered", "user_id", newUser.ID)
	httputil.RespondJSON(w, newUser.Profile(), http.StatusCreated)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate and receive the account profile. The access token is set as an HttpOnly cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} user.Profile
// @Failure      400 {object} httputil.ErrorResponse "Missing fields"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      403 {object} httputil.ErrorResponse "Pending approval"
// @Router       /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allow(w, r, "login") {
		return
	}

	var req LoginRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondAuthError(w, logger, "login", err)
		return
	}

	logger.Info("user logged in", "user_id", result.User.ID)

	SetAccessCookie(w, result.AccessToken, result.ExpiresAt, h.isProduction)
	httputil.RespondJSON(w, result.User.Profile(), http.StatusOK)
}

// Logout clears the access token cookie
// @Summary      User logout
// @Tags         auth
// @Produce      json
// @Success      200 {object} httputil.MessageResponse
// @Router       /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ClearAccessCookie(w, h.isProduction)
	httputil.RespondMessage(w, "logged out")
}

// Me returns the caller's profile
// @Summary      Current account
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} user.Profile
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	u, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		respondAuthError(w, logger, "profile lookup", err)
		return
	}

	httputil.RespondJSON(w, u.Profile(), http.StatusOK)
}

// ForgotPassword issues a reset code
// @Summary      Request a password reset code
// @Description  Generates a 4-digit code valid for 5 minutes and emails it to the account.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ForgotPasswordRequest true "Email address"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Missing email"
// @Failure      404 {object} httputil.ErrorResponse "Unknown email"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /auth/forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allow(w, r, "forgot-password") {
		return
	}

	var req ForgotPasswordRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid forgot password request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if req.Email != "" {
		onCooldown, err := h.rateLimiter.CheckEmailCooldown(r.Context(), req.Email)
		if err != nil {
			logger.Error("failed to check email cooldown", "error", err.Error())
		} else if onCooldown {
			logger.Warn("email on cooldown")
			httputil.RespondErrorWithCode(w, "please wait before requesting another code", httputil.CodeCooldownActive, http.StatusTooManyRequests)
			return
		}
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		respondAuthError(w, logger, "forgot password", err)
		return
	}

	if err := h.rateLimiter.SetEmailCooldown(r.Context(), req.Email); err != nil {
		logger.Error("failed to set email cooldown", "error", err.Error())
	}

	logger.Info("password reset code issued")
	httputil.RespondMessage(w, "A reset code has been sent to your email.")
}

// VerifyOTP checks a reset code without consuming it
// @Summary      Verify a reset code
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body VerifyOTPRequest true "Email and code"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Missing fields, no code, expired or invalid code"
// @Failure      404 {object} httputil.ErrorResponse "Unknown email"
// @Router       /auth/verify-otp [post]
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allow(w, r, "verify-otp") {
		return
	}

	var req VerifyOTPRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid verify otp request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.service.VerifyOTP(r.Context(), req.Email, req.OTP); err != nil {
		respondAuthError(w, logger, "verify otp", err)
		return
	}

	httputil.RespondMessage(w, "Code verified.")
}

// ResetPassword sets a new password using a reset code
// @Summary      Reset password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordRequest true "Email, code and new password"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Missing fields, weak password, no code, expired or invalid code"
// @Failure      404 {object} httputil.ErrorResponse "Unknown email"
// @Router       /auth/reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allow(w, r, "reset-password") {
		return
	}

	var req ResetPasswordRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid reset password request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	if err := h.service.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		respondAuthError(w, logger, "password reset", err)
		return
	}

	logger.Info("password reset successfully")
	httputil.RespondMessage(w, "Password reset successfully. You can now login with your new password.")
}

// allow applies the per-IP limit for purpose. Limiter failures let the request through.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, purpose string) bool {
	logger := logging.GetLoggerFromContext(r.Context())
	ip := getClientIP(r)

	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return false
	}

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, purpose); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}
	return true
}

type errorMapping struct {
	target error
	code   string
	status int
}

// Expected outcomes, checked in order. Anything else is a server fault.
var authErrorMappings = []errorMapping{
	{ErrInvalidInput, httputil.CodeInvalidInput, http.StatusBadRequest},
	{ErrInvalidEmailFormat, httputil.CodeInvalidInput, http.StatusBadRequest},
	{ErrWeakPassword, httputil.CodeWeakPassword, http.StatusBadRequest},
	{ErrInvalidCredentials, httputil.CodeInvalidCredentials, http.StatusUnauthorized},
	{ErrPendingApproval, httputil.CodePendingApproval, http.StatusForbidden},
	{ErrUserNotFound, httputil.CodeNotFound, http.StatusNotFound},
	{ErrNoCodeRequested, httputil.CodeNoCodeRequested, http.StatusBadRequest},
	{ErrCodeExpired, httputil.CodeCodeExpired, http.StatusBadRequest},
	{ErrCodeInvalid, httputil.CodeCodeInvalid, http.StatusBadRequest},
	{user.ErrDuplicateEmail, httputil.CodeEmailAlreadyExists, http.StatusConflict},
}

func respondAuthError(w http.ResponseWriter, logger *logging.Logger, op string, err error) {
	for _, m := range authErrorMappings {
		if errors.Is(err, m.target) {
			logger.Warn(op+" failed", "reason", m.code)
			httputil.RespondErrorWithCode(w, err.Error(), m.code, m.status)
			return
		}
	}

	logger.Error(op+" failed: internal error", "error", err.Error())
	httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
}

// getClientIP returns the client address. Forwarding headers only reach RemoteAddr
// when the router runs chi's RealIP, which it does only with TRUST_PROXY_HEADERS set.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
