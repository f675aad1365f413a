package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/redmonkez12/scitech-admin-api/internal/httputil"
	"github.com/redmonkez12/scitech-admin-api/internal/user"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const (
	UserIDContextKey    ContextKey = "user_id"
	UserEmailContextKey ContextKey = "user_email"
	UserRoleContextKey  ContextKey = "user_role"
)

// UserLookup resolves a gateway-supplied user id to the stored account.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// Middleware handles authentication for protected routes
type Middleware struct {
	tokenService  TokenService
	gatewayHeader string
	users         UserLookup
}

// NewMiddleware builds the auth middleware. When gatewayHeader is non-empty, a user id
// in that header (set by the trusted upstream gateway) is accepted in place of a token.
// Only the id is taken from the gateway; email and role are loaded from users, which
// may be nil when the gateway is disabled.
func NewMiddleware(tokenService TokenService, gatewayHeader string, users UserLookup) *Middleware {
	return &Middleware{tokenService: tokenService, gatewayHeader: gatewayHeader, users: users}
}

// RequireAuth is a middleware that validates the access token
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.gatewayHeader != "" {
			if raw := r.Header.Get(m.gatewayHeader); raw != "" {
				userID, err := uuid.Parse(raw)
				if err != nil {
					httputil.RespondErrorWithCode(w, "invalid user ID in gateway header", httputil.CodeInvalidTokenUserID, http.StatusUnauthorized)
					return
				}
				account, err := m.users.GetByID(r.Context(), userID)
				if err != nil {
					if errors.Is(err, user.ErrNotFound) {
						httputil.RespondErrorWithCode(w, "unknown user in gateway header", httputil.CodeInvalidTokenUserID, http.StatusUnauthorized)
						return
					}
					httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
					return
				}
				ctx := withIdentity(r.Context(), account.ID, account.Email, account.Role)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		var token string

		// Priority 1: Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			} else {
				httputil.RespondErrorWithCode(w, "invalid authorization header format", httputil.CodeInvalidAuthHeader, http.StatusUnauthorized)
				return
			}
		}

		// Priority 2: Cookie (fallback)
		if token == "" {
			cookieToken, err := GetAccessTokenFromCookie(r)
			if err != nil || cookieToken == "" {
				httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
				return
			}
			token = cookieToken
		}

		claims, err := m.tokenService.VerifyToken(token)
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				httputil.RespondErrorWithCode(w, "token has expired", httputil.CodeTokenExpired, http.StatusUnauthorized)
				return
			}
			httputil.RespondErrorWithCode(w, "invalid token", httputil.CodeInvalidToken, http.StatusUnauthorized)
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			httputil.RespondErrorWithCode(w, "invalid user ID in token", httputil.CodeInvalidTokenUserID, http.StatusUnauthorized)
			return
		}

		ctx := withIdentity(r.Context(), userID, claims.Email, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers whose role is not listed. It must run after RequireAuth.
func RequireRole(roles ...user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, _ := GetUserRoleFromContext(r.Context())
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			httputil.RespondErrorWithCode(w, "insufficient permissions", httputil.CodeForbidden, http.StatusForbidden)
		})
	}
}

func withIdentity(ctx context.Context, userID uuid.UUID, email string, role user.Role) context.Context {
	ctx = context.WithValue(ctx, UserIDContextKey, userID)
	ctx = context.WithValue(ctx, UserEmailContextKey, email)
	return context.WithValue(ctx, UserRoleContextKey, role)
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDContextKey).(uuid.UUID)
	return userID, ok
}

// GetUserEmailFromContext extracts the user email from the request context
func GetUserEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(UserEmailContextKey).(string)
	return email, ok
}

// GetUserRoleFromContext extracts the user role from the request context
func GetUserRoleFromContext(ctx context.Context) (user.Role, bool) {
	role, ok := ctx.Value(UserRoleContextKey).(user.Role)
	return role, ok
}
