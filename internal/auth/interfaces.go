package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/scitech-admin-api/internal/activity"
	"github.com/redmonkez12/scitech-admin-api/internal/user"
)

// TokenService defines the interface for token creation and validation.
// Implementations include PasetoService (PASETO v4.local) and JWTService (HS256).
type TokenService interface {
	CreateToken(userID uuid.UUID, email string, role user.Role, duration time.Duration) (string, error)
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// UserStore is the credential store consumed by the auth flow.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	Create(ctx context.Context, email, name, passwordHash string, role user.Role, approved bool) (*user.User, error)
	SetResetOTP(ctx context.Context, email, code string, expiresAt time.Time) error
	ResetPasswordWithOTP(ctx context.Context, email, code, passwordHash string, now time.Time) error
}

// CodeSender hands a reset code to the out-of-band delivery channel.
type CodeSender interface {
	SendPasswordResetCode(ctx context.Context, toEmail, code string) error
}

// ActivityRecorder records activity without blocking or failing the caller.
type ActivityRecorder interface {
	RecordAsync(ctx context.Context, e activity.Entry)
}

// RateLimiter guards the public auth endpoints.
type RateLimiter interface {
	CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error)
	RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error
	CheckEmailCooldown(ctx context.Context, email string) (bool, error)
	SetEmailCooldown(ctx context.Context, email string) error
}
