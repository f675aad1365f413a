package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/redmonkez12/scitech-admin-api/internal/activity"
	"github.com/redmonkez12/scitech-admin-api/internal/logging"
	"github.com/redmonkez12/scitech-admin-api/internal/metrics"
	"github.com/redmonkez12/scitech-admin-api/internal/otp"
	"github.com/redmonkez12/scitech-admin-api/internal/user"
)

// MinPasswordLength is the shortest password accepted on reset and registration.
const MinPasswordLength = 6

// LoginResult is a successful login: the account and its access token.
type LoginResult struct {
	User        *user.User
	AccessToken string
	ExpiresAt   time.Time
}

// Service handles authentication business logic
type Service struct {
	users               UserStore
	tokens              TokenService
	hasher              *Hasher
	issuer              *otp.Issuer
	codes               CodeSender
	activity            ActivityRecorder
	logger              *logging.Logger
	accessTokenDuration time.Duration
	now                 func() time.Time

	// compared against when the email is unknown so both login failures cost the same
	dummyHash string
}

func NewService(
	users UserStore,
	tokens TokenService,
	hasher *Hasher,
	issuer *otp.Issuer,
	codes CodeSender,
	recorder ActivityRecorder,
	logger *logging.Logger,
	accessTokenDuration time.Duration,
) (*Service, error) {
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &Service{
		users:               users,
		tokens:              tokens,
		hasher:              hasher,
		issuer:              issuer,
		codes:               codes,
		activity:            recorder,
		logger:              logger,
		accessTokenDuration: accessTokenDuration,
		now:                 time.Now,
		dummyHash:           dummy,
	}, nil
}

// Register creates an unapproved staff account.
func (s *Service) Register(ctx context.Context, email, name, password string) (*user.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, missing("email")
	}
	if password == "" {
		return nil, missing("password")
	}
	if len(email) > 254 {
		return nil, ErrInvalidEmailFormat
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmailFormat
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser, err := s.users.Create(ctx, email, strings.TrimSpace(name), passwordHash, user.RoleStaff, false)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, user.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return newUser, nil
}

// Login authenticates a user. Unknown email and wrong password yield the same error.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" {
		return nil, missing("email")
	}
	if password == "" {
		return nil, missing("password")
	}

	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.hasher.Verify(s.dummyHash, password)
			metrics.AuthLoginsTotal.WithLabelValues("invalid_credentials").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !s.hasher.Verify(existingUser.PasswordHash, password) {
		metrics.AuthLoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	if !existingUser.CanLogin() {
		metrics.AuthLoginsTotal.WithLabelValues("pending_approval").Inc()
		return nil, ErrPendingApproval
	}

	token, err := s.tokens.CreateToken(existingUser.ID, existingUser.Email, existingUser.Role, s.accessTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	s.activity.RecordAsync(ctx, activity.Entry{
		UserID:       existingUser.ID,
		Action:       "login",
		ResourceType: "auth",
	})

	metrics.AuthLoginsTotal.WithLabelValues("success").Inc()

	return &LoginResult{
		User:        existingUser,
		AccessToken: token,
		ExpiresAt:   s.now().Add(s.accessTokenDuration),
	}, nil
}

// ForgotPassword issues a new reset code, replacing any outstanding one, and hands
// it to the delivery channel without waiting for the outcome.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return missing("email")
	}

	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			metrics.PasswordResetsTotal.WithLabelValues("request", "not_found").Inc()
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	code, err := s.issuer.Issue()
	if err != nil {
		return fmt.Errorf("failed to generate reset code: %w", err)
	}

	if err := s.users.SetResetOTP(ctx, existingUser.Email, code.Value, code.ExpiresAt); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to store reset code: %w", err)
	}

	go func() {
		if err := s.codes.SendPasswordResetCode(context.WithoutCancel(ctx), existingUser.Email, code.Value); err != nil {
			s.logger.Warn("failed to dispatch password reset code", "email", existingUser.Email, "error", err)
		}
	}()

	metrics.PasswordResetsTotal.WithLabelValues("request", "issued").Inc()
	return nil
}

// VerifyOTP checks a reset code without consuming it.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) error {
	if email == "" {
		return missing("email")
	}
	if code == "" {
		return missing("otp")
	}

	existingUser, err := s.lookupForReset(ctx, email)
	if err != nil {
		return err
	}

	if err := checkResetCode(existingUser, code, s.now()); err != nil {
		metrics.PasswordResetsTotal.WithLabelValues("verify", resultLabel(err)).Inc()
		return err
	}

	metrics.PasswordResetsTotal.WithLabelValues("verify", "ok").Inc()
	return nil
}

// ResetPassword re-validates the code against the live record, then writes the new
// hash and clears the code in one conditional update.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if email == "" {
		return missing("email")
	}
	if code == "" {
		return missing("otp")
	}
	if newPassword == "" {
		return missing("newPassword")
	}
	if utf8.RuneCountInString(newPassword) < MinPasswordLength {
		return ErrWeakPassword
	}

	existingUser, err := s.lookupForReset(ctx, email)
	if err != nil {
		return err
	}

	if err := checkResetCode(existingUser, code, s.now()); err != nil {
		metrics.PasswordResetsTotal.WithLabelValues("reset", resultLabel(err)).Inc()
		return err
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// Hashing is slow; the expiry bound is taken again at the moment of the update.
	err = s.users.ResetPasswordWithOTP(ctx, existingUser.Email, code, passwordHash, s.now())
	if errors.Is(err, user.ErrOTPNotConsumed) {
		// Another request consumed, replaced or outlived the code after our check.
		err = s.reclassify(ctx, email, code)
		metrics.PasswordResetsTotal.WithLabelValues("reset", resultLabel(err)).Inc()
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	metrics.PasswordResetsTotal.WithLabelValues("reset", "ok").Inc()
	return nil
}

// GetUser returns the account for id.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *Service) lookupForReset(ctx context.Context, email string) (*user.User, error) {
	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return existingUser, nil
}

// reclassify re-reads the record after a lost conditional update.
func (s *Service) reclassify(ctx context.Context, email, code string) error {
	current, err := s.lookupForReset(ctx, email)
	if err != nil {
		return err
	}
	if err := checkResetCode(current, code, s.now()); err != nil {
		return err
	}
	return ErrCodeInvalid
}

// checkResetCode applies the absence, expiry and match checks in that order.
func checkResetCode(u *user.User, code string, now time.Time) error {
	if !u.HasResetOTP() {
		return ErrNoCodeRequested
	}
	if now.After(*u.ResetOTPExpiresAt) {
		return ErrCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(*u.ResetOTP), []byte(code)) != 1 {
		return ErrCodeInvalid
	}
	return nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoCodeRequested):
		return "no_code"
	case errors.Is(err, ErrCodeExpired):
		return "expired"
	case errors.Is(err, ErrCodeInvalid):
		return "invalid"
	case errors.Is(err, ErrUserNotFound):
		return "not_found"
	default:
		return "error"
	}
}
