package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/scitech-admin-api/internal/database"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrOTPNotConsumed means the conditional reset matched no row: the code was
	// already consumed, replaced, or has expired.
	ErrOTPNotConsumed = errors.New("reset code not consumed")
)

// Repository handles user data persistence
type Repository struct {
	db bun.IDB
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user into the database
func (r *Repository) Create(ctx context.Context, email, name, passwordHash string, role Role, approved bool) (*User, error) {
	now := time.Now().UTC()
	dbUser := &database.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Role:         string(role),
		IsApproved:   approved,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Exec(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by exact, case-sensitive email match
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("u.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("u.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// SetResetOTP stores a reset code and its expiry, replacing any outstanding code.
func (r *Repository) SetResetOTP(ctx context.Context, email, code string, expiresAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("reset_otp = ?", code).
		Set("reset_otp_expires_at = ?", expiresAt.UTC()).
		Set("updated_at = NOW()").
		Where("email = ?", email).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set reset code: %w", err)
	}

	return expectOneRow(result, ErrNotFound)
}

// ResetPasswordWithOTP writes the new hash and clears the reset code in one
// conditional statement. It only matches while the code is still on record and
// unexpired at now, so of two concurrent resets with the same code only one applies.
func (r *Repository) ResetPasswordWithOTP(ctx context.Context, email, code, passwordHash string, now time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("reset_otp = NULL").
		Set("reset_otp_expires_at = NULL").
		Set("updated_at = NOW()").
		Where("email = ?", email).
		Where("reset_otp = ?", code).
		Where("reset_otp_expires_at >= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	return expectOneRow(result, ErrOTPNotConsumed)
}

// SetApproval flips the approval flag and returns the updated user.
func (r *Repository) SetApproval(ctx context.Context, id uuid.UUID, approved bool) (*User, error) {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("is_approved = ?", approved).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update approval: %w", err)
	}

	if err := expectOneRow(result, ErrNotFound); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

func expectOneRow(result sql.Result, notMatched error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return notMatched
	}

	return nil
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:                dbu.ID,
		Email:             dbu.Email,
		Name:              dbu.Name,
		PasswordHash:      dbu.PasswordHash,
		Role:              Role(dbu.Role),
		IsApproved:        dbu.IsApproved,
		ResetOTP:          dbu.ResetOTP,
		ResetOTPExpiresAt: dbu.ResetOTPExpiresAt,
		CreatedAt:         dbu.CreatedAt,
		UpdatedAt:         dbu.UpdatedAt,
	}
}
