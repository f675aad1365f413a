package user

import (
	"time"

	"github.com/google/uuid"
)

// Role is the account role. Only RoleAdmin bypasses the approval gate.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleStaff  Role = "staff"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleViewer:
		return true
	}
	return false
}

type User struct {
	ID                uuid.UUID  `json:"id"`
	Email             string     `json:"email"`
	Name              string     `json:"name"`
	PasswordHash      string     `json:"-"` // Never expose password hash in JSON
	Role              Role       `json:"role"`
	IsApproved        bool       `json:"is_approved"`
	ResetOTP          *string    `json:"-"`
	ResetOTPExpiresAt *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsAdmin reports whether the user holds the administrative role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanLogin applies the approval gate.
func (u *User) CanLogin() bool {
	return u.IsAdmin() || u.IsApproved
}

// HasResetOTP reports whether a reset code is on record.
func (u *User) HasResetOTP() bool {
	return u.ResetOTP != nil && u.ResetOTPExpiresAt != nil
}

// Profile is the client-facing view of a user.
type Profile struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	IsApproved bool      `json:"isApproved"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Profile strips credentials and reset state.
func (u *User) Profile() Profile {
	return Profile{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Role:       u.Role,
		IsApproved: u.IsApproved,
		CreatedAt:  u.CreatedAt,
	}
}
