package auth

import "errors"

// Expected, user-facing outcomes of the auth flow. None of these are server faults.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPendingApproval    = errors.New("account is pending administrator approval")
	ErrUserNotFound       = errors.New("no account found for this email")
	ErrNoCodeRequested    = errors.New("no reset code has been requested for this account")
	ErrCodeExpired        = errors.New("reset code has expired")
	ErrCodeInvalid        = errors.New("reset code is invalid")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrInvalidEmailFormat = errors.New("invalid email format")
)

// missingFieldError reports a required field that was absent. It matches ErrInvalidInput.
type missingFieldError struct {
	field string
}

func (e missingFieldError) Error() string {
	return e.field + " is required"
}

func (e missingFieldError) Is(target error) bool {
	return target == ErrInvalidInput
}

func missing(field string) error {
	return missingFieldError{field: field}
}
