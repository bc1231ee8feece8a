package domain

import "errors"

// Error kinds. Every failure reported to callers unwraps to one of these.
var (
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrExpiredOrUsed      = errors.New("expired or used")
	ErrInactiveAccount    = errors.New("account inactive")
	ErrAuthToken          = errors.New("invalid auth token")
)

// ErrUniqueViolation is returned by stores when a uniqueness constraint rejects a write.
var ErrUniqueViolation = errors.New("unique constraint violation")

// Error is a client-facing failure: a kind, a public message and optional details.
type Error struct {
	Kind    error
	Message string
	Details []string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// NewValidationError reports every problem found in a request at once.
func NewValidationError(details []string) *Error {
	return &Error{Kind: ErrValidation, Message: "Validation failed", Details: details}
}

var (
	ErrEmailTaken      = &Error{Kind: ErrConflict, Message: "User with this email already exists"}
	ErrBadCredentials  = &Error{Kind: ErrInvalidCredentials, Message: "Invalid email or password"}
	ErrAccountInactive = &Error{Kind: ErrInactiveAccount, Message: "Account is inactive"}
	ErrUserNotFound    = &Error{Kind: ErrNotFound, Message: "User not found"}
	ErrCodeInvalid     = &Error{Kind: ErrExpiredOrUsed, Message: "Invalid or expired code"}
	ErrTokenNotFound   = &Error{Kind: ErrNotFound, Message: "Invalid or expired refresh token"}
	ErrTokenInvalid    = &Error{Kind: ErrAuthToken, Message: "Invalid access token"}
	ErrTokenExpired    = &Error{Kind: ErrAuthToken, Message: "Access token has expired"}
)

// Validation detail messages.
const (
	MsgPasswordMismatch = "Passwords do not match"
	MsgInvalidEmail     = "A valid email address is required"
	MsgPasswordTooShort = "Password must be at least 8 characters"
	MsgFirstNameMissing = "First name is required"
	MsgLastNameMissing  = "Last name is required"
	MsgEmailTooLong     = "Email must be at most 255 characters"
	MsgNameTooLong      = "Names must be at most 100 characters"
)
