// Package apperr defines the error taxonomy shared by the services and the
// HTTP layer.
//
// Services return *Error values (usually one of the package-level named
// errors below, optionally wrapped with fmt.Errorf("...: %w", err)). The HTTP
// layer maps Kind to a status code. Stores do not return *Error; they return
// their own sentinels which services translate.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindForbidden
	KindUnauthorized
	KindLocked
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindLocked:
		return "locked"
	case KindExternal:
		return "external_dependency_error"
	default:
		return "internal_error"
	}
}

// Error is a classified error with a stable machine-readable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same Code, so wrapped copies of a named
// error still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// New returns an error of the given kind.
func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Validation returns a validation error with a user-facing message.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Code: "validation_error", Message: msg}
}

// External wraps a failed call to a collaborator (gateway, notifier).
func External(op string, err error) *Error {
	return &Error{Kind: KindExternal, Code: "external_dependency_error", Message: op + " failed", Err: err}
}

// Internal wraps an unexpected failure (usually persistence).
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal_error", Message: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal_error"
}

// Named errors used across services.
var (
	ErrNotFound              = New(KindNotFound, "not_found", "not found")
	ErrForbidden             = New(KindForbidden, "forbidden", "forbidden")
	ErrDuplicateEmail        = New(KindConflict, "duplicate_email", "a user with this email already exists")
	ErrInvalidOrExpiredToken = New(KindValidation, "invalid_or_expired_token", "verification link is invalid or has expired")
	ErrAccountLocked         = New(KindLocked, "account_locked", "account is temporarily locked")
	ErrInvalidCredentials    = New(KindUnauthorized, "invalid_credentials", "invalid email or password")
	ErrLeaderNotFound        = New(KindNotFound, "leader_not_found", "leader not found")
	ErrTeamNotFound          = New(KindNotFound, "team_not_found", "team not found")
	ErrTeamFull              = New(KindConflict, "team_full", "team is full")
	ErrAlreadyOnTeam         = New(KindConflict, "already_on_team", "user already belongs to a team")
	ErrNotSolo               = New(KindConflict, "not_solo", "only solo participants can do this")
	ErrAlreadyDecided        = New(KindConflict, "already_decided", "join request has already been decided")
	ErrPaymentNotFound       = New(KindNotFound, "payment_not_found", "payment not found")
	ErrPaymentSettled        = New(KindConflict, "payment_settled", "payment is already settled")
	ErrRegistrationClosed    = New(KindForbidden, "registration_closed", "registration is closed")
	ErrUnauthenticated       = New(KindUnauthorized, "unauthenticated", "authentication required")
)
