package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how it is surfaced to the caller
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

// Error is a caller-facing error. Message is safe to return to clients.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status for the error kind
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...any) *Error {
	return newError(KindUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newError(KindForbidden, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

func Validation(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

var (
	ErrUnauthenticated      = Unauthorized("authentication required")
	ErrInvalidCredentials   = Unauthorized("invalid email or password")
	ErrAdminOnly            = Forbidden("admin role required")
	ErrNotAssignee          = Forbidden("job is not assigned to you")
	ErrJobNotFound          = NotFound("job not found")
	ErrOrganisationNotFound = NotFound("organisation not found")
	ErrUserNotFound         = NotFound("user not found")

	// ErrStaleState is returned when a conditional update matched no rows
	ErrStaleState = Conflict("job state changed, reload and retry")
	// ErrNoLongerAvailable is the reserve flavour of ErrStaleState
	ErrNoLongerAvailable = Conflict("job is no longer available")
)

// KindOf returns the kind of err, or KindInternal for foreign errors
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
