package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an operational fault. Each kind has a stable wire
// code and a fixed HTTP status; handlers never invent codes ad hoc.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindInsufficientFunds
	KindRateLimited
	KindConstraintViolation
	KindUnauthorized
	KindForbidden
)

// Error is the one error type the service surfaces. Operational faults
// bubble up unchanged; the HTTP boundary serializes Code/Message/Details
// into the error envelope.
type Error struct {
	Kind    Kind
	Message string
	Details any
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.wrapped)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.wrapped }

func (e *Error) Code() string {
	switch e.Kind {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindInsufficientFunds:
		return "INSUFFICIENT_FUNDS"
	case KindRateLimited:
		return "RATE_LIMIT_EXCEEDED"
	case KindConstraintViolation:
		return "CONSTRAINT_VIOLATION"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindForbidden:
		return "FORBIDDEN"
	default:
		return "INTERNAL_ERROR"
	}
}

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindInsufficientFunds, KindConstraintViolation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func Validation(msg string, details any) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// InsufficientFunds carries the available/required pair so clients can
// show exactly how short the source wallet is.
func InsufficientFunds(available, required string) *Error {
	return &Error{
		Kind:    KindInsufficientFunds,
		Message: "insufficient funds",
		Details: map[string]string{"available": available, "required": required},
	}
}

func RateLimited() *Error {
	return &Error{Kind: KindRateLimited, Message: "rate limit exceeded"}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func ConstraintViolation(msg string, err error) *Error {
	return &Error{Kind: KindConstraintViolation, Message: msg, wrapped: err}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, wrapped: err}
}

// As extracts an *Error from any error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, k Kind) bool {
	if e, ok := As(err); ok {
		return e.Kind == k
	}
	return false
}
