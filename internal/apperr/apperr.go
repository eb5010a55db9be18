// Package apperr defines the stable error vocabulary returned across every
// external and internal boundary of the service. Callers compare against
// the Kind constants with Is or KindOf (which unwrap via errors.As) rather
// than by matching error strings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a stable, user-facing error classification.
type Kind string

const (
	InvalidInput    Kind = "INVALID_INPUT"
	OutOfOrder      Kind = "OUT_OF_ORDER"
	NotFound        Kind = "NOT_FOUND"
	Conflict        Kind = "CONFLICT"
	RateLimited     Kind = "RATE_LIMITED"
	QuotaExceeded   Kind = "QUOTA_EXCEEDED"
	StoreTransient  Kind = "STORE_TRANSIENT"
	StoreConflict   Kind = "STORE_CONFLICT"
	StoreFatal      Kind = "STORE_FATAL"
	Timeout         Kind = "TIMEOUT"
	Degraded        Kind = "DEGRADED"
)

// httpStatus maps each Kind to the HTTP status code the API layer returns.
var httpStatus = map[Kind]int{
	InvalidInput:   http.StatusBadRequest,
	OutOfOrder:     http.StatusConflict,
	NotFound:       http.StatusNotFound,
	Conflict:       http.StatusConflict,
	RateLimited:    http.StatusTooManyRequests,
	QuotaExceeded:  http.StatusForbidden,
	StoreTransient: http.StatusServiceUnavailable,
	StoreConflict:  http.StatusConflict,
	StoreFatal:     http.StatusInternalServerError,
	Timeout:        http.StatusGatewayTimeout,
	Degraded:       http.StatusServiceUnavailable,
}

// Retryable reports whether a client should retry without altering the request.
var retryable = map[Kind]bool{
	RateLimited:    true,
	StoreTransient: true,
	Timeout:        true,
	Degraded:       true,
}

// Error is the concrete error type carrying a Kind plus a human message and
// optional structured details (e.g. retry_after, limit, current).
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus returns the status code this error should be reported with.
func (e *Error) HTTPStatus() int {
	if s, ok := httpStatus[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Retryable reports whether the caller may retry the same request as-is.
func (e *Error) Retryable() bool {
	return retryable[e.Kind]
}

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind and message to an underlying error, preserving it for
// errors.Is/As and logging.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithDetails returns a copy of e with Details set.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	out := *e
	out.Details = details
	return &out
}

// Is reports whether err carries the given Kind, looking through wrapped errors.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, defaulting to StoreFatal for unclassified
// errors so unexpected failures never leak as 200s or silently vanish.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return StoreFatal
}
