package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// StatusCode classifies an error into a stable, machine-readable category.
// Clients branch on the category, never on the message text.
type StatusCode int

const (
	// OK means no error. It never appears inside an Error.
	OK StatusCode = iota
	// InvalidArgument indicates the caller supplied a malformed or
	// out-of-range input.
	InvalidArgument
	// NotFound indicates a referenced resource (flow, stream, ...) does not
	// exist. For stream replay this is a normal outcome, not a fault.
	NotFound
	// PermissionDenied indicates the caller is known but not allowed.
	PermissionDenied
	// Unauthenticated indicates the caller could not be identified.
	Unauthenticated
	// Unavailable indicates a transient condition; the call may be retried.
	Unavailable
	// Internal covers everything else, including recovered panics from user
	// flow code.
	Internal
)

// HTTPStatus maps the category to the HTTP status code used by the wire
// adapter.
func (s StatusCode) HTTPStatus() int {
	switch s {
	case OK:
		return http.StatusOK
	case InvalidArgument:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case PermissionDenied:
		return http.StatusForbidden
	case Unauthenticated:
		return http.StatusUnauthorized
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WireName returns the reason-phrase style name clients see in error
// envelopes, e.g. "INTERNAL_SERVER_ERROR" or "NOT_FOUND".
func (s StatusCode) WireName() string {
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(s.HTTPStatus()), " ", "_"))
}

// String returns the category name for logs.
func (s StatusCode) String() string {
	switch s {
	case OK:
		return "OK"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case NotFound:
		return "NOT_FOUND"
	case PermissionDenied:
		return "PERMISSION_DENIED"
	case Unauthenticated:
		return "UNAUTHENTICATED"
	case Unavailable:
		return "UNAVAILABLE"
	case Internal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// Error is the structured error carried from flow code out to clients. It
// pairs a stable StatusCode with a human message and optional structured
// detail. Errors raised inside user flow code are converted to an Error at
// the executor boundary; they never escape as raw transport faults.
type Error struct {
	Status  StatusCode `json:"status"`
	Message string     `json:"message"`
	Details any        `json:"details,omitempty"`

	public bool
}

// NewError creates an Error with the given category and printf-style message.
func NewError(status StatusCode, format string, args ...any) *Error {
	return &Error{Status: status, Message: fmt.Sprintf(format, args...)}
}

// NewPublicError creates an Error whose message is safe to show verbatim to
// end users. Non-public internal errors may be redacted by outer layers.
func NewPublicError(status StatusCode, message string, details any) *Error {
	return &Error{Status: status, Message: message, Details: details, public: true}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

// Public reports whether the message is intended for end users.
func (e *Error) Public() bool { return e.public }

// HTTPStatus returns the transport status for this error.
func (e *Error) HTTPStatus() int { return e.Status.HTTPStatus() }

// StatusOf extracts the StatusCode from any error. Unclassified errors are
// Internal.
func StatusOf(err error) StatusCode {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Status
	}
	return Internal
}

// ToError converts any error into an *Error, passing classified errors
// through unchanged.
func ToError(err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return &Error{Status: Internal, Message: err.Error()}
}
