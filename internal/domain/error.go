package domain

import (
	"errors"
	"fmt"
)

// Application error codes.
// These map to HTTP status codes and determine user-facing messages.
const (
	EINVALID  = "invalid"   // 400 - Input out of bounds
	ENOTFOUND = "not_found" // 404 - Unit, version or settings missing
	ESTATE    = "state"     // 409 - Operation not allowed for the version's state
	ECAPACITY = "capacity"  // 422 - Financed principal above the mortgage cap
	EINTERNAL = "internal"  // 500 - Internal error (hide details)
)

// Error represents an application error with a code and message.
// It implements the error interface and supports error wrapping.
type Error struct {
	// Code is a machine-readable error code (e.g., EINVALID, ENOTFOUND).
	Code string

	// Message is a human-readable error message safe to show to users.
	Message string

	// Op is the operation where the error occurred (e.g., "versioning.Activate").
	// Used for debugging and logging, not shown to users.
	Op string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the error code from an error.
// Returns EINTERNAL for non-domain errors and "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return EINTERNAL
}

// ErrorMessage extracts a user-facing message from an error.
// For internal errors, returns a generic message to avoid leaking details.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) && e.Code != EINTERNAL {
		return e.Message
	}

	return "An internal error occurred. Please try again later."
}

// IsCode returns true if err has the given error code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// Errorf creates a new domain error with formatted message.
func Errorf(code, op, format string, args ...interface{}) error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Invalid creates a validation error.
// Example: domain.Invalid("installment.standard", "term must be positive")
func Invalid(op, message string) error {
	return &Error{Code: EINVALID, Op: op, Message: message}
}

// Capacity creates an error for a financed principal above the mortgage cap.
func Capacity(op, message string) error {
	return &Error{Code: ECAPACITY, Op: op, Message: message}
}

// State creates an error for an operation the version's state does not allow.
func State(op, message string) error {
	return &Error{Code: ESTATE, Op: op, Message: message}
}

// NotFound creates a not found error for a resource.
// Example: domain.NotFound("pricing.options", "unit", "42")
func NotFound(op, resource, identifier string) error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s not found: %s", resource, identifier),
	}
}

// Internal wraps an underlying error as an internal error.
func Internal(err error, op, message string) error {
	return &Error{Code: EINTERNAL, Op: op, Message: message, Err: err}
}

// Pre-defined state errors.
var (
	ErrNoActiveVersion = &Error{
		Code:    ESTATE,
		Message: "no active discount version",
	}

	ErrVersionNotEditable = &Error{
		Code:    ESTATE,
		Message: "active or previously active versions cannot be edited; create a new draft",
	}

	ErrImmutableVersion = &Error{
		Code:    ESTATE,
		Message: "a version that was ever active cannot be deleted",
	}

	ErrSettingsNotFound = &Error{
		Code:    ENOTFOUND,
		Message: "calculator settings not found",
	}
)
