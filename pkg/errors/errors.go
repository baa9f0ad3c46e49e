package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness. Details carries
// field-keyed validation messages or machine-readable context.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Status  int               `json:"status"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// WithDetails returns a copy of the error carrying the given detail map.
func WithDetails(err *Error, details map[string]string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.Details = details
	return &clone
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid username or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	ErrPastDateEdit       = New("PAST_DATE_EDIT_FORBIDDEN", http.StatusForbidden, "past-date editing requires admin privileges")
	ErrDateMismatch       = New("DATE_MISMATCH", http.StatusForbidden, "target date does not match the session date")
	ErrIllegalTransition  = New("ILLEGAL_TRANSITION", http.StatusForbidden, "workflow transition not allowed")
	ErrResultFrozen       = New("RESULT_FROZEN", http.StatusBadRequest, "result is frozen and cannot be modified")
	ErrResultPublished    = New("RESULT_PUBLISHED", http.StatusBadRequest, "published results require a pending change request")
	ErrInvalidPeriodCount = New("INVALID_PERIOD_COUNT", http.StatusBadRequest, "each day must have exactly three filled periods")
	ErrLegacyWriteBlocked = New("LEGACY_WRITE_BLOCKED", http.StatusConflict, "writes to the legacy API are disabled")
	ErrPolicyFieldLocked  = New("POLICY_FIELD_LOCKED", http.StatusForbidden, "academic policy fields cannot be changed by this role")
	ErrLastAdmin          = New("LAST_ADMIN", http.StatusConflict, "cannot deactivate the last administrator")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
