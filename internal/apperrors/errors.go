// Package apperrors implements the error taxonomy every operation in the
// core returns on failure: a small closed set of error types with defined
// propagation behavior, so callers can branch on what happened instead of
// matching error strings.
package apperrors

import (
	"errors"
	"fmt"
)

// ErrorType is one of the seven categories recognized by the core.
type ErrorType string

const (
	// Validation means the caller supplied malformed or inconsistent input.
	// Never retried; the caller must fix the request.
	Validation ErrorType = "validation"

	// NotFound means the referenced entity does not exist.
	NotFound ErrorType = "not_found"

	// PermissionDenied means the actor is not authorized for the operation.
	PermissionDenied ErrorType = "permission_denied"

	// StateError means the operation is invalid for the entity's current
	// lifecycle state (e.g. approving an already-rejected request).
	StateError ErrorType = "state_error"

	// TransientExternal means an injected collaborator (EntitlementSource,
	// Notifier, Provisioner) failed in a way that may succeed on retry.
	TransientExternal ErrorType = "transient_external"

	// PermanentExternal means a collaborator failed in a way retrying won't
	// fix (e.g. the target system rejected the provisioning payload).
	PermanentExternal ErrorType = "permanent_external"

	// Fatal means an invariant of the core itself was violated; callers
	// should not retry and should treat the enclosing operation as broken.
	Fatal ErrorType = "fatal"
)

// AppError is the error type returned by every core operation.
type AppError struct {
	Type    ErrorType
	Message string
	Details string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// New creates an AppError with no underlying cause.
func New(t ErrorType, message string) *AppError {
	return &AppError{Type: t, Message: message}
}

// Newf creates an AppError with a formatted message.
func Newf(t ErrorType, format string, args ...interface{}) *AppError {
	return &AppError{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a type and message to an underlying error, preserving it
// for errors.Is/As and %w-style unwrapping.
func Wrap(err error, t ErrorType, message string) *AppError {
	return &AppError{Type: t, Message: message, Cause: err}
}

func Wrapf(err error, t ErrorType, format string, args ...interface{}) *AppError {
	return &AppError{Type: t, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithDetails attaches additional context (e.g. the offending field) to an
// existing AppError without discarding its type or cause.
func (e *AppError) WithDetails(details string) *AppError {
	return &AppError{Type: e.Type, Message: e.Message, Details: details, Cause: e.Cause}
}

func (e *AppError) WithDetailsf(format string, args ...interface{}) *AppError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Type == t
	}
	return false
}

// GetType returns the AppError's type, or Fatal if err is not an AppError —
// an un-typed error escaping to a caller is itself a bug in the core.
func GetType(err error) ErrorType {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Type
	}
	return Fatal
}

// Retryable reports whether the recovery policy for err's type is to retry
// the call (spec's TransientExternal bucket, and only that bucket).
func Retryable(err error) bool {
	return GetType(err) == TransientExternal
}

func NewValidationError(message string) *AppError       { return New(Validation, message) }
func NewNotFoundError(message string) *AppError          { return New(NotFound, message) }
func NewPermissionDeniedError(message string) *AppError  { return New(PermissionDenied, message) }
func NewStateError(message string) *AppError             { return New(StateError, message) }
func NewTransientExternalError(message string) *AppError { return New(TransientExternal, message) }
func NewPermanentExternalError(message string) *AppError { return New(PermanentExternal, message) }
func NewFatalError(message string) *AppError             { return New(Fatal, message) }
