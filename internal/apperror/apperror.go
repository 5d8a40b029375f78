// Package apperror defines the error taxonomy shared across the claims engine.
//
// Every error surfaced to a caller is one of the kinds below. Repositories and
// collaborators wrap low-level errors with fmt.Errorf("%w"); services convert
// them into typed Errors at the boundary.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the category of a domain error
type Kind string

const (
	// KindValidation marks malformed or policy-violating input. User-correctable.
	KindValidation Kind = "VALIDATION"

	// KindState marks an illegal lifecycle transition for the current status.
	// Distinct from authorization: it signals a stale client view.
	KindState Kind = "INVALID_STATE"

	// KindAuthorization marks a missing role or assignment relation.
	KindAuthorization Kind = "FORBIDDEN"

	// KindNotFound marks an absent referenced entity.
	KindNotFound Kind = "NOT_FOUND"

	// KindConcurrency marks an optimistic update that lost a race. Retryable.
	KindConcurrency Kind = "CONFLICT"

	// KindDependency marks an unreachable collaborator (blob store, directory).
	KindDependency Kind = "DEPENDENCY_FAILED"
)

// Violation is a single validation rule result attached to a claim
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Level   string `json:"level"` // "error" or "warn"
}

// Error is a typed domain error carrying its kind and an HTTP-equivalent status
type Error struct {
	Kind       Kind
	Message    string
	HTTPStatus int
	Violations []Violation // populated for validation errors only
	Err        error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap supports errors.Is / errors.As on the wrapped cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a validation error carrying the blocking violation list
func Validation(message string, violations []Violation) *Error {
	return &Error{
		Kind:       KindValidation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Violations: violations,
	}
}

// ValidationMsg creates a validation error without a violation list
func ValidationMsg(format string, args ...any) *Error {
	return &Error{
		Kind:       KindValidation,
		Message:    fmt.Sprintf(format, args...),
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// State creates an illegal-transition error
func State(format string, args ...any) *Error {
	return &Error{
		Kind:       KindState,
		Message:    fmt.Sprintf(format, args...),
		HTTPStatus: http.StatusConflict,
	}
}

// Forbidden creates an authorization error. The message stays generic so a
// caller with no visibility into the resource learns nothing about it.
func Forbidden() *Error {
	return &Error{
		Kind:       KindAuthorization,
		Message:    "access denied",
		HTTPStatus: http.StatusForbidden,
	}
}

// NotFound creates a missing-entity error
func NotFound(resource string) *Error {
	return &Error{
		Kind:       KindNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

// Concurrency creates a lost-race error; callers should retry the operation
func Concurrency(resource string) *Error {
	return &Error{
		Kind:       KindConcurrency,
		Message:    fmt.Sprintf("%s was modified concurrently", resource),
		HTTPStatus: http.StatusConflict,
	}
}

// Dependency wraps a collaborator failure
func Dependency(err error, collaborator string) *Error {
	return &Error{
		Kind:       KindDependency,
		Message:    fmt.Sprintf("%s unavailable", collaborator),
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// IsKind reports whether err is a domain error of the given kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// AsError extracts the typed error if present
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
