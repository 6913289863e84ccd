package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind is the closed set of error classifications used across the dashboard.
// Handling sites switch over Kind instead of matching backend code strings.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindMultipleRows
	KindAccessDenied
	KindTimeout
	KindMissingRelationship
	KindValidation
	KindMutationFailed
	KindUnauthenticated
)

var kindNames = [...]string{
	KindUnknown:             "UNKNOWN",
	KindNotFound:            "NOT_FOUND",
	KindMultipleRows:        "MULTIPLE_ROWS",
	KindAccessDenied:        "ACCESS_DENIED",
	KindTimeout:             "TIMEOUT",
	KindMissingRelationship: "MISSING_RELATIONSHIP",
	KindValidation:          "VALIDATION_FAILED",
	KindMutationFailed:      "MUTATION_FAILED",
	KindUnauthenticated:     "UNAUTHENTICATED",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// Error represents a classified error with message, optional details and cause
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	return HTTPStatus(e.Kind)
}

// New creates a new Error with the given kind and message
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// Newf creates a new Error with formatted message
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with kind and message.
// Returns nil when err is nil.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Wrapf wraps an existing error with kind and formatted message
func Wrapf(err error, kind Kind, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// KindOf extracts the classification of err. Context deadlines are reported
// as KindTimeout even when no backend wrapped them.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// Is reports whether err is classified as kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsDegradable reports whether a read error should degrade the caller to
// an unprivileged result rather than fail. Exhaustive over Kind.
func IsDegradable(kind Kind) bool {
	switch kind {
	case KindAccessDenied, KindTimeout:
		return true
	case KindUnknown, KindNotFound, KindMultipleRows, KindMissingRelationship,
		KindValidation, KindMutationFailed, KindUnauthenticated:
		return false
	}
	return false
}

// HTTPStatus maps error kinds to HTTP status codes
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindAccessDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindMultipleRows:
		return http.StatusConflict
	case KindTimeout:
		return http.StatusServiceUnavailable
	case KindMutationFailed, KindMissingRelationship, KindUnknown:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// NotFound creates a "not found" error
func NotFound(resourceType, identifier string) *Error {
	return Newf(KindNotFound, "%s not found: %s", resourceType, identifier)
}

// Validation creates a field validation error. The field name is kept in
// Details so handlers can render it next to the offending input.
func Validation(field, reason string) *Error {
	return Newf(KindValidation, "invalid %s: %s", field, reason).WithDetail("field", field)
}

// MutationFailed wraps a failed write
func MutationFailed(err error, op string) *Error {
	return Wrapf(err, KindMutationFailed, "%s failed", op)
}

// Unauthenticated creates an "unauthenticated" error
func Unauthenticated(message string) *Error {
	return New(KindUnauthenticated, message)
}
