package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failure for the HTTP boundary.
type Kind string

const (
	KindNotFound  Kind = "not_found"
	KindForbidden Kind = "forbidden"
	KindConflict  Kind = "conflict"
	KindInternal  Kind = "internal"
)

// Error is the error type returned by every engine operation.
type Error struct {
	Kind      Kind
	Op        string
	Message   string
	Cause     error
	Retryable bool
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Kind)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Kind)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus is the response status the boundary should use.
// Business conflicts are 400; storage conflicts the caller may retry are 409.
func (e *Error) HTTPStatus() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		if e.Retryable {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, op, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

func NotFound(op, message string) error {
	return New(KindNotFound, op, message, nil)
}

func Forbidden(op, message string) error {
	return New(KindForbidden, op, message, nil)
}

// Conflict reports a business-rule violation. It is never retryable.
func Conflict(op, message string) error {
	return New(KindConflict, op, message, nil)
}

// Retryable reports a storage conflict or timeout; the caller may re-issue the request.
func Retryable(op, message string, cause error) error {
	e := New(KindConflict, op, message, cause)
	e.Retryable = true
	return e
}

func Internal(op string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return New(KindInternal, op, msg, cause)
}

// IsKind reports whether err (or a wrapped error) carries kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf extracts the kind, or "" for untyped errors.
func KindOf(err error) Kind {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return ""
	}
	return appErr.Kind
}

func IsRetryable(err error) bool {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Retryable
}

// Status returns the HTTP status hint for any error.
func Status(err error) int {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	return appErr.HTTPStatus()
}
