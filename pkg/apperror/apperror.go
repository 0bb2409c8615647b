package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP layer
type Kind string

const (
	KindValidation        Kind = "VALIDATION_ERROR"
	KindNotFound          Kind = "NOT_FOUND"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindConflict          Kind = "CONFLICT"
	KindIntegrity         Kind = "INTEGRITY_FAILURE"
	KindUnauthorized      Kind = "UNAUTHORIZED"
)

// Error is the error type returned by services
type Error struct {
	Kind    Kind                   `json:"-"`
	Code    string                 `json:"code,omitempty"`
	Message string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status code the handler should answer with
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindInsufficientStock:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// WithDetail attaches a key/value to Details and returns e
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = value
	return e
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func Validationf(format string, args ...interface{}) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

// NotFound names the missing entity, e.g. NotFound("Buku", 12)
func NotFound(entity string, id interface{}) *Error {
	return (&Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s tidak ditemukan", entity),
	}).WithDetail("id", id)
}

// InsufficientStock names the offending item and the quantities involved
func InsufficientStock(item string, available, requested int) *Error {
	return &Error{
		Kind:    KindInsufficientStock,
		Message: fmt.Sprintf("Stok tidak mencukupi untuk %s (tersedia %d, diminta %d)", item, available, requested),
		Details: map[string]interface{}{
			"item":      item,
			"available": available,
			"requested": requested,
		},
	}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// Unauthorized is a failed credential check
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Integrity wraps a failure inside an atomic unit. The cause is kept for
// logging but never rendered.
func Integrity(message string, cause error) *Error {
	return &Error{Kind: KindIntegrity, Message: message, Err: cause}
}

// As extracts an *Error from err's chain
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries an *Error of the given kind
func Is(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

// EnsureTyped passes typed errors through and wraps anything else as an
// IntegrityFailure with the given message.
func EnsureTyped(err error, message string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	return Integrity(message, err)
}
