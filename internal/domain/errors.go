package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures reported by the rental and damage services.
type ErrorKind string

const (
	KindValidation    ErrorKind = "VALIDATION"
	KindConflict      ErrorKind = "CONFLICT"
	KindInvalidState  ErrorKind = "INVALID_STATE"
	KindNotFound      ErrorKind = "NOT_FOUND"
	KindAccessDenied  ErrorKind = "ACCESS_DENIED"
	KindPaymentFailed ErrorKind = "PAYMENT_FAILED"
	KindTransient     ErrorKind = "TRANSIENT"
)

// Error is a classified failure. Every kind except TRANSIENT is a business
// outcome that callers should not retry unchanged.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrConflict)
// works for every conflict regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrConflict      = &Error{Kind: KindConflict}
	ErrInvalidState  = &Error{Kind: KindInvalidState}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrAccessDenied  = &Error{Kind: KindAccessDenied}
	ErrPaymentFailed = &Error{Kind: KindPaymentFailed}
	ErrTransient     = &Error{Kind: KindTransient}
)

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validationf(format string, args ...any) error {
	return newError(KindValidation, nil, format, args...)
}

func Conflictf(format string, args ...any) error {
	return newError(KindConflict, nil, format, args...)
}

func InvalidStatef(format string, args ...any) error {
	return newError(KindInvalidState, nil, format, args...)
}

func NotFoundf(format string, args ...any) error {
	return newError(KindNotFound, nil, format, args...)
}

func AccessDeniedf(format string, args ...any) error {
	return newError(KindAccessDenied, nil, format, args...)
}

func PaymentFailed(err error, format string, args ...any) error {
	return newError(KindPaymentFailed, err, format, args...)
}

func Transient(err error, format string, args ...any) error {
	return newError(KindTransient, err, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain. Unclassified
// errors are reported as TRANSIENT.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindTransient
}
