// Package apperr defines the error taxonomy shared by the attendance and
// event lifecycle services. Every rejection carries a Kind (used for HTTP
// mapping and retry decisions) and a Code (a stable machine-readable reason).
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindValidation
	KindConflict
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	default:
		return "internal"
	}
}

type Code string

const (
	CodeNotFound           Code = "NOT_FOUND"
	CodeInvalidTicket      Code = "INVALID_TICKET"
	CodeEventNotOngoing    Code = "EVENT_NOT_ONGOING"
	CodeAlreadyCheckedIn   Code = "ALREADY_CHECKED_IN"
	CodeNotCheckedIn       Code = "NOT_CHECKED_IN"
	CodeForbidden          Code = "FORBIDDEN"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeWriteConflict      Code = "WRITE_CONFLICT"
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
	CodeInternal           Code = "INTERNAL"
)

// Error is a structured rejection. Message is safe to show to callers; Err
// holds the underlying cause and is only ever logged.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	// Status is the current event status for EVENT_NOT_ONGOING rejections
	// and the ticket's check-in state for ALREADY_CHECKED_IN ones.
	Status string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so sentinels like ErrWriteConflict compare equal to any
// error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrWriteConflict      = &Error{Kind: KindConflict, Code: CodeWriteConflict, Message: "Concurrent update detected, please retry"}
	ErrStorageUnavailable = &Error{Kind: KindTransient, Code: CodeStorageUnavailable, Message: "Storage temporarily unavailable, please retry"}
)

func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code Code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func NotFound(message string) *Error {
	return New(KindNotFound, CodeNotFound, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, CodeForbidden, message)
}

// Unauthorized is a missing or unverifiable identity, as opposed to an
// identity without permission.
func Unauthorized(message string) *Error {
	return New(KindForbidden, CodeUnauthorized, message)
}

func Validation(message string) *Error {
	return New(KindValidation, CodeValidation, message)
}

func InvalidTicket(message string) *Error {
	return New(KindValidation, CodeInvalidTicket, message)
}

func EventNotOngoing(status string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeEventNotOngoing,
		Message: fmt.Sprintf("Event is %s", status),
		Status:  status,
	}
}

func AlreadyCheckedIn(state string) *Error {
	return &Error{
		Kind:    KindConflict,
		Code:    CodeAlreadyCheckedIn,
		Message: "Ticket already checked in",
		Status:  state,
	}
}

func NotCheckedIn() *Error {
	return New(KindValidation, CodeNotCheckedIn, "Ticket is not checked in")
}

func WriteConflict(err error) *Error {
	return Wrap(KindConflict, CodeWriteConflict, ErrWriteConflict.Message, err)
}

func Transient(err error) *Error {
	return Wrap(KindTransient, CodeStorageUnavailable, ErrStorageUnavailable.Message, err)
}

func Internal(err error) *Error {
	return Wrap(KindInternal, CodeInternal, "Internal server error", err)
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}

// IsRetryable reports whether the whole unit of work may be replayed.
func IsRetryable(err error) bool {
	e, ok := As(err)
	if !ok {
		return false
	}
	return e.Code == CodeWriteConflict || e.Kind == KindTransient
}

func HTTPStatus(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	if e.Code == CodeUnauthorized {
		return http.StatusUnauthorized
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
