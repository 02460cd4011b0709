package matching

import (
	"errors"
	"fmt"
)

// Code classifies engine failures so transports can render them without
// inspecting messages.
type Code string

const (
	CodeValidation      Code = "VALIDATION"
	CodeNotFound        Code = "NOT_FOUND"
	CodeForbidden       Code = "FORBIDDEN"
	CodeConflict        Code = "CONFLICT"
	CodeEventExpired    Code = "EVENT_EXPIRED"
	CodeEventNotStarted Code = "EVENT_NOT_STARTED"
	CodeUserBlocked     Code = "USER_BLOCKED"
	CodeMatchArchived   Code = "MATCH_ARCHIVED"
	CodeInternal        Code = "INTERNAL"
)

// Error is the failure type returned by every engine operation.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func wrapInternal(msg string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: msg, Cause: cause}
}

func Validation(msg string) error { return newError(CodeValidation, msg) }
func NotFound(msg string) error   { return newError(CodeNotFound, msg) }
func Forbidden(msg string) error  { return newError(CodeForbidden, msg) }
func Conflict(msg string) error   { return newError(CodeConflict, msg) }

var (
	ErrEventExpired    error = newError(CodeEventExpired, "event has ended")
	ErrEventNotStarted error = newError(CodeEventNotStarted, "event has not started")
	ErrMatchArchived   error = newError(CodeMatchArchived, "conversation is archived")
)

func userBlocked(msg string) error { return newError(CodeUserBlocked, msg) }

// CodeOf reports the code carried by err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
