package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrorCode classifies failures so transports can map them without string matching.
type ErrorCode string

const (
	CodeUnauthenticated           ErrorCode = "UNAUTHENTICATED"
	CodeNotAuthorized             ErrorCode = "NOT_AUTHORIZED"
	CodeNotFound                  ErrorCode = "NOT_FOUND"
	CodeAlreadyCompleted          ErrorCode = "ALREADY_COMPLETED"
	CodeUnsupportedCompletionPath ErrorCode = "UNSUPPORTED_COMPLETION_PATH"
	CodeInactiveTask              ErrorCode = "INACTIVE_TASK"
	CodeInvalidArgument           ErrorCode = "INVALID_ARGUMENT"
	CodeInternal                  ErrorCode = "INTERNAL"
)

// Error is a classified service failure.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on code so errors.Is(err, ErrTaskNotFound) holds for any NOT_FOUND error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// NewError builds a classified error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError attaches a classification to an underlying error.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

var (
	ErrUnauthenticated  = NewError(CodeUnauthenticated, "user not authenticated")
	ErrNotAuthorized    = NewError(CodeNotAuthorized, "not an admin")
	ErrTaskNotFound     = NewError(CodeNotFound, "task not found")
	ErrProfileNotFound  = NewError(CodeNotFound, "user profile not found")
	ErrTargetNotFound   = NewError(CodeNotFound, "target user profile not found")
	ErrAlreadyCompleted = NewError(CodeAlreadyCompleted, "task already completed")
	ErrUnsupportedPath  = NewError(CodeUnsupportedCompletionPath, "task type cannot be completed this way")
	ErrInactiveTask     = NewError(CodeInactiveTask, "task is not active")
)

// CodeOf returns the classification of err, CodeInternal for unclassified errors.
func CodeOf(err error) ErrorCode {
	var sErr *Error
	if errors.As(err, &sErr) {
		return sErr.Code
	}
	return CodeInternal
}

func invalid(format string, args ...interface{}) *Error {
	return NewError(CodeInvalidArgument, fmt.Sprintf(format, args...))
}

// isDuplicateKey detects unique-index violations. TranslateError covers the
// supported drivers; the message check catches connections opened without it.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
