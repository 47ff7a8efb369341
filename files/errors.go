package files

import (
	"errors"
	"fmt"
)

// ErrNotFound covers unknown tokens, expired files and files owned by
// someone else. Callers cannot tell these apart.
var ErrNotFound = errors.New("file not found")

var ErrTokenExhausted = errors.New("could not allocate a unique file token")

const (
	CodeExpiryRequired = "expiry-required"
	CodeExpiryPast     = "expiry-time-past"
	CodeExpiryTooFar   = "expiry-time-too-far"
	CodeFileTooLarge   = "file-size-too-large"
)

// ValidationError is a rejected upload. Field names the form field the
// message belongs to.
type ValidationError struct {
	Field   string
	Code    string
	Message string
	// MaxOffsetHours is set for CodeExpiryTooFar.
	MaxOffsetHours int64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func expiryRequired() *ValidationError {
	return &ValidationError{
		Field:   "expiry_datetime",
		Code:    CodeExpiryRequired,
		Message: "An expiry time is required.",
	}
}

func expiryInPast() *ValidationError {
	return &ValidationError{
		Field:   "expiry_datetime",
		Code:    CodeExpiryPast,
		Message: "You can't upload a file with an expiry time in the past.",
	}
}

func expiryTooFar(hours int64) *ValidationError {
	return &ValidationError{
		Field:          "expiry_datetime",
		Code:           CodeExpiryTooFar,
		Message:        fmt.Sprintf("You can't upload a file with an expiry time more than %d hours in the future.", hours),
		MaxOffsetHours: hours,
	}
}

// FileTooLarge is returned by upload handlers before a record is created.
func FileTooLarge(limit string) *ValidationError {
	return &ValidationError{
		Field:   "file",
		Code:    CodeFileTooLarge,
		Message: "You can't upload a file larger than " + limit,
	}
}
