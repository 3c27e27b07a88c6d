package service

import (
	"errors"
	"fmt"

	"hygienix/backend/internal/notify"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidOTP         = errors.New("invalid otp")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

// ValidationError is a missing or malformed request field. It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationErr(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Notifier accepts messages for asynchronous delivery. Implementations must
// not block and must not report delivery failures.
type Notifier interface {
	Dispatch(msgs ...notify.Message)
}
