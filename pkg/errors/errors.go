package errors

import (
	"errors"
	"fmt"
)

// Common errors shared across the playback service.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnknownDuration  = errors.New("media duration unknown")
	ErrMediaUnavailable = errors.New("media unavailable")
	ErrSessionClosed    = errors.New("viewer session closed")
	ErrRateLimited      = errors.New("rate limited")
)

// Error carries a message and a wrapped cause.
type Error struct {
	Message string
	Err     error
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

func New(message string) error {
	return &Error{Message: message}
}

// Wrap wraps an error with additional message
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Message: message, Err: err}
}

func IsUnknownDuration(err error) bool {
	return errors.Is(err, ErrUnknownDuration)
}
