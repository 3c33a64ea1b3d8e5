package helpers

import (
	"context"
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type FinLinkError struct {
	Message string
	Cause   error
}

func (e *FinLinkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *FinLinkError) Unwrap() error {
	return e.Cause
}

// Helper to define distinct error types for type assertions if needed
type TransportError struct{ FinLinkError }
type ProtocolError struct{ FinLinkError }
type StorageError struct{ FinLinkError }
type ValidationError struct{ FinLinkError }

// -----------------------------------------------------------------------------

func NewTransportError(message string, cause error) error {
	return &TransportError{FinLinkError{Message: message, Cause: cause}}
}

func NewProtocolError(message string, cause error) error {
	return &ProtocolError{FinLinkError{Message: message, Cause: cause}}
}

func NewStorageError(message string, cause error) error {
	return &StorageError{FinLinkError{Message: message, Cause: cause}}
}

func NewValidationError(message string) error {
	return &ValidationError{FinLinkError{Message: message}}
}

// -----------------------------------------------------------------------------
// Cancellation
// -----------------------------------------------------------------------------

// ErrCancelled marks a user-initiated cancel. It is a normal termination
// signal, never surfaced to the UI as a failure.
var ErrCancelled = errors.New("request cancelled")

// -----------------------------------------------------------------------------

// IsCancellation reports whether err stems from a deliberate cancel rather
// than a transport failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}
