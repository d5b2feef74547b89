package tts

import (
	"errors"
	"fmt"
)

// Common provider failure causes
var (
	// ErrBadStatus is the cause when the provider answers with a failure status
	ErrBadStatus = errors.New("provider returned failure status")

	// ErrMalformedResponse is the cause when the response lacks the audio payload
	ErrMalformedResponse = errors.New("malformed provider response")
)

// ProviderError reports a failed provider call. Any ProviderError aborts
// the whole synthesis request.
type ProviderError struct {
	// Provider is the provider that failed
	Provider string

	// Chunk is the index of the chunk being synthesized
	Chunk int

	// StatusCode is the upstream HTTP status, 0 when no response was received
	StatusCode int

	// Message is a short description
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: chunk %d: %s", e.Provider, e.Chunk, e.Message)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// IsProviderError reports whether err is or wraps a *ProviderError
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
