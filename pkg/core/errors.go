// Package core holds the error taxonomy shared by the Universe engine
// packages. All externally visible failures degrade the experience (an
// enhancement is skipped) rather than halting the conversation; the typed
// kinds let callers branch deterministically.
package core

import "fmt"

// ErrorType categorizes engine errors.
type ErrorType string

const (
	// ErrInvalidRequest means the caller passed unusable input.
	ErrInvalidRequest ErrorType = "invalid_request_error"
	// ErrAuthentication means credentials are absent or rejected.
	ErrAuthentication ErrorType = "authentication_error"
	// ErrRateLimit means the provider throttled the call.
	ErrRateLimit ErrorType = "rate_limit_error"
	// ErrProvider means the provider call failed for any other reason.
	ErrProvider ErrorType = "provider_error"
	// ErrDecode means an audio payload could not be decoded.
	ErrDecode ErrorType = "decode_error"
	// ErrCapture means voice capture failed (device, permissions, no speech).
	ErrCapture ErrorType = "capture_error"
	// ErrUnavailable means a required local capability is absent
	// (no audio output device, no microphone tooling).
	ErrUnavailable ErrorType = "unavailable_error"
)

// Error is the engine error value.
type Error struct {
	Type    ErrorType
	Message string
	// Underlying is the wrapped cause, if any.
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Underlying }

// IsRetryable reports whether retrying the operation may succeed.
// Authentication and invalid-request failures are deterministic and never
// retried; rate limits and generic provider failures may clear.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrRateLimit, ErrProvider:
		return true
	default:
		return false
	}
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{Type: ErrAuthentication, Message: message}
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(message string, cause error) *Error {
	return &Error{Type: ErrRateLimit, Message: message, Underlying: cause}
}

// NewProviderError wraps a provider failure.
func NewProviderError(op string, cause error) *Error {
	return &Error{Type: ErrProvider, Message: op, Underlying: cause}
}

// NewDecodeError wraps an audio decode failure.
func NewDecodeError(message string, cause error) *Error {
	return &Error{Type: ErrDecode, Message: message, Underlying: cause}
}

// NewCaptureError wraps a voice capture failure.
func NewCaptureError(message string, cause error) *Error {
	return &Error{Type: ErrCapture, Message: message, Underlying: cause}
}

// NewUnavailableError reports an absent local capability.
func NewUnavailableError(message string) *Error {
	return &Error{Type: ErrUnavailable, Message: message}
}
