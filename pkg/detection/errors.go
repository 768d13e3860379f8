package detection

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrMalformed is returned when a backend produces unusable detections.
	ErrMalformed = errors.New("detection: malformed response")

	// ErrNoContent is returned when a content reference carries no image.
	ErrNoContent = errors.New("detection: content reference has no image")

	// ErrUnavailable is returned when a backend cannot run in this build or environment.
	ErrUnavailable = errors.New("detection: backend unavailable")

	// ErrNoDetectors is returned when a chain is built with no backends.
	ErrNoDetectors = errors.New("detection: no detectors configured")
)

// MalformedError describes the first invalid detection in a response.
type MalformedError struct {
	Index  int
	Reason string
}

// Error implements the error interface.
func (e *MalformedError) Error() string {
	return fmt.Sprintf("detection: malformed response: detection %d: %s", e.Index, e.Reason)
}

// Is lets errors.Is match ErrMalformed.
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}

// BackendError wraps an error with the backend that produced it.
type BackendError struct {
	Backend string
	Err     error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("detection [%s]: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying error.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with backend context.
func WrapError(backend string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Backend: backend, Err: err}
}

// ChainError aggregates errors from every backend in a chain.
type ChainError struct {
	Errors []error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if len(e.Errors) == 0 {
		return "detection chain: no errors recorded"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("detection chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("detection chain: all %d backends failed, last error: %v",
		len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns the last error in the chain.
func (e *ChainError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}
