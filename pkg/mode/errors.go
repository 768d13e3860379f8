package mode

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownMode is returned when a mode name cannot be parsed.
	ErrUnknownMode = errors.New("mode: unknown mode")

	// ErrNotTogglable is returned when asked to toggle Camera.
	ErrNotTogglable = errors.New("mode: mode has no toggle")
)

// UnknownModeError carries the name that failed to parse.
type UnknownModeError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("mode: unknown mode %q", e.Name)
}

// Is lets errors.Is match ErrUnknownMode.
func (e *UnknownModeError) Is(target error) bool {
	return target == ErrUnknownMode
}
