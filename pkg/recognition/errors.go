package recognition

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is the reason given when a call is rejected because another is pending.
	ErrBusy = errors.New("recognition: a pick is already in progress")

	// ErrNoContent is returned when the picker selects nothing usable.
	ErrNoContent = errors.New("recognition: picker returned no content")

	// ErrDenied is the reason given when the user refuses photo-library access.
	ErrDenied = errors.New("recognition: photo library access denied")

	// ErrMissingCollaborator is returned by NewPipeline when a service is nil.
	ErrMissingCollaborator = errors.New("recognition: permission service, picker and detector are required")
)

// PanicError carries a recovered collaborator panic.
type PanicError struct {
	Stage Stage
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("recognition: panic during %s: %v", e.Stage, e.Value)
}
