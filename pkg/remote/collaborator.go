package remote

import (
	"context"

	"github.com/teslashibe/go-viewfinder/pkg/recognition"
)

// Collaborator serves the recognition pipeline through whichever device is
// current when each request is made.
type Collaborator struct {
	hub *Hub
}

// NewCollaborator creates a collaborator backed by hub.
func NewCollaborator(hub *Hub) *Collaborator {
	return &Collaborator{hub: hub}
}

// RequestPhotoLibraryAccess implements recognition.PermissionService.
func (c *Collaborator) RequestPhotoLibraryAccess(ctx context.Context) (recognition.Permission, error) {
	d := c.hub.Current()
	if d == nil {
		return "", ErrNoDevice
	}
	return d.RequestPhotoLibraryAccess(ctx)
}

// PickImage implements recognition.ImagePicker.
func (c *Collaborator) PickImage(ctx context.Context, opts recognition.PickOptions) (recognition.PickResult, error) {
	d := c.hub.Current()
	if d == nil {
		return recognition.PickResult{}, ErrNoDevice
	}
	return d.PickImage(ctx, opts)
}

var (
	_ recognition.PermissionService = (*Collaborator)(nil)
	_ recognition.ImagePicker       = (*Collaborator)(nil)
)
