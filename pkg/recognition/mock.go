package recognition

import (
	"context"
	"sync/atomic"

	"github.com/teslashibe/go-viewfinder/pkg/detection"
)

// MockPermissions implements PermissionService for testing.
type MockPermissions struct {
	// RequestFunc is called when RequestPhotoLibraryAccess is invoked.
	RequestFunc func(ctx context.Context) (Permission, error)

	calls atomic.Int64
}

// GrantAll returns a permission service that always grants access.
func GrantAll() *MockPermissions {
	return &MockPermissions{RequestFunc: func(ctx context.Context) (Permission, error) {
		return Granted, nil
	}}
}

// DenyAll returns a permission service that always denies access.
func DenyAll() *MockPermissions {
	return &MockPermissions{RequestFunc: func(ctx context.Context) (Permission, error) {
		return Denied, nil
	}}
}

// RequestPhotoLibraryAccess implements PermissionService.
func (m *MockPermissions) RequestPhotoLibraryAccess(ctx context.Context) (Permission, error) {
	m.calls.Add(1)
	if m.RequestFunc != nil {
		return m.RequestFunc(ctx)
	}
	return Granted, nil
}

// CallCount returns how many times access was requested.
func (m *MockPermissions) CallCount() int {
	return int(m.calls.Load())
}

// MockPicker implements ImagePicker for testing.
type MockPicker struct {
	// PickFunc is called when PickImage is invoked.
	PickFunc func(ctx context.Context, opts PickOptions) (PickResult, error)

	calls    atomic.Int64
	lastOpts atomic.Pointer[PickOptions]
}

// PickURI returns a picker that always selects uri.
func PickURI(uri string) *MockPicker {
	return &MockPicker{PickFunc: func(ctx context.Context, opts PickOptions) (PickResult, error) {
		return PickResult{Content: detection.ContentRef{URI: uri}}, nil
	}}
}

// CancelPick returns a picker whose user always dismisses the dialog.
func CancelPick() *MockPicker {
	return &MockPicker{PickFunc: func(ctx context.Context, opts PickOptions) (PickResult, error) {
		return PickResult{Cancelled: true}, nil
	}}
}

// PickImage implements ImagePicker.
func (m *MockPicker) PickImage(ctx context.Context, opts PickOptions) (PickResult, error) {
	m.calls.Add(1)
	m.lastOpts.Store(&opts)
	if m.PickFunc != nil {
		return m.PickFunc(ctx, opts)
	}
	return PickResult{Cancelled: true}, nil
}

// CallCount returns how many times the picker was shown.
func (m *MockPicker) CallCount() int {
	return int(m.calls.Load())
}

// LastOptions returns the options of the most recent call.
func (m *MockPicker) LastOptions() (PickOptions, bool) {
	o := m.lastOpts.Load()
	if o == nil {
		return PickOptions{}, false
	}
	return *o, true
}

// Blocking returns a picker that waits until release is closed or ctx ends,
// then selects uri.
func Blocking(release <-chan struct{}, uri string) *MockPicker {
	return &MockPicker{PickFunc: func(ctx context.Context, opts PickOptions) (PickResult, error) {
		select {
		case <-release:
			return PickResult{Content: detection.ContentRef{URI: uri}}, nil
		case <-ctx.Done():
			return PickResult{}, ctx.Err()
		}
	}}
}

var (
	_ PermissionService = (*MockPermissions)(nil)
	_ ImagePicker       = (*MockPicker)(nil)
)
