package remote

import "errors"

var (
	// ErrNoDevice is returned when no device is connected to serve a request.
	ErrNoDevice = errors.New("remote: no device connected")

	// ErrDeviceGone is returned when the device disconnects before answering.
	ErrDeviceGone = errors.New("remote: device disconnected")

	// ErrQueueFull is returned when a device is not draining its send queue.
	ErrQueueFull = errors.New("remote: device send queue full")

	// ErrNotAttached is returned when commands arrive before a screen is attached.
	ErrNotAttached = errors.New("remote: no screen attached")
)

// DeviceError is an error reported by the device itself.
type DeviceError struct {
	DeviceID string
	Message  string
}

func (e *DeviceError) Error() string {
	return "remote: device " + e.DeviceID + ": " + e.Message
}
