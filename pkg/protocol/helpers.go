package protocol

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-viewfinder/pkg/detection"
	"github.com/teslashibe/go-viewfinder/pkg/overlay"
	"github.com/teslashibe/go-viewfinder/pkg/recognition"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewToggleMessage creates a toggle command.
func NewToggleMessage(mode string) (*Message, error) {
	return NewMessage(TypeToggle, ToggleData{Mode: mode})
}

// NewLocationMessage creates a location update; nil clears the location.
func NewLocationMessage(p *overlay.GeoPoint) (*Message, error) {
	return NewMessage(TypeLocation, PointData{Point: p})
}

// NewDestinationMessage creates a destination update; nil clears the destination.
func NewDestinationMessage(p *overlay.GeoPoint) (*Message, error) {
	return NewMessage(TypeDestination, PointData{Point: p})
}

// NewPermissionResultMessage answers the permission request with the given ID.
func NewPermissionResultMessage(id string, granted bool) (*Message, error) {
	msg, err := NewMessage(TypePermissionResult, PermissionResultData{Granted: granted})
	if err != nil {
		return nil, err
	}
	return msg.WithID(id), nil
}

// NewPickResultMessage answers the pick request with the given ID.
// Image bytes, when present, are sent inline.
func NewPickResultMessage(id string, cancelled bool, uri, contentType string, image []byte) (*Message, error) {
	data := PickResultData{
		Cancelled:   cancelled,
		URI:         uri,
		ContentType: contentType,
	}
	if len(image) > 0 {
		data.Data = base64.StdEncoding.EncodeToString(image)
	}
	msg, err := NewMessage(TypePickResult, data)
	if err != nil {
		return nil, err
	}
	return msg.WithID(id), nil
}

// NewSnapshotMessage wraps a render snapshot.
func NewSnapshotMessage(snapshot any) (*Message, error) {
	return NewMessage(TypeSnapshot, snapshot)
}

// NewOutcomeMessage reports an outcome along with the stored result summary.
func NewOutcomeMessage(o recognition.Outcome, result *detection.Result) (*Message, error) {
	data := OutcomeData{
		ID:         o.ID,
		Kind:       o.Kind,
		Stage:      string(o.Stage),
		Reason:     o.Reason,
		Detections: o.Detections,
		DurationMs: o.Duration.Milliseconds(),
		Summary:    result.Summary(),
	}
	msg, err := NewMessage(TypeOutcome, data)
	if err != nil {
		return nil, err
	}
	return msg.WithID(o.ID), nil
}

// NewPermissionRequestMessage asks the device for photo-library access.
func NewPermissionRequestMessage(id string) (*Message, error) {
	msg, err := NewMessage(TypePermissionRequest, nil)
	if err != nil {
		return nil, err
	}
	return msg.WithID(id), nil
}

// NewPickRequestMessage asks the device to show its picker.
func NewPickRequestMessage(id string, opts recognition.PickOptions) (*Message, error) {
	msg, err := NewMessage(TypePickRequest, PickRequestData{
		AllowEditing: opts.AllowEditing,
		Aspect:       [2]int{opts.Aspect.W, opts.Aspect.H},
	})
	if err != nil {
		return nil, err
	}
	return msg.WithID(id), nil
}

// NewErrorMessage reports a failed command; id echoes the command's ID.
func NewErrorMessage(id string, err error) (*Message, error) {
	msg, merr := NewMessage(TypeError, ErrorData{Message: err.Error()})
	if merr != nil {
		return nil, merr
	}
	return msg.WithID(id), nil
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS int64) (*Message, error) {
	msg, err := NewMessage(TypePong, PongData{PingTS: pingTS, PongTS: time.Now().UnixMilli()})
	if err != nil {
		return nil, err
	}
	return msg.WithID(id), nil
}

// =============================================================================
// Helper functions for parsing message data
// =============================================================================

// GetToggleData extracts toggle data from a message
func (m *Message) GetToggleData() (*ToggleData, error) {
	if m.Type != TypeToggle {
		return nil, m.wrongType(TypeToggle)
	}
	var data ToggleData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPointData extracts a location or destination update.
func (m *Message) GetPointData() (*PointData, error) {
	if m.Type != TypeLocation && m.Type != TypeDestination {
		return nil, m.wrongType(TypeLocation)
	}
	var data PointData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPermissionResultData extracts a permission answer.
func (m *Message) GetPermissionResultData() (*PermissionResultData, error) {
	if m.Type != TypePermissionResult {
		return nil, m.wrongType(TypePermissionResult)
	}
	var data PermissionResultData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPickResultData extracts a picker answer.
func (m *Message) GetPickResultData() (*PickResultData, error) {
	if m.Type != TypePickResult {
		return nil, m.wrongType(TypePickResult)
	}
	var data PickResultData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPickRequestData extracts picker options.
func (m *Message) GetPickRequestData() (*PickRequestData, error) {
	if m.Type != TypePickRequest {
		return nil, m.wrongType(TypePickRequest)
	}
	var data PickRequestData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetOutcomeData extracts an outcome report.
func (m *Message) GetOutcomeData() (*OutcomeData, error) {
	if m.Type != TypeOutcome {
		return nil, m.wrongType(TypeOutcome)
	}
	var data OutcomeData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts an error report.
func (m *Message) GetErrorData() (*ErrorData, error) {
	if m.Type != TypeError {
		return nil, m.wrongType(TypeError)
	}
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ErrLocalContent is returned for a pick result that names a file on the
// server's filesystem instead of carrying the image. Devices must send local
// images inline.
var ErrLocalContent = errors.New("pick result names a local file without inline data")

// Content converts a pick result into a content reference. The URI is kept
// only as a label unless it is remote.
func (d *PickResultData) Content() (detection.ContentRef, error) {
	ref := detection.ContentRef{URI: d.URI, ContentType: d.ContentType}
	if d.Data != "" {
		raw, err := base64.StdEncoding.DecodeString(d.Data)
		if err != nil {
			return detection.ContentRef{}, fmt.Errorf("decode image data: %w", err)
		}
		ref.Data = raw
	}
	if len(ref.Data) == 0 && ref.URI != "" && !ref.IsRemote() {
		return detection.ContentRef{}, ErrLocalContent
	}
	return ref, nil
}

func (m *Message) wrongType(want MessageType) error {
	return fmt.Errorf("message type is %s, not %s", m.Type, want)
}
