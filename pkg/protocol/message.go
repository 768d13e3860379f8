// Package protocol defines the WebSocket messages exchanged between the
// viewfinder core and a connected device.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-viewfinder/pkg/overlay"
	"github.com/teslashibe/go-viewfinder/pkg/recognition"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Device → core messages
	TypeToggle           MessageType = "toggle"            // Toggle a mode
	TypePick             MessageType = "pick"              // Start pick-and-recognize
	TypeCancelPick       MessageType = "cancel_pick"       // Abort the pending pick
	TypeLocation         MessageType = "location"          // Current location update
	TypeDestination      MessageType = "destination"       // Destination update
	TypePermissionResult MessageType = "permission_result" // Answer to permission_request
	TypePickResult       MessageType = "pick_result"       // Answer to pick_request

	// Core → device messages
	TypeSnapshot          MessageType = "snapshot"           // Render state
	TypeOutcome           MessageType = "outcome"            // End of a pick-and-recognize call
	TypePermissionRequest MessageType = "permission_request" // Ask for photo-library access
	TypePickRequest       MessageType = "pick_request"       // Show the image picker
	TypeError             MessageType = "error"              // Command failed

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages.
// ID pairs a request with its result.
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// WithID sets the correlation ID and returns the message.
func (m *Message) WithID(id string) *Message {
	m.ID = id
	return m
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Device → Core Message Types
// =============================================================================

// ToggleData names the mode to toggle.
type ToggleData struct {
	Mode string `json:"mode"`
}

// PointData carries a location or destination. A nil Point clears it.
type PointData struct {
	Point *overlay.GeoPoint `json:"point"`
}

// PermissionResultData answers a permission_request.
type PermissionResultData struct {
	Granted bool   `json:"granted"`
	Error   string `json:"error,omitempty"`
}

// PickResultData answers a pick_request.
type PickResultData struct {
	Cancelled   bool   `json:"cancelled"`
	URI         string `json:"uri,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Data        string `json:"data,omitempty"` // base64 encoded
	Error       string `json:"error,omitempty"`
}

// =============================================================================
// Core → Device Message Types
// =============================================================================

// PickRequestData carries the picker options.
type PickRequestData struct {
	AllowEditing bool   `json:"allow_editing"`
	Aspect       [2]int `json:"aspect"`
}

// OutcomeData reports the end of a pick-and-recognize call.
type OutcomeData struct {
	ID         string           `json:"id"`
	Kind       recognition.Kind `json:"kind"`
	Stage      string           `json:"stage,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	Detections int              `json:"detections"`
	DurationMs int64            `json:"duration_ms"`
	Summary    string           `json:"summary,omitempty"`
}

// ErrorData describes a rejected command.
type ErrorData struct {
	Message string `json:"message"`
}

// PongData answers a ping.
type PongData struct {
	PingTS int64 `json:"ping_ts"`
	PongTS int64 `json:"pong_ts"`
}
