package viewfinder

import (
	"time"

	"github.com/teslashibe/go-viewfinder/pkg/camera"
	"github.com/teslashibe/go-viewfinder/pkg/detection"
	"github.com/teslashibe/go-viewfinder/pkg/mode"
	"github.com/teslashibe/go-viewfinder/pkg/overlay"
	"github.com/teslashibe/go-viewfinder/pkg/recognition"
)

// PickButtonLabel is the text of the pick-and-recognize control.
const PickButtonLabel = "Pick image for object recognition"

// Snapshot is the render state of the screen at one point in time.
// It is derived from the inputs and never edited in place.
type Snapshot struct {
	Seq uint64    `json:"seq"`
	At  time.Time `json:"at"`

	Modes             mode.Set  `json:"modes"`
	Primary           mode.Mode `json:"primary"`
	FilterVisible     bool      `json:"filter_visible"`
	NavigationVisible bool      `json:"navigation_visible"`

	// ControlsVisible is true in the camera view, where the buttons are drawn.
	ControlsVisible bool          `json:"controls_visible"`
	Buttons         []mode.Button `json:"buttons"`
	PickLabel       string        `json:"pick_label"`

	Anchors     []overlay.Anchor  `json:"anchors"`
	Location    *overlay.GeoPoint `json:"location"`
	Destination *overlay.GeoPoint `json:"destination"`

	Pending     bool                 `json:"pending"`
	PendingID   string               `json:"pending_id,omitempty"`
	Result      *detection.Result    `json:"result"`
	LastOutcome *recognition.Outcome `json:"last_outcome,omitempty"`

	Camera camera.Config `json:"camera"`
}

// Label returns the payload of the label anchor, or "".
func (s Snapshot) Label() string {
	for _, a := range s.Anchors {
		if a.Kind == overlay.Label {
			return a.Payload
		}
	}
	return ""
}
