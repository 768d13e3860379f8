// Package mode holds the viewfinder's presentation modes and the rules for
// combining them.
//
// The primary view is exactly one of Camera, AR or VR. Camera is implicit:
// it is primary whenever neither AR nor VR is on. Filter, Navigation and
// ObjectRecognition are independent flags that combine with any primary view.
package mode

import (
	"strings"
)

// Mode identifies one presentation mode.
type Mode string

const (
	Camera            Mode = "camera"
	AR                Mode = "ar"
	VR                Mode = "vr"
	Filter            Mode = "filter"
	Navigation        Mode = "navigation"
	ObjectRecognition Mode = "object_recognition"
)

// All lists every mode in display order.
var All = []Mode{Camera, AR, VR, Filter, Navigation, ObjectRecognition}

// Togglable lists the modes that have a toggle. Camera has none: it is the fallback view.
var Togglable = []Mode{AR, VR, ObjectRecognition, Filter, Navigation}

// String implements fmt.Stringer.
func (m Mode) String() string {
	return string(m)
}

// IsPrimary reports whether m is a primary view (Camera, AR or VR).
func (m Mode) IsPrimary() bool {
	return m == Camera || m == AR || m == VR
}

// DisplayName is the human label used in button text.
func (m Mode) DisplayName() string {
	switch m {
	case Camera:
		return "Camera"
	case AR:
		return "AR"
	case VR:
		return "VR"
	case Filter:
		return "Filter"
	case Navigation:
		return "Navigation"
	case ObjectRecognition:
		return "Object Recognition"
	}
	return string(m)
}

// ParseMode converts a user or wire string into a Mode.
// Matching ignores case, spaces, dashes and underscores, and accepts a few aliases.
func ParseMode(s string) (Mode, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)

	switch key {
	case "camera", "cam":
		return Camera, nil
	case "ar":
		return AR, nil
	case "vr":
		return VR, nil
	case "filter":
		return Filter, nil
	case "navigation", "nav":
		return Navigation, nil
	case "objectrecognition", "recognition", "objects":
		return ObjectRecognition, nil
	}
	return "", &UnknownModeError{Name: s}
}
