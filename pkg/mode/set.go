package mode

import (
	"encoding/json"
	"strings"
)

// Set is the set of active modes. It is a value: transitions return a new Set
// and never modify the receiver. The zero Set is the default camera view with
// every flag off.
//
// The primary view is stored as a single field, so AR and VR can never both be on.
type Set struct {
	view        Mode // AR, VR, or "" for Camera
	filter      bool
	navigation  bool
	recognition bool
}

// Default returns the startup mode set: camera view, nothing else.
func Default() Set {
	return Set{}
}

// Primary returns the mounted view: AR, VR or Camera.
func (s Set) Primary() Mode {
	if s.view == AR || s.view == VR {
		return s.view
	}
	return Camera
}

// Has reports whether m is active. Camera counts as active when it is the primary view.
func (s Set) Has(m Mode) bool {
	switch m {
	case Camera, AR, VR:
		return s.Primary() == m
	case Filter:
		return s.filter
	case Navigation:
		return s.navigation
	case ObjectRecognition:
		return s.recognition
	}
	return false
}

// ToggleAR turns AR off (falling back to Camera) or on (turning VR off).
// The independent flags are untouched.
func (s Set) ToggleAR() Set {
	if s.view == AR {
		s.view = ""
	} else {
		s.view = AR
	}
	return s
}

// ToggleVR is ToggleAR with the roles of AR and VR swapped.
func (s Set) ToggleVR() Set {
	if s.view == VR {
		s.view = ""
	} else {
		s.view = VR
	}
	return s
}

// ToggleFilter flips the filter flag.
func (s Set) ToggleFilter() Set {
	s.filter = !s.filter
	return s
}

// ToggleNavigation flips the navigation flag.
func (s Set) ToggleNavigation() Set {
	s.navigation = !s.navigation
	return s
}

// ToggleObjectRecognition flips the object-recognition flag.
func (s Set) ToggleObjectRecognition() Set {
	s.recognition = !s.recognition
	return s
}

// Toggle applies the transition for m.
func (s Set) Toggle(m Mode) (Set, error) {
	switch m {
	case AR:
		return s.ToggleAR(), nil
	case VR:
		return s.ToggleVR(), nil
	case Filter:
		return s.ToggleFilter(), nil
	case Navigation:
		return s.ToggleNavigation(), nil
	case ObjectRecognition:
		return s.ToggleObjectRecognition(), nil
	case Camera:
		return s, ErrNotTogglable
	}
	return s, &UnknownModeError{Name: string(m)}
}

// FilterVisible reports whether the filter image should be drawn.
// The filter only overlays the camera passthrough.
func (s Set) FilterVisible() bool {
	return s.filter && s.Primary() == Camera
}

// NavigationVisible reports whether navigation markers can render.
// They only exist in the AR scene.
func (s Set) NavigationVisible() bool {
	return s.navigation && s.Primary() == AR
}

// Active returns the active modes in the order of All.
func (s Set) Active() []Mode {
	out := make([]Mode, 0, len(All))
	for _, m := range All {
		if s.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

// String renders the active modes, e.g. "ar+navigation".
func (s Set) String() string {
	active := s.Active()
	parts := make([]string, len(active))
	for i, m := range active {
		parts[i] = string(m)
	}
	return strings.Join(parts, "+")
}

// setJSON is the wire form of a Set.
type setJSON struct {
	Primary           Mode   `json:"primary"`
	AR                bool   `json:"ar"`
	VR                bool   `json:"vr"`
	Filter            bool   `json:"filter"`
	Navigation        bool   `json:"navigation"`
	ObjectRecognition bool   `json:"object_recognition"`
	Active            []Mode `json:"active"`
}

// MarshalJSON implements json.Marshaler.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(setJSON{
		Primary:           s.Primary(),
		AR:                s.Has(AR),
		VR:                s.Has(VR),
		Filter:            s.filter,
		Navigation:        s.navigation,
		ObjectRecognition: s.recognition,
		Active:            s.Active(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. The primary field decides the
// view; the ar/vr booleans are only consulted when it is missing.
func (s *Set) UnmarshalJSON(data []byte) error {
	var raw setJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := Set{
		filter:      raw.Filter,
		navigation:  raw.Navigation,
		recognition: raw.ObjectRecognition,
	}
	switch {
	case raw.Primary == AR || raw.Primary == VR:
		out.view = raw.Primary
	case raw.Primary == "" && raw.AR:
		out.view = AR
	case raw.Primary == "" && raw.VR:
		out.view = VR
	}
	*s = out
	return nil
}
