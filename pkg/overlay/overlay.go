// Package overlay derives the AR anchors to render from the current modes,
// recognition result and navigation points. Anchors are never stored; they
// are recomputed from their inputs on every change.
package overlay

import (
	"encoding/json"
	"fmt"
)

// GeoPoint is an externally supplied position in AR world coordinates.
type GeoPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("(%g,%g,%g)", p.X, p.Y, p.Z)
}

// Kind is the type of an overlay anchor.
type Kind int

const (
	Label Kind = iota
	NavArrow
	NavFlag
)

var kindNames = map[Kind]string{
	Label:    "label",
	NavArrow: "nav_arrow",
	NavFlag:  "nav_flag",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalJSON writes the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON reads a kind name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for kind, name := range kindNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("overlay: unknown anchor kind %q", s)
}

// Anchor is one element placed in the AR scene.
type Anchor struct {
	Kind     Kind     `json:"kind"`
	Position GeoPoint `json:"position"`

	// Payload is the label text; empty for navigation anchors.
	Payload string `json:"payload,omitempty"`

	// Model is the scene asset rendered at the anchor; empty for labels.
	Model string  `json:"model,omitempty"`
	Scale float64 `json:"scale,omitempty"`
}
