// Package detection defines object-detection records, the recognition result
// built from them, and the detector backends that produce them.
package detection

// Box is a bounding region in normalized image coordinates (0-1),
// anchored at its top-left corner.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the center point of the box.
func (b Box) Center() (x, y float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Area returns the area of the box.
func (b Box) Area() float64 {
	return b.W * b.H
}

// Detection is one detected object.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"` // 0-1
	Region     Box     `json:"region"`
}

// Labels returns the labels of dets in order.
func Labels(dets []Detection) []string {
	out := make([]string, len(dets))
	for i, d := range dets {
		out[i] = d.Label
	}
	return out
}
