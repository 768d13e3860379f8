package detection

import (
	"fmt"
	"math"
	"strings"
)

// boxTolerance absorbs float rounding at the image edges.
const boxTolerance = 1e-6

// Normalize validates raw backend output and returns cleaned detections in
// the same order. Labels are trimmed. The first invalid detection fails the
// whole response with a *MalformedError; nothing is dropped silently.
func Normalize(raw []Detection) ([]Detection, error) {
	out := make([]Detection, 0, len(raw))
	for i, d := range raw {
		d.Label = strings.TrimSpace(d.Label)
		if d.Label == "" {
			return nil, &MalformedError{Index: i, Reason: "empty label"}
		}
		if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
			return nil, &MalformedError{Index: i, Reason: fmt.Sprintf("confidence %v outside [0,1]", d.Confidence)}
		}
		if reason := checkBox(d.Region); reason != "" {
			return nil, &MalformedError{Index: i, Reason: reason}
		}
		out = append(out, d)
	}
	return out, nil
}

func checkBox(b Box) string {
	for _, v := range []float64{b.X, b.Y, b.W, b.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "region has non-finite coordinates"
		}
	}
	if b.W < 0 || b.H < 0 {
		return "region has negative size"
	}
	if b.X < -boxTolerance || b.Y < -boxTolerance ||
		b.X+b.W > 1+boxTolerance || b.Y+b.H > 1+boxTolerance {
		return "region outside the image"
	}
	return ""
}

// clamp01 limits v to the unit interval.
func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
