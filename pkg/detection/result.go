package detection

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LabelSeparator joins labels in a result summary.
const LabelSeparator = ", "

// Result is the normalized output of one successful detection call.
// It is immutable: accessors return copies, and a new call produces a new Result.
// A nil *Result means "no recognition yet"; its methods are nil-safe.
type Result struct {
	id         string
	detections []Detection
	createdAt  time.Time
}

// NewResult builds a result from dets, keeping detection order.
func NewResult(dets []Detection) *Result {
	cp := make([]Detection, len(dets))
	copy(cp, dets)
	return &Result{
		id:         uuid.New().String(),
		detections: cp,
		createdAt:  time.Now(),
	}
}

// ID identifies the detection call that produced the result.
func (r *Result) ID() string {
	if r == nil {
		return ""
	}
	return r.id
}

// CreatedAt returns when the result was stored.
func (r *Result) CreatedAt() time.Time {
	if r == nil {
		return time.Time{}
	}
	return r.createdAt
}

// Detections returns a copy of the detections in detection order.
func (r *Result) Detections() []Detection {
	if r == nil {
		return nil
	}
	cp := make([]Detection, len(r.detections))
	copy(cp, r.detections)
	return cp
}

// Len returns the number of detections.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.detections)
}

// Empty reports whether there is nothing to label.
func (r *Result) Empty() bool {
	return r.Len() == 0
}

// Labels returns detected labels in detection order, duplicates included.
func (r *Result) Labels() []string {
	if r == nil {
		return nil
	}
	return Labels(r.detections)
}

// Summary joins the labels with ", " in detection order.
func (r *Result) Summary() string {
	return strings.Join(r.Labels(), LabelSeparator)
}

type resultJSON struct {
	ID         string      `json:"id"`
	Detections []Detection `json:"detections"`
	Summary    string      `json:"summary"`
	CreatedAt  time.Time   `json:"created_at"`
}

// MarshalJSON implements json.Marshaler.
func (r *Result) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	return json.Marshal(resultJSON{
		ID:         r.id,
		Detections: r.Detections(),
		Summary:    r.Summary(),
		CreatedAt:  r.createdAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler for clients reading snapshots.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw resultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.id = raw.ID
	r.detections = raw.Detections
	r.createdAt = raw.CreatedAt
	return nil
}
