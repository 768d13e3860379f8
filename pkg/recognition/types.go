// Package recognition runs the pick-and-recognize sequence: photo-library
// permission, image selection and object detection, in that order.
package recognition

import (
	"context"
	"fmt"
	"time"

	"github.com/teslashibe/go-viewfinder/pkg/detection"
)

// Permission is the answer of the photo-library permission service.
type Permission string

const (
	Granted Permission = "granted"
	Denied  Permission = "denied"
)

// Aspect is a crop ratio width:height.
type Aspect struct {
	W int `json:"w"`
	H int `json:"h"`
}

func (a Aspect) String() string {
	return fmt.Sprintf("%d:%d", a.W, a.H)
}

// PickOptions are passed to the image picker.
type PickOptions struct {
	AllowEditing bool   `json:"allow_editing"`
	Aspect       Aspect `json:"aspect"`
}

// DefaultPickOptions matches the picker setup of the mobile screen.
func DefaultPickOptions() PickOptions {
	return PickOptions{AllowEditing: true, Aspect: Aspect{W: 4, H: 3}}
}

// PickResult is what the picker returns. Content is set unless Cancelled.
type PickResult struct {
	Cancelled bool                 `json:"cancelled"`
	Content   detection.ContentRef `json:"content"`
}

// PermissionService grants or denies photo-library access.
type PermissionService interface {
	RequestPhotoLibraryAccess(ctx context.Context) (Permission, error)
}

// ImagePicker lets the user select an image.
type ImagePicker interface {
	PickImage(ctx context.Context, opts PickOptions) (PickResult, error)
}

// Kind classifies how a pick-and-recognize call ended.
type Kind string

const (
	Recognized        Kind = "recognized"
	PermissionDenied  Kind = "permission_denied"
	UserCancelled     Kind = "user_cancelled"
	RecognitionFailed Kind = "recognition_failed"
	Busy              Kind = "busy"
)

// Stage is the step at which a call ended.
type Stage string

const (
	StagePermission Stage = "permission"
	StagePick       Stage = "pick"
	StageDetect     Stage = "detect"
)

// Outcome reports the end of one pick-and-recognize call.
type Outcome struct {
	ID         string        `json:"id"`
	Kind       Kind          `json:"kind"`
	Stage      Stage         `json:"stage,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Detections int           `json:"detections"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// OK reports whether the call stored a new result.
func (o Outcome) OK() bool {
	return o.Kind == Recognized
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return string(o.Kind)
	}
	return fmt.Sprintf("%s (%s: %s)", o.Kind, o.Stage, o.Reason)
}
