//go:build !gocv

package detection

import (
	"context"

	"github.com/pkg/errors"
)

// YOLOAvailable reports whether this binary was built with OpenCV support.
const YOLOAvailable = false

// YOLODetector is unavailable in builds without the gocv tag.
type YOLODetector struct{}

// NewYOLO returns ErrUnavailable; build with -tags gocv and OpenCV installed.
func NewYOLO(cfg YOLOConfig) (*YOLODetector, error) {
	return nil, errors.Wrap(ErrUnavailable, "yolo: built without the gocv tag")
}

// Name implements Detector.
func (d *YOLODetector) Name() string { return "yolo" }

// Detect implements Detector.
func (d *YOLODetector) Detect(ctx context.Context, ref ContentRef) ([]Detection, error) {
	return nil, ErrUnavailable
}

// Close implements Detector.
func (d *YOLODetector) Close() error { return nil }
