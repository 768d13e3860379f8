//go:build !gocv

package detection

import (
	"context"
	"errors"
	"testing"
)

func TestYOLOStubUnavailable(t *testing.T) {
	if _, err := NewYOLO(DefaultYOLOConfig()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("NewYOLO() error = %v, want ErrUnavailable", err)
	}

	var d *YOLODetector
	if _, err := d.Detect(context.Background(), ContentRef{URI: "x.jpg"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Detect() error = %v, want ErrUnavailable", err)
	}
}
