//go:build gocv

package detection

import (
	"context"
	"image"
	"log/slog"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-viewfinder/internal/log"
)

// YOLOAvailable reports whether this binary was built with OpenCV support.
const YOLOAvailable = true

// YOLODetector uses a YOLOv8 ONNX model through OpenCV DNN.
type YOLODetector struct {
	net       gocv.Net
	config    YOLOConfig
	mu        sync.Mutex
	inputSize image.Point
	logger    *slog.Logger
}

// NewYOLO loads the model at cfg.ModelPath.
func NewYOLO(cfg YOLOConfig) (*YOLODetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "yolo: model file %s", cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, errors.Errorf("yolo: failed to load model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &YOLODetector{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
		logger:    log.For("detection.yolo"),
	}, nil
}

// Name implements Detector.
func (d *YOLODetector) Name() string { return "yolo" }

// Detect finds objects in the referenced image.
func (d *YOLODetector) Detect(ctx context.Context, ref ContentRef) ([]Detection, error) {
	data, err := ref.Bytes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "yolo: load image")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, errors.Wrap(err, "yolo: decode image")
	}
	defer img.Close()

	if img.Empty() {
		return nil, errors.Wrap(ErrNoContent, "yolo: empty image")
	}

	imgW := float32(img.Cols())
	imgH := float32(img.Rows())

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	dets, err := d.parseOutput(output, imgW, imgH)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("yolo detections", "count", len(dets), "uri", ref.URI)
	return dets, nil
}

// parseOutput decodes the YOLOv8 tensor [1, 84, N]: 4 box values then 80 class scores per column.
func (d *YOLODetector) parseOutput(output gocv.Mat, imgW, imgH float32) ([]Detection, error) {
	var boxes []image.Rectangle
	var confidences []float32
	var classIDs []int

	rows := output.Cols()
	cols := output.Rows()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}

	for i := 0; i < rows; i++ {
		maxScore := float32(0)
		maxClassID := 0

		for c := 4; c < cols; c++ {
			score := data[c*rows+i]
			if score > maxScore {
				maxScore = score
				maxClassID = c - 4
			}
		}

		if maxScore < d.config.ConfidenceThresh {
			continue
		}

		cx := data[0*rows+i]
		cy := data[1*rows+i]
		w := data[2*rows+i]
		h := data[3*rows+i]

		x1 := int((cx - w/2) * imgW / float32(d.config.InputWidth))
		y1 := int((cy - h/2) * imgH / float32(d.config.InputHeight))
		x2 := int((cx + w/2) * imgW / float32(d.config.InputWidth))
		y2 := int((cy + h/2) * imgH / float32(d.config.InputHeight))

		boxes = append(boxes, image.Rect(x1, y1, x2, y2))
		confidences = append(confidences, maxScore)
		classIDs = append(classIDs, maxClassID)
	}

	if len(boxes) == 0 {
		return nil, nil
	}

	indices := gocv.NMSBoxes(boxes, confidences, d.config.ConfidenceThresh, d.config.NMSThresh)

	dets := make([]Detection, 0, len(indices))
	for _, idx := range indices {
		box := boxes[idx]
		x := clamp01(float64(box.Min.X) / float64(imgW))
		y := clamp01(float64(box.Min.Y) / float64(imgH))
		dets = append(dets, Detection{
			Label:      ClassName(classIDs[idx]),
			Confidence: float64(confidences[idx]),
			Region: Box{
				X: x,
				Y: y,
				W: clamp01(float64(box.Max.X)/float64(imgW)) - x,
				H: clamp01(float64(box.Max.Y)/float64(imgH)) - y,
			},
		})
	}
	return dets, nil
}

// Close releases the network.
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

var _ Detector = (*YOLODetector)(nil)
