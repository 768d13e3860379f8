package detection

import (
	"context"
	"encoding/base64"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/teslashibe/go-viewfinder/internal/httpc"
	"github.com/teslashibe/go-viewfinder/internal/log"
)

const objectLocalization = "OBJECT_LOCALIZATION"

// CloudVisionConfig configures the Google Cloud Vision backend.
type CloudVisionConfig struct {
	// CredentialsFile is a service-account JSON key. Empty uses application
	// default credentials.
	CredentialsFile string

	// Endpoint overrides the API base URL (tests, regional endpoints).
	Endpoint string

	// MaxResults caps the number of localized objects per image.
	MaxResults int

	// HTTPClient, when set, is used as-is and no credentials are loaded.
	HTTPClient *http.Client
}

// CloudVisionDetector localizes objects with the Cloud Vision API.
type CloudVisionDetector struct {
	svc        *vision.Service
	maxResults int64
	logger     *slog.Logger
}

// NewCloudVision creates a Cloud Vision detector.
func NewCloudVision(ctx context.Context, cfg CloudVisionConfig) (*CloudVisionDetector, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client := cfg.HTTPClient
	if client == nil {
		creds, err := loadCredentials(ctx, cfg.CredentialsFile)
		if err != nil {
			return nil, errors.Wrap(err, "cloudvision: credentials")
		}
		// Token refreshes go through the shared client so they get its timeouts.
		base := context.WithValue(ctx, oauth2.HTTPClient, httpc.Client)
		client = oauth2.NewClient(base, creds.TokenSource)
	}
	opts = append(opts, option.WithHTTPClient(client))

	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "cloudvision: create service")
	}

	max := cfg.MaxResults
	if max <= 0 {
		max = 10
	}

	return &CloudVisionDetector{
		svc:        svc,
		maxResults: int64(max),
		logger:     log.For("detection.cloudvision"),
	}, nil
}

func loadCredentials(ctx context.Context, path string) (*google.Credentials, error) {
	if path == "" {
		return google.FindDefaultCredentials(ctx, vision.CloudPlatformScope)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return google.CredentialsFromJSON(ctx, data, vision.CloudPlatformScope)
}

// Name implements Detector.
func (d *CloudVisionDetector) Name() string { return "cloudvision" }

// Detect sends the image for object localization.
func (d *CloudVisionDetector) Detect(ctx context.Context, ref ContentRef) ([]Detection, error) {
	img, err := d.image(ctx, ref)
	if err != nil {
		return nil, err
	}

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image: img,
			Features: []*vision.Feature{{
				Type:       objectLocalization,
				MaxResults: d.maxResults,
			}},
		}},
	}

	resp, err := d.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrap(err, "cloudvision: annotate")
	}
	if len(resp.Responses) != 1 {
		return nil, errors.Wrapf(ErrMalformed, "cloudvision: got %d responses for 1 image", len(resp.Responses))
	}

	r := resp.Responses[0]
	if r.Error != nil && r.Error.Code != 0 {
		return nil, errors.Errorf("cloudvision: image error %d: %s", r.Error.Code, r.Error.Message)
	}

	dets := make([]Detection, 0, len(r.LocalizedObjectAnnotations))
	for _, a := range r.LocalizedObjectAnnotations {
		if a == nil {
			return nil, errors.Wrap(ErrMalformed, "cloudvision: null annotation")
		}
		dets = append(dets, Detection{
			Label:      strings.ToLower(a.Name),
			Confidence: a.Score,
			Region:     polyToBox(a.BoundingPoly),
		})
	}

	d.logger.Debug("cloudvision detections", "count", len(dets), "uri", ref.URI)
	return dets, nil
}

func (d *CloudVisionDetector) image(ctx context.Context, ref ContentRef) (*vision.Image, error) {
	if len(ref.Data) == 0 && ref.IsRemote() {
		return &vision.Image{Source: &vision.ImageSource{ImageUri: ref.URI}}, nil
	}
	data, err := ref.Bytes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "cloudvision: load image")
	}
	return &vision.Image{Content: base64.StdEncoding.EncodeToString(data)}, nil
}

// polyToBox converts normalized polygon vertices to their bounding box.
// Cloud Vision omits zero coordinates, so missing fields read as 0.
func polyToBox(p *vision.BoundingPoly) Box {
	if p == nil || len(p.NormalizedVertices) == 0 {
		return Box{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, v := range p.NormalizedVertices {
		if v == nil {
			continue
		}
		minX = math.Min(minX, v.X)
		minY = math.Min(minY, v.Y)
		maxX = math.Max(maxX, v.X)
		maxY = math.Max(maxY, v.Y)
	}
	if math.IsInf(minX, 1) {
		return Box{}
	}
	minX, minY, maxX, maxY = clamp01(minX), clamp01(minY), clamp01(maxX), clamp01(maxY)
	return Box{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Close implements Detector.
func (d *CloudVisionDetector) Close() error { return nil }

var _ Detector = (*CloudVisionDetector)(nil)
