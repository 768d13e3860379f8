package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/teslashibe/go-viewfinder/internal/config"
	"github.com/teslashibe/go-viewfinder/internal/log"
	"github.com/teslashibe/go-viewfinder/pkg/camera"
	"github.com/teslashibe/go-viewfinder/pkg/detection"
	"github.com/teslashibe/go-viewfinder/pkg/mode"
	"github.com/teslashibe/go-viewfinder/pkg/overlay"
	"github.com/teslashibe/go-viewfinder/pkg/recognition"
	"github.com/teslashibe/go-viewfinder/pkg/remote"
	"github.com/teslashibe/go-viewfinder/pkg/viewfinder"
	"github.com/teslashibe/go-viewfinder/pkg/web"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Usage:       "Run the viewfinder server",
		Description: "Detection runs on the first backend that starts. yolo needs a binary\n" +
			"built with -tags gocv and OpenCV installed; cloudvision needs Google\n" +
			"application default credentials or detector.cloudvision.credentials_file.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
			&cli.StringSliceFlag{
				Name:  "backend",
				Usage: "Detection backend, in fallback order (yolo needs -tags gocv, cloudvision needs Google credentials)",
			},
		},
		Action: runServe,
	}
}

func loadConfig(cmd *cli.Command) (config.Config, error) {
	if path := cmd.String("config"); path != "" {
		os.Setenv(config.EnvPrefix+"_CONFIG", path)
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Bool("debug") {
		cfg.Log.Level = "debug"
		cfg.Server.Debug = true
	}
	return cfg, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// CLI flags override config
	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("backend") {
		cfg.Detector.Backends = cmd.StringSlice("backend")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Init(cfg.Log.Level)
	logger := log.For("serve")

	detector, err := buildDetector(ctx, cfg.Detector)
	if err != nil {
		return err
	}
	defer detector.Close()

	devices := remote.NewHub()
	collab := remote.NewCollaborator(devices)

	pipeline, err := recognition.NewPipeline(recognition.Config{
		Permissions: collab,
		Picker:      collab,
		Detector:    detector,
		PickOptions: &recognition.PickOptions{
			AllowEditing: cfg.Picker.AllowEditing,
			Aspect:       recognition.Aspect{W: cfg.Picker.AspectWidth, H: cfg.Picker.AspectHeight},
		},
	})
	if err != nil {
		return errors.Wrap(err, "create pipeline")
	}

	cam, err := camera.NewManagerWithPreset(cfg.Camera.Preset)
	if err != nil {
		return err
	}

	screen := viewfinder.NewScreen(viewfinder.Config{
		Pipeline: pipeline,
		Modes:    mode.NewCoordinator(),
		Resolver: overlay.NewResolver(overlayConfig(cfg.Overlay)),
		Camera:   cam,
	})
	devices.Attach(ctx, screen)

	server := web.NewServer(web.Config{
		Screen:  screen,
		Devices: devices,
		Debug:   cfg.Server.Debug,
	})

	logger.Info("viewfinder starting",
		"addr", cfg.Server.Addr(),
		"detector", detector.Name(),
		"camera", cfg.Camera.Preset)

	return server.Run(ctx, cfg.Server.Addr())
}

// buildDetector creates the configured backends. Backends that fail to
// start are skipped; the remaining ones form a fallback chain.
func buildDetector(ctx context.Context, cfg config.DetectorConfig) (detection.Detector, error) {
	logger := log.For("serve")

	var detectors []detection.Detector
	for _, name := range cfg.Backends {
		var (
			d   detection.Detector
			err error
		)
		switch name {
		case "yolo":
			d, err = detection.NewYOLO(detection.YOLOConfig{
				ModelPath:        cfg.YOLO.ModelPath,
				ConfidenceThresh: float32(cfg.YOLO.ConfidenceThresh),
				NMSThresh:        float32(cfg.YOLO.NMSThresh),
				InputWidth:       cfg.YOLO.InputWidth,
				InputHeight:      cfg.YOLO.InputHeight,
			})
		case "cloudvision":
			d, err = detection.NewCloudVision(ctx, detection.CloudVisionConfig{
				CredentialsFile: cfg.CloudVision.CredentialsFile,
				Endpoint:        cfg.CloudVision.Endpoint,
				MaxResults:      cfg.CloudVision.MaxResults,
			})
		default:
			err = fmt.Errorf("unknown backend %q", name)
		}
		if err != nil {
			logger.Warn("detector unavailable", "backend", name, "error", err)
			continue
		}
		detectors = append(detectors, d)
	}

	if len(detectors) == 0 {
		hint := ""
		if !detection.YOLOAvailable {
			hint = "; this binary was built without -tags gocv, so only cloudvision can start"
		}
		return nil, errors.Errorf("no detection backend available (tried %v)%s", cfg.Backends, hint)
	}
	return detection.NewChain(detectors...)
}

func overlayConfig(cfg config.OverlayConfig) overlay.Config {
	oc := overlay.DefaultConfig()
	if cfg.LabelDepth > 0 {
		oc.LabelOffset = overlay.GeoPoint{Z: -cfg.LabelDepth}
	}
	if cfg.ModelScale > 0 {
		oc.ModelScale = cfg.ModelScale
	}
	return oc
}
