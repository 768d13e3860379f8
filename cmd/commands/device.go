package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/teslashibe/go-viewfinder/internal/log"
	"github.com/teslashibe/go-viewfinder/pkg/protocol"
	"github.com/teslashibe/go-viewfinder/pkg/remote"
	"github.com/teslashibe/go-viewfinder/pkg/viewfinder"
)

// NewDeviceCommand returns the device subcommand, a scriptable stand-in
// for the mobile app.
func NewDeviceCommand() *cli.Command {
	return &cli.Command{
		Name:  "device",
		Usage: "Connect to a viewfinder as a device",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "Device websocket URL",
				Value: "ws://localhost:8090/ws/device",
			},
			&cli.StringFlag{
				Name:  "image",
				Usage: "Image file returned to pick requests; empty cancels the picker",
			},
			&cli.BoolFlag{
				Name:  "deny",
				Usage: "Deny photo-library access",
			},
			&cli.StringSliceFlag{
				Name:  "toggle",
				Usage: "Modes to toggle after connecting (ar, vr, filter, navigation, object_recognition)",
			},
			&cli.BoolFlag{
				Name:  "pick",
				Usage: "Start a pick-and-recognize call after connecting",
			},
		},
		Action: runDevice,
	}
}

func runDevice(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("debug") {
		log.Init("debug")
	}
	logger := log.For("device")

	client, err := remote.Dial(ctx, cmd.String("server"))
	if err != nil {
		return err
	}
	defer client.Close()

	deny := cmd.Bool("deny")
	client.OnPermissionRequest = func() (bool, error) {
		logger.Info("photo library access requested", "granted", !deny)
		return !deny, nil
	}

	image := cmd.String("image")
	client.OnPickRequest = func(req *protocol.PickRequestData) (remote.PickReply, error) {
		if image == "" {
			logger.Info("picker dismissed")
			return remote.PickReply{Cancelled: true}, nil
		}
		data, err := os.ReadFile(image)
		if err != nil {
			return remote.PickReply{}, err
		}
		abs, _ := filepath.Abs(image)
		logger.Info("picked image", "path", abs, "bytes", len(data),
			"aspect", fmt.Sprintf("%d:%d", req.Aspect[0], req.Aspect[1]))
		return remote.PickReply{
			URI:         "file://" + abs,
			ContentType: http.DetectContentType(data),
			Data:        data,
		}, nil
	}

	client.OnSnapshot = func(s viewfinder.Snapshot) {
		logger.Info("snapshot",
			"seq", s.Seq,
			"modes", s.Modes.String(),
			"pending", s.Pending,
			"label", s.Label(),
			"anchors", len(s.Anchors))
	}
	client.OnOutcome = func(o *protocol.OutcomeData) {
		logger.Info("outcome", "kind", o.Kind, "stage", o.Stage, "reason", o.Reason, "summary", o.Summary)
	}
	client.OnError = func(id, message string) {
		logger.Warn("command rejected", "id", id, "error", message)
	}

	for _, m := range cmd.StringSlice("toggle") {
		if err := client.Toggle(m); err != nil {
			return err
		}
	}
	if cmd.Bool("pick") {
		if err := client.Pick(); err != nil {
			return err
		}
	}

	return client.Run(ctx)
}
