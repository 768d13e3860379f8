// Package web serves the viewfinder's HTTP API, its live state stream and
// the device websocket endpoint.
package web

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-viewfinder/internal/log"
	"github.com/teslashibe/go-viewfinder/pkg/hub"
	"github.com/teslashibe/go-viewfinder/pkg/remote"
	"github.com/teslashibe/go-viewfinder/pkg/viewfinder"
)

// Version is reported by /health.
var Version = "0.1.0"

// Config wires the server to the screen it exposes.
type Config struct {
	Screen  *viewfinder.Screen
	Devices *remote.Hub // optional; mounts /ws/device and /api/devices
	Debug   bool
	Logger  *slog.Logger
}

// Server is the viewfinder HTTP server
type Server struct {
	app     *fiber.App
	screen  *viewfinder.Screen
	devices *remote.Hub
	logger  *slog.Logger

	// stateHub streams every published snapshot to /ws/state clients.
	stateHub *hub.Hub

	// base outlives requests; recognitions started over HTTP run under it.
	base    context.Context
	started time.Time
}

// NewServer creates the server and registers all routes.
func NewServer(cfg Config) *Server {
	lg := cfg.Logger
	if lg == nil {
		lg = log.For("web")
	}

	s := &Server{
		screen:   cfg.Screen,
		devices:  cfg.Devices,
		logger:   lg,
		stateHub: hub.New("state").WithLogger(lg),
		base:     context.Background(),
		started:  time.Now(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "viewfinder",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))
	if cfg.Debug {
		app.Use(logger.New())
	}

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", s.handleMetrics)

	api := app.Group("/api")
	api.Get("/state", s.handleState)

	api.Get("/modes", s.handleModes)
	api.Post("/modes/reset", s.handleResetModes)
	api.Post("/modes/:mode/toggle", s.handleToggle)

	api.Get("/recognition", s.handleRecognition)
	api.Post("/recognition", s.handleStartRecognition)
	api.Delete("/recognition", s.handleCancelRecognition)
	api.Delete("/recognition/result", s.handleClearResult)

	api.Put("/location", s.handleSetLocation)
	api.Delete("/location", s.handleClearLocation)
	api.Put("/destination", s.handleSetDestination)
	api.Delete("/destination", s.handleClearDestination)

	api.Get("/camera", s.handleGetCamera)
	api.Put("/camera", s.handleSetCamera)
	api.Patch("/camera", s.handleUpdateCamera)
	api.Get("/camera/presets", s.handleCameraPresets)

	app.Use("/ws/state", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(s.stateHub.Serve))

	if s.devices != nil {
		s.devices.RegisterRoutes(app)
		s.devices.RegisterAPIRoutes(api)
	}

	s.screen.Subscribe(func(snap viewfinder.Snapshot) {
		if err := s.stateHub.Publish(snap.Seq, snap); err != nil {
			s.logger.Error("encode snapshot", "error", err)
		}
	})

	s.app = app
	return s
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves on addr until ctx is done, then shuts down.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.base = ctx
	go s.stateHub.Run(ctx)
	snap := s.screen.Snapshot()
	s.stateHub.Publish(snap.Seq, snap)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- s.app.Listen(addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		return s.app.ShutdownWithTimeout(5 * time.Second)
	}
}

// StateClients returns the number of /ws/state subscribers.
func (s *Server) StateClients() int {
	return s.stateHub.ClientCount()
}
