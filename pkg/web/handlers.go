package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-viewfinder/pkg/camera"
	"github.com/teslashibe/go-viewfinder/pkg/mode"
	"github.com/teslashibe/go-viewfinder/pkg/overlay"
	"github.com/teslashibe/go-viewfinder/pkg/recognition"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": Version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

// handleState returns the current render snapshot.
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.screen.Snapshot())
}

// handleModes returns the mode set with its control panel.
func (s *Server) handleModes(c *fiber.Ctx) error {
	set := s.screen.Modes().Current()
	return c.JSON(fiber.Map{
		"modes":   set,
		"buttons": mode.Buttons(set),
		"toggles": s.screen.Modes().ToggleCounts(),
	})
}

func (s *Server) handleResetModes(c *fiber.Ctx) error {
	s.screen.Modes().Reset()
	return c.JSON(s.screen.Snapshot())
}

// handleToggle toggles one mode by name.
func (s *Server) handleToggle(c *fiber.Ctx) error {
	m, err := mode.ParseMode(c.Params("mode"))
	if err != nil {
		return badRequest(c, err)
	}
	if _, err := s.screen.Toggle(m); err != nil {
		return badRequest(c, err)
	}
	return c.JSON(s.screen.Snapshot())
}

// handleRecognition reports the pending call and the stored result.
func (s *Server) handleRecognition(c *fiber.Ctx) error {
	p := s.screen.Pipeline()
	resp := fiber.Map{
		"pending":    p.Pending(),
		"pending_id": p.PendingID(),
		"result":     p.Result(),
		"counts":     p.Counts(),
	}
	if o, ok := p.LastOutcome(); ok {
		resp["last_outcome"] = o
	}
	return c.JSON(resp)
}

// handleStartRecognition starts a pick-and-recognize call. With ?wait=true
// it blocks and returns the outcome; otherwise it answers 202 with the
// pending snapshot.
func (s *Server) handleStartRecognition(c *fiber.Ctx) error {
	if c.QueryBool("wait") {
		o := s.screen.PickAndRecognize(s.base)
		if o.Kind == recognition.Busy {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": recognition.ErrBusy.Error()})
		}
		return c.JSON(o)
	}

	_, err := s.screen.StartRecognition(s.base)
	if errors.Is(err, recognition.ErrBusy) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":      err.Error(),
			"pending_id": s.screen.Pipeline().PendingID(),
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(s.screen.Snapshot())
}

func (s *Server) handleCancelRecognition(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"cancelled": s.screen.CancelRecognition()})
}

func (s *Server) handleClearResult(c *fiber.Ctx) error {
	s.screen.ClearResult()
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleSetLocation(c *fiber.Ctx) error {
	var p overlay.GeoPoint
	if err := c.BodyParser(&p); err != nil {
		return badRequest(c, err)
	}
	s.screen.SetLocation(p)
	return c.JSON(s.screen.Snapshot())
}

func (s *Server) handleClearLocation(c *fiber.Ctx) error {
	s.screen.ClearLocation()
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleSetDestination(c *fiber.Ctx) error {
	var p overlay.GeoPoint
	if err := c.BodyParser(&p); err != nil {
		return badRequest(c, err)
	}
	s.screen.SetDestination(p)
	return c.JSON(s.screen.Snapshot())
}

func (s *Server) handleClearDestination(c *fiber.Ctx) error {
	s.screen.ClearDestination()
	return c.SendStatus(fiber.StatusNoContent)
}

// handleGetCamera returns the camera configuration.
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	return c.JSON(s.screen.Camera().GetConfigJSON())
}

// handleSetCamera replaces the camera configuration.
func (s *Server) handleSetCamera(c *fiber.Ctx) error {
	var cfg camera.Config
	if err := c.BodyParser(&cfg); err != nil {
		return badRequest(c, err)
	}
	if err := s.screen.Camera().SetConfig(cfg); err != nil {
		return cameraError(c, err)
	}
	return c.JSON(s.screen.Camera().GetConfigJSON())
}

// handleUpdateCamera changes individual camera fields or applies a preset.
func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	var params map[string]any
	if err := c.BodyParser(&params); err != nil {
		return badRequest(c, err)
	}
	if err := s.screen.Camera().UpdateConfig(params); err != nil {
		return cameraError(c, err)
	}
	return c.JSON(s.screen.Camera().GetConfigJSON())
}

func (s *Server) handleCameraPresets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"presets":      camera.PresetNames(),
		"capabilities": camera.Capabilities(),
	})
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

func cameraError(c *fiber.Ctx, err error) error {
	var verr *camera.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":    "invalid camera config",
			"problems": verr.Problems,
		})
	}
	return badRequest(c, err)
}
