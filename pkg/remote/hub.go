// Package remote connects mobile devices to the viewfinder over websockets.
// Devices send user input (toggles, picks, locations) and serve the
// permission and picker requests of the recognition pipeline.
package remote

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-viewfinder/internal/log"
	"github.com/teslashibe/go-viewfinder/pkg/mode"
	"github.com/teslashibe/go-viewfinder/pkg/protocol"
	"github.com/teslashibe/go-viewfinder/pkg/recognition"
	"github.com/teslashibe/go-viewfinder/pkg/viewfinder"
)

// Hub manages device connections. The most recently connected device is
// the one that serves permission and picker requests.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	devices map[string]*Device
	order   []*Device // connection order, newest last

	screen *viewfinder.Screen
	ctx    context.Context

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	commands         atomic.Uint64
	rejected         atomic.Uint64
}

// NewHub creates a device hub.
func NewHub() *Hub {
	return NewHubWithLogger(log.For("remote"))
}

// NewHubWithLogger creates a device hub with a custom logger.
func NewHubWithLogger(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		devices: make(map[string]*Device),
		ctx:     context.Background(),
	}
}

// Attach connects the hub to screen: device commands drive it, and its
// snapshots and outcomes are pushed to every device. Picks started by a
// device run under ctx.
func (h *Hub) Attach(ctx context.Context, screen *viewfinder.Screen) {
	h.mu.Lock()
	h.screen = screen
	h.ctx = ctx
	h.mu.Unlock()

	screen.Subscribe(func(s viewfinder.Snapshot) {
		msg, err := protocol.NewSnapshotMessage(s)
		if err != nil {
			h.logger.Error("encode snapshot", "error", err)
			return
		}
		h.Broadcast(msg)
	})
	screen.Pipeline().OnOutcome(func(o recognition.Outcome) {
		msg, err := protocol.NewOutcomeMessage(o, screen.Pipeline().Result())
		if err != nil {
			h.logger.Error("encode outcome", "error", err)
			return
		}
		h.Broadcast(msg)
	})
}

// RegisterRoutes registers the device websocket on a Fiber app.
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/device", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/device", websocket.New(h.handleDevice, websocket.Config{ReadBufferSize: 64 << 10}))
	app.Get("/ws/device/:id", websocket.New(h.handleDevice, websocket.Config{ReadBufferSize: 64 << 10}))
}

// handleDevice serves one device connection until it closes.
func (h *Hub) handleDevice(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}

	d := newDevice(id, c, h.logger)
	go d.writePump()

	h.add(d)
	defer func() {
		h.remove(d)
		d.close()
		<-d.wrote
	}()

	if s := h.attached(); s != nil {
		if msg, err := protocol.NewSnapshotMessage(s.Snapshot()); err == nil {
			h.send(d, msg)
		}
	}

	c.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			d.logger.Debug("read ended", "error", err)
			return
		}
		d.touch()
		h.messagesReceived.Add(1)
		h.handleMessage(d, data)
	}
}

// handleMessage processes an incoming message from a device.
func (h *Hub) handleMessage(d *Device, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		d.logger.Warn("parse error", "error", err)
		h.reject(d, "", err)
		return
	}

	switch msg.Type {
	case protocol.TypePermissionResult, protocol.TypePickResult:
		d.resolve(msg)

	case protocol.TypePing:
		if pong, err := protocol.NewPongMessage(msg.ID, msg.Timestamp); err == nil {
			h.send(d, pong)
		}

	case protocol.TypeToggle, protocol.TypePick, protocol.TypeCancelPick,
		protocol.TypeLocation, protocol.TypeDestination:
		h.commands.Add(1)
		if err := h.apply(msg); err != nil {
			h.reject(d, msg.ID, err)
		}

	default:
		d.logger.Debug("ignoring message", "type", msg.Type)
	}
}

// apply runs a device command against the attached screen.
func (h *Hub) apply(msg *protocol.Message) error {
	screen := h.attached()
	if screen == nil {
		return ErrNotAttached
	}

	switch msg.Type {
	case protocol.TypeToggle:
		data, err := msg.GetToggleData()
		if err != nil {
			return err
		}
		m, err := mode.ParseMode(data.Mode)
		if err != nil {
			return err
		}
		_, err = screen.Toggle(m)
		return err

	case protocol.TypePick:
		_, err := screen.StartRecognition(h.baseContext())
		return err

	case protocol.TypeCancelPick:
		screen.CancelRecognition()
		return nil

	case protocol.TypeLocation, protocol.TypeDestination:
		data, err := msg.GetPointData()
		if err != nil {
			return err
		}
		switch {
		case msg.Type == protocol.TypeLocation && data.Point == nil:
			screen.ClearLocation()
		case msg.Type == protocol.TypeLocation:
			screen.SetLocation(*data.Point)
		case data.Point == nil:
			screen.ClearDestination()
		default:
			screen.SetDestination(*data.Point)
		}
		return nil
	}
	return nil
}

func (h *Hub) reject(d *Device, id string, err error) {
	h.rejected.Add(1)
	if errors.Is(err, recognition.ErrBusy) {
		d.logger.Debug("pick rejected, one is pending")
	}
	if msg, merr := protocol.NewErrorMessage(id, err); merr == nil {
		h.send(d, msg)
	}
}

func (h *Hub) send(d *Device, msg *protocol.Message) {
	if err := d.Send(msg); err != nil {
		d.logger.Warn("send failed", "type", msg.Type, "error", err)
		return
	}
	h.messagesSent.Add(1)
}

// Broadcast sends a message to all connected devices
func (h *Hub) Broadcast(msg *protocol.Message) {
	for _, d := range h.GetDevices() {
		h.send(d, msg)
	}
}

// Current returns the device that serves requests, or nil.
func (h *Hub) Current() *Device {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.order) == 0 {
		return nil
	}
	return h.order[len(h.order)-1]
}

// GetDevice returns a device by ID, or nil.
func (h *Hub) GetDevice(id string) *Device {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.devices[id]
}

// GetDevices returns all connected devices in connection order.
func (h *Hub) GetDevices() []*Device {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*Device(nil), h.order...)
}

// DeviceCount returns the number of connected devices
func (h *Hub) DeviceCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.devices)
}

func (h *Hub) add(d *Device) {
	h.mu.Lock()
	if old, ok := h.devices[d.ID]; ok {
		h.order = without(h.order, old)
	}
	h.devices[d.ID] = d
	h.order = append(h.order, d)
	count := len(h.devices)
	h.mu.Unlock()

	h.logger.Info("device connected", "device", d.ID, "devices", count)
}

func (h *Hub) remove(d *Device) {
	h.mu.Lock()
	if h.devices[d.ID] == d {
		delete(h.devices, d.ID)
	}
	h.order = without(h.order, d)
	count := len(h.devices)
	h.mu.Unlock()

	h.logger.Info("device disconnected", "device", d.ID, "devices", count)
}

func (h *Hub) attached() *viewfinder.Screen {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.screen
}

func (h *Hub) baseContext() context.Context {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ctx
}

func without(list []*Device, d *Device) []*Device {
	out := list[:0:0]
	for _, x := range list {
		if x != d {
			out = append(out, x)
		}
	}
	return out
}

// Stats contains hub statistics
type Stats struct {
	DeviceCount      int    `json:"device_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	Commands         uint64 `json:"commands"`
	Rejected         uint64 `json:"rejected"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		DeviceCount:      h.DeviceCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		Commands:         h.commands.Load(),
		Rejected:         h.rejected.Load(),
	}
}

// DeviceInfo contains info about a connected device
type DeviceInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
	Current   bool      `json:"current"`
	Pending   int       `json:"pending_requests"`
}

// GetDeviceInfos returns info about all connected devices
func (h *Hub) GetDeviceInfos() []DeviceInfo {
	devices := h.GetDevices()
	current := h.Current()

	infos := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		infos = append(infos, DeviceInfo{
			ID:        d.ID,
			Connected: d.Connected,
			LastSeen:  d.LastSeen(),
			Current:   d == current,
			Pending:   d.PendingRequests(),
		})
	}
	return infos
}

// RegisterAPIRoutes registers API routes for device management
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	devices := api.Group("/devices")

	devices.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"devices": h.GetDeviceInfos(),
			"count":   h.DeviceCount(),
		})
	})

	devices.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}
