package remote

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/teslashibe/go-viewfinder/pkg/protocol"
	"github.com/teslashibe/go-viewfinder/pkg/recognition"
)

const (
	writeWait      = 10 * time.Second
	sendQueueSize  = 64
	maxMessageSize = 16 << 20 // inline images
)

// Device is one connected device. It serves permission and picker requests
// for the recognition pipeline over its websocket.
type Device struct {
	ID        string
	Connected time.Time

	conn   *websocket.Conn
	logger *slog.Logger
	out    chan []byte
	gone   chan struct{}
	wrote  chan struct{} // closed when writePump returns

	mu       sync.Mutex
	closed   bool
	lastSeen time.Time
	pending  map[string]chan *protocol.Message
}

func newDevice(id string, conn *websocket.Conn, logger *slog.Logger) *Device {
	now := time.Now()
	return &Device{
		ID:        id,
		Connected: now,
		conn:      conn,
		logger:    logger.With("device", id),
		out:       make(chan []byte, sendQueueSize),
		gone:      make(chan struct{}),
		wrote:     make(chan struct{}),
		lastSeen:  now,
		pending:   make(map[string]chan *protocol.Message),
	}
}

// Send queues msg for the device without blocking.
func (d *Device) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDeviceGone
	}
	select {
	case d.out <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

// LastSeen returns when the device last sent a message.
func (d *Device) LastSeen() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSeen
}

// Gone is closed when the device disconnects.
func (d *Device) Gone() <-chan struct{} {
	return d.gone
}

// RequestPhotoLibraryAccess implements recognition.PermissionService.
func (d *Device) RequestPhotoLibraryAccess(ctx context.Context) (recognition.Permission, error) {
	msg, err := protocol.NewPermissionRequestMessage(uuid.NewString())
	if err != nil {
		return "", err
	}
	reply, err := d.request(ctx, msg)
	if err != nil {
		return "", err
	}
	data, err := reply.GetPermissionResultData()
	if err != nil {
		return "", err
	}
	if data.Error != "" {
		return "", &DeviceError{DeviceID: d.ID, Message: data.Error}
	}
	if data.Granted {
		return recognition.Granted, nil
	}
	return recognition.Denied, nil
}

// PickImage implements recognition.ImagePicker.
func (d *Device) PickImage(ctx context.Context, opts recognition.PickOptions) (recognition.PickResult, error) {
	msg, err := protocol.NewPickRequestMessage(uuid.NewString(), opts)
	if err != nil {
		return recognition.PickResult{}, err
	}
	reply, err := d.request(ctx, msg)
	if err != nil {
		return recognition.PickResult{}, err
	}
	data, err := reply.GetPickResultData()
	if err != nil {
		return recognition.PickResult{}, err
	}
	if data.Error != "" {
		return recognition.PickResult{}, &DeviceError{DeviceID: d.ID, Message: data.Error}
	}
	if data.Cancelled {
		return recognition.PickResult{Cancelled: true}, nil
	}
	ref, err := data.Content()
	if err != nil {
		return recognition.PickResult{}, err
	}
	return recognition.PickResult{Content: ref}, nil
}

// request sends msg and waits for the reply carrying the same ID.
func (d *Device) request(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
	reply := make(chan *protocol.Message, 1)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDeviceGone
	}
	d.pending[msg.ID] = reply
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.pending, msg.ID)
		d.mu.Unlock()
	}()

	if err := d.Send(msg); err != nil {
		return nil, err
	}
	d.logger.Debug("request sent", "type", msg.Type, "id", msg.ID)

	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.gone:
		return nil, ErrDeviceGone
	}
}

// resolve hands a reply to the waiting request. Unknown IDs are ignored.
func (d *Device) resolve(msg *protocol.Message) bool {
	d.mu.Lock()
	reply, ok := d.pending[msg.ID]
	d.mu.Unlock()
	if !ok {
		d.logger.Debug("reply without pending request", "type", msg.Type, "id", msg.ID)
		return false
	}
	select {
	case reply <- msg:
	default:
	}
	return true
}

// PendingRequests returns how many requests await an answer.
func (d *Device) PendingRequests() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Device) touch() {
	d.mu.Lock()
	d.lastSeen = time.Now()
	d.mu.Unlock()
}

// close marks the device gone and stops its writer. Safe to call twice.
func (d *Device) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.gone)
	close(d.out)
}

// writePump is the only goroutine that writes to the connection.
func (d *Device) writePump() {
	defer close(d.wrote)
	for data := range d.out {
		d.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := d.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			d.logger.Warn("write failed", "error", err)
			d.conn.Close()
			return
		}
	}
	d.conn.SetWriteDeadline(time.Now().Add(writeWait))
	d.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

var (
	_ recognition.PermissionService = (*Device)(nil)
	_ recognition.ImagePicker       = (*Device)(nil)
)
