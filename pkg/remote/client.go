package remote

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/teslashibe/go-viewfinder/internal/log"
	"github.com/teslashibe/go-viewfinder/pkg/overlay"
	"github.com/teslashibe/go-viewfinder/pkg/protocol"
	"github.com/teslashibe/go-viewfinder/pkg/viewfinder"
)

// PickReply is a simulated picker answer.
type PickReply struct {
	Cancelled   bool
	URI         string
	ContentType string
	Data        []byte
}

// Client is a device-side connection. It answers permission and picker
// requests through its handlers and sends user input to the viewfinder.
type Client struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	writeMu sync.Mutex

	// OnPermissionRequest answers photo-library prompts. Nil grants.
	OnPermissionRequest func() (bool, error)

	// OnPickRequest answers picker prompts. Nil cancels.
	OnPickRequest func(data *protocol.PickRequestData) (PickReply, error)

	OnSnapshot func(s viewfinder.Snapshot)
	OnOutcome  func(o *protocol.OutcomeData)
	OnError    func(id, message string)
}

// Dial connects to a viewfinder device endpoint such as
// ws://localhost:8080/ws/device/phone.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return &Client{
		conn:   conn,
		logger: log.For("remote.client"),
	}, nil
}

// Run reads messages until the connection closes or ctx is done.
func (c *Client) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "read")
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			c.logger.Warn("parse error", "error", err)
			continue
		}
		if err := c.handle(msg); err != nil {
			c.logger.Warn("handle failed", "type", msg.Type, "error", err)
		}
	}
}

func (c *Client) handle(msg *protocol.Message) error {
	switch msg.Type {
	case protocol.TypePermissionRequest:
		granted, herr := true, error(nil)
		if c.OnPermissionRequest != nil {
			granted, herr = c.OnPermissionRequest()
		}
		reply, err := protocol.NewPermissionResultMessage(msg.ID, granted)
		if err != nil {
			return err
		}
		if herr != nil {
			reply, err = protocol.NewMessage(protocol.TypePermissionResult, protocol.PermissionResultData{Error: herr.Error()})
			if err != nil {
				return err
			}
			reply = reply.WithID(msg.ID)
		}
		return c.write(reply)

	case protocol.TypePickRequest:
		data, err := msg.GetPickRequestData()
		if err != nil {
			return err
		}
		pick, herr := PickReply{Cancelled: true}, error(nil)
		if c.OnPickRequest != nil {
			pick, herr = c.OnPickRequest(data)
		}
		if herr != nil {
			reply, err := protocol.NewMessage(protocol.TypePickResult, protocol.PickResultData{Error: herr.Error()})
			if err != nil {
				return err
			}
			return c.write(reply.WithID(msg.ID))
		}
		reply, err := protocol.NewPickResultMessage(msg.ID, pick.Cancelled, pick.URI, pick.ContentType, pick.Data)
		if err != nil {
			return err
		}
		return c.write(reply)

	case protocol.TypeSnapshot:
		if c.OnSnapshot == nil {
			return nil
		}
		var s viewfinder.Snapshot
		if err := msg.ParseData(&s); err != nil {
			return err
		}
		c.OnSnapshot(s)

	case protocol.TypeOutcome:
		if c.OnOutcome == nil {
			return nil
		}
		data, err := msg.GetOutcomeData()
		if err != nil {
			return err
		}
		c.OnOutcome(data)

	case protocol.TypeError:
		if c.OnError == nil {
			return nil
		}
		data, err := msg.GetErrorData()
		if err != nil {
			return err
		}
		c.OnError(msg.ID, data.Message)
	}
	return nil
}

// Toggle asks the viewfinder to toggle a mode by name.
func (c *Client) Toggle(mode string) error {
	msg, err := protocol.NewToggleMessage(mode)
	if err != nil {
		return err
	}
	return c.write(msg)
}

// Pick starts a pick-and-recognize call.
func (c *Client) Pick() error {
	msg, err := protocol.NewMessage(protocol.TypePick, nil)
	if err != nil {
		return err
	}
	return c.write(msg)
}

// CancelPick aborts the pending call.
func (c *Client) CancelPick() error {
	msg, err := protocol.NewMessage(protocol.TypeCancelPick, nil)
	if err != nil {
		return err
	}
	return c.write(msg)
}

// SetLocation reports the current location; nil clears it.
func (c *Client) SetLocation(p *overlay.GeoPoint) error {
	msg, err := protocol.NewLocationMessage(p)
	if err != nil {
		return err
	}
	return c.write(msg)
}

// SetDestination reports the destination; nil clears it.
func (c *Client) SetDestination(p *overlay.GeoPoint) error {
	msg, err := protocol.NewDestinationMessage(p)
	if err != nil {
		return err
	}
	return c.write(msg)
}

// Ping sends a health check.
func (c *Client) Ping() error {
	msg, err := protocol.NewMessage(protocol.TypePing, nil)
	if err != nil {
		return err
	}
	return c.write(msg)
}

// Close closes the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *Client) write(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
