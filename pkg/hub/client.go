package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Observers only send control frames.
	maxMessageSize = 4 * 1024
)

// Client is one observer connection.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan Message

	quit  chan struct{} // closed when readLoop returns
	wrote chan struct{} // closed when writeLoop returns
}

// Serve registers conn with the hub and streams updates until the
// connection closes or the hub stops. Use it as the websocket handler.
// It returns only after the writer is done with conn, since the
// websocket package reuses the connection once the handler returns.
func (h *Hub) Serve(conn *websocket.Conn) {
	c := &Client{
		id:    uuid.NewString(),
		hub:   h,
		conn:  conn,
		send:  make(chan Message, clientBuffer),
		quit:  make(chan struct{}),
		wrote: make(chan struct{}),
	}
	if !h.join(c) {
		conn.Close()
		return
	}
	go c.writeLoop()
	c.readLoop()
	close(c.quit)
	<-c.wrote
}

// readLoop discards input; it exists to notice disconnects and pongs.
func (c *Client) readLoop() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop is the only goroutine writing to the connection. Updates
// supersede each other, so a backlog collapses to its newest entry.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.wrote)
	}()

	for {
		select {
		case <-c.quit:
			return

		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			msg, open := newest(msg, c.send)
			if err := c.conn.WriteMessage(websocket.TextMessage, msg.Data); err != nil {
				return
			}
			if !open {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// newest drains whatever is queued behind first and returns the last
// update. ok is false once the queue is closed.
func newest(first Message, queue <-chan Message) (Message, bool) {
	msg := first
	for {
		select {
		case next, ok := <-queue:
			if !ok {
				return msg, false
			}
			msg = next
		default:
			return msg, true
		}
	}
}
