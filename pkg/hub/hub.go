// Package hub fans out state updates to read-only websocket observers.
// One goroutine owns the client set; slow clients are dropped rather than
// allowed to stall the publisher.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-viewfinder/internal/log"
)

const (
	broadcastBuffer = 256
	clientBuffer    = 64
)

// Message is one encoded state update. A non-zero Seq orders updates:
// the hub discards any update not newer than the last one it delivered.
type Message struct {
	Seq  uint64
	Data []byte
}

// Hub maintains the set of observers. New observers first receive the most
// recent update so they start from the current state.
type Hub struct {
	name   string
	logger *slog.Logger

	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// mu guards reads of clients and last from outside the run loop.
	mu   sync.RWMutex
	last *Message

	running atomic.Bool
	sent    atomic.Uint64
	dropped atomic.Uint64
	stale   atomic.Uint64
}

// New creates a hub. name tags its log lines.
func New(name string) *Hub {
	return &Hub{
		name:       name,
		logger:     log.For("hub").With("hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// WithLogger replaces the hub's logger.
func (h *Hub) WithLogger(logger *slog.Logger) *Hub {
	h.logger = logger.With("hub", h.name)
	return h
}

// Run owns the client set until ctx ends. Call it in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		close(h.done)
		h.mu.Lock()
		for c := range h.clients {
			close(c.send)
			delete(h.clients, c)
		}
		h.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			last := h.last
			h.mu.Unlock()
			if last != nil {
				c.send <- *last
			}
			h.logger.Debug("observer joined", "client", c.id, "clients", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("observer left", "client", c.id, "clients", count)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if msg.Seq != 0 && h.last != nil && msg.Seq <= h.last.Seq {
		h.stale.Add(1)
		return
	}
	h.last = &msg

	for c := range h.clients {
		select {
		case c.send <- msg:
			h.sent.Add(1)
		default:
			close(c.send)
			delete(h.clients, c)
			h.dropped.Add(1)
			h.logger.Warn("dropped slow observer", "client", c.id)
		}
	}
}

// Broadcast queues msg for all observers. It never blocks; when the
// queue is full the update is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast queue full, dropping update", "seq", msg.Seq)
	}
}

// Publish encodes v as JSON and broadcasts it with the given sequence number.
func (h *Hub) Publish(seq uint64, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(Message{Seq: seq, Data: data})
	return nil
}

// ClientCount returns the number of connected observers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Stats reports delivery counters.
type Stats struct {
	Clients int    `json:"clients"`
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
	Stale   uint64 `json:"stale"`
}

// GetStats returns delivery counters.
func (h *Hub) GetStats() Stats {
	return Stats{
		Clients: h.ClientCount(),
		Sent:    h.sent.Load(),
		Dropped: h.dropped.Load(),
		Stale:   h.stale.Load(),
	}
}

// join registers c, or reports false if the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave unregisters c unless the hub has already stopped.
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
