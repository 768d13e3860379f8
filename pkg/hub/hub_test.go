package hub

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	gws "github.com/gorilla/websocket"

	"github.com/teslashibe/go-viewfinder/internal/log"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test").WithLogger(log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h, cancel
}

// fakeClient joins the hub without a websocket connection.
func fakeClient(t *testing.T, h *Hub, buffer int) *Client {
	t.Helper()
	c := &Client{id: t.Name(), hub: h, send: make(chan Message, buffer)}
	if !h.join(c) {
		t.Fatal("join failed")
	}
	return c
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case m, ok := <-c.send:
		return m, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}, false
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishFanOut(t *testing.T) {
	h, _ := startHub(t)
	a := fakeClient(t, h, 4)
	b := fakeClient(t, h, 4)

	if err := h.Publish(1, map[string]string{"primary": "ar"}); err != nil {
		t.Fatal(err)
	}

	for _, c := range []*Client{a, b} {
		m, ok := receive(t, c)
		if !ok || m.Seq != 1 || string(m.Data) != `{"primary":"ar"}` {
			t.Errorf("got %v %d %q", ok, m.Seq, m.Data)
		}
	}
	waitFor(t, func() bool { return h.GetStats().Sent == 2 })
}

func TestNewClientGetsLatestUpdate(t *testing.T) {
	h, _ := startHub(t)
	first := fakeClient(t, h, 4)

	h.Broadcast(Message{Seq: 1, Data: []byte(`"one"`)})
	h.Broadcast(Message{Seq: 2, Data: []byte(`"two"`)})
	receive(t, first)
	receive(t, first)

	late := fakeClient(t, h, 4)
	m, _ := receive(t, late)
	if string(m.Data) != `"two"` {
		t.Errorf("late client got %s, want the latest update", m.Data)
	}
}

func TestStaleUpdatesDiscarded(t *testing.T) {
	h, _ := startHub(t)
	c := fakeClient(t, h, 8)

	h.Broadcast(Message{Seq: 5, Data: []byte("5")})
	h.Broadcast(Message{Seq: 3, Data: []byte("3")})
	h.Broadcast(Message{Seq: 5, Data: []byte("5 again")})
	h.Broadcast(Message{Seq: 0, Data: []byte("unordered")})
	h.Broadcast(Message{Seq: 6, Data: []byte("6")})

	want := []string{"5", "unordered", "6"}
	for _, w := range want {
		m, _ := receive(t, c)
		if string(m.Data) != w {
			t.Errorf("got %q, want %q", m.Data, w)
		}
	}
	waitFor(t, func() bool { return h.GetStats().Stale == 2 })
}

func TestSlowClientDropped(t *testing.T) {
	h, _ := startHub(t)
	slow := fakeClient(t, h, 1)
	fast := fakeClient(t, h, 8)

	for i := 1; i <= 3; i++ {
		h.Broadcast(Message{Seq: uint64(i), Data: []byte{byte(i)}})
	}

	for i := 1; i <= 3; i++ {
		m, ok := receive(t, fast)
		if !ok || m.Seq != uint64(i) {
			t.Fatalf("fast client message %d = %v", i, m)
		}
	}

	waitFor(t, func() bool { return h.ClientCount() == 1 })
	if h.GetStats().Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", h.GetStats().Dropped)
	}

	// The slow client sees its queued update, then a closed channel.
	receive(t, slow)
	if _, ok := receive(t, slow); ok {
		t.Error("slow client channel still open")
	}
}

func TestNewestCollapsesBacklog(t *testing.T) {
	q := make(chan Message, 4)
	q <- Message{Seq: 2}
	q <- Message{Seq: 3}

	m, open := newest(Message{Seq: 1}, q)
	if m.Seq != 3 || !open {
		t.Errorf("newest = %d, %v; want 3, true", m.Seq, open)
	}

	q <- Message{Seq: 4}
	close(q)
	m, open = newest(Message{Seq: 1}, q)
	if m.Seq != 4 || open {
		t.Errorf("newest on closed queue = %d, %v; want 4, false", m.Seq, open)
	}
}

func TestLeave(t *testing.T) {
	h, _ := startHub(t)
	c := fakeClient(t, h, 1)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	h.leave(c)
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestStopClosesClients(t *testing.T) {
	h, cancel := startHub(t)
	c := fakeClient(t, h, 1)
	waitFor(t, h.IsRunning)

	cancel()
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}

	if _, ok := receive(t, c); ok {
		t.Error("client channel still open after stop")
	}
	if h.IsRunning() {
		t.Error("IsRunning() = true after stop")
	}
	if h.join(&Client{hub: h, send: make(chan Message, 1)}) {
		t.Error("join succeeded on a stopped hub")
	}
	h.leave(c) // must not block
}

func TestBroadcastNeverBlocks(t *testing.T) {
	h := New("idle").WithLogger(log.Discard())

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer+10; i++ {
			h.Broadcast(Message{Data: []byte("{}")})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a hub that is not running")
	}
}

// Reconnecting observers reuse pooled connections, so each Serve must be
// finished with its conn before the next observer gets it.
func TestServeReconnectCycles(t *testing.T) {
	h, _ := startHub(t)

	var served atomic.Int32
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		h.Serve(conn)
		served.Add(1)
	}))
	go app.Listen(":18102")
	t.Cleanup(func() { app.Shutdown() })
	time.Sleep(100 * time.Millisecond)

	for i := 1; i <= 20; i++ {
		if err := h.Publish(uint64(i), map[string]int{"seq": i}); err != nil {
			t.Fatal(err)
		}
		waitFor(t, func() bool {
			h.mu.RLock()
			defer h.mu.RUnlock()
			return h.last != nil && h.last.Seq == uint64(i)
		})

		ws, _, err := gws.DefaultDialer.Dial("ws://localhost:18102/ws", nil)
		if err != nil {
			t.Fatalf("cycle %d: dial error: %v", i, err)
		}
		ws.SetReadDeadline(time.Now().Add(time.Second))
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("cycle %d: read error: %v", i, err)
		}
		if want := fmt.Sprintf(`{"seq":%d}`, i); string(data) != want {
			t.Errorf("cycle %d: got %s, want %s", i, data, want)
		}
		ws.Close()

		waitFor(t, func() bool { return served.Load() == int32(i) })
	}

	if n := h.ClientCount(); n != 0 {
		t.Errorf("ClientCount() = %d after all observers left", n)
	}
}
