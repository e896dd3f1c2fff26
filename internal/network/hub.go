package network

import (
	"context"
	"sync"

	"relaylobby/internal/utils"
)

// connMessage pairs a frame with the connection it arrived on.
type connMessage struct {
	conn *Conn
	msg  Message
}

// Hub is the client's event loop. Connection events, incoming frames and
// tasks queued with Do all run on the goroutine that called Run, so the code
// they reach never needs a lock.
type Hub struct {
	// Accessed only from the Run goroutine.
	conns map[*Conn]bool

	register   chan *Conn
	unregister chan *Conn
	incoming   chan connMessage
	tasks      chan func()

	handler EventHandler

	done     chan struct{}
	stopOnce sync.Once
}

func NewHub(handler EventHandler) *Hub {
	return &Hub{
		conns:      make(map[*Conn]bool),
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
		incoming:   make(chan connMessage),
		tasks:      make(chan func()),
		handler:    handler,
		done:       make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled. Open connections are closed on the way
// out and no handler is called after Run returns.
func (h *Hub) Run(ctx context.Context) {
	defer h.stop()

	for {
		select {
		case <-ctx.Done():
			for c := range h.conns {
				c.Close()
			}
			utils.LogDebug("[Hub] stopped: %v", ctx.Err())
			return

		case c := <-h.register:
			h.conns[c] = true
			h.handler.OnConnect(c)

		case c := <-h.unregister:
			if _, ok := h.conns[c]; ok {
				delete(h.conns, c)
				h.handler.OnDisconnect(c)
			}

		case in := <-h.incoming:
			h.handler.OnMessage(in.conn, in.msg)

		case fn := <-h.tasks:
			fn()
		}
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Do hands fn to the loop and reports true once the loop has taken it. It
// reports false if the hub has stopped, in which case fn never runs. Never
// call it from the loop itself: the hand-off would deadlock.
func (h *Hub) Do(fn func()) bool {
	select {
	case h.tasks <- fn:
		return true
	case <-h.done:
		return false
	}
}

// Register hands c to the loop and starts its pumps. When the hub has
// already stopped the connection is dropped and false is returned.
func (h *Hub) Register(c *Conn) bool {
	c.hub = h
	select {
	case h.register <- c:
	case <-h.done:
		c.ws.Close()
		return false
	}
	go c.writeLoop()
	go c.readLoop()
	return true
}

func (h *Hub) unregisterConn(c *Conn) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) deliver(c *Conn, msg Message) bool {
	select {
	case h.incoming <- connMessage{conn: c, msg: msg}:
		return true
	case <-h.done:
		return false
	}
}
