package network

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"relaylobby/internal/utils"
)

const (
	// Time allowed to write a frame.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the relay.
	pongWait = 60 * time.Second

	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	sendBuffer = 256
)

var (
	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn is the client side of one relay connection. It owns two goroutines:
// readLoop feeds the Hub, writeLoop drains the send buffer and keeps the
// connection alive with pings.
type Conn struct {
	ws  *websocket.Conn
	hub *Hub
	url string

	send chan Message

	quit      chan struct{}
	closeOnce sync.Once

	// done is closed by readLoop; err is written before that.
	done chan struct{}
	err  error

	ping pingTracker
}

// Dial opens a websocket to url. The returned Conn is idle until passed to
// Hub.Register.
func Dial(ctx context.Context, dialer *websocket.Dialer, url string) (*Conn, error) {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			utils.LogDebug("[Conn] %s answered %s", url, resp.Status)
		}
		return nil, err
	}
	return NewConn(ws, url), nil
}

func NewConn(ws *websocket.Conn, url string) *Conn {
	return &Conn{
		ws:   ws,
		url:  url,
		send: make(chan Message, sendBuffer),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (c *Conn) URL() string { return c.url }

// RTT is the round trip of the last answered keep-alive ping.
func (c *Conn) RTT() time.Duration { return c.ping.last() }

// Err is the error that stopped the read pump. Only meaningful once the
// connection is down, e.g. inside EventHandler.OnDisconnect.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Send queues msg without blocking.
func (c *Conn) Send(msg Message) error {
	select {
	case <-c.done:
		return ErrConnClosed
	case <-c.quit:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close starts the close handshake. OnDisconnect follows once the relay
// answers or writeWait expires.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
}

func (c *Conn) readLoop() {
	defer func() {
		close(c.done)
		c.hub.unregisterConn(c)
	}()

	c.ws.SetReadLimit(MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ping.pong(time.Now())
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				utils.LogWarning("[Conn] unexpected read error from %s: %v", c.url, err)
			}
			c.err = err
			return
		}
		if !c.hub.deliver(c, msg) {
			c.err = ErrConnClosed
			return
		}
	}
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				utils.LogWarning("[Conn] write to %s failed: %v", c.url, err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ping.sent(time.Now())
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.quit:
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := c.ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait)); err != nil {
				return
			}
			// wait for the relay to echo the close frame
			select {
			case <-c.done:
			case <-time.After(writeWait):
			}
			return

		case <-c.done:
			return
		}
	}
}
