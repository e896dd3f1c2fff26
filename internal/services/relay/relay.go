// Package relay implements session.Service over a websocket connection to a
// relay server.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"relaylobby/internal/network"
	"relaylobby/internal/session"
	"relaylobby/internal/session/message"
	"relaylobby/internal/utils"
)

var (
	ErrAlreadyConnected = errors.New("already connected")
	ErrNotConnected     = errors.New("not connected")
	ErrNoEndpoints      = errors.New("no relay endpoints")
)

// Resolver lists relay websocket URLs in the order they should be tried.
type Resolver interface {
	Resolve(ctx context.Context) ([]string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context) ([]string, error)

func (f ResolverFunc) Resolve(ctx context.Context) ([]string, error) { return f(ctx) }

type Options struct {
	PlayerName  string
	DialTimeout time.Duration
	Dialer      *websocket.Dialer
}

// Client is the session.Service backed by the relay. Its methods only queue
// work and return; answers reach the Callbacks later, always on the Hub
// goroutine. Methods must be called from that goroutine too.
type Client struct {
	hub       *network.Hub
	resolver  Resolver
	callbacks session.Callbacks
	opts      Options

	clientID string
	version  string

	conn       *network.Conn
	dialing    bool
	cancelDial context.CancelFunc
	closing    bool
	// set when the relay refused CONNECT and the client hung up on it
	refused string

	// request ID -> message type, for matching RESPONSE_ERROR frames
	pending map[string]string
}

// New builds the client together with the Hub it runs on. Run the Hub with
// Hub().Run before calling Connect.
func New(resolver Resolver, callbacks session.Callbacks, opts Options) *Client {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	r := &Client{
		resolver:  resolver,
		callbacks: callbacks,
		opts:      opts,
		pending:   make(map[string]string),
	}
	r.hub = network.NewHub(r)
	return r
}

func (r *Client) Hub() *network.Hub { return r.hub }

// Conn returns the live connection, nil while disconnected.
func (r *Client) Conn() *network.Conn { return r.conn }

// --- session.Service ---

func (r *Client) Connect(clientID, version string) error {
	if r.conn != nil || r.dialing {
		return ErrAlreadyConnected
	}
	r.clientID = clientID
	r.version = version
	r.closing = false

	ctx, cancel := context.WithCancel(context.Background())
	r.dialing = true
	r.cancelDial = cancel
	go r.dial(ctx)
	return nil
}

func (r *Client) JoinRandomRoom() error {
	return r.request(func(c *network.Conn) (network.Message, error) {
		return message.SendJoinRandom(c)
	})
}

func (r *Client) CreateRoom(name string, opts session.RoomOptions) error {
	return r.request(func(c *network.Conn) (network.Message, error) {
		return message.SendCreateRoom(c, name, opts.MaxPlayers, opts.Version)
	})
}

func (r *Client) LeaveRoom() error {
	return r.request(func(c *network.Conn) (network.Message, error) {
		return message.SendLeaveRoom(c)
	})
}

func (r *Client) Disconnect() error {
	switch {
	case r.conn != nil:
		r.closing = true
		r.conn.Close()
	case r.dialing:
		r.closing = true
		r.cancelDial()
	default:
		return ErrNotConnected
	}
	return nil
}

func (r *Client) request(send func(*network.Conn) (network.Message, error)) error {
	if r.conn == nil {
		return ErrNotConnected
	}
	msg, err := send(r.conn)
	if err != nil {
		return err
	}
	r.pending[msg.ID] = msg.Type
	return nil
}

// --- dialing, off the Hub goroutine ---

func (r *Client) dial(ctx context.Context) {
	urls, err := r.resolver.Resolve(ctx)
	if err == nil && len(urls) == 0 {
		err = ErrNoEndpoints
	}
	if err != nil {
		r.dialFailed(ctx, fmt.Errorf("resolve relays: %w", err))
		return
	}

	var lastErr error
	for _, url := range urls {
		dctx, cancel := context.WithTimeout(ctx, r.opts.DialTimeout)
		conn, err := network.Dial(dctx, r.opts.Dialer, url)
		cancel()
		if err == nil {
			utils.LogInfo("[Relay] connected to %s", url)
			if !r.hub.Register(conn) {
				utils.LogDebug("[Relay] hub stopped, dropping %s", url)
			}
			return
		}
		if ctx.Err() != nil {
			break
		}
		utils.LogWarning("[Relay] %s unreachable: %v", url, err)
		lastErr = err
	}
	r.dialFailed(ctx, lastErr)
}

func (r *Client) dialFailed(ctx context.Context, err error) {
	reason := session.DisconnectReason{Cause: session.CauseServerUnreachable}
	if err != nil {
		reason.Detail = err.Error()
	}
	if ctx.Err() != nil {
		reason = session.DisconnectReason{Cause: session.CauseClientRequested}
	}
	r.hub.Do(func() {
		r.dialing = false
		r.cancelDial = nil
		r.closing = false
		r.notify("service disconnected", r.callbacks.OnServiceDisconnected(reason))
	})
}

// --- network.EventHandler, on the Hub goroutine ---

func (r *Client) OnConnect(c *network.Conn) {
	r.dialing = false
	if r.cancelDial != nil {
		r.cancelDial()
		r.cancelDial = nil
	}
	r.conn = c
	if r.closing {
		c.Close()
		return
	}
	msg, err := message.SendConnect(c, r.clientID, r.version, r.opts.PlayerName)
	if err != nil {
		utils.LogError("[Relay] %v", err)
		c.Close()
		return
	}
	r.pending[msg.ID] = msg.Type
}

func (r *Client) OnDisconnect(c *network.Conn) {
	if c != r.conn {
		return
	}
	reason := r.disconnectReason(c.Err())
	r.conn = nil
	r.closing = false
	r.refused = ""
	clear(r.pending)
	r.notify("service disconnected", r.callbacks.OnServiceDisconnected(reason))
}

func (r *Client) disconnectReason(err error) session.DisconnectReason {
	var ce *websocket.CloseError
	switch {
	case r.closing:
		return session.DisconnectReason{Cause: session.CauseClientRequested}
	case r.refused != "":
		return session.DisconnectReason{Cause: session.CauseServerClosed, Detail: r.refused}
	case errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure:
		return session.DisconnectReason{Cause: session.CauseServerClosed, Detail: ce.Text}
	case err != nil:
		return session.DisconnectReason{Cause: session.CauseConnectionLost, Detail: err.Error()}
	default:
		return session.DisconnectReason{Cause: session.CauseConnectionLost}
	}
}

func (r *Client) OnMessage(c *network.Conn, msg network.Message) {
	if c != r.conn {
		return
	}
	reqType := r.pending[msg.ID]
	delete(r.pending, msg.ID)

	switch msg.Type {
	case message.TypeConnected:
		r.notify(msg.Type, r.callbacks.OnServiceConnected())

	case message.TypeJoinedRoom:
		p, err := message.DecodeJoinedRoom(msg)
		if err != nil {
			utils.LogError("[Relay] %v", err)
			r.notify(msg.Type, r.callbacks.OnJoinedRoomRejected(err))
			return
		}
		room := session.SessionDescriptor{ID: p.RoomID, Capacity: p.MaxPlayers, Version: p.Version}
		r.notify(msg.Type, r.callbacks.OnJoinedRoom(room))

	case message.TypeJoinRandomFailed:
		p, err := message.DecodeFailure(msg)
		if err != nil {
			utils.LogError("[Relay] %v", err)
			return
		}
		r.notify(msg.Type, r.callbacks.OnJoinRandomFailed(p.Code, p.Message))

	case message.TypeCreateRoomFailed:
		p, err := message.DecodeFailure(msg)
		if err != nil {
			utils.LogError("[Relay] %v", err)
			return
		}
		r.notify(msg.Type, r.callbacks.OnRoomCreateFailed(p.Code, p.Message))

	case message.TypeLeftRoom:
		r.notify(msg.Type, r.callbacks.OnLeftRoom())

	case message.TypeResponseError:
		r.onResponseError(msg, reqType)

	default:
		utils.LogWarning("[Relay] ignoring unknown message type %q", msg.Type)
	}
}

// onResponseError turns a generic relay error into the failure callback of
// the request it answers.
func (r *Client) onResponseError(msg network.Message, reqType string) {
	text := "relay error"
	if p, err := message.DecodeError(msg); err == nil && p.Error != "" {
		text = p.Error
	}
	utils.LogWarning("[Relay] %s rejected: %s", reqType, text)

	switch reqType {
	case message.TypeJoinRandom:
		r.notify(msg.Type, r.callbacks.OnJoinRandomFailed(session.CodeInternalError, text))
	case message.TypeCreateRoom:
		r.notify(msg.Type, r.callbacks.OnRoomCreateFailed(session.CodeInternalError, text))
	case message.TypeConnect:
		r.refused = text
		r.conn.Close()
	}
}

func (r *Client) notify(what string, err error) {
	if err != nil {
		utils.LogWarning("[Relay] %s rejected by session: %v", what, err)
	}
}
