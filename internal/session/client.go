package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"relaylobby/internal/utils"
)

// Client is one player's connection to the relay: it owns the state machine,
// the matchmaker and the event dispatcher, and implements Callbacks for the
// Service it is initialized with.
//
// Nothing here locks. Every call, including the Callbacks, must come from the
// same goroutine; network.Hub provides that loop.
type Client struct {
	id         string
	policy     Policy
	machine    *Machine
	matchmaker *Matchmaker
	dispatcher *Dispatcher
	service    Service
}

// NewClient only stores the policy. Call Initialize before anything else.
func NewClient(policy Policy) *Client {
	return &Client{
		policy:     policy,
		machine:    NewMachine(),
		dispatcher: NewDispatcher(),
	}
}

// Initialize injects the service and resets the client to Disconnected.
// It must be called exactly once.
func (c *Client) Initialize(service Service) error {
	if service == nil {
		return errors.New("initialize: nil service")
	}
	if c.service != nil {
		return errors.New("initialize: already initialized")
	}
	if err := c.policy.Validate(); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	c.id = uuid.NewString()
	c.service = service
	c.machine = NewMachine()
	c.machine.Observe(c.onTransition)
	c.matchmaker = NewMatchmaker(c.machine, service, c.policy)
	utils.LogDebug("[Client] initialized %s (version %s, maxPlayers %d)", c.id, c.policy.Version, c.policy.MaxPlayers)
	return nil
}

// Start begins the connection process.
func (c *Client) Start() error {
	return c.Connect()
}

// Connect joins a random room when already connected to the service, and
// connects to the service otherwise.
func (c *Client) Connect() error {
	if c.service == nil {
		return ErrNotInitialized
	}
	if c.machine.State() == StateConnectedToService {
		return c.matchmaker.JoinRandom()
	}
	if _, err := c.machine.Next(TriggerRequestConnect); err != nil {
		return err
	}
	if err := c.service.Connect(c.id, c.policy.Version); err != nil {
		return &ServiceError{Op: "connect", Kind: ErrServiceUnavailable, Err: err}
	}
	return c.machine.RequestConnect(c.policy.Version)
}

// CreateRoom creates a named room with the policy's options. Most callers
// never need it: a failed random join already falls back to creating one.
func (c *Client) CreateRoom(name string) error {
	if c.service == nil {
		return ErrNotInitialized
	}
	opts, err := c.policy.RoomOptions()
	if err != nil {
		return err
	}
	return c.matchmaker.CreateRoom(name, opts)
}

func (c *Client) LeaveRoom() error {
	if c.service == nil {
		return ErrNotInitialized
	}
	room, err := c.matchmaker.LeaveRoom()
	if err != nil {
		return err
	}
	c.dispatcher.Publish(LeftRoom{Room: room})
	return nil
}

// Disconnect asks the service to close; the client reaches Disconnected when
// the service confirms through OnServiceDisconnected.
func (c *Client) Disconnect() error {
	if c.service == nil {
		return ErrNotInitialized
	}
	if _, err := c.machine.Next(TriggerRequestDisconnect); err != nil {
		return err
	}
	if err := c.service.Disconnect(); err != nil {
		return &ServiceError{Op: "disconnect", Kind: ErrServiceUnavailable, Err: err}
	}
	_, err := c.machine.Fire(TriggerRequestDisconnect)
	return err
}

func (c *Client) ID() string      { return c.id }
func (c *Client) State() State    { return c.machine.State() }
func (c *Client) Policy() Policy  { return c.policy }
func (c *Client) Version() string { return c.policy.Version }

// Room returns the joined room; it is present only while InRoom.
func (c *Client) Room() (SessionDescriptor, bool) {
	if c.matchmaker == nil {
		return SessionDescriptor{}, false
	}
	return c.matchmaker.Room()
}

// Pending reports whether a join or create request awaits the relay's answer.
func (c *Client) Pending() bool {
	return c.matchmaker != nil && c.matchmaker.Pending()
}

// Subscribers is the number of registered event handlers.
func (c *Client) Subscribers() int { return c.dispatcher.Len() }

func (c *Client) Subscribe(h Handler) SubscriptionID {
	return c.dispatcher.Subscribe(h)
}

func (c *Client) Unsubscribe(id SubscriptionID) bool {
	return c.dispatcher.Unsubscribe(id)
}

func (c *Client) onTransition(from, to State) {
	utils.LogDebug("[Client] %s -> %s", from, to)
	c.dispatcher.Publish(StateChanged{From: from, To: to})
}

// --- Callbacks ---

func (c *Client) OnServiceConnected() error {
	if err := c.machine.OnServiceConnected(); err != nil {
		return err
	}
	utils.LogInfo("[Client] connected to relay")
	c.dispatcher.Publish(Connected{})
	if !c.policy.AutoJoin {
		return nil
	}
	return c.matchmaker.JoinRandom()
}

func (c *Client) OnServiceDisconnected(reason DisconnectReason) error {
	prev := c.machine.State()
	if err := c.machine.OnServiceDisconnected(); err != nil {
		return err
	}
	if c.matchmaker != nil {
		c.matchmaker.Reset()
	}
	if prev == StateDisconnected {
		return nil
	}
	if reason.Cause == CauseClientRequested {
		utils.LogInfo("[Client] disconnected (%s)", reason)
	} else {
		utils.LogWarning("[Client] disconnected (%s)", reason)
	}
	c.dispatcher.Publish(Disconnected{Reason: reason})
	return nil
}

func (c *Client) OnJoinedRoom(room SessionDescriptor) error {
	if c.matchmaker == nil {
		return ErrNotInitialized
	}
	joined, err := c.matchmaker.OnJoinedRoom(room)
	if errors.Is(err, ErrVersionMismatch) {
		return c.rejectJoinedRoom(err)
	}
	if err != nil {
		return err
	}
	utils.LogInfo("[Client] joined room %q (%d players max)", joined.ID, joined.Capacity)
	c.dispatcher.Publish(JoinedRoom{Room: joined})
	return nil
}

// OnJoinedRoomRejected reports a room confirmation the client cannot use,
// such as one whose payload could not be read.
func (c *Client) OnJoinedRoomRejected(cause error) error {
	if c.matchmaker == nil {
		return ErrNotInitialized
	}
	return c.rejectJoinedRoom(cause)
}

func (c *Client) rejectJoinedRoom(cause error) error {
	ev, err := c.matchmaker.RejectJoinedRoom(cause)
	if err != nil {
		return err
	}
	utils.LogWarning("[Client] leaving room joined by the relay: %v", cause)
	c.dispatcher.Publish(ev)
	return nil
}

// OnJoinRandomFailed is expected flow: when no room matched, a new one is
// created with the policy's capacity.
func (c *Client) OnJoinRandomFailed(code int16, message string) error {
	if c.matchmaker == nil {
		return ErrNotInitialized
	}
	if err := c.matchmaker.OnJoinRandomFailed(); err != nil {
		return err
	}
	c.dispatcher.Publish(JoinRandomFailed{Code: code, Message: message})
	if !c.policy.CreateOnJoinFailure(code) {
		utils.LogWarning("[Client] join random room failed (code %d): %s", code, message)
		return nil
	}
	utils.LogInfo("[Client] no random room available, creating one")
	opts, err := c.policy.RoomOptions()
	if err != nil {
		return err
	}
	return c.matchmaker.CreateRoom("", opts)
}

func (c *Client) OnRoomCreateFailed(code int16, message string) error {
	if c.matchmaker == nil {
		return ErrNotInitialized
	}
	if err := c.matchmaker.OnRoomCreateFailed(); err != nil {
		return err
	}
	utils.LogWarning("[Client] create room failed (code %d): %s", code, message)
	c.dispatcher.Publish(RoomCreateFailed{Code: code, Message: message})
	return nil
}

// OnLeftRoom confirms a LeaveRoom, or reports that the relay removed the
// client from its room.
func (c *Client) OnLeftRoom() error {
	if c.matchmaker == nil {
		return ErrNotInitialized
	}
	switch c.machine.State() {
	case StateConnectedToService, StateDisconnecting:
		return nil
	}
	room, err := c.matchmaker.OnRoomClosed()
	if err != nil {
		return err
	}
	utils.LogWarning("[Client] removed from room %q by the relay", room.ID)
	c.dispatcher.Publish(LeftRoom{Room: room})
	return nil
}
