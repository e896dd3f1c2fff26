package session

import "fmt"

// State is the client's relationship to the relay service.
// Exactly one State is active per Client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnectedToService
	StateJoiningRoom
	StateInRoom
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnectedToService:
		return "connected-to-service"
	case StateJoiningRoom:
		return "joining-room"
	case StateInRoom:
		return "in-room"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Trigger names what happened: an explicit request from the owner or a
// notification coming back from the service.
type Trigger int

const (
	TriggerRequestConnect Trigger = iota
	TriggerServiceConnected
	TriggerServiceDisconnected
	TriggerJoinRandom
	TriggerCreateRoom
	TriggerJoinedRoom
	TriggerJoinRandomFailed
	TriggerRoomCreateFailed
	TriggerLeaveRoom
	TriggerRequestDisconnect
)

func (t Trigger) String() string {
	switch t {
	case TriggerRequestConnect:
		return "request-connect"
	case TriggerServiceConnected:
		return "service-connected"
	case TriggerServiceDisconnected:
		return "service-disconnected"
	case TriggerJoinRandom:
		return "join-random"
	case TriggerCreateRoom:
		return "create-room"
	case TriggerJoinedRoom:
		return "joined-room"
	case TriggerJoinRandomFailed:
		return "join-random-failed"
	case TriggerRoomCreateFailed:
		return "room-create-failed"
	case TriggerLeaveRoom:
		return "leave-room"
	case TriggerRequestDisconnect:
		return "request-disconnect"
	default:
		return fmt.Sprintf("trigger(%d)", int(t))
	}
}

type edge struct {
	from    State
	trigger Trigger
}

// transitions is the whole table. ServiceDisconnected is handled separately
// because it is legal from every state.
var transitions = map[edge]State{
	{StateDisconnected, TriggerRequestConnect}:          StateConnecting,
	{StateConnecting, TriggerServiceConnected}:          StateConnectedToService,
	{StateConnectedToService, TriggerJoinRandom}:        StateJoiningRoom,
	{StateConnectedToService, TriggerCreateRoom}:        StateJoiningRoom,
	{StateJoiningRoom, TriggerJoinedRoom}:               StateInRoom,
	{StateJoiningRoom, TriggerJoinRandomFailed}:         StateConnectedToService,
	{StateJoiningRoom, TriggerRoomCreateFailed}:         StateConnectedToService,
	{StateInRoom, TriggerLeaveRoom}:                     StateConnectedToService,
	{StateConnecting, TriggerRequestDisconnect}:         StateDisconnecting,
	{StateConnectedToService, TriggerRequestDisconnect}: StateDisconnecting,
	{StateJoiningRoom, TriggerRequestDisconnect}:        StateDisconnecting,
	{StateInRoom, TriggerRequestDisconnect}:             StateDisconnecting,
}

// Machine validates and applies transitions. It is not safe for concurrent
// use; the owning Client drives it from a single goroutine.
type Machine struct {
	state    State
	version  string
	observer func(from, to State)
}

// NewMachine returns a machine in StateDisconnected.
func NewMachine() *Machine {
	return &Machine{state: StateDisconnected}
}

func (m *Machine) State() State { return m.state }

// Observe registers fn to run after every transition that changes the state.
func (m *Machine) Observe(fn func(from, to State)) {
	m.observer = fn
}

// Version is the tag passed to the last accepted RequestConnect.
func (m *Machine) Version() string { return m.version }

// Next reports where trigger would lead without applying it.
func (m *Machine) Next(trigger Trigger) (State, error) {
	if trigger == TriggerServiceDisconnected {
		return StateDisconnected, nil
	}
	next, ok := transitions[edge{m.state, trigger}]
	if !ok {
		return m.state, &TransitionError{From: m.state, Trigger: trigger}
	}
	return next, nil
}

// Fire applies trigger and returns the previous state. On error the state is
// unchanged.
func (m *Machine) Fire(trigger Trigger) (State, error) {
	next, err := m.Next(trigger)
	if err != nil {
		return m.state, err
	}
	prev := m.state
	m.state = next
	if m.observer != nil && prev != next {
		m.observer(prev, next)
	}
	return prev, nil
}

func (m *Machine) RequestConnect(version string) error {
	if version == "" {
		return fmt.Errorf("request connect: %w", ErrInvalidVersion)
	}
	if _, err := m.Next(TriggerRequestConnect); err != nil {
		return err
	}
	m.version = version
	_, err := m.Fire(TriggerRequestConnect)
	return err
}

func (m *Machine) OnServiceConnected() error {
	_, err := m.Fire(TriggerServiceConnected)
	return err
}

func (m *Machine) OnServiceDisconnected() error {
	_, err := m.Fire(TriggerServiceDisconnected)
	return err
}

func (m *Machine) OnJoinedRoom() error {
	_, err := m.Fire(TriggerJoinedRoom)
	return err
}

func (m *Machine) OnJoinRandomFailed() error {
	_, err := m.Fire(TriggerJoinRandomFailed)
	return err
}

func (m *Machine) OnRoomCreateFailed() error {
	_, err := m.Fire(TriggerRoomCreateFailed)
	return err
}
