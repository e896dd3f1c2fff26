package session

import (
	"fmt"

	"relaylobby/internal/utils"
)

type pendingOp int

const (
	opNone pendingOp = iota
	opJoinRandom
	opCreateRoom
)

func (op pendingOp) String() string {
	switch op {
	case opJoinRandom:
		return "join-random"
	case opCreateRoom:
		return "create-room"
	default:
		return "none"
	}
}

// Matchmaker issues join and create requests against the Service and owns the
// SessionDescriptor of the room the client is in. At most one request is in
// flight at a time.
type Matchmaker struct {
	machine *Machine
	service Service
	policy  Policy

	room      *SessionDescriptor
	requested SessionDescriptor
	pending   pendingOp
}

func NewMatchmaker(machine *Machine, service Service, policy Policy) *Matchmaker {
	return &Matchmaker{
		machine: machine,
		service: service,
		policy:  policy,
	}
}

// Room returns the descriptor of the joined room, if any.
func (m *Matchmaker) Room() (SessionDescriptor, bool) {
	if m.room == nil {
		return SessionDescriptor{}, false
	}
	return *m.room, true
}

func (m *Matchmaker) Pending() bool { return m.pending != opNone }

func (m *Matchmaker) rejectPending(op string) error {
	if m.pending == opNone {
		return nil
	}
	return fmt.Errorf("%s: %w (%s in flight)", op, ErrAlreadyPending, m.pending)
}

// JoinRandom asks the relay for any open room. Legal only while
// ConnectedToService; the answer comes back as OnJoinedRoom or
// OnJoinRandomFailed.
func (m *Matchmaker) JoinRandom() error {
	if err := m.rejectPending("join random room"); err != nil {
		return err
	}
	if _, err := m.machine.Next(TriggerJoinRandom); err != nil {
		return err
	}
	if err := m.service.JoinRandomRoom(); err != nil {
		return &ServiceError{Op: "join random room", Kind: ErrServiceUnavailable, Err: err}
	}
	m.pending = opJoinRandom
	_, err := m.machine.Fire(TriggerJoinRandom)
	utils.LogDebug("[Matchmaker] join random room requested")
	return err
}

// CreateRoom asks the relay for a new room described by opts. A second call
// before the first one is answered fails with ErrAlreadyPending.
func (m *Matchmaker) CreateRoom(name string, opts SessionDescriptor) error {
	if err := m.rejectPending("create room"); err != nil {
		return err
	}
	if _, err := DefaultRoomOptions(int(opts.Capacity)); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	if opts.Version == "" {
		opts.Version = m.machine.Version()
	}
	if !VersionsCompatible(opts.Version, m.machine.Version()) {
		return fmt.Errorf("create room: %w: room %q, client %q", ErrVersionMismatch, opts.Version, m.machine.Version())
	}
	if _, err := m.machine.Next(TriggerCreateRoom); err != nil {
		return err
	}
	if err := m.service.CreateRoom(name, opts.Options()); err != nil {
		return &ServiceError{Op: "create room", Kind: ErrServiceUnavailable, Err: err}
	}
	opts.ID = name
	m.requested = opts
	m.pending = opCreateRoom
	_, err := m.machine.Fire(TriggerCreateRoom)
	utils.LogDebug("[Matchmaker] create room requested (name=%q, maxPlayers=%d)", name, opts.Capacity)
	return err
}

// OnJoinedRoom installs the descriptor and moves the machine to InRoom.
func (m *Matchmaker) OnJoinedRoom(room SessionDescriptor) (SessionDescriptor, error) {
	if _, err := m.machine.Next(TriggerJoinedRoom); err != nil {
		return SessionDescriptor{}, err
	}
	if m.pending == opCreateRoom && room.Capacity == 0 {
		room.Capacity = m.requested.Capacity
	}
	if !VersionsCompatible(room.Version, m.machine.Version()) {
		return SessionDescriptor{}, fmt.Errorf("joined room %q: %w: room %q, client %q",
			room.ID, ErrVersionMismatch, room.Version, m.machine.Version())
	}
	if err := m.machine.OnJoinedRoom(); err != nil {
		return SessionDescriptor{}, err
	}
	m.room = &room
	m.pending = opNone
	return room, nil
}

// RejectJoinedRoom backs out of a room the relay placed the client in but the
// client cannot accept. The relay is asked to take the client out again, the
// in-flight request is dropped and the machine returns to ConnectedToService.
// The returned event reports the failure of that request.
func (m *Matchmaker) RejectJoinedRoom(cause error) (Event, error) {
	var trigger Trigger
	switch m.pending {
	case opJoinRandom:
		trigger = TriggerJoinRandomFailed
	case opCreateRoom:
		trigger = TriggerRoomCreateFailed
	default:
		return nil, &TransitionError{From: m.machine.State(), Trigger: TriggerJoinedRoom}
	}
	if _, err := m.machine.Next(trigger); err != nil {
		return nil, err
	}
	if err := m.service.LeaveRoom(); err != nil {
		utils.LogWarning("[Matchmaker] could not leave rejected room: %v", err)
	}
	if _, err := m.machine.Fire(trigger); err != nil {
		return nil, err
	}
	op := m.pending
	m.pending = opNone
	m.requested = SessionDescriptor{}

	if op == opCreateRoom {
		return RoomCreateFailed{Code: CodeInternalError, Message: cause.Error()}, nil
	}
	return JoinRandomFailed{Code: CodeInternalError, Message: cause.Error()}, nil
}

func (m *Matchmaker) OnJoinRandomFailed() error {
	if m.pending != opJoinRandom {
		return &TransitionError{From: m.machine.State(), Trigger: TriggerJoinRandomFailed}
	}
	if err := m.machine.OnJoinRandomFailed(); err != nil {
		return err
	}
	m.pending = opNone
	return nil
}

func (m *Matchmaker) OnRoomCreateFailed() error {
	if m.pending != opCreateRoom {
		return &TransitionError{From: m.machine.State(), Trigger: TriggerRoomCreateFailed}
	}
	if err := m.machine.OnRoomCreateFailed(); err != nil {
		return err
	}
	m.pending = opNone
	m.requested = SessionDescriptor{}
	return nil
}

// LeaveRoom leaves the current room and drops its descriptor.
func (m *Matchmaker) LeaveRoom() (SessionDescriptor, error) {
	if _, err := m.machine.Next(TriggerLeaveRoom); err != nil {
		return SessionDescriptor{}, err
	}
	if err := m.service.LeaveRoom(); err != nil {
		return SessionDescriptor{}, &ServiceError{Op: "leave room", Kind: ErrServiceUnavailable, Err: err}
	}
	return m.dropRoom()
}

// OnRoomClosed handles a leave the relay initiated on its own.
func (m *Matchmaker) OnRoomClosed() (SessionDescriptor, error) {
	if _, err := m.machine.Next(TriggerLeaveRoom); err != nil {
		return SessionDescriptor{}, err
	}
	return m.dropRoom()
}

func (m *Matchmaker) dropRoom() (SessionDescriptor, error) {
	var left SessionDescriptor
	if m.room != nil {
		left = *m.room
	}
	if _, err := m.machine.Fire(TriggerLeaveRoom); err != nil {
		return SessionDescriptor{}, err
	}
	m.room = nil
	return left, nil
}

// Reset forgets the room and any in-flight request. Called on disconnect.
func (m *Matchmaker) Reset() {
	m.room = nil
	m.requested = SessionDescriptor{}
	m.pending = opNone
}
