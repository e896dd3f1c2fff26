package session

import "fmt"

// DisconnectCause classifies why the service connection ended.
type DisconnectCause int

const (
	CauseClientRequested DisconnectCause = iota
	CauseServerUnreachable
	CauseConnectionLost
	CauseServerClosed
)

func (c DisconnectCause) String() string {
	switch c {
	case CauseClientRequested:
		return "client-requested"
	case CauseServerUnreachable:
		return "server-unreachable"
	case CauseConnectionLost:
		return "connection-lost"
	case CauseServerClosed:
		return "server-closed"
	default:
		return fmt.Sprintf("cause(%d)", int(c))
	}
}

type DisconnectReason struct {
	Cause  DisconnectCause
	Detail string
}

func (r DisconnectReason) String() string {
	if r.Detail == "" {
		return r.Cause.String()
	}
	return r.Cause.String() + ": " + r.Detail
}

// Err returns a ServiceUnavailable error when the disconnect came from a
// connectivity failure, nil otherwise.
func (r DisconnectReason) Err() error {
	switch r.Cause {
	case CauseServerUnreachable, CauseConnectionLost:
		return &ServiceError{Op: "connect", Kind: ErrServiceUnavailable, Message: r.String()}
	default:
		return nil
	}
}

// EventKind tags the variants of Event.
type EventKind string

const (
	KindStateChanged     EventKind = "state_changed"
	KindConnected        EventKind = "connected"
	KindDisconnected     EventKind = "disconnected"
	KindJoinedRoom       EventKind = "joined_room"
	KindLeftRoom         EventKind = "left_room"
	KindJoinRandomFailed EventKind = "join_random_failed"
	KindRoomCreateFailed EventKind = "room_create_failed"
)

// Event is a ConnectionEvent. Events are transient: produced by the Client
// and consumed during a single dispatch.
type Event interface {
	Kind() EventKind
	isEvent()
}

type StateChanged struct {
	From State
	To   State
}

type Connected struct{}

type Disconnected struct {
	Reason DisconnectReason
}

type JoinedRoom struct {
	Room SessionDescriptor
}

type LeftRoom struct {
	Room SessionDescriptor
}

type JoinRandomFailed struct {
	Code    int16
	Message string
}

type RoomCreateFailed struct {
	Code    int16
	Message string
}

func (StateChanged) Kind() EventKind     { return KindStateChanged }
func (Connected) Kind() EventKind        { return KindConnected }
func (Disconnected) Kind() EventKind     { return KindDisconnected }
func (JoinedRoom) Kind() EventKind       { return KindJoinedRoom }
func (LeftRoom) Kind() EventKind         { return KindLeftRoom }
func (JoinRandomFailed) Kind() EventKind { return KindJoinRandomFailed }
func (RoomCreateFailed) Kind() EventKind { return KindRoomCreateFailed }

func (StateChanged) isEvent()     {}
func (Connected) isEvent()        {}
func (Disconnected) isEvent()     {}
func (JoinedRoom) isEvent()       {}
func (LeftRoom) isEvent()         {}
func (JoinRandomFailed) isEvent() {}
func (RoomCreateFailed) isEvent() {}

// Err converts a failure event into the matching ServiceError.
func (e JoinRandomFailed) Err() error {
	return &ServiceError{Op: "join random room", Kind: ErrJoinRandomFailed, Code: e.Code, Message: e.Message}
}

func (e RoomCreateFailed) Err() error {
	return &ServiceError{Op: "create room", Kind: ErrRoomCreateFailed, Code: e.Code, Message: e.Message}
}
