package session

// Service is the remote matchmaking relay. Every method is a fire-and-forget
// request: the result arrives later through Callbacks. A returned error means
// the request could not be issued at all.
type Service interface {
	Connect(clientID, version string) error
	JoinRandomRoom() error
	// CreateRoom asks for a new room. An empty name lets the relay pick one.
	CreateRoom(name string, opts RoomOptions) error
	LeaveRoom() error
	Disconnect() error
}

// Callbacks is how a Service reports results. Implementations must call them
// from a single goroutine.
type Callbacks interface {
	OnServiceConnected() error
	OnServiceDisconnected(reason DisconnectReason) error
	OnJoinedRoom(room SessionDescriptor) error
	// OnJoinedRoomRejected reports a room confirmation that cannot be used.
	OnJoinedRoomRejected(cause error) error
	OnJoinRandomFailed(code int16, message string) error
	OnRoomCreateFailed(code int16, message string) error
	OnLeftRoom() error
}
