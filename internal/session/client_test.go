package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createCall struct {
	name string
	opts RoomOptions
}

// fakeService records requests; tests play the relay by calling the
// client's callbacks directly.
type fakeService struct {
	connects    []string
	joinRandoms int
	creates     []createCall
	leaves      int
	disconnects int
	fail        error
}

func (f *fakeService) Connect(clientID, version string) error {
	if f.fail != nil {
		return f.fail
	}
	f.connects = append(f.connects, version)
	return nil
}

func (f *fakeService) JoinRandomRoom() error {
	if f.fail != nil {
		return f.fail
	}
	f.joinRandoms++
	return nil
}

func (f *fakeService) CreateRoom(name string, opts RoomOptions) error {
	if f.fail != nil {
		return f.fail
	}
	f.creates = append(f.creates, createCall{name: name, opts: opts})
	return nil
}

func (f *fakeService) LeaveRoom() error {
	if f.fail != nil {
		return f.fail
	}
	f.leaves++
	return nil
}

func (f *fakeService) Disconnect() error {
	f.disconnects++
	return nil
}

type recorder struct {
	events []Event
}

func (r *recorder) handle(ev Event) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) kinds() []EventKind {
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind())
	}
	return out
}

func newTestClient(t *testing.T, policy Policy) (*Client, *fakeService, *recorder) {
	t.Helper()
	svc := &fakeService{}
	c := NewClient(policy)
	require.NoError(t, c.Initialize(svc))
	rec := &recorder{}
	c.Subscribe(rec.handle)
	return c, svc, rec
}

func TestClient_Initialize(t *testing.T) {
	t.Run("assigns id", func(t *testing.T) {
		c := NewClient(DefaultPolicy("1"))
		require.NoError(t, c.Initialize(&fakeService{}))
		assert.NotEmpty(t, c.ID())
		assert.Equal(t, StateDisconnected, c.State())
	})

	t.Run("twice", func(t *testing.T) {
		c := NewClient(DefaultPolicy("1"))
		require.NoError(t, c.Initialize(&fakeService{}))
		assert.Error(t, c.Initialize(&fakeService{}))
	})

	t.Run("invalid policy", func(t *testing.T) {
		p := DefaultPolicy("1")
		p.MaxPlayers = 0
		c := NewClient(p)
		assert.ErrorIs(t, c.Initialize(&fakeService{}), ErrInvalidCapacity)
	})

	t.Run("not initialized", func(t *testing.T) {
		c := NewClient(DefaultPolicy("1"))
		assert.ErrorIs(t, c.Start(), ErrNotInitialized)
		assert.ErrorIs(t, c.Disconnect(), ErrNotInitialized)
	})
}

func TestClient_ConnectJoinOrCreate(t *testing.T) {
	c, svc, rec := newTestClient(t, DefaultPolicy("1"))

	require.NoError(t, c.Start())
	assert.Equal(t, StateConnecting, c.State())
	assert.Equal(t, []string{"1"}, svc.connects)

	require.NoError(t, c.OnServiceConnected())
	assert.Equal(t, StateJoiningRoom, c.State(), "auto join after connecting")
	assert.Equal(t, 1, svc.joinRandoms)

	require.NoError(t, c.OnJoinRandomFailed(CodeNoMatchFound, "No match found"))
	assert.Equal(t, StateJoiningRoom, c.State())
	require.Len(t, svc.creates, 1)
	assert.Equal(t, "", svc.creates[0].name)
	assert.Equal(t, uint8(4), svc.creates[0].opts.MaxPlayers)
	assert.Equal(t, "1", svc.creates[0].opts.Version)

	room := SessionDescriptor{ID: "room-a", Capacity: 4, Version: "1"}
	require.NoError(t, c.OnJoinedRoom(room))
	assert.Equal(t, StateInRoom, c.State())

	got, ok := c.Room()
	require.True(t, ok)
	assert.Equal(t, room, got)

	assert.Equal(t, []EventKind{
		KindStateChanged, // disconnected -> connecting
		KindStateChanged, // connecting -> connected
		KindConnected,
		KindStateChanged, // connected -> joining
		KindStateChanged, // joining -> connected
		KindJoinRandomFailed,
		KindStateChanged, // connected -> joining (create)
		KindStateChanged, // joining -> in room
		KindJoinedRoom,
	}, rec.kinds())
}

func TestClient_DisconnectWhileInRoomDropsDescriptor(t *testing.T) {
	c, _, rec := newTestClient(t, DefaultPolicy("1"))
	require.NoError(t, c.Start())
	require.NoError(t, c.OnServiceConnected())
	require.NoError(t, c.OnJoinedRoom(SessionDescriptor{ID: "r", Capacity: 4, Version: "1"}))
	require.Equal(t, StateInRoom, c.State())

	reason := DisconnectReason{Cause: CauseConnectionLost, Detail: "reason"}
	require.NoError(t, c.OnServiceDisconnected(reason))
	assert.Equal(t, StateDisconnected, c.State())
	_, ok := c.Room()
	assert.False(t, ok)

	last := rec.events[len(rec.events)-1]
	d, ok := last.(Disconnected)
	require.True(t, ok)
	assert.Equal(t, reason, d.Reason)
	assert.ErrorIs(t, d.Reason.Err(), ErrServiceUnavailable)
}

func TestClient_CreateRoomTwiceIsRejected(t *testing.T) {
	p := DefaultPolicy("1")
	p.AutoJoin = false
	c, svc, _ := newTestClient(t, p)
	require.NoError(t, c.Start())
	require.NoError(t, c.OnServiceConnected())

	require.NoError(t, c.CreateRoom("arena"))
	err := c.CreateRoom("arena")
	assert.ErrorIs(t, err, ErrAlreadyPending)
	assert.Len(t, svc.creates, 1)
	assert.Equal(t, StateJoiningRoom, c.State())

	// once answered, a new request is accepted again
	require.NoError(t, c.OnRoomCreateFailed(CodeGameIDAlreadyExists, "taken"))
	assert.Equal(t, StateConnectedToService, c.State())
	require.NoError(t, c.CreateRoom("arena-2"))
	assert.Len(t, svc.creates, 2)
}

func TestClient_JoinRandomFailedWithOtherCodeDoesNotCreate(t *testing.T) {
	c, svc, rec := newTestClient(t, DefaultPolicy("1"))
	require.NoError(t, c.Start())
	require.NoError(t, c.OnServiceConnected())

	require.NoError(t, c.OnJoinRandomFailed(CodeInternalError, "boom"))
	assert.Equal(t, StateConnectedToService, c.State())
	assert.Empty(t, svc.creates)

	ev, ok := rec.events[len(rec.events)-1].(JoinRandomFailed)
	require.True(t, ok)
	assert.ErrorIs(t, ev.Err(), ErrJoinRandomFailed)
}

func TestClient_ConnectWhenConnectedJoinsRandom(t *testing.T) {
	p := DefaultPolicy("1")
	p.AutoJoin = false
	c, svc, _ := newTestClient(t, p)
	require.NoError(t, c.Start())
	require.NoError(t, c.OnServiceConnected())
	assert.Equal(t, StateConnectedToService, c.State())
	assert.Zero(t, svc.joinRandoms)

	require.NoError(t, c.Connect())
	assert.Equal(t, StateJoiningRoom, c.State())
	assert.Equal(t, 1, svc.joinRandoms)
	assert.Len(t, svc.connects, 1)
}

func TestClient_IllegalCallbacksAreSurfaced(t *testing.T) {
	c, _, rec := newTestClient(t, DefaultPolicy("1"))

	assert.ErrorIs(t, c.OnJoinedRoom(SessionDescriptor{ID: "r", Capacity: 4, Version: "1"}), ErrInvalidStateTransition)
	assert.ErrorIs(t, c.OnServiceConnected(), ErrInvalidStateTransition)
	assert.ErrorIs(t, c.OnJoinRandomFailed(CodeNoMatchFound, ""), ErrInvalidStateTransition)
	assert.ErrorIs(t, c.OnRoomCreateFailed(CodeGameFull, ""), ErrInvalidStateTransition)
	assert.ErrorIs(t, c.LeaveRoom(), ErrInvalidStateTransition)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Empty(t, rec.events)
}

func TestClient_ServiceErrorKeepsState(t *testing.T) {
	c, svc, _ := newTestClient(t, DefaultPolicy("1"))
	svc.fail = errors.New("no route to host")

	err := c.Start()
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "connect", se.Op)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestClient_VersionMismatchLeavesRoom(t *testing.T) {
	c, svc, rec := newTestClient(t, DefaultPolicy("1"))
	require.NoError(t, c.Start())
	require.NoError(t, c.OnServiceConnected())

	require.NoError(t, c.OnJoinedRoom(SessionDescriptor{ID: "r", Capacity: 4, Version: "2"}))
	assert.Equal(t, 1, svc.leaves, "the relay is asked to take the client out")
	assert.Equal(t, StateConnectedToService, c.State())
	_, ok := c.Room()
	assert.False(t, ok)

	failed, ok := rec.events[len(rec.events)-1].(JoinRandomFailed)
	require.True(t, ok)
	assert.Equal(t, CodeInternalError, failed.Code)
	assert.Contains(t, failed.Message, "version mismatch")
	assert.Empty(t, svc.creates, "only a missing match falls back to create")

	// the client is usable again
	require.NoError(t, c.Connect())
	assert.Equal(t, 2, svc.joinRandoms)
	assert.Equal(t, StateJoiningRoom, c.State())
}

func TestClient_RejectedCreatedRoom(t *testing.T) {
	c, svc, rec := newTestClient(t, DefaultPolicy("1"))
	require.NoError(t, c.Start())
	require.NoError(t, c.OnServiceConnected())
	require.NoError(t, c.OnJoinRandomFailed(CodeNoMatchFound, "No match found"))
	require.Len(t, svc.creates, 1)

	require.NoError(t, c.OnJoinedRoomRejected(errors.New("bad payload")))
	assert.Equal(t, 1, svc.leaves)
	assert.Equal(t, StateConnectedToService, c.State())

	failed, ok := rec.events[len(rec.events)-1].(RoomCreateFailed)
	require.True(t, ok)
	assert.Equal(t, "bad payload", failed.Message)

	require.NoError(t, c.CreateRoom("again"))
	assert.Len(t, svc.creates, 2)
}

func TestClient_RejectWithoutPendingRequest(t *testing.T) {
	c, svc, _ := newTestClient(t, DefaultPolicy("1"))
	require.NoError(t, c.Start())

	err := c.OnJoinedRoomRejected(errors.New("bad payload"))
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.Zero(t, svc.leaves)
	assert.Equal(t, StateConnecting, c.State())
}

func TestClient_LeaveRoom(t *testing.T) {
	c, svc, rec := newTestClient(t, DefaultPolicy("1"))
	require.NoError(t, c.Start())
	require.NoError(t, c.OnServiceConnected())
	room := SessionDescriptor{ID: "r", Capacity: 4, Version: "1"}
	require.NoError(t, c.OnJoinedRoom(room))

	require.NoError(t, c.LeaveRoom())
	assert.Equal(t, 1, svc.leaves)
	assert.Equal(t, StateConnectedToService, c.State())
	_, ok := c.Room()
	assert.False(t, ok)

	left, ok := rec.events[len(rec.events)-1].(LeftRoom)
	require.True(t, ok)
	assert.Equal(t, room, left.Room)

	// the relay's confirmation is a no-op now
	n := len(rec.events)
	require.NoError(t, c.OnLeftRoom())
	assert.Len(t, rec.events, n)
}

func TestClient_RoomClosedByRelay(t *testing.T) {
	c, _, rec := newTestClient(t, DefaultPolicy("1"))
	require.NoError(t, c.Start())
	require.NoError(t, c.OnServiceConnected())
	require.NoError(t, c.OnJoinedRoom(SessionDescriptor{ID: "r", Capacity: 4, Version: "1"}))

	require.NoError(t, c.OnLeftRoom())
	assert.Equal(t, StateConnectedToService, c.State())
	assert.Equal(t, KindLeftRoom, rec.events[len(rec.events)-1].Kind())
}

func TestClient_Disconnect(t *testing.T) {
	c, svc, rec := newTestClient(t, DefaultPolicy("1"))
	require.NoError(t, c.Start())
	require.NoError(t, c.OnServiceConnected())

	require.NoError(t, c.Disconnect())
	assert.Equal(t, 1, svc.disconnects)
	assert.Equal(t, StateDisconnecting, c.State())

	require.NoError(t, c.OnServiceDisconnected(DisconnectReason{Cause: CauseClientRequested}))
	assert.Equal(t, StateDisconnected, c.State())
	d, ok := rec.events[len(rec.events)-1].(Disconnected)
	require.True(t, ok)
	assert.NoError(t, d.Reason.Err())

	// stray notification after the fact publishes nothing
	n := len(rec.events)
	require.NoError(t, c.OnServiceDisconnected(DisconnectReason{Cause: CauseServerClosed}))
	assert.Len(t, rec.events, n)

	// and the client can connect again
	require.NoError(t, c.Connect())
	assert.Equal(t, StateConnecting, c.State())
	assert.Len(t, svc.connects, 2)
}

func TestClient_PendingAndSubscribers(t *testing.T) {
	c, _, _ := newTestClient(t, DefaultPolicy("1"))
	assert.Equal(t, 1, c.Subscribers())
	assert.False(t, c.Pending())

	require.NoError(t, c.Start())
	require.NoError(t, c.OnServiceConnected())
	assert.True(t, c.Pending(), "auto join is in flight")

	require.NoError(t, c.OnJoinedRoom(SessionDescriptor{ID: "r", Capacity: 4, Version: "1"}))
	assert.False(t, c.Pending())

	id := c.Subscribe(func(Event) error { return nil })
	assert.Equal(t, 2, c.Subscribers())
	c.Unsubscribe(id)
	assert.Equal(t, 1, c.Subscribers())
}
