package message

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaylobby/internal/network"
)

type sliceSender struct {
	sent []network.Message
	err  error
}

func (s *sliceSender) Send(msg network.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestSendHelpers(t *testing.T) {
	s := &sliceSender{}

	connect, err := SendConnect(s, "c-1", "1", "ana")
	require.NoError(t, err)
	_, err = SendJoinRandom(s)
	require.NoError(t, err)
	_, err = SendCreateRoom(s, "", 4, "1")
	require.NoError(t, err)
	_, err = SendLeaveRoom(s)
	require.NoError(t, err)

	require.Len(t, s.sent, 4)
	assert.Equal(t, connect, s.sent[0])
	assert.Equal(t, TypeConnect, s.sent[0].Type)
	assert.JSONEq(t, `{"clientId":"c-1","version":"1","playerName":"ana"}`, string(s.sent[0].Payload))
	assert.Equal(t, TypeJoinRandom, s.sent[1].Type)
	assert.Empty(t, s.sent[1].Payload)
	assert.JSONEq(t, `{"maxPlayers":4,"version":"1"}`, string(s.sent[2].Payload))
	assert.Equal(t, TypeLeaveRoom, s.sent[3].Type)

	ids := map[string]bool{}
	for _, m := range s.sent {
		ids[m.ID] = true
	}
	assert.Len(t, ids, 4, "every request gets its own id")
}

func TestSendHelpers_SenderError(t *testing.T) {
	s := &sliceSender{err: network.ErrSendBufferFull}
	_, err := SendJoinRandom(s)
	assert.True(t, errors.Is(err, network.ErrSendBufferFull))
}

func TestDecoders(t *testing.T) {
	joined, err := DecodeJoinedRoom(CreateJoinedRoom("r1", 4, "1"))
	require.NoError(t, err)
	assert.Equal(t, JoinedRoomPayload{RoomID: "r1", MaxPlayers: 4, Version: "1"}, joined)

	failure, err := DecodeFailure(CreateFailure(TypeJoinRandomFailed, 32760, "No match found"))
	require.NoError(t, err)
	assert.Equal(t, int16(32760), failure.Code)
	assert.Equal(t, "No match found", failure.Message)

	e, err := DecodeError(CreateErrorResponse("bad request"))
	require.NoError(t, err)
	assert.Equal(t, "bad request", e.Error)

	_, err = DecodeJoinedRoom(network.Message{Type: TypeJoinedRoom, Payload: []byte(`{"maxPlayers":300}`)})
	assert.Error(t, err, "capacity does not fit in a byte")
}
