package message

// Frames the relay sends to the client.

import (
	"relaylobby/internal/network"
)

const (
	TypeConnected        = "CONNECTED"
	TypeJoinedRoom       = "JOINED_ROOM"
	TypeJoinRandomFailed = "JOIN_RANDOM_FAILED"
	TypeCreateRoomFailed = "CREATE_ROOM_FAILED"
	TypeLeftRoom         = "LEFT_ROOM"
	TypeResponseError    = "RESPONSE_ERROR"
)

type JoinedRoomPayload struct {
	RoomID     string `json:"roomId"`
	MaxPlayers uint8  `json:"maxPlayers"`
	Version    string `json:"version"`
}

// FailurePayload is shared by JOIN_RANDOM_FAILED and CREATE_ROOM_FAILED.
type FailurePayload struct {
	Code    int16  `json:"code"`
	Message string `json:"message"`
}

// ErrorClientPayload answers a request the relay could not parse or serve.
type ErrorClientPayload struct {
	Error string `json:"error"`
}

func DecodeJoinedRoom(msg network.Message) (JoinedRoomPayload, error) {
	var p JoinedRoomPayload
	err := msg.Decode(&p)
	return p, err
}

func DecodeFailure(msg network.Message) (FailurePayload, error) {
	var p FailurePayload
	err := msg.Decode(&p)
	return p, err
}

func DecodeError(msg network.Message) (ErrorClientPayload, error) {
	var p ErrorClientPayload
	err := msg.Decode(&p)
	return p, err
}

// The constructors below are what a relay would send; tests use them to
// script one.

func CreateJoinedRoom(roomID string, maxPlayers uint8, version string) network.Message {
	return mustMessage(TypeJoinedRoom, JoinedRoomPayload{RoomID: roomID, MaxPlayers: maxPlayers, Version: version})
}

func CreateFailure(msgType string, code int16, message string) network.Message {
	return mustMessage(msgType, FailurePayload{Code: code, Message: message})
}

func CreateErrorResponse(errorMsg string) network.Message {
	return mustMessage(TypeResponseError, ErrorClientPayload{Error: errorMsg})
}
