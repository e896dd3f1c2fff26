package message

// Frames the client sends to the relay.

import (
	"fmt"

	"relaylobby/internal/network"
)

const (
	TypeConnect    = "CONNECT"
	TypeJoinRandom = "JOIN_RANDOM"
	TypeCreateRoom = "CREATE_ROOM"
	TypeLeaveRoom  = "LEAVE_ROOM"
)

type ConnectPayload struct {
	ClientID   string `json:"clientId"`
	Version    string `json:"version"`
	PlayerName string `json:"playerName,omitempty"`
}

type CreateRoomPayload struct {
	Name       string `json:"name,omitempty"`
	MaxPlayers uint8  `json:"maxPlayers"`
	Version    string `json:"version"`
}

// MessageSender is anything frames can be queued on, usually a
// *network.Conn.
type MessageSender interface {
	Send(msg network.Message) error
}

// SendConnect, like every Send helper, returns the queued message so the
// caller can correlate the relay's answer by ID.
func SendConnect(sender MessageSender, clientID, version, playerName string) (network.Message, error) {
	return send(sender, TypeConnect, ConnectPayload{ClientID: clientID, Version: version, PlayerName: playerName})
}

func SendJoinRandom(sender MessageSender) (network.Message, error) {
	return send(sender, TypeJoinRandom, nil)
}

func SendCreateRoom(sender MessageSender, name string, maxPlayers uint8, version string) (network.Message, error) {
	return send(sender, TypeCreateRoom, CreateRoomPayload{Name: name, MaxPlayers: maxPlayers, Version: version})
}

func SendLeaveRoom(sender MessageSender) (network.Message, error) {
	return send(sender, TypeLeaveRoom, nil)
}

func send(sender MessageSender, msgType string, payload any) (network.Message, error) {
	msg, err := network.NewMessage(msgType, payload)
	if err != nil {
		return network.Message{}, err
	}
	if err := sender.Send(msg); err != nil {
		return network.Message{}, fmt.Errorf("send %s: %w", msgType, err)
	}
	return msg, nil
}

func mustMessage(msgType string, payload any) network.Message {
	msg, err := network.NewMessage(msgType, payload)
	if err != nil {
		panic(err)
	}
	return msg
}
