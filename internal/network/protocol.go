package network

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Message is the envelope for every frame exchanged with the relay. Type
// routes the frame, ID correlates a request with the relay's answer and
// Payload is decoded later by whoever knows the type.
type Message struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const MaxMessageSize = 1024 * 1024 // 1 MiB

// NewMessage marshals payload and stamps the message with a fresh ID.
// A nil payload produces a message without one.
func NewMessage(msgType string, payload any) (Message, error) {
	msg := Message{Type: msgType, ID: uuid.NewString()}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	msg.Payload = raw
	return msg, nil
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("decode %s: empty payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s: %w", m.Type, err)
	}
	return nil
}
