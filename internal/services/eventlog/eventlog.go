// Package eventlog mirrors session events to NATS so other processes (bots,
// dashboards) can follow a client without talking to it.
package eventlog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"relaylobby/internal/session"
	"relaylobby/internal/utils"
)

const DefaultSubjectPrefix = "lobby.events"

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Connect dials NATS with unlimited reconnects; the mirror keeps working
// across broker restarts and drops events while disconnected.
func Connect(url, clientName string) (*nats.Conn, error) {
	nc, err := nats.Connect(
		url,
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				utils.LogWarning("[EventLog] NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			utils.LogInfo("[EventLog] NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

type RoomRecord struct {
	ID       string `json:"id"`
	Capacity uint8  `json:"capacity"`
	Version  string `json:"version"`
}

// Record is the JSON body published for each event.
type Record struct {
	ClientID   string      `json:"clientId"`
	PlayerName string      `json:"playerName,omitempty"`
	Kind       string      `json:"kind"`
	Time       time.Time   `json:"time"`
	From       string      `json:"from,omitempty"`
	To         string      `json:"to,omitempty"`
	Room       *RoomRecord `json:"room,omitempty"`
	Code       int16       `json:"code,omitempty"`
	Message    string      `json:"message,omitempty"`
	Cause      string      `json:"cause,omitempty"`
	Detail     string      `json:"detail,omitempty"`
}

type Mirror struct {
	pub        Publisher
	prefix     string
	clientID   string
	playerName string
	now        func() time.Time
}

func NewMirror(pub Publisher, prefix, clientID, playerName string) *Mirror {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Mirror{
		pub:        pub,
		prefix:     prefix,
		clientID:   clientID,
		playerName: playerName,
		now:        time.Now,
	}
}

// Subject is <prefix>.<clientID>.<kind>, so a subscriber can pick one client
// with <prefix>.<id>.> or one kind across clients with <prefix>.*.<kind>.
func (m *Mirror) Subject(kind session.EventKind) string {
	return m.prefix + "." + m.clientID + "." + string(kind)
}

// Handler returns the session.Handler that publishes each event.
func (m *Mirror) Handler() session.Handler {
	return m.publish
}

func (m *Mirror) publish(ev session.Event) error {
	data, err := json.Marshal(m.record(ev))
	if err != nil {
		return err
	}
	if err := m.pub.Publish(m.Subject(ev.Kind()), data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Kind(), err)
	}
	return nil
}

func (m *Mirror) record(ev session.Event) Record {
	rec := Record{
		ClientID:   m.clientID,
		PlayerName: m.playerName,
		Kind:       string(ev.Kind()),
		Time:       m.now().UTC(),
	}
	switch e := ev.(type) {
	case session.StateChanged:
		rec.From = e.From.String()
		rec.To = e.To.String()
	case session.Disconnected:
		rec.Cause = e.Reason.Cause.String()
		rec.Detail = e.Reason.Detail
	case session.JoinedRoom:
		rec.Room = roomRecord(e.Room)
	case session.LeftRoom:
		rec.Room = roomRecord(e.Room)
	case session.JoinRandomFailed:
		rec.Code = e.Code
		rec.Message = e.Message
	case session.RoomCreateFailed:
		rec.Code = e.Code
		rec.Message = e.Message
	}
	return rec
}

func roomRecord(d session.SessionDescriptor) *RoomRecord {
	return &RoomRecord{ID: d.ID, Capacity: d.Capacity, Version: d.Version}
}
