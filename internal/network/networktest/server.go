// Package networktest runs scripted relays for tests.
package networktest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"relaylobby/internal/network"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Script plays the relay side of one accepted connection. The connection is
// closed when it returns.
type Script func(conn *websocket.Conn)

// Server is an httptest server that upgrades /ws and hands every connection
// to its script.
type Server struct {
	*httptest.Server
	// WSURL is the ws:// address of the /ws endpoint.
	WSURL string
}

func NewServer(t testing.TB, script Script) *Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		script(conn)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &Server{
		Server: srv,
		WSURL:  "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

// Read waits for the next frame from the client.
func Read(conn *websocket.Conn) (network.Message, error) {
	var msg network.Message
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	err := conn.ReadJSON(&msg)
	return msg, err
}

// Reply answers req with msgType, echoing its ID.
func Reply(conn *websocket.Conn, req network.Message, msgType string, payload any) error {
	msg, err := network.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	msg.ID = req.ID
	return conn.WriteJSON(msg)
}

// Push sends an unsolicited frame.
func Push(conn *websocket.Conn, msgType string, payload any) error {
	msg, err := network.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

// CloseNormal performs the relay side of the close handshake.
func CloseNormal(conn *websocket.Conn) {
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
}

// Drain reads until the client goes away, so its close frame is echoed.
func Drain(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Unreachable returns a ws URL nothing listens on.
func Unreachable(t testing.TB) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	srv.Close()
	return url
}
