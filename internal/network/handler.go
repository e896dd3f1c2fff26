package network

// EventHandler connects the transport to whatever drives the session. The Hub
// calls every method from its own goroutine, one at a time.
type EventHandler interface {
	// OnConnect is called once a dialed connection is registered.
	OnConnect(c *Conn)

	// OnDisconnect is called after the read pump stops. c.Err() tells why.
	OnDisconnect(c *Conn)

	// OnMessage is called for each frame received on c.
	OnMessage(c *Conn, msg Message)
}
