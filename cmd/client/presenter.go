package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"relaylobby/internal/session"
)

func (a *app) banner() {
	pterm.DefaultHeader.WithFullWidth().Println("relay lobby")
	pterm.Info.Printfln("Player %s, game version %s. Type 'help' for commands.", a.player, a.client.Version())
}

// present prints each event and refreshes the status line.
func (a *app) present(ev session.Event) error {
	switch e := ev.(type) {
	case session.StateChanged:
		pterm.Debug.Printfln("%s -> %s", e.From, e.To)
		return nil
	case session.Connected:
		pterm.Success.Println("Connected to the relay.")
	case session.JoinedRoom:
		pterm.Success.Printfln("Joined room %s.", roomLabel(e.Room))
	case session.LeftRoom:
		pterm.Info.Printfln("Left room %s.", roomLabel(e.Room))
	case session.JoinRandomFailed:
		if e.Code == session.CodeNoMatchFound {
			pterm.Info.Println("No open room, creating one.")
		} else {
			pterm.Warning.Printfln("Joining a random room failed (code %d): %s", e.Code, e.Message)
		}
	case session.RoomCreateFailed:
		pterm.Warning.Printfln("Creating a room failed (code %d): %s", e.Code, e.Message)
	case session.Disconnected:
		if e.Reason.Cause == session.CauseClientRequested {
			pterm.Info.Println("Disconnected.")
		} else {
			pterm.Error.Printfln("Disconnected: %s", e.Reason)
		}
	}
	a.printStatus()
	return nil
}

func (a *app) printStatus() {
	pterm.DefaultTable.WithData(pterm.TableData{
		{"Player", "State", "Room", "Request", "Observers", "RTT"},
		a.statusRow(),
	}).WithHasHeader().Render()
}

func (a *app) statusRow() []string {
	room := "-"
	if d, ok := a.client.Room(); ok {
		room = roomLabel(d)
	}
	request := "-"
	if a.client.Pending() {
		request = "pending"
	}
	rtt := "-"
	if c := a.relay.Conn(); c != nil && c.RTT() > 0 {
		rtt = c.RTT().String()
	}
	return []string{a.player, a.client.State().String(), room, request, strconv.Itoa(a.client.Subscribers()), rtt}
}

func roomLabel(d session.SessionDescriptor) string {
	id := d.ID
	if id == "" {
		id = "(unnamed)"
	}
	return fmt.Sprintf("%s [max %d players, v%s]", id, d.Capacity, d.Version)
}

const help = `commands:
  join           connect, or join a random room when already connected
  create [name]  create a room
  leave          leave the current room
  status         show the status line
  disconnect     close the relay connection
  quit           disconnect and exit`

// readCommands runs on its own goroutine and forwards each command to the hub.
func (a *app) readCommands(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := strings.ToLower(fields[0]), fields[1:]
		if cmd == "quit" || cmd == "exit" {
			a.shutdown()
			return
		}
		if !a.hub.Do(func() { a.run(cmd, args) }) {
			return
		}
	}
}

func (a *app) run(cmd string, args []string) {
	var err error
	switch cmd {
	case "join":
		err = a.client.Connect()
	case "create":
		err = a.client.CreateRoom(strings.Join(args, " "))
	case "leave":
		err = a.client.LeaveRoom()
	case "status":
		a.printStatus()
	case "disconnect":
		err = a.client.Disconnect()
	case "help":
		fmt.Println(help)
	default:
		pterm.Warning.Printfln("Unknown command %q. Type 'help'.", cmd)
	}
	if err != nil {
		pterm.Error.Println(err)
	}
}
