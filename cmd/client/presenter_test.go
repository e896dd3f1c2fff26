package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaylobby/internal/services/cluster"
	"relaylobby/internal/services/relay"
	"relaylobby/internal/session"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	client := session.NewClient(session.DefaultPolicy("1"))
	rc := relay.New(cluster.Static{}, client, relay.Options{})
	require.NoError(t, client.Initialize(rc))
	a := newApp(client, rc, rc.Hub(), "ana")
	client.Subscribe(a.present)
	client.Subscribe(a.retryOnFailure)

	ctx, cancel := context.WithCancel(context.Background())
	go rc.Hub().Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-rc.Hub().Done()
	})
	return a
}

func TestRoomLabel(t *testing.T) {
	assert.Equal(t, "r1 [max 4 players, v1]", roomLabel(session.SessionDescriptor{ID: "r1", Capacity: 4, Version: "1"}))
	assert.Equal(t, "(unnamed) [max 2 players, v1]", roomLabel(session.SessionDescriptor{Capacity: 2, Version: "1"}))
}

func TestReadCommands_QuitWhileDisconnected(t *testing.T) {
	a := newTestApp(t)

	a.readCommands(strings.NewReader("help\n\nbogus\nleave\nquit\njoin\n"))

	select {
	case <-a.done:
	case <-time.After(5 * time.Second):
		t.Fatal("quit did not finish the app")
	}
	var state session.State
	done := make(chan struct{})
	a.hub.Do(func() { state = a.client.State(); close(done) })
	<-done
	assert.Equal(t, session.StateDisconnected, state, "commands after quit are not run")
}

func TestStart_NoRelayRetries(t *testing.T) {
	a := newTestApp(t)
	a.retry = session.RetryPolicy{InitialInterval: time.Hour, MaxInterval: time.Hour}.NewBackOff()

	events := make(chan session.Event, 16)
	a.client.Subscribe(func(ev session.Event) error { events <- ev; return nil })
	a.hub.Do(a.start)

	for {
		select {
		case ev := <-events:
			d, ok := ev.(session.Disconnected)
			if !ok {
				continue
			}
			assert.Equal(t, session.CauseServerUnreachable, d.Reason.Cause)
			return
		case <-time.After(5 * time.Second):
			t.Fatal("no Disconnected event")
		}
	}
}

func TestStatusRow(t *testing.T) {
	a := newTestApp(t)

	var row []string
	done := make(chan struct{})
	require.True(t, a.hub.Do(func() { row = a.statusRow(); close(done) }))
	<-done
	assert.Equal(t, []string{"ana", "disconnected", "-", "-", "2", "-"}, row)
}
