package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_SubscriptionOrder(t *testing.T) {
	d := NewDispatcher()
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		d.Subscribe(func(Event) error {
			order = append(order, i)
			return nil
		})
	}

	d.Publish(Connected{})
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestDispatcher_FailingHandlerDoesNotBlockOthers(t *testing.T) {
	tests := []struct {
		name   string
		second Handler
	}{
		{"returns error", func(Event) error { return errors.New("bad handler") }},
		{"panics", func(Event) error { panic("bad handler") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher()
			var first, third []Event
			d.Subscribe(func(ev Event) error { first = append(first, ev); return nil })
			d.Subscribe(tt.second)
			d.Subscribe(func(ev Event) error { third = append(third, ev); return nil })

			ev := Disconnected{Reason: DisconnectReason{Cause: CauseServerClosed}}
			require.NotPanics(t, func() { d.Publish(ev) })
			assert.Equal(t, []Event{ev}, first)
			assert.Equal(t, []Event{ev}, third)
		})
	}
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	d := NewDispatcher()
	var a, b int
	idA := d.Subscribe(func(Event) error { a++; return nil })
	d.Subscribe(func(Event) error { b++; return nil })

	assert.True(t, d.Unsubscribe(idA))
	assert.False(t, d.Unsubscribe(idA))
	assert.Equal(t, 1, d.Len())

	d.Publish(Connected{})
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)
}

func TestDispatcher_UnsubscribeDuringDispatch(t *testing.T) {
	d := NewDispatcher()
	var calls []string
	var idB SubscriptionID
	d.Subscribe(func(Event) error {
		calls = append(calls, "a")
		d.Unsubscribe(idB)
		return nil
	})
	idB = d.Subscribe(func(Event) error { calls = append(calls, "b"); return nil })

	d.Publish(Connected{})
	d.Publish(Connected{})
	// b still sees the event that was in flight when it was removed
	assert.Equal(t, []string{"a", "b", "a"}, calls)
}

func TestDispatcher_NestedPublishIsSerialized(t *testing.T) {
	d := NewDispatcher()
	var log []string
	d.Subscribe(func(ev Event) error {
		log = append(log, "1:"+string(ev.Kind()))
		if ev.Kind() == KindConnected {
			d.Publish(JoinRandomFailed{Code: CodeNoMatchFound})
		}
		return nil
	})
	d.Subscribe(func(ev Event) error {
		log = append(log, "2:"+string(ev.Kind()))
		return nil
	})

	d.Publish(Connected{})
	assert.Equal(t, []string{
		"1:connected",
		"2:connected",
		"1:join_random_failed",
		"2:join_random_failed",
	}, log)
}
