package session

import (
	"fmt"

	"relaylobby/internal/utils"
)

// Handler consumes one event. A returned error (or a panic) is logged and
// does not stop delivery to the remaining handlers.
type Handler func(Event) error

// SubscriptionID identifies a handler for Unsubscribe.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Dispatcher is a single-threaded observer registry. Handlers run in
// subscription order. An event published from inside a handler is queued and
// delivered after the current one, so dispatches never overlap.
type Dispatcher struct {
	subs       []subscription
	nextID     SubscriptionID
	queue      []Event
	publishing bool
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

func (d *Dispatcher) Subscribe(h Handler) SubscriptionID {
	d.nextID++
	d.subs = append(d.subs, subscription{id: d.nextID, handler: h})
	return d.nextID
}

// Unsubscribe removes the handler. It reports false when id is unknown.
func (d *Dispatcher) Unsubscribe(id SubscriptionID) bool {
	for i, s := range d.subs {
		if s.id == id {
			// copy so an in-flight dispatch keeps iterating its own snapshot
			subs := make([]subscription, 0, len(d.subs)-1)
			subs = append(subs, d.subs[:i]...)
			d.subs = append(subs, d.subs[i+1:]...)
			return true
		}
	}
	return false
}

func (d *Dispatcher) Len() int { return len(d.subs) }

func (d *Dispatcher) Publish(ev Event) {
	d.queue = append(d.queue, ev)
	if d.publishing {
		return
	}
	d.publishing = true
	defer func() { d.publishing = false }()

	for len(d.queue) > 0 {
		next := d.queue[0]
		d.queue = d.queue[1:]
		for _, s := range d.subs {
			if err := deliver(s.handler, next); err != nil {
				utils.LogError("[Dispatcher] handler %d failed on %s: %v", s.id, next.Kind(), err)
			}
		}
	}
}

func deliver(h Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ev)
}
