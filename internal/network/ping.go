package network

import (
	"sync/atomic"
	"time"
)

// pingTracker measures round trips of the keep-alive pings. The write pump
// stamps each ping and the pong handler, running on the read pump, closes it.
type pingTracker struct {
	sentAt atomic.Int64 // unix nanos of the outstanding ping, 0 if none
	rtt    atomic.Int64
}

func (p *pingTracker) sent(now time.Time) {
	p.sentAt.Store(now.UnixNano())
}

func (p *pingTracker) pong(now time.Time) {
	sent := p.sentAt.Swap(0)
	if sent == 0 {
		return
	}
	if d := now.UnixNano() - sent; d >= 0 {
		p.rtt.Store(d)
	}
}

// last returns the most recent round trip, or zero before the first pong.
func (p *pingTracker) last() time.Duration {
	return time.Duration(p.rtt.Load())
}
