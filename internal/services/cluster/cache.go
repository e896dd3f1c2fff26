package cluster

import (
	"context"
	"time"
)

type cacheEntry struct {
	urls       []string
	expiration time.Time
}

// resolveRequest is a message to the cache actor. reply is buffered so the
// actor never blocks on a caller that gave up.
type resolveRequest struct {
	ctx   context.Context
	reply chan resolveReply
}

type resolveReply struct {
	urls []string
	err  error
}

// ServiceCacheActor caches the answer of another Resolver for ttl. All state
// lives in the run goroutine; callers talk to it through the mailbox.
type ServiceCacheActor struct {
	entry    cacheEntry
	ttl      time.Duration
	resolver Resolver
	now      func() time.Time

	requestCh    chan resolveRequest
	invalidateCh chan struct{}
	done         chan struct{}
}

func NewServiceCacheActor(ctx context.Context, ttl time.Duration, resolver Resolver) *ServiceCacheActor {
	return newServiceCacheActor(ctx, ttl, resolver, time.Now)
}

func newServiceCacheActor(ctx context.Context, ttl time.Duration, resolver Resolver, now func() time.Time) *ServiceCacheActor {
	sc := &ServiceCacheActor{
		ttl:          ttl,
		resolver:     resolver,
		now:          now,
		requestCh:    make(chan resolveRequest),
		invalidateCh: make(chan struct{}),
		done:         make(chan struct{}),
	}
	go sc.run(ctx)
	return sc
}

func (sc *ServiceCacheActor) run(ctx context.Context) {
	defer close(sc.done)
	for {
		select {
		case <-ctx.Done():
			return

		case <-sc.invalidateCh:
			sc.entry = cacheEntry{}

		case req := <-sc.requestCh:
			if len(sc.entry.urls) > 0 && sc.now().Before(sc.entry.expiration) {
				req.reply <- resolveReply{urls: append([]string(nil), sc.entry.urls...)}
				continue
			}
			urls, err := sc.resolver.Resolve(req.ctx)
			if err == nil && len(urls) > 0 {
				sc.entry = cacheEntry{urls: urls, expiration: sc.now().Add(sc.ttl)}
				urls = append([]string(nil), urls...)
			}
			req.reply <- resolveReply{urls: urls, err: err}
		}
	}
}

// Resolve returns cached URLs, refreshing them from the wrapped resolver once
// they expire. Failures are never cached.
func (sc *ServiceCacheActor) Resolve(ctx context.Context) ([]string, error) {
	req := resolveRequest{ctx: ctx, reply: make(chan resolveReply, 1)}
	select {
	case sc.requestCh <- req:
	case <-sc.done:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case rep := <-req.reply:
		return rep.urls, rep.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached answer, e.g. after the agent changed.
func (sc *ServiceCacheActor) Invalidate() {
	select {
	case sc.invalidateCh <- struct{}{}:
	case <-sc.done:
	}
}
