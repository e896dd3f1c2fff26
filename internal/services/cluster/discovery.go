package cluster

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/url"
	"strconv"

	consul "github.com/hashicorp/consul/api"

	"relaylobby/internal/utils"
)

var ErrNoHealthyRelay = errors.New("no healthy relay")

// VersionTag is the Consul tag a relay registers for each game version it
// serves.
func VersionTag(version string) string {
	return "version=" + version
}

// healthAPI is the slice of consul.Health used here.
type healthAPI interface {
	Service(service, tag string, passingOnly bool, q *consul.QueryOptions) ([]*consul.ServiceEntry, *consul.QueryMeta, error)
}

// Discovery finds relays that are passing their health checks and serve the
// client's version.
type Discovery struct {
	health      func() healthAPI
	serviceName string
	version     string
	path        string
	shuffle     func([]string)
}

// NewDiscovery queries through the manager's current client, so agent
// failover is transparent.
func NewDiscovery(m *ConsulManager, serviceName, version string) *Discovery {
	return newDiscovery(func() healthAPI {
		client := m.GetClient()
		if client == nil {
			return nil
		}
		return client.Health()
	}, serviceName, version)
}

func newDiscovery(health func() healthAPI, serviceName, version string) *Discovery {
	return &Discovery{
		health:      health,
		serviceName: serviceName,
		version:     version,
		path:        "/ws",
		shuffle: func(s []string) {
			rand.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
		},
	}
}

// Resolve returns the websocket URLs of every healthy relay, shuffled so
// clients spread over the instances.
func (d *Discovery) Resolve(ctx context.Context) ([]string, error) {
	health := d.health()
	if health == nil {
		return nil, errors.New("consul: no agent connected")
	}

	q := (&consul.QueryOptions{}).WithContext(ctx)
	entries, _, err := health.Service(d.serviceName, VersionTag(d.version), true, q)
	if err != nil {
		return nil, fmt.Errorf("consul: query %s: %w", d.serviceName, err)
	}

	urls := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Service == nil {
			continue
		}
		addr := e.Service.Address
		if addr == "" && e.Node != nil {
			addr = e.Node.Address
		}
		if addr == "" || e.Service.Port == 0 {
			continue
		}
		u := url.URL{Scheme: "ws", Host: net.JoinHostPort(addr, strconv.Itoa(e.Service.Port)), Path: d.path}
		urls = append(urls, u.String())
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w for %s (%s)", ErrNoHealthyRelay, d.serviceName, VersionTag(d.version))
	}

	d.shuffle(urls)
	utils.LogDebug("[Discovery] healthy relays\n%s", utils.SliceToString(d.serviceName, urls))
	return urls, nil
}

// Static is a fixed list of relay addresses, host:port or full ws URLs.
type Static []string

func (s Static) Resolve(context.Context) ([]string, error) {
	urls := make([]string, 0, len(s))
	for _, addr := range s {
		if u, err := url.Parse(addr); err == nil && (u.Scheme == "ws" || u.Scheme == "wss") {
			urls = append(urls, addr)
			continue
		}
		u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
		urls = append(urls, u.String())
	}
	if len(urls) == 0 {
		return nil, ErrNoHealthyRelay
	}
	return urls, nil
}

// Resolver matches relay.Resolver.
type Resolver interface {
	Resolve(ctx context.Context) ([]string, error)
}

// Fallback asks each resolver in order and returns the first non-empty answer.
type Fallback []Resolver

func (f Fallback) Resolve(ctx context.Context) ([]string, error) {
	var errs []error
	for _, r := range f {
		urls, err := r.Resolve(ctx)
		if err == nil && len(urls) > 0 {
			return urls, nil
		}
		if err != nil {
			utils.LogWarning("[Discovery] %v, trying next source", err)
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil, ErrNoHealthyRelay
	}
	return nil, errors.Join(errs...)
}
