package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pterm/pterm"

	"relaylobby/internal/config"
	"relaylobby/internal/network"
	"relaylobby/internal/services/cluster"
	"relaylobby/internal/services/eventlog"
	"relaylobby/internal/services/relay"
	"relaylobby/internal/session"
	"relaylobby/internal/utils"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	name := flag.String("name", "", "player name (overrides PLAYER_NAME)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debug {
		utils.EnableDebug()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		utils.LogError("[Main] %v", err)
		os.Exit(1)
	}
	if *name != "" {
		cfg.Game.PlayerName = *name
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := session.NewClient(cfg.Policy())
	rc := relay.New(buildResolver(ctx, cfg), client, relay.Options{
		PlayerName:  cfg.Game.PlayerName,
		DialTimeout: cfg.Relay.DialTimeout,
	})
	if err := client.Initialize(rc); err != nil {
		utils.LogError("[Main] %v", err)
		os.Exit(1)
	}
	hub := rc.Hub()

	if cfg.NATS.URL != "" {
		nc, err := eventlog.Connect(cfg.NATS.URL, "relaylobby-"+client.ID())
		if err != nil {
			utils.LogWarning("[Main] event mirror disabled: %v", err)
		} else {
			defer nc.Drain()
			mirror := eventlog.NewMirror(nc, cfg.NATS.SubjectPrefix, client.ID(), cfg.Game.PlayerName)
			client.Subscribe(mirror.Handler())
			utils.LogInfo("[Main] mirroring events to %s", mirror.Subject("*"))
		}
	}

	app := newApp(client, rc, hub, cfg.Game.PlayerName)
	client.Subscribe(app.present)
	client.Subscribe(app.retryOnFailure)

	go hub.Run(ctx)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	app.banner()
	hub.Do(app.start)
	go app.readCommands(os.Stdin)

	select {
	case <-interrupt:
		utils.LogInfo("[Main] interrupt received, disconnecting")
		app.shutdown()
	case <-app.done:
	}

	select {
	case <-app.done:
	case <-time.After(shutdownTimeout):
		utils.LogWarning("[Main] relay did not confirm the disconnect in %s", shutdownTimeout)
	}
}

// buildResolver prefers Consul discovery (cached) and falls back to the
// static relay list.
func buildResolver(ctx context.Context, cfg *config.Config) relay.Resolver {
	static := cluster.Static(cfg.Relay.Addresses)
	if cfg.Consul.Addresses == "" {
		return static
	}

	mgr, err := cluster.NewConsulManager(ctx, cfg.Consul.Addresses)
	if err != nil {
		utils.LogWarning("[Main] Consul unavailable, using static relays: %v", err)
		return static
	}
	discovery := cluster.NewDiscovery(mgr, cfg.Consul.ServiceName, cfg.Game.Version)
	cache := cluster.NewServiceCacheActor(ctx, cfg.Consul.CacheTTL, discovery)
	mgr.OnReconnect(cache.Invalidate)

	if len(static) == 0 {
		return cache
	}
	return cluster.Fallback{cache, static}
}

// app is the presentation layer. Everything except readCommands and
// shutdown runs on the hub goroutine.
type app struct {
	client *session.Client
	relay  *relay.Client
	hub    *network.Hub
	player string

	retry    backoff.BackOff
	quitting bool

	done     chan struct{}
	doneOnce sync.Once
}

func newApp(client *session.Client, rc *relay.Client, hub *network.Hub, player string) *app {
	return &app{
		client: client,
		relay:  rc,
		hub:    hub,
		player: player,
		retry:  client.Policy().Retry.NewBackOff(),
		done:   make(chan struct{}),
	}
}

func (a *app) finish() {
	a.doneOnce.Do(func() { close(a.done) })
}

func (a *app) start() {
	if err := a.client.Start(); err != nil {
		pterm.Error.Println(err)
	}
}

func (a *app) connect() {
	if err := a.client.Connect(); err != nil {
		pterm.Error.Println(err)
	}
}

func (a *app) shutdown() {
	ok := a.hub.Do(func() {
		a.quitting = true
		if err := a.client.Disconnect(); err != nil {
			utils.LogDebug("[Main] disconnect: %v", err)
			if a.client.State() != session.StateDisconnecting {
				a.finish()
			}
		}
	})
	if !ok {
		a.finish()
	}
}

// retryOnFailure schedules a reconnect with backoff after connectivity
// failures. Closures by the relay or the user are final, and a Disconnected
// seen while quitting ends the program.
func (a *app) retryOnFailure(ev session.Event) error {
	switch e := ev.(type) {
	case session.Connected:
		a.retry.Reset()
	case session.Disconnected:
		if a.quitting {
			a.finish()
			return nil
		}
		if !errors.Is(e.Reason.Err(), session.ErrServiceUnavailable) {
			return nil
		}
		wait := a.retry.NextBackOff()
		if wait == backoff.Stop {
			pterm.Error.Println("Giving up on the relay. Type 'join' to try again.")
			a.retry.Reset()
			return nil
		}
		pterm.Warning.Printfln("Relay unavailable, retrying in %s", wait.Round(time.Millisecond))
		time.AfterFunc(wait, func() {
			a.hub.Do(func() {
				if a.client.State() == session.StateDisconnected && !a.quitting {
					a.connect()
				}
			})
		})
	}
	return nil
}
