// lobby-bot fills relays with scripted players for load tests.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"time"

	"relaylobby/internal/config"
	"relaylobby/internal/services/cluster"
	"relaylobby/internal/services/relay"
	"relaylobby/internal/session"
	"relaylobby/internal/utils"
)

// Roles, picked with BOT_ROLE:
//
//	SITTER       joins a room and stays there
//	CHURNER      leaves its room after a think time and joins another one
//	RECONNECTER  drops the connection after a think time and connects again
const (
	roleSitter      = "SITTER"
	roleChurner     = "CHURNER"
	roleReconnecter = "RECONNECTER"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	count := flag.Int("n", 4, "number of bots")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debug {
		utils.EnableDebug()
	}

	role := os.Getenv("BOT_ROLE")
	if role == "" {
		role = roleSitter
	}
	switch role {
	case roleSitter, roleChurner, roleReconnecter:
	default:
		utils.LogError("[Bot] unknown BOT_ROLE %q", role)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		utils.LogError("[Bot] %v", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	resolver := botResolver(ctx, cfg)
	var wg sync.WaitGroup
	for i := 0; i < *count; i++ {
		b, err := newBot(fmt.Sprintf("bot-%d", i), role, cfg, resolver)
		if err != nil {
			utils.LogError("[Bot] %v", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.run(ctx)
		}()
	}
	wg.Wait()
}

// botResolver builds the one resolver every bot shares.
func botResolver(ctx context.Context, cfg *config.Config) relay.Resolver {
	static := cluster.Static(cfg.Relay.Addresses)
	if cfg.Consul.Addresses == "" {
		return static
	}
	mgr, err := cluster.NewConsulManager(ctx, cfg.Consul.Addresses)
	if err != nil {
		utils.LogWarning("[Bot] Consul unavailable, using static relays: %v", err)
		return static
	}
	cache := cluster.NewServiceCacheActor(ctx, cfg.Consul.CacheTTL,
		cluster.NewDiscovery(mgr, cfg.Consul.ServiceName, cfg.Game.Version))
	mgr.OnReconnect(cache.Invalidate)
	return cluster.Fallback{cache, static}
}

type bot struct {
	name   string
	role   string
	client *session.Client
	relay  *relay.Client
}

func newBot(name, role string, cfg *config.Config, resolver relay.Resolver) (*bot, error) {
	policy := cfg.Policy()
	policy.AutoJoin = true
	client := session.NewClient(policy)
	rc := relay.New(resolver, client, relay.Options{PlayerName: name, DialTimeout: cfg.Relay.DialTimeout})
	if err := client.Initialize(rc); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	b := &bot{name: name, role: role, client: client, relay: rc}
	client.Subscribe(b.onEvent)
	return b, nil
}

func (b *bot) run(ctx context.Context) {
	hub := b.relay.Hub()
	go hub.Do(b.connect)
	hub.Run(ctx)
	utils.LogInfo("[Bot] %s stopped", b.name)
}

func (b *bot) connect() {
	if err := b.client.Connect(); err != nil {
		utils.LogWarning("[Bot] %s connect: %v", b.name, err)
	}
}

// later runs fn on the hub after a random think time of 2 to 5 seconds.
func (b *bot) later(fn func()) {
	think := time.Duration(2+rand.Intn(4)) * time.Second
	time.AfterFunc(think, func() { b.relay.Hub().Do(fn) })
}

func (b *bot) onEvent(ev session.Event) error {
	switch e := ev.(type) {
	case session.JoinedRoom:
		utils.LogInfo("[Bot] %s joined %s", b.name, e.Room.ID)
		switch b.role {
		case roleChurner:
			b.later(func() {
				if err := b.client.LeaveRoom(); err != nil {
					utils.LogWarning("[Bot] %s leave: %v", b.name, err)
				}
			})
		case roleReconnecter:
			b.later(func() {
				if err := b.client.Disconnect(); err != nil {
					utils.LogWarning("[Bot] %s disconnect: %v", b.name, err)
				}
			})
		}

	case session.LeftRoom:
		b.later(b.connect)

	case session.RoomCreateFailed:
		b.later(b.connect)

	case session.JoinRandomFailed:
		if e.Code != session.CodeNoMatchFound {
			b.later(b.connect)
		}

	case session.Disconnected:
		utils.LogInfo("[Bot] %s disconnected: %s", b.name, e.Reason)
		b.later(b.connect)
	}
	return nil
}
