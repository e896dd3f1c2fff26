package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"relaylobby/internal/session"
	"relaylobby/internal/utils"
)

type Config struct {
	Game   GameConfig   `yaml:"game"`
	Relay  RelayConfig  `yaml:"relay"`
	Consul ConsulConfig `yaml:"consul"`
	NATS   NATSConfig   `yaml:"nats"`
	Retry  RetryConfig  `yaml:"retry"`
}

type GameConfig struct {
	Version    string `yaml:"version"`
	PlayerName string `yaml:"player_name"`
	MaxPlayers int    `yaml:"max_players"`
	AutoJoin   bool   `yaml:"auto_join"`
}

type RelayConfig struct {
	// Addresses are host:port or ws:// URLs tried in order when Consul is
	// not configured or has no healthy relay.
	Addresses   []string      `yaml:"addresses"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

type ConsulConfig struct {
	// Addresses is a comma separated list of agents.
	Addresses   string        `yaml:"addresses"`
	ServiceName string        `yaml:"service_name"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type RetryConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	MaxElapsedTime  time.Duration `yaml:"max_elapsed_time"`
}

func Default() *Config {
	retry := session.DefaultRetryPolicy()
	return &Config{
		Game: GameConfig{
			Version:    "1",
			PlayerName: "player",
			MaxPlayers: session.DefaultMaxPlayers,
			AutoJoin:   true,
		},
		Relay: RelayConfig{
			Addresses:   []string{"localhost:9080", "localhost:9081", "localhost:9082"},
			DialTimeout: 5 * time.Second,
		},
		Consul: ConsulConfig{
			ServiceName: "relay",
			CacheTTL:    30 * time.Second,
		},
		NATS: NATSConfig{
			SubjectPrefix: "lobby.events",
		},
		Retry: RetryConfig{
			InitialInterval: retry.InitialInterval,
			MaxInterval:     retry.MaxInterval,
			MaxElapsedTime:  retry.MaxElapsedTime,
		},
	}
}

// Load reads the YAML file at path over the defaults and applies the
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("GAME_VERSION"); v != "" {
		c.Game.Version = v
	}
	if v := getenv("PLAYER_NAME"); v != "" {
		c.Game.PlayerName = v
	}
	if v := getenv("MAX_PLAYERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_PLAYERS: %w", err)
		}
		c.Game.MaxPlayers = n
	}
	if v := getenv("LB_ADDRESSES"); v != "" {
		c.Relay.Addresses = utils.SplitList(v)
	}
	if v := getenv("CONSUL_HTTP_ADDR"); v != "" {
		c.Consul.Addresses = v
	}
	if v := getenv("RELAY_SERVICE_NAME"); v != "" {
		c.Consul.ServiceName = v
	}
	if v := getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Game.Version == "" {
		errs = append(errs, fmt.Errorf("game.version: %w", session.ErrInvalidVersion))
	}
	if _, err := session.DefaultRoomOptions(c.Game.MaxPlayers); err != nil {
		errs = append(errs, fmt.Errorf("game.max_players: %w", err))
	}
	if len(c.Relay.Addresses) == 0 && c.Consul.Addresses == "" {
		errs = append(errs, errors.New("relay: set relay.addresses or consul.addresses"))
	}
	if c.Consul.Addresses != "" && c.Consul.ServiceName == "" {
		errs = append(errs, errors.New("consul.service_name is required with consul.addresses"))
	}
	return errors.Join(errs...)
}

// Policy builds the session policy described by the configuration.
func (c *Config) Policy() session.Policy {
	p := session.DefaultPolicy(c.Game.Version)
	p.MaxPlayers = c.Game.MaxPlayers
	p.AutoJoin = c.Game.AutoJoin
	p.Retry = session.RetryPolicy{
		InitialInterval: c.Retry.InitialInterval,
		MaxInterval:     c.Retry.MaxInterval,
		MaxElapsedTime:  c.Retry.MaxElapsedTime,
	}
	return p
}
