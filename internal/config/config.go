// Package config holds the static process configuration every login and
// shard process reads at startup (spec.md §6: "servers read a static
// config providing listen address, poll timeout, tick period, number of
// channels, per-channel max population, DB host/port/user/password,
// default account level, and login-shard endpoint").
//
// Shaped after daemon/config/config.go's DefaultConfig()/LoadConfig(path)
// pair, extended with the cluster-specific fields above; LoadConfig stays
// a thin YAML loader the way the teacher's does rather than growing a
// general-purpose config framework, since spec.md places "configuration
// parsing beyond" the fields above out of scope.
package config

import (
	"fmt"
	"os"
	"time"

	yaml "go.yaml.in/yaml/v2"
)

// ShardEndpoint is one entry in the login process's static shard
// membership list.
type ShardEndpoint struct {
	ShardID    string `yaml:"shard_id"`
	ClientAddr string `yaml:"client_addr"`
}

// Config is the full process configuration. Not every field applies to
// every role: a login process ignores TickPeriod/VehicleExpiryPeriod/
// ChannelCount (it has no entity map to tick or channel to place
// players in); a shard process ignores LoginShardListenAddr.
type Config struct {
	// Role distinguishes "login" from a shard id so one Config shape
	// can describe either process (matches cmd/loginserver and
	// cmd/shardserver sharing this package).
	Role string `yaml:"role"`

	// Client-facing TCP listener (§4.1/§4.3).
	ListenAddr  string        `yaml:"listen_addr"`
	PollTimeout time.Duration `yaml:"poll_timeout"`

	// Shard tick scheduling (§4.5); zero on a login process.
	TickPeriod          time.Duration `yaml:"tick_period"`
	VehicleExpiryPeriod time.Duration `yaml:"vehicle_expiry_period"`
	AutosavePeriod      time.Duration `yaml:"autosave_period"`
	KeepalivePeriod     time.Duration `yaml:"keepalive_period"`
	SessionIdleTimeout  time.Duration `yaml:"session_idle_timeout"`

	// Channel/instance placement (§4.9, §6).
	ChannelCount       int32 `yaml:"channel_count"`
	ChannelCapacity    int   `yaml:"channel_capacity"`
	DefaultAccountPerm int32 `yaml:"default_account_perm"`

	// Persistence (§4.8).
	DatabaseDSN   string `yaml:"database_dsn"`
	GameTablesDSN string `yaml:"gametables_dsn"`

	// Login<->shard control link (§4.9).
	LoginShardListenAddr string `yaml:"login_shard_listen_addr"` // login role only
	LoginShardDialAddr   string `yaml:"login_shard_dial_addr"`   // shard role only
	ShardID              string `yaml:"shard_id"`

	// ShardEndpoints is the login process's static membership list: every
	// shard it expects a control connection from, and the client-facing
	// address to hand back to a player routed there. §1's "horizontal
	// sharding across machines" is out of scope, but a single login
	// process load-balancing across several shards on one LAN (§1's
	// "single-login, N-shard") still needs each shard's identity known
	// up front, since the control-link handshake (internal/loginshard)
	// pins an expected shard id per accepted connection rather than
	// discovering it dynamically.
	ShardEndpoints []ShardEndpoint `yaml:"shard_endpoints"`

	// Identity keystore (internal/identity).
	KeystorePath       string `yaml:"keystore_path"`
	KeystorePassphrase string `yaml:"keystore_passphrase"`

	// Observability.
	MetricsAddr string `yaml:"metrics_addr"`
	HealthAddr  string `yaml:"health_addr"`

	// Connection admission (§5 "no handler may block indefinitely"; the
	// accept-rate limiter keeps a burst of new connections from starving
	// the reactor's single poll goroutine of time to service existing
	// sessions).
	AcceptRatePerSecond float64 `yaml:"accept_rate_per_second"`
	AcceptBurst         int     `yaml:"accept_burst"`
}

// DefaultConfig returns sane development defaults: one shard, one
// channel, unencrypted dev keystore, no tracing endpoint configured.
func DefaultConfig() *Config {
	return &Config{
		Role:                 "shard",
		ListenAddr:           ":23000",
		PollTimeout:          100 * time.Millisecond,
		TickPeriod:           100 * time.Millisecond,
		VehicleExpiryPeriod:  time.Second,
		AutosavePeriod:       30 * time.Second,
		KeepalivePeriod:      15 * time.Second,
		SessionIdleTimeout:   2 * time.Minute,
		ChannelCount:         1,
		ChannelCapacity:      100,
		DefaultAccountPerm:   99,
		DatabaseDSN:          "file:originfall.db?_pragma=foreign_keys(1)",
		GameTablesDSN:        "gametables.bolt",
		LoginShardListenAddr: ":23001",
		LoginShardDialAddr:   "127.0.0.1:23001",
		ShardID:              "shard-1",
		MetricsAddr:          ":9090",
		HealthAddr:           ":9091",
		AcceptRatePerSecond:  50,
		AcceptBurst:          100,
		ShardEndpoints: []ShardEndpoint{
			{ShardID: "shard-1", ClientAddr: "127.0.0.1:23000"},
		},
	}
}

// LoadConfig reads a YAML file at path and overlays it on DefaultConfig.
// An empty path returns the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the invariants spec.md §6 states outright (channel
// count range) plus the ones config plumbing would silently break.
func (c *Config) Validate() error {
	if c.ChannelCount < 1 || c.ChannelCount > 127 {
		return fmt.Errorf("config: channel_count %d out of range [1,127]", c.ChannelCount)
	}
	if c.ChannelCapacity < 1 {
		return fmt.Errorf("config: channel_capacity must be positive")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr is required")
	}
	return nil
}

// SchedulerFields returns the five scheduler periods in the order of
// internal/scheduler.Config's fields. server/shard.New reads the Config
// fields directly and does not call it.
func (c *Config) SchedulerFields() (tick, vehicleExpiry, autosave, keepalive, idle time.Duration) {
	return c.TickPeriod, c.VehicleExpiryPeriod, c.AutosavePeriod, c.KeepalivePeriod, c.SessionIdleTimeout
}
