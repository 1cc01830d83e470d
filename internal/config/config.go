// Package config defines the top-level configuration for the paper trading
// bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PAPERBOT_* environment variables.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Limits   LimitsConfig   `toml:"limits"`
	State    StateConfig    `toml:"state"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Strategy StrategyConfig `toml:"strategy"`
	Feed     FeedConfig     `toml:"feed"`
	Venues   []VenueConfig  `toml:"venues"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// EngineConfig holds cycle scheduling parameters.
type EngineConfig struct {
	// Interval is the tick period between scan-and-execute cycles.
	Interval duration `toml:"interval"`
	// SoftBudget is the cycle duration above which an overrun warning is
	// logged. In-flight work is never cancelled.
	SoftBudget duration `toml:"soft_budget"`
	// PreferredVenue, when set, must own the first leg of every opportunity
	// that touches it.
	PreferredVenue string `toml:"preferred_venue"`
	// OrderTimeout bounds each individual order placement.
	OrderTimeout duration `toml:"order_timeout"`
}

// LimitsConfig holds the admission gate's rate ceilings. Zero disables a
// ceiling; the kill switch and pause flag are runtime state, not config.
type LimitsConfig struct {
	MaxTradesPerHour int `toml:"max_trades_per_hour"`
	MaxTradesPerDay  int `toml:"max_trades_per_day"`
}

// StateConfig holds crash-safe file persistence parameters.
type StateConfig struct {
	// Dir is the directory holding control, ledger, and activity files.
	Dir string `toml:"dir"`
	// LockTimeout bounds how long a reader or writer waits for the advisory
	// file lock before giving up.
	LockTimeout duration `toml:"lock_timeout"`
	// BackupInterval is the minimum spacing between .bak copies; zero
	// disables backups.
	BackupInterval duration `toml:"backup_interval"`
	// SyncDir additionally fsyncs the directory after each atomic rename.
	SyncDir bool `toml:"sync_dir"`
}

// LedgerConfig holds paper settlement parameters.
type LedgerConfig struct {
	StartingBalance float64 `toml:"starting_balance"`
}

// StrategyConfig holds spread scanner parameters.
type StrategyConfig struct {
	// MinEdgeBps is the minimum cross-venue spread, in basis points of the
	// buy price, for a candidate to be emitted.
	MinEdgeBps float64 `toml:"min_edge_bps"`
	// SizePerLeg is the quantity placed on each leg.
	SizePerLeg float64 `toml:"size_per_leg"`
	// Pairs maps one logical symbol to venue-specific market IDs.
	Pairs []PairConfig `toml:"pairs"`
}

// PairConfig maps one instrument to its market ID on each venue.
type PairConfig struct {
	Symbol  string            `toml:"symbol"`
	Markets map[string]string `toml:"markets"`
}

// FeedConfig holds market data source parameters.
type FeedConfig struct {
	// WsURL is the live ticker websocket endpoint; empty runs synthetic-only.
	WsURL string `toml:"ws_url"`
	// MaxStale is how old a cached live price may be before the feed reports
	// itself unavailable and the engine falls back to synthetic data.
	MaxStale duration `toml:"max_stale"`
	// SyntheticSeed seeds the synthetic random walk for reproducible runs;
	// zero seeds from the clock.
	SyntheticSeed int64 `toml:"synthetic_seed"`
}

// VenueConfig describes one simulated venue.
type VenueConfig struct {
	Name string `toml:"name"`
	// FillLatency delays each simulated fill.
	FillLatency duration `toml:"fill_latency"`
	// SlippageBps is the worst-case adverse fill deviation from the limit.
	SlippageBps float64 `toml:"slippage_bps"`
	// FailureRate is the probability in [0,1] that a placement is rejected.
	FailureRate float64 `toml:"failure_rate"`
	Seed        int64   `toml:"seed"`
}

// PostgresConfig holds optional long-term history store parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds optional shared rate-counter parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds optional snapshot archive parameters.
type S3Config struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	Interval       duration `toml:"interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
	// ApiKey protects the control endpoints; empty leaves them open, which
	// is only sensible on a loopback deployment.
	ApiKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			Interval:     duration{5 * time.Second},
			SoftBudget:   duration{5 * time.Second},
			OrderTimeout: duration{30 * time.Second},
		},
		Limits: LimitsConfig{
			MaxTradesPerHour: 30,
			MaxTradesPerDay:  200,
		},
		State: StateConfig{
			Dir:            "state",
			LockTimeout:    duration{10 * time.Second},
			BackupInterval: duration{time.Hour},
		},
		Ledger: LedgerConfig{
			StartingBalance: 10_000,
		},
		Strategy: StrategyConfig{
			MinEdgeBps: 50,
			SizePerLeg: 100,
		},
		Feed: FeedConfig{
			MaxStale: duration{30 * time.Second},
		},
		Venues: []VenueConfig{
			{Name: "alpha", FillLatency: duration{20 * time.Millisecond}, SlippageBps: 10},
			{Name: "beta", FillLatency: duration{35 * time.Millisecond}, SlippageBps: 15, FailureRate: 0.02},
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "paperbot",
			User:          "paperbot",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "paperbot-data",
			ForcePathStyle: true,
			Interval:       duration{15 * time.Minute},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"trade_executed", "alert_triggered", "kill_switch"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"run":     true,
	"monitor": true,
	"server":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, monitor, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	if c.Engine.Interval.Duration <= 0 {
		errs = append(errs, "engine: interval must be > 0")
	}
	if c.Engine.SoftBudget.Duration < 0 {
		errs = append(errs, "engine: soft_budget must be >= 0")
	}
	if c.Engine.OrderTimeout.Duration <= 0 {
		errs = append(errs, "engine: order_timeout must be > 0")
	}
	if c.Engine.PreferredVenue != "" && !c.hasVenue(c.Engine.PreferredVenue) {
		errs = append(errs, fmt.Sprintf("engine: preferred_venue %q is not a configured venue", c.Engine.PreferredVenue))
	}

	// Limits
	if c.Limits.MaxTradesPerHour < 0 {
		errs = append(errs, "limits: max_trades_per_hour must be >= 0")
	}
	if c.Limits.MaxTradesPerDay < 0 {
		errs = append(errs, "limits: max_trades_per_day must be >= 0")
	}

	// State
	if c.State.Dir == "" {
		errs = append(errs, "state: dir must not be empty")
	}
	if c.State.LockTimeout.Duration <= 0 {
		errs = append(errs, "state: lock_timeout must be > 0")
	}
	if c.State.BackupInterval.Duration < 0 {
		errs = append(errs, "state: backup_interval must be >= 0")
	}

	// Ledger
	if c.Ledger.StartingBalance <= 0 {
		errs = append(errs, "ledger: starting_balance must be > 0")
	}

	// Strategy
	if c.Strategy.MinEdgeBps <= 0 {
		errs = append(errs, "strategy: min_edge_bps must be > 0")
	}
	if c.Strategy.SizePerLeg <= 0 {
		errs = append(errs, "strategy: size_per_leg must be > 0")
	}
	for i, pair := range c.Strategy.Pairs {
		if pair.Symbol == "" {
			errs = append(errs, fmt.Sprintf("strategy: pairs[%d]: symbol must not be empty", i))
		}
		if len(pair.Markets) < 2 {
			errs = append(errs, fmt.Sprintf("strategy: pairs[%d] (%s): at least two venue markets required", i, pair.Symbol))
		}
		for venue := range pair.Markets {
			if !c.hasVenue(venue) {
				errs = append(errs, fmt.Sprintf("strategy: pairs[%d] (%s): venue %q is not configured", i, pair.Symbol, venue))
			}
		}
	}

	// Venues
	if len(c.Venues) == 0 {
		errs = append(errs, "venues: at least one venue must be configured")
	}
	seen := make(map[string]bool, len(c.Venues))
	for i, v := range c.Venues {
		if v.Name == "" {
			errs = append(errs, fmt.Sprintf("venues[%d]: name must not be empty", i))
			continue
		}
		if seen[v.Name] {
			errs = append(errs, fmt.Sprintf("venues[%d]: duplicate venue %q", i, v.Name))
		}
		seen[v.Name] = true
		if v.SlippageBps < 0 {
			errs = append(errs, fmt.Sprintf("venues[%d] (%s): slippage_bps must be >= 0", i, v.Name))
		}
		if v.FailureRate < 0 || v.FailureRate > 1 {
			errs = append(errs, fmt.Sprintf("venues[%d] (%s): failure_rate must be in [0,1]", i, v.Name))
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Interval.Duration <= 0 {
			errs = append(errs, "s3: interval must be > 0 when enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) hasVenue(name string) bool {
	for _, v := range c.Venues {
		if v.Name == name {
			return true
		}
	}
	return false
}
