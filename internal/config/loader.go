package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PAPERBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PAPERBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setDuration(&cfg.Engine.Interval, "PAPERBOT_ENGINE_INTERVAL")
	setDuration(&cfg.Engine.SoftBudget, "PAPERBOT_ENGINE_SOFT_BUDGET")
	setStr(&cfg.Engine.PreferredVenue, "PAPERBOT_ENGINE_PREFERRED_VENUE")
	setDuration(&cfg.Engine.OrderTimeout, "PAPERBOT_ENGINE_ORDER_TIMEOUT")

	// ── Limits ──
	setInt(&cfg.Limits.MaxTradesPerHour, "PAPERBOT_LIMITS_MAX_TRADES_PER_HOUR")
	setInt(&cfg.Limits.MaxTradesPerDay, "PAPERBOT_LIMITS_MAX_TRADES_PER_DAY")

	// ── State ──
	setStr(&cfg.State.Dir, "PAPERBOT_STATE_DIR")
	setDuration(&cfg.State.LockTimeout, "PAPERBOT_STATE_LOCK_TIMEOUT")
	setDuration(&cfg.State.BackupInterval, "PAPERBOT_STATE_BACKUP_INTERVAL")
	setBool(&cfg.State.SyncDir, "PAPERBOT_STATE_SYNC_DIR")

	// ── Ledger ──
	setFloat64(&cfg.Ledger.StartingBalance, "PAPERBOT_LEDGER_STARTING_BALANCE")

	// ── Strategy ──
	setFloat64(&cfg.Strategy.MinEdgeBps, "PAPERBOT_STRATEGY_MIN_EDGE_BPS")
	setFloat64(&cfg.Strategy.SizePerLeg, "PAPERBOT_STRATEGY_SIZE_PER_LEG")

	// ── Feed ──
	setStr(&cfg.Feed.WsURL, "PAPERBOT_FEED_WS_URL")
	setDuration(&cfg.Feed.MaxStale, "PAPERBOT_FEED_MAX_STALE")
	setInt64(&cfg.Feed.SyntheticSeed, "PAPERBOT_FEED_SYNTHETIC_SEED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "PAPERBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "PAPERBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PAPERBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PAPERBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PAPERBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PAPERBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PAPERBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PAPERBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PAPERBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PAPERBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PAPERBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "PAPERBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "PAPERBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PAPERBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PAPERBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PAPERBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PAPERBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PAPERBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "PAPERBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "PAPERBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PAPERBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "PAPERBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PAPERBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PAPERBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PAPERBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PAPERBOT_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.Interval, "PAPERBOT_S3_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "PAPERBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PAPERBOT_SERVER_PORT")
	setStr(&cfg.Server.ApiKey, "PAPERBOT_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "PAPERBOT_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PAPERBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PAPERBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PAPERBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PAPERBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "PAPERBOT_MODE")
	setStr(&cfg.LogLevel, "PAPERBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
