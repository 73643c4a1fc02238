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
// built-in defaults, applies POOLKEEPER_* environment variable overrides, and
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

// applyEnvOverrides reads well-known POOLKEEPER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Ledger ──
	setStr(&cfg.Ledger.RPCURL, "POOLKEEPER_LEDGER_RPC_URL")
	setInt64(&cfg.Ledger.ChainID, "POOLKEEPER_LEDGER_CHAIN_ID")
	setStr(&cfg.Ledger.MulticallAddress, "POOLKEEPER_LEDGER_MULTICALL_ADDRESS")
	setDuration(&cfg.Ledger.PollInterval, "POOLKEEPER_LEDGER_POLL_INTERVAL")
	setUint64(&cfg.Ledger.FallbackGasLimit, "POOLKEEPER_LEDGER_FALLBACK_GAS_LIMIT")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "POOLKEEPER_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "POOLKEEPER_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "POOLKEEPER_WALLET_KEY_PASSWORD")

	// ── Registry ──
	setStr(&cfg.Registry.Address, "POOLKEEPER_REGISTRY_ADDRESS")
	setStr(&cfg.Registry.Network, "POOLKEEPER_REGISTRY_NETWORK")
	setStr(&cfg.Registry.IPFSGateway, "POOLKEEPER_REGISTRY_IPFS_GATEWAY")
	setStr(&cfg.Registry.PoolsFile, "POOLKEEPER_REGISTRY_POOLS_FILE")
	setDuration(&cfg.Registry.Timeout, "POOLKEEPER_REGISTRY_TIMEOUT")

	// ── Solver ──
	setStr(&cfg.Solver.URL, "POOLKEEPER_SOLVER_URL")
	setDuration(&cfg.Solver.Timeout, "POOLKEEPER_SOLVER_TIMEOUT")

	// ── Schedule ──
	setStr(&cfg.Schedule.Refresh, "POOLKEEPER_SCHEDULE_REFRESH")
	setStr(&cfg.Schedule.Close, "POOLKEEPER_SCHEDULE_CLOSE")
	setStr(&cfg.Schedule.Submit, "POOLKEEPER_SCHEDULE_SUBMIT")
	setStr(&cfg.Schedule.Execute, "POOLKEEPER_SCHEDULE_EXECUTE")
	setStr(&cfg.Schedule.Timezone, "POOLKEEPER_SCHEDULE_TIMEZONE")

	// ── Gas ──
	setStr(&cfg.Gas.StationURL, "POOLKEEPER_GAS_STATION_URL")
	setDuration(&cfg.Gas.StationTimeout, "POOLKEEPER_GAS_STATION_TIMEOUT")
	setDuration(&cfg.Gas.RefreshInterval, "POOLKEEPER_GAS_REFRESH_INTERVAL")
	setDuration(&cfg.Gas.ConfirmationTimeout, "POOLKEEPER_GAS_CONFIRMATION_TIMEOUT")
	setInt(&cfg.Gas.MaxEscalations, "POOLKEEPER_GAS_MAX_ESCALATIONS")
	setDuration(&cfg.Gas.FastPriceMaxAge, "POOLKEEPER_GAS_FAST_PRICE_MAX_AGE")

	// ── Notify ──
	setStr(&cfg.Notify.SlackWebhookURL, "POOLKEEPER_NOTIFY_SLACK_WEBHOOK_URL")
	setStr(&cfg.Notify.TelegramToken, "POOLKEEPER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POOLKEEPER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POOLKEEPER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POOLKEEPER_NOTIFY_EVENTS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POOLKEEPER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POOLKEEPER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POOLKEEPER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POOLKEEPER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POOLKEEPER_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "POOLKEEPER_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "POOLKEEPER_REDIS_KEY_PREFIX")

	// ── Audit ──
	setBool(&cfg.Audit.Enabled, "POOLKEEPER_AUDIT_ENABLED")
	setStr(&cfg.Audit.DSN, "POOLKEEPER_AUDIT_DSN")
	setStr(&cfg.Audit.Host, "POOLKEEPER_AUDIT_HOST")
	setInt(&cfg.Audit.Port, "POOLKEEPER_AUDIT_PORT")
	setStr(&cfg.Audit.Database, "POOLKEEPER_AUDIT_DATABASE")
	setStr(&cfg.Audit.User, "POOLKEEPER_AUDIT_USER")
	setStr(&cfg.Audit.Password, "POOLKEEPER_AUDIT_PASSWORD")
	setStr(&cfg.Audit.SSLMode, "POOLKEEPER_AUDIT_SSL_MODE")
	setBool(&cfg.Audit.RunMigrations, "POOLKEEPER_AUDIT_RUN_MIGRATIONS")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "POOLKEEPER_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Endpoint, "POOLKEEPER_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "POOLKEEPER_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "POOLKEEPER_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "POOLKEEPER_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "POOLKEEPER_ARCHIVE_SECRET_KEY")
	setStr(&cfg.Archive.Prefix, "POOLKEEPER_ARCHIVE_PREFIX")

	// ── Ops ──
	setBool(&cfg.Ops.Enabled, "POOLKEEPER_OPS_ENABLED")
	setStr(&cfg.Ops.Addr, "POOLKEEPER_OPS_ADDR")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "POOLKEEPER_LOG_LEVEL")
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

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
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
