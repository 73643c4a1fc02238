// Package config defines the top-level configuration for the pool keeper
// and provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POOLKEEPER_* environment variables.
type Config struct {
	Ledger   LedgerConfig   `toml:"ledger"`
	Wallet   WalletConfig   `toml:"wallet"`
	Registry RegistryConfig `toml:"registry"`
	Solver   SolverConfig   `toml:"solver"`
	Schedule ScheduleConfig `toml:"schedule"`
	Gas      GasConfig      `toml:"gas"`
	Notify   NotifyConfig   `toml:"notify"`
	Redis    RedisConfig    `toml:"redis"`
	Audit    AuditConfig    `toml:"audit"`
	Archive  ArchiveConfig  `toml:"archive"`
	Ops      OpsConfig      `toml:"ops"`
	LogLevel string         `toml:"log_level"`
}

// LedgerConfig holds the RPC endpoint and chain parameters.
type LedgerConfig struct {
	RPCURL           string   `toml:"rpc_url"`
	ChainID          int64    `toml:"chain_id"`
	MulticallAddress string   `toml:"multicall_address"`
	PollInterval     duration `toml:"poll_interval"`
	FallbackGasLimit uint64   `toml:"fallback_gas_limit"`
}

// WalletConfig holds the keeper's signing key.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// RegistryConfig selects where the managed pool set comes from. PoolsFile,
// when set, replaces the on-chain registry.
type RegistryConfig struct {
	Address     string   `toml:"address"`
	Network     string   `toml:"network"`
	IPFSGateway string   `toml:"ipfs_gateway"`
	PoolsFile   string   `toml:"pools_file"`
	Timeout     duration `toml:"timeout"`
}

// SolverConfig points at the allocation solver service.
type SolverConfig struct {
	URL     string   `toml:"url"`
	Timeout duration `toml:"timeout"`
}

// ScheduleConfig holds cron specs with seconds precision. An empty spec
// disables the task.
type ScheduleConfig struct {
	Refresh  string `toml:"refresh"`
	Close    string `toml:"close"`
	Submit   string `toml:"submit"`
	Execute  string `toml:"execute"`
	Timezone string `toml:"timezone"`
}

// GasConfig tunes the gas station feed and the escalation policy.
type GasConfig struct {
	StationURL          string   `toml:"station_url"`
	StationTimeout      duration `toml:"station_timeout"`
	RefreshInterval     duration `toml:"refresh_interval"`
	ConfirmationTimeout duration `toml:"confirmation_timeout"`
	MaxEscalations      int      `toml:"max_escalations"`
	FastPriceMaxAge     duration `toml:"fast_price_max_age"`
}

// NotifyConfig holds notification channel credentials. Events filters which
// message kinds are delivered; empty means all.
type NotifyConfig struct {
	SlackWebhookURL   string   `toml:"slack_webhook_url"`
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// RedisConfig holds the optional gas price cache connection.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// AuditConfig holds the optional Postgres audit log connection.
type AuditConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	MaxConns      int    `toml:"max_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// ArchiveConfig holds the optional S3 snapshot archive.
type ArchiveConfig struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// OpsConfig holds the health and metrics listener.
type OpsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
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
func Defaults() Config {
	return Config{
		Ledger: LedgerConfig{
			ChainID:          1,
			MulticallAddress: "0xcA11bde05977b3631167028862bE2a173976CA11",
			PollInterval:     duration{3 * time.Second},
			FallbackGasLimit: 1_500_000,
		},
		Registry: RegistryConfig{
			Network:     "mainnet",
			IPFSGateway: "https://cloudflare-ipfs.com",
			Timeout:     duration{30 * time.Second},
		},
		Solver: SolverConfig{
			URL:     "http://localhost:8090",
			Timeout: duration{60 * time.Second},
		},
		Schedule: ScheduleConfig{
			Refresh:  "@every 30m",
			Close:    "0 0 12 * * *",
			Submit:   "@every 10m",
			Execute:  "@every 5m",
			Timezone: "UTC",
		},
		Gas: GasConfig{
			StationTimeout:      duration{10 * time.Second},
			RefreshInterval:     duration{time.Minute},
			ConfirmationTimeout: duration{5 * time.Minute},
			MaxEscalations:      3,
			FastPriceMaxAge:     duration{10 * time.Minute},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "poolkeeper",
		},
		Audit: AuditConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "poolkeeper",
			User:          "postgres",
			SSLMode:       "disable",
			MaxConns:      4,
			RunMigrations: true,
		},
		Archive: ArchiveConfig{
			Region:         "us-east-1",
			Bucket:         "poolkeeper-snapshots",
			ForcePathStyle: true,
			Prefix:         "snapshots",
		},
		Ops: OpsConfig{
			Addr: ":9102",
		},
		LogLevel: "info",
	}
}

var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks Config for obviously invalid or missing values and returns a
// single error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Ledger
	if c.Ledger.RPCURL == "" {
		errs = append(errs, "ledger: rpc_url must not be empty")
	}
	if c.Ledger.ChainID <= 0 {
		errs = append(errs, "ledger: chain_id must be positive")
	}
	if !common.IsHexAddress(c.Ledger.MulticallAddress) {
		errs = append(errs, fmt.Sprintf("ledger: multicall_address %q is not an address", c.Ledger.MulticallAddress))
	}

	// Wallet
	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		errs = append(errs, "wallet: either private_key or encrypted_key_path must be set")
	}
	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Registry
	if c.Registry.PoolsFile == "" {
		if !common.IsHexAddress(c.Registry.Address) {
			errs = append(errs, "registry: address must be set (or set registry.pools_file)")
		}
		if c.Registry.IPFSGateway == "" {
			errs = append(errs, "registry: ipfs_gateway must not be empty")
		}
	}
	if c.Registry.Network == "" {
		errs = append(errs, "registry: network must not be empty")
	}

	// Solver
	if u, err := url.Parse(c.Solver.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("solver: url %q must be an absolute URL", c.Solver.URL))
	}

	// Schedule
	specs := []struct{ name, spec string }{
		{"refresh", c.Schedule.Refresh},
		{"close", c.Schedule.Close},
		{"submit", c.Schedule.Submit},
		{"execute", c.Schedule.Execute},
	}
	for _, s := range specs {
		if s.spec == "" {
			continue
		}
		if _, err := cronParser.Parse(s.spec); err != nil {
			errs = append(errs, fmt.Sprintf("schedule: %s %q: %v", s.name, s.spec, err))
		}
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("schedule: unknown timezone %q", c.Schedule.Timezone))
	}

	// Gas
	if c.Gas.ConfirmationTimeout.Duration <= 0 {
		errs = append(errs, "gas: confirmation_timeout must be > 0")
	}
	if c.Gas.MaxEscalations < 0 {
		errs = append(errs, "gas: max_escalations must be >= 0")
	}
	if c.Gas.StationURL != "" && c.Gas.RefreshInterval.Duration <= 0 {
		errs = append(errs, "gas: refresh_interval must be > 0 when station_url is set")
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
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

	// Audit
	if c.Audit.Enabled {
		if c.Audit.DSN == "" {
			if c.Audit.Host == "" {
				errs = append(errs, "audit: host must not be empty (or set audit.dsn)")
			}
			if c.Audit.Port < 1 || c.Audit.Port > 65535 {
				errs = append(errs, fmt.Sprintf("audit: port must be 1-65535, got %d", c.Audit.Port))
			}
			if c.Audit.Database == "" {
				errs = append(errs, "audit: database must not be empty")
			}
		}
		if c.Audit.MaxConns < 1 {
			errs = append(errs, "audit: max_conns must be >= 1")
		}
	}

	// Archive
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		errs = append(errs, "archive: bucket must not be empty")
	}

	// Ops
	if c.Ops.Enabled && c.Ops.Addr == "" {
		errs = append(errs, "ops: addr must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Location resolves the schedule timezone, falling back to UTC.
func (s ScheduleConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
