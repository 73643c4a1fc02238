package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/poolkeeper/internal/aggregator"
	s3blob "github.com/alanyoungcy/poolkeeper/internal/blob/s3"
	"github.com/alanyoungcy/poolkeeper/internal/cache/redis"
	"github.com/alanyoungcy/poolkeeper/internal/config"
	"github.com/alanyoungcy/poolkeeper/internal/crypto"
	"github.com/alanyoungcy/poolkeeper/internal/domain"
	"github.com/alanyoungcy/poolkeeper/internal/executor"
	"github.com/alanyoungcy/poolkeeper/internal/gasstation"
	"github.com/alanyoungcy/poolkeeper/internal/keeper"
	"github.com/alanyoungcy/poolkeeper/internal/ledger"
	"github.com/alanyoungcy/poolkeeper/internal/metrics"
	"github.com/alanyoungcy/poolkeeper/internal/notify"
	"github.com/alanyoungcy/poolkeeper/internal/registry"
	"github.com/alanyoungcy/poolkeeper/internal/solution"
	"github.com/alanyoungcy/poolkeeper/internal/solver"
	"github.com/alanyoungcy/poolkeeper/internal/store/postgres"
)

// Dependencies bundles everything the run loop needs. It is constructed by
// Wire and torn down by the returned cleanup function. Refresher, Audit and
// Archiver are nil when their backing service is not configured.
type Dependencies struct {
	Keeper    *keeper.Keeper
	Submitter *executor.Submitter
	Refresher *gasstation.Refresher
	Metrics   *metrics.Collector
	Notifier  *notify.Notifier
	Audit     domain.AuditLog
	Archiver  domain.SnapshotArchiver
}

// Reader is the read-only slice of the wiring: enough to list pools and
// aggregate their state without a signing key.
type Reader struct {
	Source     domain.PoolSource
	Aggregator *aggregator.Aggregator
	client     *ethclient.Client
}

// Close releases the RPC connection.
func (r *Reader) Close() { r.client.Close() }

// WireReader dials the ledger and builds the pool source and aggregator.
func WireReader(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Reader, error) {
	client, err := ledger.Dial(ctx, cfg.Ledger.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("wire: ledger: %w", err)
	}
	reader := ledger.NewMulticallReader(client, cfg.Ledger.MulticallAddress)
	return &Reader{
		Source:     poolSource(cfg, reader, logger),
		Aggregator: aggregator.New(reader, logger),
		client:     client,
	}, nil
}

// poolSource prefers the static pools file over the on-chain registry.
func poolSource(cfg *config.Config, reader registry.BatchReader, logger *slog.Logger) domain.PoolSource {
	if cfg.Registry.PoolsFile != "" {
		return registry.NewFileSource(cfg.Registry.PoolsFile, cfg.Registry.Network, logger)
	}
	return registry.New(reader, registry.Config{
		Address:     cfg.Registry.Address,
		Network:     cfg.Registry.Network,
		IPFSGateway: cfg.Registry.IPFSGateway,
		Timeout:     cfg.Registry.Timeout.Duration,
	}, logger)
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Metrics: metrics.New()}

	// --- Ledger ---
	rd, err := WireReader(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, rd.Close)

	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: wallet: %w", err))
	}
	signer := crypto.NewSigner(key, cfg.Ledger.ChainID)
	writer := ledger.NewWriter(rd.client, signer, ledger.WriterConfig{
		FallbackGasLimit: cfg.Ledger.FallbackGasLimit,
		PollInterval:     cfg.Ledger.PollInterval.Duration,
	}, logger)
	logger.InfoContext(ctx, "keeper account loaded", slog.String("address", writer.Address()))

	// --- PostgreSQL audit log ---
	if cfg.Audit.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Audit.DSN,
			Host:     cfg.Audit.Host,
			Port:     cfg.Audit.Port,
			Database: cfg.Audit.Database,
			User:     cfg.Audit.User,
			Password: cfg.Audit.Password,
			SSLMode:  cfg.Audit.SSLMode,
			MaxConns: cfg.Audit.MaxConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Audit.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.Audit = postgres.NewAuditStore(pgClient.Pool())
	}

	// --- S3 snapshot archive ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Archiver = s3blob.NewSnapshotArchiver(s3Client, cfg.Archive.Prefix)
	}

	// --- Fast gas price feed ---
	var gasCache domain.GasPriceCache
	if cfg.Gas.StationURL != "" {
		if cfg.Redis.Enabled {
			redisClient, err := redis.New(ctx, redis.ClientConfig{
				Addr:       cfg.Redis.Addr,
				Password:   cfg.Redis.Password,
				DB:         cfg.Redis.DB,
				PoolSize:   cfg.Redis.PoolSize,
				MaxRetries: cfg.Redis.MaxRetries,
				TLSEnabled: cfg.Redis.TLSEnabled,
				KeyPrefix:  cfg.Redis.KeyPrefix,
			})
			if err != nil {
				return fail(fmt.Errorf("wire: redis: %w", err))
			}
			closers = append(closers, func() { _ = redisClient.Close() })
			gasCache = redis.NewGasPriceCache(redisClient, cfg.Gas.FastPriceMaxAge.Duration)
		} else {
			gasCache = gasstation.NewMemoryCache()
		}
		station := gasstation.NewClient(cfg.Gas.StationURL, cfg.Gas.StationTimeout.Duration, logger)
		deps.Refresher = gasstation.NewRefresher(station, gasCache, cfg.Gas.RefreshInterval.Duration, logger)
	}

	// --- Notifications ---
	deps.Notifier = notify.NewNotifier(senders(cfg), cfg.Notify.Events, logger)

	// --- Keeper ---
	pools := keeper.NewPoolSet()

	policy := executor.DefaultGasPolicy()
	policy.MaxEscalations = cfg.Gas.MaxEscalations
	policy.FastPriceMaxAge = cfg.Gas.FastPriceMaxAge.Duration

	deps.Submitter = executor.NewSubmitter(writer, executor.NewHistory(), executor.Options{
		ConfirmTimeout: cfg.Gas.ConfirmationTimeout.Duration,
		Policy:         policy,
		GasCache:       gasCache,
		Audit:          deps.Audit,
		Metrics:        deps.Metrics,
		OnSettled:      settleNotifier(pools, deps.Notifier, logger),
	}, logger)
	closers = append(closers, deps.Submitter.Close)

	orchestrator := solution.New(
		solver.NewClient(solver.Config{URL: cfg.Solver.URL, Timeout: cfg.Solver.Timeout.Duration}, logger),
		solver.LinearScorer{},
		logger,
	)

	k, err := keeper.New(keeper.Schedule{
		Refresh:  cfg.Schedule.Refresh,
		Close:    cfg.Schedule.Close,
		Submit:   cfg.Schedule.Submit,
		Execute:  cfg.Schedule.Execute,
		Location: cfg.Schedule.Location(),
	}, keeper.Deps{
		Source:    rd.Source,
		Pools:     pools,
		State:     rd.Aggregator,
		Decider:   orchestrator,
		Submitter: deps.Submitter,
		Notifier:  deps.Notifier,
		Archiver:  deps.Archiver,
		Audit:     deps.Audit,
		Metrics:   deps.Metrics,
	}, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: keeper: %w", err))
	}
	deps.Keeper = k

	return deps, cleanup, nil
}

// senders builds one notify.Sender per configured channel.
func senders(cfg *config.Config) []notify.Sender {
	var out []notify.Sender
	if cfg.Notify.SlackWebhookURL != "" {
		out = append(out, notify.NewSlackSender(cfg.Notify.SlackWebhookURL))
	}
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		out = append(out, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		out = append(out, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	return out
}

// settleNotifier announces mined transactions, naming the pool when it is
// still in the active set.
func settleNotifier(pools *keeper.PoolSet, n keeper.Notifier, logger *slog.Logger) executor.SettleFunc {
	return func(ctx context.Context, rec domain.TxRecord, receipt ledger.Receipt) {
		name := rec.PoolID
		if pool, ok := pools.Get(rec.PoolID); ok {
			name = pool.DisplayName()
		}
		if err := n.Notify(ctx, notify.TxSettled(name, rec, receipt.Hash, receipt.Succeeded)); err != nil {
			logger.WarnContext(ctx, "settlement notification failed",
				slog.String("pool", rec.PoolID),
				slog.String("error", err.Error()),
			)
		}
	}
}
