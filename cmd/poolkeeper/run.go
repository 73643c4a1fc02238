package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/poolkeeper/internal/app"
	"github.com/alanyoungcy/poolkeeper/internal/config"
)

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the keeper until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			redacted := config.RedactedConfig(cfg)
			logger.Info("poolkeeper starting",
				slog.String("config", *configPath),
				slog.String("rpc", redacted.Ledger.RPCURL),
				slog.String("network", redacted.Registry.Network),
			)

			application := app.New(cfg, logger)
			defer application.Close()

			// Setup signal handling for graceful shutdown.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("application exited with error",
					slog.String("error", err.Error()),
				)
				return err
			}
			logger.Info("poolkeeper stopped")
			return nil
		},
	}
}
