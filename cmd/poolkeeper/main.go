// Command poolkeeper runs the epoch-settlement keeper for a set of investment
// pools. It loads configuration, validates it, wires dependencies, sets up
// signal handling, and starts the scheduler.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/poolkeeper/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "poolkeeper",
		Short:         "Closes, solves and executes pool epochs on schedule",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to configuration file")

	root.AddCommand(
		newRunCmd(&configPath),
		newStatusCmd(&configPath),
		newEncryptKeyCmd(),
	)
	return root
}

// loadConfig loads and validates the configuration and returns a logger at
// the configured level.
func loadConfig(path string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", path, err)
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newLogger builds the structured JSON logger.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
}
